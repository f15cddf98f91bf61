package codegen

import (
	"tinygo.org/x/go-llvm"

	"github.com/wirthx-compiler/wirthx/internal/ast"
	"github.com/wirthx-compiler/wirthx/internal/types"
)

// Generate lowers the whole unit into the context's module: runtime
// externs, std handles, intrinsics, every function, and the entry point.
func (c *Context) Generate() error {
	c.declareRuntime()
	c.installStdHandles()
	c.synthesizeIntrinsics()

	// headers first so calls resolve independent of definition order
	var bodies []*ast.FunctionDefinition
	for _, f := range c.unit.Functions {
		if err := c.declareFunction(f); err != nil {
			return err
		}
		if !f.External() {
			bodies = append(bodies, f)
		}
	}
	for _, f := range bodies {
		if err := c.generateFunctionBody(f); err != nil {
			return err
		}
	}

	return c.generateEntry()
}

// installStdHandles creates the stdin/stdout/stderr globals. On POSIX they
// bind to the C library's externally-linked FILE* globals; on Win32 they
// are internal slots filled from __acrt_iob_func at startup.
func (c *Context) installStdHandles() {
	ptr := c.bytePtrType()
	for _, name := range []string{"stdin", "stdout", "stderr"} {
		global := llvm.AddGlobal(c.module, ptr, name)
		if c.windows {
			global.SetLinkage(llvm.InternalLinkage)
			global.SetInitializer(llvm.ConstPointerNull(ptr))
		} else {
			global.SetLinkage(llvm.ExternalLinkage)
		}
		c.globals[name] = global
	}
}

// declareFunction emits the IR declaration. External functions keep their
// external name; unit functions are keyed by signature so arity overloads
// coexist.
func (c *Context) declareFunction(f *ast.FunctionDefinition) error {
	params := make([]llvm.Type, len(f.Params))
	for i, param := range f.Params {
		if param.ByReference || isCompositeType(param.Type) {
			params[i] = llvm.PointerType(c.irType(param.Type), 0)
		} else {
			params[i] = c.irType(param.Type)
		}
	}

	ret := c.llctx.VoidType()
	if f.ReturnType != nil {
		ret = c.irType(f.ReturnType)
	}

	symbolName := f.Signature()
	if f.External() {
		symbolName = f.ExternalName
	}
	fn := c.module.NamedFunction(symbolName)
	if fn.IsNil() {
		fn = llvm.AddFunction(c.module, symbolName, llvm.FunctionType(ret, params, false))
	}

	for i, param := range f.Params {
		fn.Param(i).SetName(param.Name)
		if _, isRecord := param.Type.(*types.Record); isRecord && !param.ByReference {
			fn.AddAttributeAtIndex(i+1, c.llctx.CreateEnumAttribute(llvm.AttributeKindID("byval"), 0))
		}
	}

	if f.HasAttribute(ast.AttrInline) && c.opts.Mode == Release {
		fn.AddFunctionAttr(c.llctx.CreateEnumAttribute(llvm.AttributeKindID("alwaysinline"), 0))
	}

	c.setFunction(f.Signature(), fn)
	c.setFunction(f.Name, fn)
	return nil
}

// generateFunctionBody lowers a function definition: parameter binding,
// the phantom result slot, locals, statements, and the epilogue.
func (c *Context) generateFunctionBody(f *ast.FunctionDefinition) error {
	fn, _ := c.function(f.Signature())
	prevFn, prevEnv, prevReturn := c.currentFn, c.fnEnv, c.explicitReturn
	c.currentFn = fn
	c.fnEnv = c.env.EnterFunction(f)
	c.explicitReturn = false
	defer func() {
		c.currentFn, c.fnEnv, c.explicitReturn = prevFn, prevEnv, prevReturn
	}()

	entry := llvm.AddBasicBlock(fn, f.Name+"_block")
	c.builder.SetInsertPointAtEnd(entry)

	c.pushScope()
	defer c.popScope()

	for i, param := range f.Params {
		arg := fn.Param(i)
		if param.ByReference || isCompositeType(param.Type) {
			c.define(param.Name, &symbol{typ: param.Type, ptr: arg})
			continue
		}
		slot := c.builder.CreateAlloca(c.irType(param.Type), param.Name)
		c.builder.CreateStore(arg, slot)
		c.define(param.Name, &symbol{typ: param.Type, ptr: slot})
	}

	if f.ReturnType != nil {
		result := c.builder.CreateAlloca(c.irType(f.ReturnType), "result")
		c.define(f.Name, &symbol{typ: f.ReturnType, ptr: result})
		c.define("result", &symbol{typ: f.ReturnType, ptr: result})
	}

	if err := c.genBlockVariables(f.Body); err != nil {
		return err
	}
	if err := c.genStmts(f.Body.Statements); err != nil {
		return err
	}

	if !c.blockTerminated() {
		if f.ReturnType != nil {
			result, _ := c.lookup("result")
			c.builder.CreateRet(c.builder.CreateLoad(result.ptr, ""))
		} else {
			c.builder.CreateRetVoid()
		}
	}
	return nil
}

// blockTerminated reports whether the current block already ends in a
// terminator, as after an explicit exit or break.
func (c *Context) blockTerminated() bool {
	last := c.builder.GetInsertBlock().LastInstruction()
	if last.IsNil() {
		return false
	}
	switch last.InstructionOpcode() {
	case llvm.Ret, llvm.Br, llvm.Switch, llvm.IndirectBr, llvm.Unreachable:
		return true
	}
	return false
}

// genBlockVariables allocates and initializes a block's declarations.
// Constants lower like initialized variables.
func (c *Context) genBlockVariables(block *ast.Block) error {
	if block == nil {
		return nil
	}
	for i := range block.Variables {
		def := &block.Variables[i]
		if def.Alias != "" || def.Builtin != "" {
			// result slots and std handles are installed by their owners
			continue
		}
		slot := c.builder.CreateAlloca(c.irType(def.Type), def.Name)
		c.define(def.Name, &symbol{typ: def.Type, ptr: slot})

		if err := c.genVariableInit(def, slot); err != nil {
			return err
		}
	}
	return nil
}

func (c *Context) genVariableInit(def *ast.VariableDefinition, slot llvm.Value) error {
	switch t := def.Type.(type) {
	case *types.String:
		// strings zero-initialize so the runtime sees length 0, data nil
		c.emitMemset(slot, llvm.SizeOf(c.stringStructType()))
		if def.Value != nil {
			return c.genAssignInto(slot, def.Type, def.Value)
		}
		return nil
	case *types.DynArray:
		c.emitMemset(slot, llvm.SizeOf(c.irType(def.Type)))
		return nil
	case *types.File:
		c.emitMemset(slot, llvm.SizeOf(c.fileStructType()))
		return nil
	case *types.FixedArray:
		if init, ok := def.Value.(*ast.ArrayInit); ok {
			for i, element := range init.Elements {
				value, err := c.genExpr(element)
				if err != nil {
					return err
				}
				index := c.constI64(int64(i))
				target := c.builder.CreateGEP(slot, []llvm.Value{c.constI64(0), index}, "")
				c.builder.CreateStore(c.coerceStore(value, t.Element), target)
			}
		}
		return nil
	}

	if def.Value != nil {
		return c.genAssignInto(slot, def.Type, def.Value)
	}
	return nil
}

// generateEntry emits the program's main function, or the unit's named
// initialization function.
func (c *Context) generateEntry() error {
	name := "main"
	if c.unit.Kind == ast.UnitLibrary {
		name = c.unit.Name
	}
	fnType := llvm.FunctionType(c.llctx.Int32Type(), nil, false)
	fn := llvm.AddFunction(c.module, name, fnType)
	c.currentFn = fn
	c.fnEnv = c.env

	entry := llvm.AddBasicBlock(fn, "entry")
	c.builder.SetInsertPointAtEnd(entry)

	c.pushScope()
	defer c.popScope()

	if c.windows {
		iob := c.mustFunction("__acrt_iob_func")
		for i, handle := range []string{"stdin", "stdout", "stderr"} {
			value := c.builder.CreateCall(iob, []llvm.Value{c.constI32(int64(i))}, "")
			c.builder.CreateStore(value, c.globals[handle])
		}
	}

	// bind the program's declared file parameters to the std handles
	for i, paramTok := range c.unit.ProgramParams {
		handleName := [3]string{"stdin", "stdout", "stderr"}[min(i, 2)]
		fileSlot := c.builder.CreateAlloca(c.fileStructType(), paramTok.Literal)
		c.emitMemset(fileSlot, llvm.SizeOf(c.fileStructType()))
		handle := c.builder.CreateLoad(c.globals[handleName], "")
		handleOffset := c.builder.CreateStructGEP(fileSlot, 1, "file.ptr")
		c.builder.CreateStore(handle, handleOffset)
		c.define(paramTok.Literal, &symbol{
			typ:     &types.File{},
			ptr:     fileSlot,
			builtin: handleName,
		})
	}

	block := c.unit.Block
	if block == nil {
		block = c.unit.Init
	}
	if block != nil {
		if err := c.genBlockVariables(block); err != nil {
			return err
		}
		if err := c.genStmts(block.Statements); err != nil {
			return err
		}
	}

	if !c.blockTerminated() {
		if c.unit.Kind == ast.UnitProgram {
			c.builder.CreateCall(c.mustFunction("exit"), []llvm.Value{c.constI32(0)}, "")
		}
		c.builder.CreateRet(c.constI32(0))
	}
	return nil
}
