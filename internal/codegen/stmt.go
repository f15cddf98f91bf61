package codegen

import (
	"tinygo.org/x/go-llvm"

	"github.com/wirthx-compiler/wirthx/internal/ast"
	"github.com/wirthx-compiler/wirthx/internal/types"
)

func (c *Context) genStmts(stmts []ast.Stmt) error {
	for _, stmt := range stmts {
		if c.blockTerminated() {
			// unreachable code after break/exit is not emitted
			return nil
		}
		if err := c.genStmt(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (c *Context) genStmt(stmt ast.Stmt) error {
	switch n := stmt.(type) {
	case *ast.Block:
		if err := c.genBlockVariables(n); err != nil {
			return err
		}
		return c.genStmts(n.Statements)

	case *ast.Assignment:
		return c.genAssignment(n)

	case *ast.FieldAssignment:
		fieldPtr, fieldType, err := c.genFieldPtr(n.Tok, n.Field)
		if err != nil {
			return err
		}
		return c.genAssignInto(fieldPtr, fieldType, n.Value)

	case *ast.ArrayAssignment:
		elementPtr, elementType, err := c.genArrayElementPtr(n.Tok, n.Index)
		if err != nil {
			return err
		}
		return c.genAssignInto(elementPtr, elementType, n.Value)

	case *ast.IfStmt:
		return c.genIf(n)

	case *ast.WhileStmt:
		return c.genWhile(n)

	case *ast.RepeatStmt:
		return c.genRepeat(n)

	case *ast.ForStmt:
		return c.genFor(n)

	case *ast.ForEachStmt:
		return c.genForEach(n)

	case *ast.CaseStmt:
		return c.genCase(n)

	case *ast.BreakStmt:
		if c.breakBlock.block.IsNil() {
			return errorf(n.Tok, "break outside of a loop!")
		}
		c.builder.CreateBr(c.breakBlock.block)
		c.breakBlock.used = true
		return nil

	case *ast.CallExpr:
		_, err := c.genExpr(n)
		return err
	}
	return errorf(stmt.Token(), "unsupported statement reached the code generator")
}

func (c *Context) genAssignment(n *ast.Assignment) error {
	sym, ok := c.lookup(n.Name)
	if !ok {
		return errorf(n.Tok, "unknown variable %s!", n.Tok.Text())
	}

	if n.Dereference {
		target := c.builder.CreateLoad(sym.ptr, "")
		base := sym.typ
		if ptr, isPtr := sym.typ.(*types.Pointer); isPtr && ptr.Base != nil {
			base = ptr.Base
		}
		return c.genAssignInto(target, base, n.Value)
	}
	return c.genAssignInto(sym.ptr, sym.typ, n.Value)
}

// genAssignInto stores the value of an expression into a typed slot:
// integers widen to the slot's width with sign extension, float widths
// cast, and composite values copy struct-wise.
func (c *Context) genAssignInto(slot llvm.Value, targetType types.Type, valueExpr ast.Expr) error {
	if _, isString := targetType.(*types.String); isString {
		valueExpr = asStringExpr(valueExpr)
	}
	if isCompositeType(targetType) {
		source, err := c.genExpr(valueExpr)
		if err != nil {
			return err
		}
		irType := c.irType(targetType)
		if source.Type().TypeKind() == llvm.PointerTypeKind {
			c.emitMemcpy(slot, source, llvm.SizeOf(irType))
			return nil
		}
		c.builder.CreateStore(source, slot)
		return nil
	}

	value, err := c.genExpr(valueExpr)
	if err != nil {
		return err
	}

	switch tt := targetType.(type) {
	case *types.Real:
		kind := value.Type().TypeKind()
		target := c.irType(targetType)
		switch {
		case kind == llvm.IntegerTypeKind:
			value = c.builder.CreateSIToFP(value, target, "")
		case kind == llvm.FloatTypeKind && tt.Bits == 64:
			value = c.builder.CreateFPExt(value, target, "")
		case kind == llvm.DoubleTypeKind && tt.Bits == 32:
			value = c.builder.CreateFPTrunc(value, target, "")
		}
	default:
		if bits := types.IntegerBits(targetType); bits > 0 && value.Type().TypeKind() == llvm.IntegerTypeKind {
			value = c.castIntTo(value, bits)
		}
		if _, isPtr := targetType.(*types.Pointer); isPtr && value.Type().TypeKind() == llvm.PointerTypeKind {
			value = c.builder.CreateBitCast(value, c.irType(targetType), "")
		}
	}

	c.builder.CreateStore(value, slot)
	return nil
}

// genCondition lowers a condition and compares it against true.
func (c *Context) genCondition(cond ast.Expr) (llvm.Value, error) {
	value, err := c.genExpr(cond)
	if err != nil {
		return llvm.Value{}, err
	}
	return c.builder.CreateICmp(llvm.IntEQ, value, c.constBool(true), "ifcond"), nil
}

func (c *Context) genIf(n *ast.IfStmt) error {
	cond, err := c.genCondition(n.Cond)
	if err != nil {
		return err
	}

	fn := c.builder.GetInsertBlock().Parent()
	thenBB := llvm.AddBasicBlock(fn, "then")
	var elseBB llvm.BasicBlock
	if len(n.Else) > 0 {
		elseBB = llvm.AddBasicBlock(fn, "else")
	}
	mergeBB := llvm.AddBasicBlock(fn, "ifcont")

	if len(n.Else) > 0 {
		c.builder.CreateCondBr(cond, thenBB, elseBB)
	} else {
		c.builder.CreateCondBr(cond, thenBB, mergeBB)
	}

	c.builder.SetInsertPointAtEnd(thenBB)
	if err := c.genStmts(n.Then); err != nil {
		return err
	}
	if !c.blockTerminated() {
		c.builder.CreateBr(mergeBB)
	}
	c.breakBlock.used = false

	if len(n.Else) > 0 {
		c.builder.SetInsertPointAtEnd(elseBB)
		if err := c.genStmts(n.Else); err != nil {
			return err
		}
		if !c.blockTerminated() {
			c.builder.CreateBr(mergeBB)
		}
		c.breakBlock.used = false
	}

	c.builder.SetInsertPointAtEnd(mergeBB)
	return nil
}

func (c *Context) genWhile(n *ast.WhileStmt) error {
	fn := c.currentFn
	condBB := llvm.AddBasicBlock(fn, "loop.cond")
	loopBB := llvm.AddBasicBlock(fn, "loop")
	afterBB := llvm.AddBasicBlock(fn, "afterloop")

	c.builder.CreateBr(condBB)
	c.builder.SetInsertPointAtEnd(condBB)
	cond, err := c.genExpr(n.Cond)
	if err != nil {
		return err
	}
	c.builder.CreateCondBr(cond, loopBB, afterBB)

	lastBreak := c.breakBlock
	c.breakBlock = breakTarget{block: afterBB}

	c.builder.SetInsertPointAtEnd(loopBB)
	if err := c.genStmts(n.Body); err != nil {
		return err
	}
	if !c.blockTerminated() {
		c.builder.CreateBr(condBB)
	}

	c.breakBlock = lastBreak
	c.builder.SetInsertPointAtEnd(afterBB)
	return nil
}

func (c *Context) genRepeat(n *ast.RepeatStmt) error {
	fn := c.currentFn
	loopBB := llvm.AddBasicBlock(fn, "loop")
	condBB := llvm.AddBasicBlock(fn, "loop.cond")
	afterBB := llvm.AddBasicBlock(fn, "afterloop")

	c.builder.CreateBr(loopBB)

	lastBreak := c.breakBlock
	c.breakBlock = breakTarget{block: afterBB}

	c.builder.SetInsertPointAtEnd(loopBB)
	if err := c.genStmts(n.Body); err != nil {
		return err
	}
	if !c.blockTerminated() {
		c.builder.CreateBr(condBB)
	}

	c.builder.SetInsertPointAtEnd(condBB)
	cond, err := c.genExpr(n.Cond)
	if err != nil {
		return err
	}
	c.builder.CreateCondBr(cond, afterBB, loopBB)

	c.breakBlock = lastBreak
	c.builder.SetInsertPointAtEnd(afterBB)
	return nil
}

// genFor lowers "for v := start to/downto end do" with a phi'd i64 index.
// The loop variable's allocation is stored on every iteration; the body
// runs while the next value stays inside the bound.
func (c *Context) genFor(n *ast.ForStmt) error {
	sym, ok := c.lookup(n.Variable.Literal)
	if !ok {
		return errorf(n.Variable, "unknown variable %s!", n.Variable.Text())
	}

	start, err := c.genExpr(n.Start)
	if err != nil {
		return err
	}
	start = c.castIntTo(start, 64)
	end, err := c.genExpr(n.End)
	if err != nil {
		return err
	}
	end = c.castIntTo(end, 64)

	fn := c.currentFn
	preheader := c.builder.GetInsertBlock()
	loopBB := llvm.AddBasicBlock(fn, "loop")
	afterBB := llvm.AddBasicBlock(fn, "afterloop")

	c.builder.CreateBr(loopBB)
	c.builder.SetInsertPointAtEnd(loopBB)

	phi := c.builder.CreatePHI(c.llctx.Int64Type(), n.Variable.Literal)
	phi.AddIncoming([]llvm.Value{start}, []llvm.BasicBlock{preheader})

	c.builder.CreateStore(c.coerceStore(phi, sym.typ), sym.ptr)

	lastBreak := c.breakBlock
	c.breakBlock = breakTarget{block: afterBB}

	if err := c.genStmts(n.Body); err != nil {
		return err
	}

	if !c.blockTerminated() {
		next := c.builder.CreateAdd(phi, c.constI64(int64(n.Step)), "nextvar")
		predicate := llvm.IntSLE
		if n.Step < 0 {
			predicate = llvm.IntSGE
		}
		cond := c.builder.CreateICmp(predicate, next, end, "loopcond")
		bodyEnd := c.builder.GetInsertBlock()
		c.builder.CreateCondBr(cond, loopBB, afterBB)
		phi.AddIncoming([]llvm.Value{next}, []llvm.BasicBlock{bodyEnd})
	}

	c.breakBlock = lastBreak
	c.builder.SetInsertPointAtEnd(afterBB)
	return nil
}

// genForEach lowers "for v in expr do" over a type with the range
// capability: value ranges walk their interval, arrays and strings walk
// their elements.
func (c *Context) genForEach(n *ast.ForEachStmt) error {
	sym, ok := c.lookup(n.Variable.Literal)
	if !ok {
		return errorf(n.Variable, "unknown variable %s!", n.Variable.Text())
	}
	sourceType, err := c.exprType(n.Source)
	if err != nil {
		return err
	}

	var low, high llvm.Value
	var sourcePtr llvm.Value

	switch t := sourceType.(type) {
	case *types.ValueRange:
		low, high = c.constI64(t.Low), c.constI64(t.High)
	case *types.FixedArray:
		low, high = c.constI64(t.Low), c.constI64(t.High)
		sourcePtr, err = c.genExpr(n.Source)
	case *types.DynArray:
		sourcePtr, err = c.genExpr(n.Source)
		if err == nil {
			length := c.builder.CreateLoad(c.builder.CreateStructGEP(sourcePtr, 0, ""), "")
			low, high = c.constI64(0), c.builder.CreateSub(length, c.constI64(1), "")
		}
	case *types.String:
		sourcePtr, err = c.genExpr(n.Source)
		if err == nil {
			length := c.stringLength(sourcePtr)
			low, high = c.constI64(0), c.builder.CreateSub(length, c.constI64(2), "")
		}
	default:
		return errorf(n.Tok, "the type %s can not be iterated!", sourceType.TypeName())
	}
	if err != nil {
		return err
	}

	fn := c.currentFn
	preheader := c.builder.GetInsertBlock()
	loopBB := llvm.AddBasicBlock(fn, "loop")
	afterBB := llvm.AddBasicBlock(fn, "afterloop")

	c.builder.CreateBr(loopBB)
	c.builder.SetInsertPointAtEnd(loopBB)

	phi := c.builder.CreatePHI(c.llctx.Int64Type(), "idx")
	phi.AddIncoming([]llvm.Value{low}, []llvm.BasicBlock{preheader})

	// produce the iteration value for the loop variable
	switch t := sourceType.(type) {
	case *types.ValueRange:
		c.builder.CreateStore(c.coerceStore(phi, sym.typ), sym.ptr)
	case *types.FixedArray:
		adjusted := c.builder.CreateSub(phi, c.constI64(t.Low), "")
		element := c.builder.CreateLoad(
			c.builder.CreateGEP(sourcePtr, []llvm.Value{c.constI64(0), adjusted}, ""), "")
		c.builder.CreateStore(c.coerceStore(element, sym.typ), sym.ptr)
	case *types.DynArray:
		data := c.builder.CreateLoad(c.builder.CreateStructGEP(sourcePtr, 1, ""), "")
		element := c.builder.CreateLoad(c.builder.CreateGEP(data, []llvm.Value{phi}, ""), "")
		c.builder.CreateStore(c.coerceStore(element, sym.typ), sym.ptr)
	case *types.String:
		data := c.stringData(sourcePtr)
		element := c.builder.CreateLoad(c.builder.CreateGEP(data, []llvm.Value{phi}, ""), "")
		c.builder.CreateStore(element, sym.ptr)
	}

	lastBreak := c.breakBlock
	c.breakBlock = breakTarget{block: afterBB}

	if err := c.genStmts(n.Body); err != nil {
		return err
	}

	if !c.blockTerminated() {
		next := c.builder.CreateAdd(phi, c.constI64(1), "nextvar")
		cond := c.builder.CreateICmp(llvm.IntSLE, next, high, "loopcond")
		bodyEnd := c.builder.GetInsertBlock()
		c.builder.CreateCondBr(cond, loopBB, afterBB)
		phi.AddIncoming([]llvm.Value{next}, []llvm.BasicBlock{bodyEnd})
	}

	c.breakBlock = lastBreak
	c.builder.SetInsertPointAtEnd(afterBB)
	return nil
}
