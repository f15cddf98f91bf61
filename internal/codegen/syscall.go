package codegen

import (
	"strings"

	"tinygo.org/x/go-llvm"

	"github.com/wirthx-compiler/wirthx/internal/ast"
	"github.com/wirthx-compiler/wirthx/internal/types"
)

// genSystemCall lowers the built-in routines, resolved by name alone.
func (c *Context) genSystemCall(n *ast.CallExpr) (llvm.Value, error) {
	switch strings.ToLower(n.Name) {
	case "low":
		return c.genLowHigh(n, false)
	case "high":
		return c.genLowHigh(n, true)
	case "length":
		return c.genLength(n)
	case "setlength":
		return c.genSetLength(n)
	case "write":
		return c.genWrite(n, false)
	case "writeln":
		return c.genWrite(n, true)
	case "printf":
		return c.genPrintf(n)
	case "exit":
		return c.genExit(n)
	case "halt":
		return c.genHalt(n)
	case "assert":
		return c.genAssert(n)
	case "new":
		return c.genNew(n)
	case "pchar":
		return c.genPChar(n)
	case "ord":
		return c.genExpr(n.Args[0])
	case "chr":
		value, err := c.genExpr(n.Args[0])
		if err != nil {
			return llvm.Value{}, err
		}
		return c.castIntTo(value, 8), nil
	case "strdispose":
		value, err := c.genExpr(n.Args[0])
		if err != nil {
			return llvm.Value{}, err
		}
		return c.builder.CreateCall(c.mustFunction("free"), []llvm.Value{value}, ""), nil
	case "assignfile":
		return c.genFileIntrinsic(n, "assignfile(file,string)", 2)
	case "reset":
		return c.genFileIntrinsic(n, "reset(file)", 1)
	case "rewrite":
		return c.genFileIntrinsic(n, "rewrite(file)", 1)
	case "closefile":
		return c.genFileIntrinsic(n, "closefile(file)", 1)
	case "readln":
		return c.genReadLn(n)
	}
	return llvm.Value{}, errorf(n.Tok, "the system routine %s is not supported!", n.Tok.Text())
}

// genLowHigh consults the operand type's bounds: fixed arrays use their
// declared range, dynamic arrays and strings derive the bound from the
// stored length.
func (c *Context) genLowHigh(n *ast.CallExpr, wantHigh bool) (llvm.Value, error) {
	operandType, err := c.exprType(n.Args[0])
	if err != nil {
		return llvm.Value{}, err
	}

	switch t := operandType.(type) {
	case *types.FixedArray:
		if wantHigh {
			return c.constI64(t.High), nil
		}
		return c.constI64(t.Low), nil
	case *types.ValueRange:
		if wantHigh {
			return c.constI64(t.High), nil
		}
		return c.constI64(t.Low), nil
	case *types.DynArray:
		if !wantHigh {
			return c.constI64(0), nil
		}
		length, err := c.genLength(n)
		if err != nil {
			return llvm.Value{}, err
		}
		return c.builder.CreateSub(length, c.constI64(1), ""), nil
	case *types.String:
		if !wantHigh {
			return c.constI64(0), nil
		}
		length, err := c.genLength(n)
		if err != nil {
			return llvm.Value{}, err
		}
		return c.builder.CreateSub(length, c.constI64(1), ""), nil
	}
	return llvm.Value{}, errorf(n.Tok, "the type %s has no bounds!", operandType.TypeName())
}

func (c *Context) genLength(n *ast.CallExpr) (llvm.Value, error) {
	operandType, err := c.exprType(n.Args[0])
	if err != nil {
		return llvm.Value{}, err
	}

	switch t := operandType.(type) {
	case *types.FixedArray:
		return c.constI64(t.Len()), nil
	case *types.ValueRange:
		return c.constI64(t.High - t.Low + 1), nil
	case *types.DynArray:
		ptr, err := c.genExpr(n.Args[0])
		if err != nil {
			return llvm.Value{}, err
		}
		return c.builder.CreateLoad(c.builder.CreateStructGEP(ptr, 0, "array.size.offset"), ""), nil
	case *types.String:
		ptr, err := c.genExpr(n.Args[0])
		if err != nil {
			return llvm.Value{}, err
		}
		// the stored length counts the trailing NUL
		return c.builder.CreateSub(c.stringLength(ptr), c.constI64(1), ""), nil
	}
	return llvm.Value{}, errorf(n.Tok, "the type %s has no length!", operandType.TypeName())
}

// genSetLength resizes a dynamic array or string: stores the new element
// count and swaps in a fresh heap buffer, zeroed for arrays.
func (c *Context) genSetLength(n *ast.CallExpr) (llvm.Value, error) {
	if len(n.Args) != 2 {
		return llvm.Value{}, errorf(n.Tok, "setlength needs 2 arguments!")
	}
	targetType, err := c.exprType(n.Args[0])
	if err != nil {
		return llvm.Value{}, err
	}
	target, err := c.genExpr(n.Args[0])
	if err != nil {
		return llvm.Value{}, err
	}
	newSize, err := c.genExpr(n.Args[1])
	if err != nil {
		return llvm.Value{}, err
	}
	newSize = c.castIntTo(newSize, 64)

	switch t := targetType.(type) {
	case *types.DynArray:
		elementType := c.irType(t.Element)
		sizeOffset := c.builder.CreateStructGEP(target, 0, "array.size.offset")
		dataOffset := c.builder.CreateStructGEP(target, 1, "array.ptr.offset")
		c.builder.CreateStore(newSize, sizeOffset)

		allocSize := c.builder.CreateMul(newSize, llvm.SizeOf(elementType), "")
		oldData := c.builder.CreateLoad(dataOffset, "")
		raw := c.builder.CreateCall(c.mustFunction("realloc"), []llvm.Value{
			c.builder.CreateBitCast(oldData, c.bytePtrType(), ""),
			allocSize,
		}, "")
		data := c.builder.CreateBitCast(raw, llvm.PointerType(elementType, 0), "")
		c.emitMemset(data, allocSize)
		c.builder.CreateStore(data, dataOffset)
		return llvm.Value{}, nil

	case *types.String:
		sizeOffset := c.builder.CreateStructGEP(target, 1, "string.size")
		dataOffset := c.builder.CreateStructGEP(target, 2, "string.ptr.offset")
		c.builder.CreateStore(newSize, sizeOffset)

		oldData := c.builder.CreateLoad(dataOffset, "")
		raw := c.builder.CreateCall(c.mustFunction("realloc"), []llvm.Value{oldData, newSize}, "")
		c.builder.CreateStore(raw, dataOffset)
		return llvm.Value{}, nil
	}
	return llvm.Value{}, errorf(n.Tok, "setlength expects a dynamic array or string!")
}

// writeTarget finds the output handle: the first file-typed argument's
// stored handle, or stdout.
func (c *Context) writeTarget(n *ast.CallExpr) (llvm.Value, error) {
	target := c.builder.CreateLoad(c.globals["stdout"], "")
	for _, arg := range n.Args {
		argType, err := c.exprType(arg)
		if err != nil {
			return llvm.Value{}, err
		}
		if _, isFile := argType.(*types.File); isFile {
			filePtr, err := c.genExpr(arg)
			if err != nil {
				return llvm.Value{}, err
			}
			handleOffset := c.builder.CreateStructGEP(filePtr, 1, "file.ptr")
			target = c.builder.CreateLoad(handleOffset, "")
			break
		}
	}
	return target, nil
}

// genWrite emits one fprintf per argument with a format picked from the
// argument's type; Win32 spells the integer formats differently. writeln
// appends the platform newline.
func (c *Context) genWrite(n *ast.CallExpr, appendNewline bool) (llvm.Value, error) {
	fprintf := c.mustFunction("fprintf")
	target, err := c.writeTarget(n)
	if err != nil {
		return llvm.Value{}, err
	}

	for _, arg := range n.Args {
		argType, err := c.exprType(arg)
		if err != nil {
			return llvm.Value{}, err
		}
		if _, isFile := argType.(*types.File); isFile {
			continue
		}
		value, err := c.genExpr(arg)
		if err != nil {
			return llvm.Value{}, err
		}

		args := []llvm.Value{target}
		switch t := argType.(type) {
		case *types.Integer, *types.ValueRange, *types.Enum, *types.Character, *types.Boolean:
			bits := types.IntegerBits(argType)
			if _, isBool := argType.(*types.Boolean); isBool {
				value = c.builder.CreateZExt(value, c.llctx.Int32Type(), "")
				bits = 32
			}
			switch {
			case bits > 32:
				args = append(args, c.formatString("%lli", "%ld", "format_int64"))
			case bits == 8:
				args = append(args, c.formatString("%c", "%c", "format_char"))
			default:
				args = append(args, c.formatString("%i", "%d", "format_int"))
			}
			args = append(args, value)
		case *types.String:
			args = append(args, c.builder.CreateGlobalStringPtr("%s", "format_string"))
			args = append(args, c.stringData(value))
		case *types.Real:
			args = append(args, c.builder.CreateGlobalStringPtr("%f", "format_double"))
			if t.Bits == 32 {
				value = c.builder.CreateFPExt(value, c.llctx.DoubleType(), "")
			}
			args = append(args, value)
		default:
			return llvm.Value{}, errorf(arg.Token(), "the type %s can not be written!", argType.TypeName())
		}
		c.builder.CreateCall(fprintf, args, "")
	}

	if appendNewline {
		newline := "\n"
		if c.windows {
			newline = "\r\n"
		}
		c.builder.CreateCall(fprintf, []llvm.Value{
			target,
			c.builder.CreateGlobalStringPtr(newline, ""),
		}, "")
	}
	return llvm.Value{}, nil
}

func (c *Context) formatString(win, posix, name string) llvm.Value {
	if c.windows {
		return c.builder.CreateGlobalStringPtr(win, name)
	}
	return c.builder.CreateGlobalStringPtr(posix, name)
}

// genPrintf forwards to the C printf: the first argument supplies the
// format, trailing arguments pass through.
func (c *Context) genPrintf(n *ast.CallExpr) (llvm.Value, error) {
	printf := c.mustFunction("printf")
	var args []llvm.Value
	for _, arg := range n.Args {
		value, err := c.genExpr(arg)
		if err != nil {
			return llvm.Value{}, err
		}
		argType, err := c.exprType(arg)
		if err != nil {
			return llvm.Value{}, err
		}
		if _, isString := argType.(*types.String); isString {
			value = c.stringData(value)
		}
		args = append(args, value)
	}
	return c.builder.CreateCall(printf, args, ""), nil
}

// genExit returns from the current function and marks the block as
// explicitly returned so the epilogue emits no default return.
func (c *Context) genExit(n *ast.CallExpr) (llvm.Value, error) {
	c.explicitReturn = true
	c.breakBlock.used = true

	if len(n.Args) == 0 {
		if c.fnEnv != nil && c.fnEnv.Function != nil && c.fnEnv.Function.ReturnType != nil {
			result, _ := c.lookup("result")
			return c.builder.CreateRet(c.builder.CreateLoad(result.ptr, "")), nil
		}
		if c.fnEnv == nil || c.fnEnv.Function == nil {
			return c.builder.CreateRet(c.constI32(0)), nil
		}
		return c.builder.CreateRetVoid(), nil
	}

	value, err := c.genExpr(n.Args[0])
	if err != nil {
		return llvm.Value{}, err
	}
	if c.fnEnv == nil || c.fnEnv.Function == nil {
		value = c.castIntTo(value, 32)
	} else if ret := c.fnEnv.Function.ReturnType; ret != nil {
		value = c.coerceStore(value, ret)
	}
	return c.builder.CreateRet(value), nil
}

func (c *Context) genHalt(n *ast.CallExpr) (llvm.Value, error) {
	code := c.constI32(0)
	if len(n.Args) > 0 {
		value, err := c.genExpr(n.Args[0])
		if err != nil {
			return llvm.Value{}, err
		}
		code = c.castIntTo(value, 32)
	}
	return c.builder.CreateCall(c.mustFunction("exit"), []llvm.Value{code}, ""), nil
}

// genAssert lowers assert(e) to a guarded platform assert-fail carrying
// the condition's source text.
func (c *Context) genAssert(n *ast.CallExpr) (llvm.Value, error) {
	value, err := c.genExpr(n.Args[0])
	if err != nil {
		return llvm.Value{}, err
	}
	failed := c.builder.CreateXor(value, c.constBool(true), "")
	c.ifThen(failed, func() {
		c.emitAssertFail(n.Args[0].Token(), n.Args[0].Token().Text())
	})
	return llvm.Value{}, nil
}

// genNew allocates storage for the pointee and stores it into the pointer
// variable.
func (c *Context) genNew(n *ast.CallExpr) (llvm.Value, error) {
	operandType, err := c.exprType(n.Args[0])
	if err != nil {
		return llvm.Value{}, err
	}
	ptrType, ok := operandType.(*types.Pointer)
	if !ok || ptrType.Base == nil {
		return llvm.Value{}, errorf(n.Tok, "argument is not a pointer type!")
	}
	allocation := c.builder.CreateAlloca(c.irType(ptrType.Base), "")

	if access, ok := n.Args[0].(*ast.VariableAccess); ok {
		if sym, found := c.lookup(access.Name); found {
			c.builder.CreateStore(allocation, sym.ptr)
		}
	}
	return allocation, nil
}

func (c *Context) genPChar(n *ast.CallExpr) (llvm.Value, error) {
	value, err := c.genExpr(n.Args[0])
	if err != nil {
		return llvm.Value{}, err
	}
	return c.stringData(value), nil
}

// genFileIntrinsic calls one of the synthesized file routines with the
// arguments' addresses.
func (c *Context) genFileIntrinsic(n *ast.CallExpr, name string, arity int) (llvm.Value, error) {
	if len(n.Args) != arity {
		return llvm.Value{}, errorf(n.Tok, "%s expects %d arguments!", n.Name, arity)
	}
	fn := c.mustFunction(name)
	var args []llvm.Value
	for _, arg := range n.Args {
		addr, err := c.genAddr(arg)
		if err != nil {
			return llvm.Value{}, err
		}
		args = append(args, c.builder.CreateBitCast(addr, c.bytePtrType(), ""))
	}
	return c.builder.CreateCall(fn, args, ""), nil
}

// genReadLn reads a line into a string: from a named file when the first
// argument is file-typed, from standard input otherwise.
func (c *Context) genReadLn(n *ast.CallExpr) (llvm.Value, error) {
	if len(n.Args) == 2 {
		return c.genFileIntrinsic(n, "readln(file,string)", 2)
	}
	return c.genFileIntrinsic(n, "readln(string)", 1)
}
