package codegen

import (
	"tinygo.org/x/go-llvm"

	"github.com/wirthx-compiler/wirthx/internal/ast"
	"github.com/wirthx-compiler/wirthx/internal/lexer"
	"github.com/wirthx-compiler/wirthx/internal/types"
)

// exprType resolves an expression's semantic type in the current scope.
func (c *Context) exprType(expr ast.Expr) (types.Type, error) {
	env := c.fnEnv
	if env == nil {
		env = c.env
	}
	return env.TypeOf(expr)
}

// genExpr lowers an expression. Simple-typed expressions yield their value;
// strings, records, arrays and files yield the address of their storage.
func (c *Context) genExpr(expr ast.Expr) (llvm.Value, error) {
	switch n := expr.(type) {
	case *ast.IntLiteral:
		return c.constInt(n.Bits, n.Value), nil
	case *ast.RealLiteral:
		return llvm.ConstFloat(c.llctx.DoubleType(), n.Value), nil
	case *ast.BoolLiteral:
		return c.constBool(n.Value), nil
	case *ast.CharLiteral:
		return c.constI8(int64(n.Value)), nil
	case *ast.StringLiteral:
		return c.genStringLiteral(n), nil
	case *ast.NilLiteral:
		return llvm.ConstPointerNull(c.bytePtrType()), nil
	case *ast.EnumAccess:
		value, _ := n.Type.ValueOf(n.Tok.Literal)
		return c.constI32(value), nil

	case *ast.VariableAccess:
		sym, ok := c.lookup(n.Name)
		if !ok {
			return llvm.Value{}, errorf(n.Tok, "unknown variable %s!", n.Tok.Text())
		}
		if isCompositeType(sym.typ) {
			return sym.ptr, nil
		}
		value := c.builder.CreateLoad(sym.ptr, n.Name)
		if n.Dereference {
			value = c.builder.CreateLoad(value, "")
		}
		return value, nil

	case *ast.FieldAccess:
		fieldPtr, fieldType, err := c.genFieldPtr(n.Tok, n.Field)
		if err != nil {
			return llvm.Value{}, err
		}
		if isCompositeType(fieldType) {
			return fieldPtr, nil
		}
		return c.builder.CreateLoad(fieldPtr, n.Field.Literal), nil

	case *ast.ArrayAccess:
		elementPtr, elementType, err := c.genArrayElementPtr(n.Tok, n.Index)
		if err != nil {
			return llvm.Value{}, err
		}
		if isCompositeType(elementType) {
			return elementPtr, nil
		}
		return c.builder.CreateLoad(elementPtr, ""), nil

	case *ast.AddressOf:
		sym, ok := c.lookup(n.Name)
		if !ok {
			return llvm.Value{}, errorf(n.Tok, "unknown variable %s!", n.Tok.Text())
		}
		return sym.ptr, nil

	case *ast.Minus:
		return c.genMinus(n)

	case *ast.BinaryExpr:
		return c.genBinary(n)

	case *ast.Comparison:
		return c.genComparison(n)

	case *ast.LogicalExpr:
		return c.genLogical(n)

	case *ast.CallExpr:
		if n.System {
			return c.genSystemCall(n)
		}
		return c.genCall(n)
	}

	return llvm.Value{}, errorf(expr.Token(), "unsupported expression reached the code generator")
}

// genAddr lowers an expression to the address of its storage; used for
// by-reference arguments.
func (c *Context) genAddr(expr ast.Expr) (llvm.Value, error) {
	switch n := expr.(type) {
	case *ast.VariableAccess:
		sym, ok := c.lookup(n.Name)
		if !ok {
			return llvm.Value{}, errorf(n.Tok, "unknown variable %s!", n.Tok.Text())
		}
		return sym.ptr, nil
	case *ast.FieldAccess:
		ptr, _, err := c.genFieldPtr(n.Tok, n.Field)
		return ptr, err
	case *ast.ArrayAccess:
		ptr, _, err := c.genArrayElementPtr(n.Tok, n.Index)
		return ptr, err
	}

	// temporaries get a slot of their own
	value, err := c.genExpr(expr)
	if err != nil {
		return llvm.Value{}, err
	}
	if value.Type().TypeKind() == llvm.PointerTypeKind {
		return value, nil
	}
	slot := c.builder.CreateAlloca(value.Type(), "")
	c.builder.CreateStore(value, slot)
	return slot, nil
}

// genFieldPtr resolves a record field address by zero-based field index.
func (c *Context) genFieldPtr(varTok, fieldTok lexer.Token) (llvm.Value, types.Type, error) {
	sym, ok := c.lookup(varTok.Literal)
	if !ok {
		return llvm.Value{}, nil, errorf(varTok, "unknown variable %s!", varTok.Text())
	}

	record, ok := sym.typ.(*types.Record)
	base := sym.ptr
	if !ok {
		if ptr, isPtr := sym.typ.(*types.Pointer); isPtr {
			if record, ok = ptr.Base.(*types.Record); ok {
				base = c.builder.CreateLoad(sym.ptr, "")
			}
		}
	}
	if record == nil {
		return llvm.Value{}, nil, errorf(varTok, "the variable %s is not a record!", varTok.Text())
	}

	index := record.FieldIndex(fieldTok.Literal)
	if index < 0 {
		return llvm.Value{}, nil, errorf(fieldTok, "the record has no field named %s!", fieldTok.Text())
	}
	fieldPtr := c.builder.CreateStructGEP(base, index, record.Fields[index].Name)
	return fieldPtr, record.Fields[index].Type, nil
}

// genArrayElementPtr resolves an element address for reads and writes:
// fixed arrays subtract the low bound and range-check against the declared
// bounds, dynamic arrays index their heap data and check against the
// stored length.
func (c *Context) genArrayElementPtr(varTok lexer.Token, indexExpr ast.Expr) (llvm.Value, types.Type, error) {
	sym, ok := c.lookup(varTok.Literal)
	if !ok {
		return llvm.Value{}, nil, errorf(varTok, "unknown variable %s!", varTok.Text())
	}

	index, err := c.genExpr(indexExpr)
	if err != nil {
		return llvm.Value{}, nil, err
	}
	index = c.castIntTo(index, 64)

	exprText := varTok.Text() + "[" + indexExpr.Token().Text() + "]"

	switch t := sym.typ.(type) {
	case *types.FixedArray:
		if constant, isConst := indexExpr.(*ast.IntLiteral); isConst {
			if constant.Value < t.Low || constant.Value > t.High {
				return llvm.Value{}, nil, errorf(indexExpr.Token(),
					"the index %d is out of the array range %d..%d!", constant.Value, t.Low, t.High)
			}
		}
		c.emitRangeCheck(varTok, index, c.constI64(t.Low), c.constI64(t.High), exprText)
		adjusted := c.builder.CreateSub(index, c.constI64(t.Low), "")
		ptr := c.builder.CreateGEP(sym.ptr, []llvm.Value{c.constI64(0), adjusted}, "")
		return ptr, t.Element, nil

	case *types.DynArray:
		length := c.builder.CreateLoad(c.builder.CreateStructGEP(sym.ptr, 0, "array.size.offset"), "")
		high := c.builder.CreateSub(length, c.constI64(1), "")
		c.emitRangeCheck(varTok, index, c.constI64(0), high, exprText)
		data := c.builder.CreateLoad(c.builder.CreateStructGEP(sym.ptr, 1, "array.ptr.offset"), "")
		ptr := c.builder.CreateGEP(data, []llvm.Value{index}, "")
		return ptr, t.Element, nil

	case *types.String:
		data := c.builder.CreateLoad(c.builder.CreateStructGEP(sym.ptr, 2, "string.ptr.offset"), "")
		ptr := c.builder.CreateGEP(data, []llvm.Value{index}, "")
		return ptr, &types.Character{}, nil
	}

	return llvm.Value{}, nil, errorf(varTok, "the variable %s can not be indexed!", varTok.Text())
}

// emitRangeCheck guards an index against [low, high], routing violations
// to the platform assert.
func (c *Context) emitRangeCheck(tok lexer.Token, index, low, high llvm.Value, exprText string) {
	tooLow := c.builder.CreateICmp(llvm.IntSLT, index, low, "")
	tooHigh := c.builder.CreateICmp(llvm.IntSGT, index, high, "")
	outOfRange := c.builder.CreateOr(tooLow, tooHigh, "")

	c.ifThen(outOfRange, func() {
		c.emitAssertFail(tok, "index out of range for expression: "+exprText)
	})
}

// emitAssertFail calls the platform assert routine with the message, the
// source file, the line, and the enclosing function's name.
func (c *Context) emitAssertFail(tok lexer.Token, message string) {
	fnName := ""
	if c.fnEnv != nil && c.fnEnv.Function != nil {
		fnName = c.fnEnv.Function.Name
	}
	file := ""
	if tok.Span.File != nil {
		file = tok.Span.File.Name
	}
	assertFail := c.mustFunction(c.assertFailName())
	c.builder.CreateCall(assertFail, []llvm.Value{
		c.builder.CreateGlobalStringPtr(message, "assertion"),
		c.builder.CreateGlobalStringPtr(file, "assertion_source_file"),
		c.constI32(int64(tok.Span.Row())),
		c.builder.CreateGlobalStringPtr(fnName, "assertion_function"),
	}, "")
}

func (c *Context) genMinus(n *ast.Minus) (llvm.Value, error) {
	if constant, ok := n.Operand.(*ast.IntLiteral); ok {
		return c.constInt(constant.Bits, -constant.Value), nil
	}
	if constant, ok := n.Operand.(*ast.RealLiteral); ok {
		return llvm.ConstFloat(c.llctx.DoubleType(), -constant.Value), nil
	}

	value, err := c.genExpr(n.Operand)
	if err != nil {
		return llvm.Value{}, err
	}
	if value.Type().TypeKind() == llvm.FloatTypeKind || value.Type().TypeKind() == llvm.DoubleTypeKind {
		return c.builder.CreateFSub(llvm.ConstFloat(value.Type(), 0), value, "fneg"), nil
	}
	value = c.castIntTo(value, 64)
	return c.builder.CreateSub(c.constI64(0), value, "neg"), nil
}

func (c *Context) genBinary(n *ast.BinaryExpr) (llvm.Value, error) {
	lhsType, err := c.exprType(n.Lhs)
	if err != nil {
		return llvm.Value{}, err
	}
	rhsType, err := c.exprType(n.Rhs)
	if err != nil {
		return llvm.Value{}, err
	}

	if _, isString := lhsType.(*types.String); isString && n.Op == ast.OpPlus {
		return c.genStringConcat(n, rhsType)
	}

	lhs, err := c.genExpr(n.Lhs)
	if err != nil {
		return llvm.Value{}, err
	}
	rhs, err := c.genExpr(n.Rhs)
	if err != nil {
		return llvm.Value{}, err
	}

	if types.IsInteger(lhsType) && types.IsInteger(rhsType) {
		// '/' is always real division; only div stays on the integers
		if n.Op == ast.OpDiv {
			lhs = c.builder.CreateSIToFP(lhs, c.llctx.DoubleType(), "")
			rhs = c.builder.CreateSIToFP(rhs, c.llctx.DoubleType(), "")
			return c.builder.CreateFDiv(lhs, rhs, "divtmp"), nil
		}
		lhs, rhs = c.unifyInts(lhs, rhs)
		switch n.Op {
		case ast.OpPlus:
			return c.builder.CreateAdd(lhs, rhs, "addtmp"), nil
		case ast.OpMinus:
			return c.builder.CreateSub(lhs, rhs, "subtmp"), nil
		case ast.OpMul:
			return c.builder.CreateMul(lhs, rhs, "multmp"), nil
		case ast.OpIDiv:
			return c.builder.CreateSDiv(lhs, rhs, "divtmp"), nil
		case ast.OpMod:
			return c.builder.CreateSRem(lhs, rhs, "modtmp"), nil
		}
	}

	lhs, rhs = c.unifyFloats(lhs, rhs)
	switch n.Op {
	case ast.OpPlus:
		return c.builder.CreateFAdd(lhs, rhs, "addtmp"), nil
	case ast.OpMinus:
		return c.builder.CreateFSub(lhs, rhs, "subtmp"), nil
	case ast.OpMul:
		return c.builder.CreateFMul(lhs, rhs, "multmp"), nil
	case ast.OpDiv, ast.OpIDiv:
		return c.builder.CreateFDiv(lhs, rhs, "divtmp"), nil
	case ast.OpMod:
		return c.builder.CreateFRem(lhs, rhs, "modtmp"), nil
	}
	return llvm.Value{}, errorf(n.Tok, "unsupported operator %s", n.Op)
}

// unifyFloats casts a float operand up to double when the sides disagree.
func (c *Context) unifyFloats(lhs, rhs llvm.Value) (llvm.Value, llvm.Value) {
	lKind := lhs.Type().TypeKind()
	rKind := rhs.Type().TypeKind()
	if lKind == llvm.FloatTypeKind && rKind == llvm.DoubleTypeKind {
		lhs = c.builder.CreateFPExt(lhs, c.llctx.DoubleType(), "")
	} else if rKind == llvm.FloatTypeKind && lKind == llvm.DoubleTypeKind {
		rhs = c.builder.CreateFPExt(rhs, c.llctx.DoubleType(), "")
	}
	return lhs, rhs
}

var intPredicates = map[ast.CmpOperator]llvm.IntPredicate{
	ast.CmpEquals:       llvm.IntEQ,
	ast.CmpNotEquals:    llvm.IntNE,
	ast.CmpLess:         llvm.IntSLT,
	ast.CmpLessEqual:    llvm.IntSLE,
	ast.CmpGreater:      llvm.IntSGT,
	ast.CmpGreaterEqual: llvm.IntSGE,
}

var floatPredicates = map[ast.CmpOperator]llvm.FloatPredicate{
	ast.CmpEquals:       llvm.FloatOEQ,
	ast.CmpNotEquals:    llvm.FloatONE,
	ast.CmpLess:         llvm.FloatOLT,
	ast.CmpLessEqual:    llvm.FloatOLE,
	ast.CmpGreater:      llvm.FloatOGT,
	ast.CmpGreaterEqual: llvm.FloatOGE,
}

func (c *Context) genComparison(n *ast.Comparison) (llvm.Value, error) {
	lhsType, err := c.exprType(n.Lhs)
	if err != nil {
		return llvm.Value{}, err
	}
	rhsType, err := c.exprType(n.Rhs)
	if err != nil {
		return llvm.Value{}, err
	}

	_, lString := lhsType.(*types.String)
	_, rString := rhsType.(*types.String)
	if lString && rString {
		return c.genStringCompare(n)
	}

	lhs, err := c.genExpr(n.Lhs)
	if err != nil {
		return llvm.Value{}, err
	}
	rhs, err := c.genExpr(n.Rhs)
	if err != nil {
		return llvm.Value{}, err
	}

	// pointer comparisons promote both sides to i64
	if lhs.Type().TypeKind() == llvm.PointerTypeKind {
		lhs = c.builder.CreatePtrToInt(lhs, c.llctx.Int64Type(), "")
	}
	if rhs.Type().TypeKind() == llvm.PointerTypeKind {
		rhs = c.builder.CreatePtrToInt(rhs, c.llctx.Int64Type(), "")
	}

	if lhs.Type().TypeKind() == llvm.IntegerTypeKind && rhs.Type().TypeKind() == llvm.IntegerTypeKind {
		lhs, rhs = c.unifyInts(lhs, rhs)
		return c.builder.CreateICmp(intPredicates[n.Op], lhs, rhs, "cmptmp"), nil
	}

	lhs, rhs = c.unifyFloats(lhs, rhs)
	return c.builder.CreateFCmp(floatPredicates[n.Op], lhs, rhs, "cmptmp"), nil
}

func (c *Context) genLogical(n *ast.LogicalExpr) (llvm.Value, error) {
	rhs, err := c.genExpr(n.Rhs)
	if err != nil {
		return llvm.Value{}, err
	}
	if n.Op == ast.LogicNot {
		return c.builder.CreateXor(rhs, c.constBool(true), "nottmp"), nil
	}

	lhs, err := c.genExpr(n.Lhs)
	if err != nil {
		return llvm.Value{}, err
	}
	if n.Op == ast.LogicAnd {
		return c.builder.CreateAnd(lhs, rhs, "andtmp"), nil
	}
	return c.builder.CreateOr(lhs, rhs, "ortmp"), nil
}

// genCall lowers a user function call: resolve the callee by call
// signature then bare name, pass by-reference parameters by address, copy
// composite by-value arguments, and surface string results through a
// caller-allocated slot.
func (c *Context) genCall(n *ast.CallExpr) (llvm.Value, error) {
	argTypes := make([]types.Type, len(n.Args))
	for i, arg := range n.Args {
		t, err := c.exprType(arg)
		if err != nil {
			return llvm.Value{}, err
		}
		argTypes[i] = t
	}

	def := c.unit.FindFunction(ast.CallSignature(n.Name, argTypes), n.Name)
	if def == nil {
		return llvm.Value{}, errorf(n.Tok, "a function with the name '%s' is not yet defined!", n.Tok.Text())
	}
	fn, ok := c.function(def.Signature())
	if !ok {
		return llvm.Value{}, errorf(n.Tok, "a function with the name '%s' is not yet defined!", n.Tok.Text())
	}

	var args []llvm.Value
	var byvalIndexes []int
	for i, arg := range n.Args {
		// variadic externs accept trailing arguments beyond the last
		// declared parameter
		if i >= len(def.Params) {
			value, err := c.genExpr(arg)
			if err != nil {
				return llvm.Value{}, err
			}
			args = append(args, value)
			continue
		}
		param := def.Params[i]

		if param.ByReference {
			addr, err := c.genAddr(arg)
			if err != nil {
				return llvm.Value{}, err
			}
			args = append(args, addr)
			continue
		}

		if isCompositeType(param.Type) {
			// the callee must not see the caller's storage: copy
			source, err := c.genExpr(arg)
			if err != nil {
				return llvm.Value{}, err
			}
			irType := c.irType(param.Type)
			copySlot := c.builder.CreateAlloca(irType, param.Name+".copy")
			c.emitMemcpy(copySlot, source, llvm.SizeOf(irType))
			args = append(args, copySlot)
			if _, isRecord := param.Type.(*types.Record); isRecord {
				byvalIndexes = append(byvalIndexes, i+1)
			}
			continue
		}

		value, err := c.genExpr(arg)
		if err != nil {
			return llvm.Value{}, err
		}
		if bits := types.IntegerBits(param.Type); bits > 0 && value.Type().TypeKind() == llvm.IntegerTypeKind {
			value = c.castIntTo(value, bits)
		}
		args = append(args, value)
	}

	name := ""
	if def.ReturnType != nil {
		name = "calltmp"
	}
	call := c.builder.CreateCall(fn, args, name)
	for _, index := range byvalIndexes {
		call.AddCallSiteAttribute(index, c.llctx.CreateEnumAttribute(llvm.AttributeKindID("byval"), 0))
	}

	if def.ReturnType != nil && isCompositeType(def.ReturnType) {
		slot := c.builder.CreateAlloca(c.irType(def.ReturnType), "")
		c.builder.CreateStore(call, slot)
		return slot, nil
	}
	return call, nil
}
