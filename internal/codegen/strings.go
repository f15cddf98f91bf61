package codegen

import (
	"tinygo.org/x/go-llvm"

	"github.com/wirthx-compiler/wirthx/internal/ast"
	"github.com/wirthx-compiler/wirthx/internal/types"
)

// asStringExpr widens a char literal to a one-character string constant
// where a string operand is required.
func asStringExpr(expr ast.Expr) ast.Expr {
	if ch, ok := expr.(*ast.CharLiteral); ok {
		return &ast.StringLiteral{Tok: ch.Tok, Value: string(ch.Value)}
	}
	return expr
}

// genStringLiteral materialises a string constant: a stack struct whose
// data points at a global constant and whose length counts the trailing
// NUL.
func (c *Context) genStringLiteral(n *ast.StringLiteral) llvm.Value {
	structType := c.stringStructType()
	slot := c.builder.CreateAlloca(structType, "")

	c.builder.CreateStore(c.constI64(0), c.builder.CreateStructGEP(slot, 0, "string.refcount"))
	c.builder.CreateStore(c.constI64(int64(len(n.Value)+1)), c.builder.CreateStructGEP(slot, 1, "string.size"))
	data := c.builder.CreateGlobalStringPtr(n.Value, ".str")
	c.builder.CreateStore(data, c.builder.CreateStructGEP(slot, 2, "string.ptr"))
	return slot
}

func (c *Context) stringLength(strPtr llvm.Value) llvm.Value {
	return c.builder.CreateLoad(c.builder.CreateStructGEP(strPtr, 1, "string.size"), "")
}

func (c *Context) stringData(strPtr llvm.Value) llvm.Value {
	return c.builder.CreateLoad(c.builder.CreateStructGEP(strPtr, 2, "string.ptr.offset"), "")
}

// storeString fills a string struct in place.
func (c *Context) storeString(slot, length, data llvm.Value) {
	c.builder.CreateStore(c.constI64(0), c.builder.CreateStructGEP(slot, 0, "string.refcount"))
	c.builder.CreateStore(length, c.builder.CreateStructGEP(slot, 1, "string.size"))
	c.builder.CreateStore(data, c.builder.CreateStructGEP(slot, 2, "string.ptr"))
}

// genStringConcat lowers string+string and string+char into a freshly
// allocated string. Lengths count the trailing NUL, so two strings sum to
// lhs.length + rhs.length - 1 and the right side lands at lhs.length - 1,
// overwriting the left terminator.
func (c *Context) genStringConcat(n *ast.BinaryExpr, rhsType types.Type) (llvm.Value, error) {
	lhs, err := c.genExpr(n.Lhs)
	if err != nil {
		return llvm.Value{}, err
	}
	rhs, err := c.genExpr(n.Rhs)
	if err != nil {
		return llvm.Value{}, err
	}

	i8 := c.llctx.Int8Type()
	result := c.builder.CreateAlloca(c.stringStructType(), "concat")
	lhsLen := c.stringLength(lhs)
	lhsData := c.stringData(lhs)

	if _, isChar := rhsType.(*types.Character); isChar {
		newLen := c.builder.CreateAdd(lhsLen, c.constI64(1), "")
		buffer := c.emitMalloc(i8, newLen)

		payload := c.builder.CreateSub(lhsLen, c.constI64(1), "")
		c.emitMemcpy(buffer, lhsData, payload)

		charSlot := c.builder.CreateGEP(buffer, []llvm.Value{payload}, "")
		c.builder.CreateStore(rhs, charSlot)
		terminator := c.builder.CreateGEP(buffer, []llvm.Value{lhsLen}, "")
		c.builder.CreateStore(c.constI8(0), terminator)

		c.storeString(result, newLen, buffer)
		return result, nil
	}

	rhsLen := c.stringLength(rhs)
	rhsData := c.stringData(rhs)

	// one terminator is already counted in the sum
	newLen := c.builder.CreateSub(c.builder.CreateAdd(lhsLen, rhsLen, ""), c.constI64(1), "")
	buffer := c.emitMalloc(i8, newLen)

	c.emitMemcpy(buffer, lhsData, lhsLen)
	offset := c.builder.CreateSub(lhsLen, c.constI64(1), "")
	tail := c.builder.CreateGEP(buffer, []llvm.Value{offset}, "")
	c.emitMemcpy(tail, rhsData, rhsLen)

	c.storeString(result, newLen, buffer)
	return result, nil
}

// genStringCompare lowers a string comparison through the runtime's
// comparestr, whose sign carries the ordering.
func (c *Context) genStringCompare(n *ast.Comparison) (llvm.Value, error) {
	result, err := c.callCompareStr(n, n.Lhs, n.Rhs)
	if err != nil {
		return llvm.Value{}, err
	}
	return c.builder.CreateICmp(intPredicates[n.Op], result, c.constI32(0), "cmptmp"), nil
}

// callCompareStr calls comparestr(string, string): i32 from the runtime
// library.
func (c *Context) callCompareStr(at ast.Node, lhs, rhs ast.Expr) (llvm.Value, error) {
	def := c.unit.FindFunction("comparestr(string,string)", "comparestr")
	if def == nil {
		return llvm.Value{}, errorf(at.Token(), "the runtime function comparestr is not available; the system unit was not imported")
	}
	fn, ok := c.function(def.Signature())
	if !ok {
		return llvm.Value{}, errorf(at.Token(), "the runtime function comparestr is not available; the system unit was not imported")
	}

	var args []llvm.Value
	for _, expr := range []ast.Expr{asStringExpr(lhs), asStringExpr(rhs)} {
		source, err := c.genExpr(expr)
		if err != nil {
			return llvm.Value{}, err
		}
		irType := c.stringStructType()
		copySlot := c.builder.CreateAlloca(irType, "")
		c.emitMemcpy(copySlot, source, llvm.SizeOf(irType))
		args = append(args, copySlot)
	}
	return c.builder.CreateCall(fn, args, "comparestr"), nil
}
