package codegen

import (
	"tinygo.org/x/go-llvm"

	"github.com/wirthx-compiler/wirthx/internal/ast"
	"github.com/wirthx-compiler/wirthx/internal/types"
)

// genCase picks one of three lowering strategies by the selector's type:
// one IR switch for plain integer/enum selectors, a comparestr cascade for
// strings, and an interval-check cascade once any arm is range-typed. All
// of them funnel into a single end block.
func (c *Context) genCase(n *ast.CaseStmt) error {
	selectorType, err := c.exprType(n.Selector)
	if err != nil {
		return err
	}

	hasRangeArm := false
	for _, arm := range n.Arms {
		if ref, ok := arm.Selector.(*ast.TypeRef); ok {
			if _, ok := ref.Type.(*types.ValueRange); ok {
				hasRangeArm = true
				break
			}
		}
	}

	if _, isString := selectorType.(*types.String); isString {
		return c.genCaseStringCascade(n)
	}
	if types.IsInteger(selectorType) && !hasRangeArm {
		return c.genCaseSwitch(n)
	}
	if types.IsInteger(selectorType) {
		return c.genCaseRangeCascade(n)
	}
	return errorf(n.Tok, "a case statement over the type %s is not supported!", selectorType.TypeName())
}

// armConstValue evaluates a case arm selector to its integer value.
func (c *Context) armConstValue(expr ast.Expr) (int64, error) {
	switch e := expr.(type) {
	case *ast.IntLiteral:
		return e.Value, nil
	case *ast.CharLiteral:
		return int64(e.Value), nil
	case *ast.BoolLiteral:
		if e.Value {
			return 1, nil
		}
		return 0, nil
	case *ast.EnumAccess:
		if value, ok := e.Type.ValueOf(e.Tok.Literal); ok {
			return value, nil
		}
	case *ast.Minus:
		value, err := c.armConstValue(e.Operand)
		return -value, err
	}
	return 0, errorf(expr.Token(), "the case selector is not a constant!")
}

func (c *Context) genCaseSwitch(n *ast.CaseStmt) error {
	selector, err := c.genExpr(n.Selector)
	if err != nil {
		return err
	}

	fn := c.currentFn
	var armBlocks []llvm.BasicBlock
	for range n.Arms {
		armBlocks = append(armBlocks, llvm.AddBasicBlock(fn, "case"))
	}
	defaultBB := llvm.AddBasicBlock(fn, "caseElse")
	endBB := llvm.AddBasicBlock(fn, "caseEnd")

	sw := c.builder.CreateSwitch(selector, defaultBB, len(n.Arms))
	for i, arm := range n.Arms {
		value, err := c.armConstValue(arm.Selector)
		if err != nil {
			return err
		}
		sw.AddCase(llvm.ConstInt(selector.Type(), uint64(value), true), armBlocks[i])

		c.builder.SetInsertPointAtEnd(armBlocks[i])
		if arm.Body != nil {
			if err := c.genStmt(arm.Body); err != nil {
				return err
			}
		}
		if !c.blockTerminated() {
			c.builder.CreateBr(endBB)
		}
	}

	c.builder.SetInsertPointAtEnd(defaultBB)
	if err := c.genStmts(n.Else); err != nil {
		return err
	}
	if !c.blockTerminated() {
		c.builder.CreateBr(endBB)
	}

	c.builder.SetInsertPointAtEnd(endBB)
	return nil
}

func (c *Context) genCaseStringCascade(n *ast.CaseStmt) error {
	fn := c.currentFn
	endBB := llvm.AddBasicBlock(fn, "caseEnd")

	for _, arm := range n.Arms {
		result, err := c.callCompareStr(n, n.Selector, arm.Selector)
		if err != nil {
			return err
		}
		match := c.builder.CreateICmp(llvm.IntEQ, result, c.constI32(0), "")

		bodyBB := llvm.AddBasicBlock(fn, "case")
		nextBB := llvm.AddBasicBlock(fn, "caseNext")
		c.builder.CreateCondBr(match, bodyBB, nextBB)

		c.builder.SetInsertPointAtEnd(bodyBB)
		if arm.Body != nil {
			if err := c.genStmt(arm.Body); err != nil {
				return err
			}
		}
		if !c.blockTerminated() {
			c.builder.CreateBr(endBB)
		}
		c.builder.SetInsertPointAtEnd(nextBB)
	}

	if err := c.genStmts(n.Else); err != nil {
		return err
	}
	if !c.blockTerminated() {
		c.builder.CreateBr(endBB)
	}

	c.builder.SetInsertPointAtEnd(endBB)
	return nil
}

func (c *Context) genCaseRangeCascade(n *ast.CaseStmt) error {
	selector, err := c.genExpr(n.Selector)
	if err != nil {
		return err
	}
	selector = c.castIntTo(selector, 64)

	fn := c.currentFn
	endBB := llvm.AddBasicBlock(fn, "caseEnd")

	for _, arm := range n.Arms {
		var match llvm.Value
		if ref, ok := arm.Selector.(*ast.TypeRef); ok {
			rangeType, ok := ref.Type.(*types.ValueRange)
			if !ok {
				return errorf(ref.Tok, "the case selector is not a range!")
			}
			atLeast := c.builder.CreateICmp(llvm.IntSGE, selector, c.constI64(rangeType.Low), "")
			atMost := c.builder.CreateICmp(llvm.IntSLE, selector, c.constI64(rangeType.High), "")
			match = c.builder.CreateAnd(atLeast, atMost, "")
		} else {
			value, err := c.armConstValue(arm.Selector)
			if err != nil {
				return err
			}
			match = c.builder.CreateICmp(llvm.IntEQ, selector, c.constI64(value), "")
		}

		bodyBB := llvm.AddBasicBlock(fn, "case")
		nextBB := llvm.AddBasicBlock(fn, "caseNext")
		c.builder.CreateCondBr(match, bodyBB, nextBB)

		c.builder.SetInsertPointAtEnd(bodyBB)
		if arm.Body != nil {
			if err := c.genStmt(arm.Body); err != nil {
				return err
			}
		}
		if !c.blockTerminated() {
			c.builder.CreateBr(endBB)
		}
		c.builder.SetInsertPointAtEnd(nextBB)
	}

	if err := c.genStmts(n.Else); err != nil {
		return err
	}
	if !c.blockTerminated() {
		c.builder.CreateBr(endBB)
	}

	c.builder.SetInsertPointAtEnd(endBB)
	return nil
}
