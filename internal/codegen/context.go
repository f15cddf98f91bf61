// Package codegen lowers a typechecked unit to LLVM IR. The Context owns
// the module under construction, the current-function state, the scoped
// symbol tables, and the break-target stack; every lowering step threads
// through it.
package codegen

import (
	"fmt"
	"strings"

	"tinygo.org/x/go-llvm"

	"github.com/wirthx-compiler/wirthx/internal/ast"
	"github.com/wirthx-compiler/wirthx/internal/lexer"
	"github.com/wirthx-compiler/wirthx/internal/sema"
	"github.com/wirthx-compiler/wirthx/internal/types"
)

// BuildMode selects the opaque optimisation pipeline.
type BuildMode int

const (
	Debug BuildMode = iota
	Release
)

// Options configure code generation.
type Options struct {
	Mode   BuildMode
	Triple string // target triple; empty selects the host default
}

// Error is a fatal code-generation failure anchored to a token.
type Error struct {
	Token   lexer.Token
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Token.Span.Position(), e.Message)
}

func errorf(tok lexer.Token, format string, args ...any) *Error {
	return &Error{Token: tok, Message: fmt.Sprintf(format, args...)}
}

// symbol is one named storage location. ptr is always an address: an
// alloca, a passed-in pointer, or a module global for the std handles.
type symbol struct {
	typ     types.Type
	ptr     llvm.Value
	builtin string // std handle name for program file parameters
}

// scope is one level of the named-symbol stack; pushed on function entry
// and popped on exit.
type scope struct {
	symbols map[string]*symbol
}

// breakTarget is the innermost loop's after-block. used marks that the
// current branch ended in a break or return, suppressing the fallthrough
// branch to the merge block.
type breakTarget struct {
	block llvm.BasicBlock
	used  bool
}

// Context carries everything one compilation's lowering needs.
type Context struct {
	opts Options
	unit *ast.Unit

	llctx   llvm.Context
	module  llvm.Module
	builder llvm.Builder

	windows bool

	env            *sema.Env // unit-global environment
	fnEnv          *sema.Env // environment of the function being lowered
	currentFn      llvm.Value
	explicitReturn bool
	breakBlock     breakTarget

	scopes    []*scope
	functions map[string]llvm.Value
	structs   map[string]llvm.Type
	globals   map[string]llvm.Value // stdin/stdout/stderr
}

// NewContext creates the IR module for one unit.
func NewContext(unit *ast.Unit, opts Options) *Context {
	llctx := llvm.NewContext()
	triple := opts.Triple
	if triple == "" {
		triple = llvm.DefaultTargetTriple()
	}
	opts.Triple = triple

	module := llctx.NewModule(unit.Name)
	module.SetTarget(triple)

	return &Context{
		opts:      opts,
		unit:      unit,
		llctx:     llctx,
		module:    module,
		builder:   llctx.NewBuilder(),
		windows:   strings.Contains(triple, "windows"),
		env:       sema.NewEnv(unit),
		functions: make(map[string]llvm.Value),
		structs:   make(map[string]llvm.Type),
		globals:   make(map[string]llvm.Value),
	}
}

// Dispose releases the LLVM objects. The module becomes invalid.
func (c *Context) Dispose() {
	c.builder.Dispose()
	c.module.Dispose()
	c.llctx.Dispose()
}

// Module returns the module under construction.
func (c *Context) Module() llvm.Module { return c.module }

// IR returns the textual IR of the module.
func (c *Context) IR() string { return c.module.String() }

// Verify runs whole-module verification.
func (c *Context) Verify() error {
	return llvm.VerifyModule(c.module, llvm.ReturnStatusAction)
}

// ---- scopes ----

func (c *Context) pushScope() {
	c.scopes = append(c.scopes, &scope{symbols: make(map[string]*symbol)})
}

func (c *Context) popScope() {
	c.scopes = c.scopes[:len(c.scopes)-1]
}

func (c *Context) define(name string, sym *symbol) {
	c.scopes[len(c.scopes)-1].symbols[strings.ToLower(name)] = sym
}

func (c *Context) lookup(name string) (*symbol, bool) {
	name = strings.ToLower(name)
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if sym, ok := c.scopes[i].symbols[name]; ok {
			return sym, true
		}
	}
	return nil, false
}

// ---- type lowering ----

// irType lowers a semantic type to its IR representation. The layouts are
// contracts shared with the runtime: strings are {i64 refCount, i64 length,
// i8* data}, dynamic arrays {i64 length, T* data}, files {i8* name,
// handle*, i1 eof}.
func (c *Context) irType(t types.Type) llvm.Type {
	switch tt := t.(type) {
	case *types.Integer:
		return c.intType(tt.Bits)
	case *types.Character:
		return c.llctx.Int8Type()
	case *types.Boolean:
		return c.llctx.Int1Type()
	case *types.Real:
		if tt.Bits == 32 {
			return c.llctx.FloatType()
		}
		return c.llctx.DoubleType()
	case *types.Pointer:
		if tt.Base != nil {
			return llvm.PointerType(c.irType(tt.Base), 0)
		}
		return c.bytePtrType()
	case *types.String:
		return c.stringStructType()
	case *types.FixedArray:
		return llvm.ArrayType(c.irType(tt.Element), int(tt.Len()))
	case *types.DynArray:
		return c.dynArrayStructType(tt)
	case *types.Record:
		return c.recordStructType(tt)
	case *types.Enum:
		return c.llctx.Int32Type()
	case *types.ValueRange:
		return c.intType(tt.Bits())
	case *types.File:
		return c.fileStructType()
	}
	return c.llctx.Int64Type()
}

func (c *Context) intType(bits int) llvm.Type {
	switch bits {
	case 1:
		return c.llctx.Int1Type()
	case 8:
		return c.llctx.Int8Type()
	case 16:
		return c.llctx.Int16Type()
	case 32:
		return c.llctx.Int32Type()
	default:
		return c.llctx.Int64Type()
	}
}

func (c *Context) bytePtrType() llvm.Type {
	return llvm.PointerType(c.llctx.Int8Type(), 0)
}

// stringStructType is { i64 refCount, i64 length, i8* data }; length is the
// byte count including the trailing NUL once populated.
func (c *Context) stringStructType() llvm.Type {
	if t, ok := c.structs["string"]; ok {
		return t
	}
	t := c.llctx.StructCreateNamed("string")
	t.StructSetBody([]llvm.Type{
		c.llctx.Int64Type(),
		c.llctx.Int64Type(),
		c.bytePtrType(),
	}, false)
	c.structs["string"] = t
	return t
}

// dynArrayStructType is { i64 length, T* data }.
func (c *Context) dynArrayStructType(t *types.DynArray) llvm.Type {
	name := "dynarray." + t.Element.TypeName()
	if cached, ok := c.structs[name]; ok {
		return cached
	}
	st := c.llctx.StructCreateNamed(name)
	st.StructSetBody([]llvm.Type{
		c.llctx.Int64Type(),
		llvm.PointerType(c.irType(t.Element), 0),
	}, false)
	c.structs[name] = st
	return st
}

func (c *Context) recordStructType(t *types.Record) llvm.Type {
	name := "record." + strings.ToLower(t.TypeName())
	if cached, ok := c.structs[name]; ok {
		return cached
	}
	st := c.llctx.StructCreateNamed(name)
	fields := make([]llvm.Type, len(t.Fields))
	for i, field := range t.Fields {
		fields[i] = c.irType(field.Type)
	}
	st.StructSetBody(fields, false)
	c.structs[name] = st
	return st
}

// fileStructType is { i8* name, i8* handle, i1 eof }; handle is the opaque
// pointer fopen returns.
func (c *Context) fileStructType() llvm.Type {
	if t, ok := c.structs["file"]; ok {
		return t
	}
	t := c.llctx.StructCreateNamed("file")
	t.StructSetBody([]llvm.Type{
		c.bytePtrType(),
		c.bytePtrType(),
		c.llctx.Int1Type(),
	}, false)
	c.structs["file"] = t
	return t
}

// isCompositeType reports whether values travel behind a pointer.
func isCompositeType(t types.Type) bool { return !types.IsSimple(t) }

// ---- constants ----

func (c *Context) constInt(bits int, value int64) llvm.Value {
	return llvm.ConstInt(c.intType(bits), uint64(value), true)
}

func (c *Context) constI64(value int64) llvm.Value { return c.constInt(64, value) }
func (c *Context) constI32(value int64) llvm.Value { return c.constInt(32, value) }
func (c *Context) constI8(value int64) llvm.Value  { return c.constInt(8, value) }
func (c *Context) constBool(value bool) llvm.Value {
	if value {
		return llvm.ConstInt(c.llctx.Int1Type(), 1, false)
	}
	return llvm.ConstInt(c.llctx.Int1Type(), 0, false)
}

// ---- integer casts ----

// castIntTo widens or truncates an integer value to the given width with
// sign extension on the widening side.
func (c *Context) castIntTo(value llvm.Value, bits int) llvm.Value {
	width := value.Type().IntTypeWidth()
	if width == bits {
		return value
	}
	if width < bits {
		return c.builder.CreateSExt(value, c.intType(bits), "sext")
	}
	return c.builder.CreateTrunc(value, c.intType(bits), "trunc")
}

// coerceStore adapts a value to an integer-backed target type before a
// store; non-integer targets pass through untouched.
func (c *Context) coerceStore(value llvm.Value, target types.Type) llvm.Value {
	if bits := types.IntegerBits(target); bits > 0 && value.Type().TypeKind() == llvm.IntegerTypeKind {
		return c.castIntTo(value, bits)
	}
	return value
}

// unifyInts sign-extends the narrower operand to the wider width.
func (c *Context) unifyInts(lhs, rhs llvm.Value) (llvm.Value, llvm.Value) {
	lw := lhs.Type().IntTypeWidth()
	rw := rhs.Type().IntTypeWidth()
	if lw < rw {
		lhs = c.builder.CreateSExt(lhs, rhs.Type(), "lhs_cast")
	} else if rw < lw {
		rhs = c.builder.CreateSExt(rhs, lhs.Type(), "rhs_cast")
	}
	return lhs, rhs
}

// ---- functions ----

func (c *Context) setFunction(key string, fn llvm.Value) {
	c.functions[strings.ToLower(key)] = fn
}

func (c *Context) function(key string) (llvm.Value, bool) {
	fn, ok := c.functions[strings.ToLower(key)]
	return fn, ok
}

// mustFunction returns a function registered by the intrinsic setup.
func (c *Context) mustFunction(key string) llvm.Value {
	fn, ok := c.function(key)
	if !ok {
		panic("codegen: missing runtime function " + key)
	}
	return fn
}
