package codegen

import (
	"tinygo.org/x/go-llvm"
)

// declareRuntime declares the C-library externs emitted code links
// against, plus the memory intrinsics. Registered under their plain names
// so call lowering finds them.
func (c *Context) declareRuntime() {
	i8 := c.llctx.Int8Type()
	i32 := c.llctx.Int32Type()
	i64 := c.llctx.Int64Type()
	ptr := c.bytePtrType()
	void := c.llctx.VoidType()

	c.declareExtern("exit", void, []llvm.Type{i32}, false)
	c.declareExtern("fflush", void, []llvm.Type{ptr}, false)
	c.declareExtern("fopen", ptr, []llvm.Type{ptr, ptr}, false)
	c.declareExtern("fclose", i32, []llvm.Type{ptr}, false)
	c.declareExtern("fgetc", i8, []llvm.Type{ptr}, false)
	c.declareExtern("fwrite", i64, []llvm.Type{ptr, i64, i64, ptr}, false)
	c.declareExtern("malloc", ptr, []llvm.Type{i64}, false)
	c.declareExtern("free", void, []llvm.Type{ptr}, false)
	c.declareExtern("printf", i32, []llvm.Type{ptr}, true)
	c.declareExtern("fprintf", i32, []llvm.Type{ptr, ptr}, true)

	realloc := c.declareExtern("realloc", ptr, []llvm.Type{ptr, i64}, false)
	for _, name := range []string{"argmemonly", "willreturn", "nofree"} {
		realloc.AddFunctionAttr(c.llctx.CreateEnumAttribute(llvm.AttributeKindID(name), 0))
	}
	noundef := c.llctx.CreateEnumAttribute(llvm.AttributeKindID("noundef"), 0)
	realloc.AddAttributeAtIndex(1, noundef)
	realloc.AddAttributeAtIndex(2, noundef)

	if c.windows {
		c.declareExtern("_assert", void, []llvm.Type{ptr, ptr, i32, ptr}, false)
		c.declareExtern("__acrt_iob_func", ptr, []llvm.Type{i32}, false)
	} else {
		c.declareExtern("__assert_fail", void, []llvm.Type{ptr, ptr, i32, ptr}, false)
	}

	i1 := c.llctx.Int1Type()
	c.declareExtern("llvm.memcpy.p0i8.p0i8.i64", void, []llvm.Type{ptr, ptr, i64, i1}, false)
	c.declareExtern("llvm.memset.p0i8.i64", void, []llvm.Type{ptr, i8, i64, i1}, false)
}

func (c *Context) declareExtern(name string, ret llvm.Type, params []llvm.Type, variadic bool) llvm.Value {
	fn := c.module.NamedFunction(name)
	if fn.IsNil() {
		fn = llvm.AddFunction(c.module, name, llvm.FunctionType(ret, params, variadic))
	}
	c.setFunction(name, fn)
	return fn
}

// assertFailName is the platform routine behind range checks and assert.
func (c *Context) assertFailName() string {
	if c.windows {
		return "_assert"
	}
	return "__assert_fail"
}

// emitMemcpy copies size bytes between byte pointers.
func (c *Context) emitMemcpy(dst, src, size llvm.Value) {
	memcpy := c.mustFunction("llvm.memcpy.p0i8.p0i8.i64")
	c.builder.CreateCall(memcpy, []llvm.Value{
		c.builder.CreateBitCast(dst, c.bytePtrType(), ""),
		c.builder.CreateBitCast(src, c.bytePtrType(), ""),
		size,
		c.constBool(false),
	}, "")
}

// emitMemset zeroes size bytes.
func (c *Context) emitMemset(dst, size llvm.Value) {
	memset := c.mustFunction("llvm.memset.p0i8.i64")
	c.builder.CreateCall(memset, []llvm.Value{
		c.builder.CreateBitCast(dst, c.bytePtrType(), ""),
		c.constI8(0),
		size,
		c.constBool(false),
	}, "")
}

// emitMalloc heap-allocates sizeBytes bytes and returns the block as a
// pointer to elem.
func (c *Context) emitMalloc(elem llvm.Type, sizeBytes llvm.Value) llvm.Value {
	raw := c.builder.CreateCall(c.mustFunction("malloc"), []llvm.Value{sizeBytes}, "")
	return c.builder.CreateBitCast(raw, llvm.PointerType(elem, 0), "")
}

// ifThen lowers "if cond then body" around the current insert point; the
// merge block becomes current afterwards.
func (c *Context) ifThen(cond llvm.Value, body func()) {
	fn := c.builder.GetInsertBlock().Parent()
	thenBB := llvm.AddBasicBlock(fn, "then")
	mergeBB := llvm.AddBasicBlock(fn, "ifcont")

	c.builder.CreateCondBr(cond, thenBB, mergeBB)
	c.builder.SetInsertPointAtEnd(thenBB)
	body()
	if !c.breakBlock.used {
		c.builder.CreateBr(mergeBB)
	}
	c.breakBlock.used = false
	c.builder.SetInsertPointAtEnd(mergeBB)
}

// synthesizeIntrinsics materialises the built-in file procedures as
// private functions called through the normal call path.
func (c *Context) synthesizeIntrinsics() {
	c.synthesizeAssignFile()
	c.synthesizeOpen("reset(file)", "r+")
	c.synthesizeOpen("rewrite(file)", "w+")
	c.synthesizeCloseFile()
	c.synthesizeReadLn()
	c.synthesizeReadLnStdin()
}

func (c *Context) beginPrivateFunction(name string, params []llvm.Type) llvm.Value {
	fnType := llvm.FunctionType(c.llctx.VoidType(), params, false)
	fn := llvm.AddFunction(c.module, name, fnType)
	fn.SetLinkage(llvm.PrivateLinkage)
	block := llvm.AddBasicBlock(fn, "_block")
	c.builder.SetInsertPointAtEnd(block)
	c.setFunction(name, fn)
	return fn
}

// synthesizeAssignFile builds assignfile(file, string): copy the string's
// bytes into a fresh NUL-terminated heap buffer and store it as the file's
// name.
func (c *Context) synthesizeAssignFile() {
	ptr := c.bytePtrType()
	fn := c.beginPrivateFunction("assignfile(file,string)", []llvm.Type{ptr, ptr})

	fileArg := fn.Param(0)
	strArg := fn.Param(1)
	fileType := c.fileStructType()
	stringType := c.stringStructType()
	i8 := c.llctx.Int8Type()

	filePtr := c.builder.CreateBitCast(fileArg, llvm.PointerType(fileType, 0), "")
	strPtr := c.builder.CreateBitCast(strArg, llvm.PointerType(stringType, 0), "")

	fileName := c.builder.CreateStructGEP(filePtr, 0, "file.name")
	sizeOffset := c.builder.CreateStructGEP(strPtr, 1, "file.name.size")
	size := c.builder.CreateLoad(sizeOffset, "size")

	dataOffset := c.builder.CreateStructGEP(strPtr, 2, "string.ptr.offset")
	data := c.builder.CreateLoad(dataOffset, "")

	buffer := c.emitMalloc(i8, size)
	c.emitMemcpy(buffer, data, size)
	terminator := c.builder.CreateGEP(buffer, []llvm.Value{size}, "")
	c.builder.CreateStore(c.constI8(0), terminator)
	c.builder.CreateStore(buffer, fileName)

	c.builder.CreateRetVoid()
}

// synthesizeOpen builds reset(file)/rewrite(file): fopen the stored name
// with the given mode, exit(1) with a message when it fails, store the
// handle.
func (c *Context) synthesizeOpen(name, mode string) {
	ptr := c.bytePtrType()
	fn := c.beginPrivateFunction(name, []llvm.Type{ptr})

	fileType := c.fileStructType()
	filePtr := c.builder.CreateBitCast(fn.Param(0), llvm.PointerType(fileType, 0), "")

	nameOffset := c.builder.CreateStructGEP(filePtr, 0, "file.name")
	fileName := c.builder.CreateLoad(nameOffset, "")

	fopen := c.mustFunction("fopen")
	handle := c.builder.CreateCall(fopen, []llvm.Value{
		fileName,
		c.builder.CreateGlobalStringPtr(mode, ""),
	}, "")

	asInt := c.builder.CreatePtrToInt(handle, c.llctx.Int64Type(), "")
	isNull := c.builder.CreateICmp(llvm.IntEQ, asInt, c.constI64(0), "")
	c.ifThen(isNull, func() {
		printf := c.mustFunction("printf")
		c.builder.CreateCall(printf, []llvm.Value{
			c.builder.CreateGlobalStringPtr("file with the name %s not found!", "format_string"),
			fileName,
		}, "")
		c.builder.CreateCall(c.mustFunction("exit"), []llvm.Value{c.constI32(1)}, "")
	})

	handleOffset := c.builder.CreateStructGEP(filePtr, 1, "file.ptr")
	c.builder.CreateStore(handle, handleOffset)
	c.builder.CreateRetVoid()
}

func (c *Context) synthesizeCloseFile() {
	ptr := c.bytePtrType()
	fn := c.beginPrivateFunction("closefile(file)", []llvm.Type{ptr})

	fileType := c.fileStructType()
	filePtr := c.builder.CreateBitCast(fn.Param(0), llvm.PointerType(fileType, 0), "")

	handleOffset := c.builder.CreateStructGEP(filePtr, 1, "file.ptr")
	handle := c.builder.CreateLoad(handleOffset, "")
	asInt := c.builder.CreatePtrToInt(handle, c.llctx.Int64Type(), "")
	isOpen := c.builder.CreateICmp(llvm.IntNE, asInt, c.constI64(0), "")
	c.ifThen(isOpen, func() {
		c.builder.CreateCall(c.mustFunction("fclose"), []llvm.Value{handle}, "")
	})
	c.builder.CreateRetVoid()
}

// emitReadLine reads bytes from handle until a newline into a 256-byte
// stack buffer, then heap-allocates the line (newline dropped,
// NUL-terminated) and fills the target string struct.
func (c *Context) emitReadLine(fn, handle, strPtr llvm.Value) {
	i8 := c.llctx.Int8Type()
	i64 := c.llctx.Int64Type()

	sizePtr := c.builder.CreateAlloca(i64, "size")
	c.builder.CreateStore(c.constI64(0), sizePtr)
	currentChar := c.builder.CreateAlloca(i8, "currentChar")
	c.builder.CreateStore(c.constI8(0), currentChar)

	const bufferSize = 256
	bufferType := llvm.ArrayType(i8, bufferSize)
	buffer := c.builder.CreateAlloca(bufferType, "buffer")

	loopBB := llvm.AddBasicBlock(fn, "loop")
	condBB := llvm.AddBasicBlock(fn, "loop.cond")
	afterBB := llvm.AddBasicBlock(fn, "afterloop")

	c.builder.CreateBr(condBB)
	c.builder.SetInsertPointAtEnd(condBB)
	curr := c.builder.CreateLoad(currentChar, "")
	notNewline := c.builder.CreateICmp(llvm.IntNE, curr, c.constI8(10), "")
	c.builder.CreateCondBr(notNewline, loopBB, afterBB)

	c.builder.SetInsertPointAtEnd(loopBB)
	value := c.builder.CreateCall(c.mustFunction("fgetc"), []llvm.Value{handle}, "")
	c.builder.CreateStore(value, currentChar)
	size := c.builder.CreateLoad(sizePtr, "size")
	slot := c.builder.CreateGEP(buffer, []llvm.Value{c.constI64(0), size}, "")
	c.builder.CreateStore(value, slot)
	c.builder.CreateStore(c.builder.CreateAdd(size, c.constI64(1), ""), sizePtr)
	c.builder.CreateBr(condBB)

	c.builder.SetInsertPointAtEnd(afterBB)
	size = c.builder.CreateLoad(sizePtr, "size")
	sizeWithoutNewline := c.builder.CreateAdd(size, c.constI64(-1), "")

	lengthOffset := c.builder.CreateStructGEP(strPtr, 1, "string.size")
	c.builder.CreateStore(size, lengthOffset)

	line := c.emitMalloc(i8, size)
	start := c.builder.CreateGEP(buffer, []llvm.Value{c.constI64(0), c.constI64(0)}, "")
	c.emitMemcpy(line, start, sizeWithoutNewline)
	terminator := c.builder.CreateGEP(line, []llvm.Value{sizeWithoutNewline}, "")
	c.builder.CreateStore(c.constI8(0), terminator)

	dataOffset := c.builder.CreateStructGEP(strPtr, 2, "string.ptr")
	c.builder.CreateStore(line, dataOffset)
}

func (c *Context) synthesizeReadLn() {
	ptr := c.bytePtrType()
	fn := c.beginPrivateFunction("readln(file,string)", []llvm.Type{ptr, ptr})
	fn.Param(0).SetName("file")
	fn.Param(1).SetName("value")

	fileType := c.fileStructType()
	filePtr := c.builder.CreateBitCast(fn.Param(0), llvm.PointerType(fileType, 0), "")
	strPtr := c.builder.CreateBitCast(fn.Param(1), llvm.PointerType(c.stringStructType(), 0), "")

	handleOffset := c.builder.CreateStructGEP(filePtr, 1, "file.ptr")
	handle := c.builder.CreateLoad(handleOffset, "")

	asInt := c.builder.CreatePtrToInt(handle, c.llctx.Int64Type(), "")
	isOpen := c.builder.CreateICmp(llvm.IntNE, asInt, c.constI64(0), "")
	c.ifThen(isOpen, func() {
		c.emitReadLine(fn, handle, strPtr)
	})
	c.builder.CreateRetVoid()
}

// synthesizeReadLnStdin builds readln(string) reading from the stdin
// handle.
func (c *Context) synthesizeReadLnStdin() {
	ptr := c.bytePtrType()
	fn := c.beginPrivateFunction("readln(string)", []llvm.Type{ptr})
	fn.Param(0).SetName("value")

	strPtr := c.builder.CreateBitCast(fn.Param(0), llvm.PointerType(c.stringStructType(), 0), "")
	handle := c.builder.CreateLoad(c.globals["stdin"], "stdin")

	asInt := c.builder.CreatePtrToInt(handle, c.llctx.Int64Type(), "")
	isOpen := c.builder.CreateICmp(llvm.IntNE, asInt, c.constI64(0), "")
	c.ifThen(isOpen, func() {
		c.emitReadLine(fn, handle, strPtr)
	})
	c.builder.CreateRetVoid()
}
