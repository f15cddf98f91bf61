package codegen

import (
	"errors"
	"fmt"
	"os"

	"tinygo.org/x/go-llvm"
)

// EmitObjectFile compiles the module for the configured target and writes
// the native object file. The optimisation level is the opaque
// debug/release switch.
func (c *Context) EmitObjectFile(path string) error {
	llvm.InitializeAllTargetInfos()
	llvm.InitializeAllTargets()
	llvm.InitializeAllTargetMCs()
	llvm.InitializeAllAsmParsers()
	llvm.InitializeAllAsmPrinters()

	target, err := llvm.GetTargetFromTriple(c.opts.Triple)
	if err != nil {
		return err
	}

	level := llvm.CodeGenLevelNone
	if c.opts.Mode == Release {
		level = llvm.CodeGenLevelAggressive
	}
	machine := target.CreateTargetMachine(c.opts.Triple, "generic", "",
		level, llvm.RelocPIC, llvm.CodeModelDefault)
	defer machine.Dispose()

	data := machine.CreateTargetData()
	defer data.Dispose()
	c.module.SetDataLayout(data.String())

	buf, err := machine.EmitToMemoryBuffer(c.module, llvm.ObjectFile)
	if err != nil {
		return err
	}
	if buf.IsNil() {
		return errors.New("could not emit compiled code to memory")
	}
	defer buf.Dispose()

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("could not open file: %w", err)
	}
	return nil
}
