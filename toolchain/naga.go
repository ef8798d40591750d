package toolchain

import (
	"context"
	"fmt"

	"github.com/gogpu/naga/spirv"
	"github.com/gogpu/naga/wgsl"

	"github.com/gogpu/progbuild/shader"
	"github.com/gogpu/progbuild/spv"
)

// NagaCompiler compiles WGSL in process with gogpu/naga.
//
// The backend generates code for the requested target version. It may
// raise the header version when the module needs a newer feature, so
// consumers read the version from the binary rather than the options.
type NagaCompiler struct{}

// Compile implements Compiler.
func (NagaCompiler) Compile(ctx context.Context, src shader.Source) ([]byte, error) {
	if src.Language != shader.WGSL {
		return nil, fmt.Errorf("%w: naga compiles wgsl, got %s", ErrUnsupportedLanguage, src.Language)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stageErr := func(phase string, err error) error {
		return &CompileError{Stages: []StageLog{{
			Stage:   src.Stage,
			Source:  src.Code,
			InfoLog: fmt.Sprintf("%s: %v", phase, err),
		}}}
	}

	tokens, err := wgsl.NewLexer(src.Code).Tokenize()
	if err != nil {
		return nil, stageErr("tokenize", err)
	}
	ast, err := wgsl.NewParser(tokens).Parse()
	if err != nil {
		return nil, stageErr("parse", err)
	}
	module, err := wgsl.LowerWithSource(ast, src.Code)
	if err != nil {
		return nil, stageErr("lower", err)
	}

	target := src.Options.TargetVersion
	if target.IsZero() {
		target = spv.V1_0
	}
	backend := spirv.NewBackend(spirv.Options{
		Version: spirv.Version{Major: target.Major, Minor: target.Minor},
		Debug:   src.Options.Debug,
	})
	binary, err := backend.Compile(module)
	if err != nil {
		// Code generation sees the whole module, so it plays the link role.
		return nil, &CompileError{
			Stages:  []StageLog{{Stage: src.Stage, Source: src.Code}},
			LinkLog: err.Error(),
		}
	}
	return binary, nil
}
