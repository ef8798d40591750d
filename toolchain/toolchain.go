// Package toolchain wraps the compilers, assembler and validators that turn
// program sources into validated SPIR-V.
//
// Every collaborator is an interface so the build pipeline can run against
// fakes in tests. The default set is:
//
//   - WGSL: [NagaCompiler], in process
//   - GLSL and HLSL: [GlslangCompiler], running glslangValidator
//   - SPIR-V assembly: [SpirvAssembler], running spirv-as
//   - validation: [StructuralValidator], plus spirv-val when it is on PATH,
//     plus a [DeviceValidator] on request
//
// Failures the tool attributes to its input are reported as typed errors
// ([CompileError], [AssemblyError], [ValidationError]) carrying the
// diagnostics; any other error means the tool itself could not run.
package toolchain

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/gogpu/progbuild"
	"github.com/gogpu/progbuild/shader"
	"github.com/gogpu/progbuild/spv"
)

// Compiler turns a high-level source into a SPIR-V binary.
type Compiler interface {
	Compile(ctx context.Context, src shader.Source) ([]byte, error)
}

// Assembler turns SPIR-V assembly into a SPIR-V binary.
type Assembler interface {
	Assemble(ctx context.Context, src shader.Source) ([]byte, error)
}

// Validator checks a SPIR-V binary against a target environment version.
// The returned log is kept whether or not validation passed.
type Validator interface {
	Validate(ctx context.Context, binary []byte, version spv.Version) (log string, err error)
}

// Toolchain bundles the collaborators used by a build.
type Toolchain struct {
	Compilers map[shader.Language]Compiler
	Assembler Assembler
	Validator Validator
}

// CompilerFor returns the compiler registered for lang.
func (tc *Toolchain) CompilerFor(lang shader.Language) (Compiler, error) {
	c, ok := tc.Compilers[lang]
	if !ok || c == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, lang)
	}
	return c, nil
}

// Config selects external tools for Default. Empty paths use the tool
// name and rely on PATH lookup.
type Config struct {
	Glslang  string `yaml:"glslang" toml:"glslang"`
	SpirvAs  string `yaml:"spirv_as" toml:"spirv_as"`
	SpirvVal string `yaml:"spirv_val" toml:"spirv_val"`

	// DisableSpirvVal skips spirv-val even when it is available.
	DisableSpirvVal bool `yaml:"disable_spirv_val" toml:"disable_spirv_val"`

	// DeviceCheck adds a DeviceValidator backed by the noop HAL device.
	DeviceCheck bool `yaml:"device_check" toml:"device_check"`
}

// Default assembles the standard toolchain described in the package
// documentation. The returned release function frees the validation
// device, if one was opened; it is never nil.
func Default(cfg Config) (*Toolchain, func(), error) {
	glslang := &GlslangCompiler{Path: orDefault(cfg.Glslang, "glslangValidator")}

	validators := ChainValidator{StructuralValidator{}}
	if !cfg.DisableSpirvVal {
		path := orDefault(cfg.SpirvVal, "spirv-val")
		if _, err := exec.LookPath(path); err == nil {
			validators = append(validators, &SpirvValidator{Path: path})
		} else {
			progbuild.Logger().Info("toolchain: spirv-val not found, using structural validation only", "path", path)
		}
	}

	release := func() {}
	if cfg.DeviceCheck {
		dv, err := NewNoopDeviceValidator()
		if err != nil {
			return nil, release, err
		}
		validators = append(validators, dv)
		release = dv.Close
	}

	tc := &Toolchain{
		Compilers: map[shader.Language]Compiler{
			shader.GLSL: glslang,
			shader.HLSL: glslang,
			shader.WGSL: NagaCompiler{},
		},
		Assembler: &SpirvAssembler{Path: orDefault(cfg.SpirvAs, "spirv-as")},
		Validator: validators,
	}
	return tc, release, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
