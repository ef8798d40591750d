package toolchain

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/gogpu/progbuild"
	"github.com/gogpu/progbuild/shader"
	"github.com/gogpu/progbuild/spv"
)

// runTool runs an external tool in a fresh scratch directory.
// prepare writes the inputs into dir and returns the arguments. The
// combined output is returned in all cases; rejected reports whether the
// tool ran and exited non-zero, which means it rejected its input.
func runTool(ctx context.Context, path string, prepare func(dir string) ([]string, error)) (dir string, output []byte, rejected bool, err error) {
	dir, err = os.MkdirTemp("", "progbuild-")
	if err != nil {
		return "", nil, false, fmt.Errorf("toolchain: creating scratch dir: %w", err)
	}

	args, err := prepare(dir)
	if err != nil {
		_ = os.RemoveAll(dir)
		return "", nil, false, err
	}

	progbuild.Logger().Debug("toolchain: running tool", "path", path, "args", strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Dir = dir
	output, err = cmd.CombinedOutput()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			_ = os.RemoveAll(dir)
			return "", output, false, ctxErr
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return dir, output, true, nil
		}
		_ = os.RemoveAll(dir)
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return "", output, false, fmt.Errorf("%w: %s", ErrToolNotFound, path)
		}
		return "", output, false, fmt.Errorf("toolchain: running %s: %w", path, err)
	}
	return dir, output, false, nil
}

// GlslangCompiler compiles GLSL and HLSL with glslangValidator.
type GlslangCompiler struct {
	Path string
}

// Compile implements Compiler.
func (c *GlslangCompiler) Compile(ctx context.Context, src shader.Source) ([]byte, error) {
	if src.Language != shader.GLSL && src.Language != shader.HLSL {
		return nil, fmt.Errorf("%w: glslang compiles glsl and hlsl, got %s", ErrUnsupportedLanguage, src.Language)
	}

	dir, output, rejected, err := runTool(ctx, c.Path, func(dir string) ([]string, error) {
		in := filepath.Join(dir, "shader."+src.Stage.String())
		if err := os.WriteFile(in, []byte(src.Code), 0o644); err != nil {
			return nil, fmt.Errorf("toolchain: writing source: %w", err)
		}
		args := []string{
			"-V",
			"--target-env", "spirv" + targetOrDefault(src.Options.TargetVersion).String(),
			"-S", src.Stage.String(),
			"-o", "out.spv",
		}
		if src.Language == shader.HLSL {
			args = append(args, "-D", "-e", orDefault(src.Options.EntryPoint, "main"))
		}
		if src.Options.Debug {
			args = append(args, "-g")
		}
		return append(args, in), nil
	})
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	if rejected {
		return nil, &CompileError{Stages: []StageLog{{
			Stage:   src.Stage,
			Source:  src.Code,
			InfoLog: string(output),
		}}}
	}
	return readBinary(filepath.Join(dir, "out.spv"))
}

// SpirvAssembler assembles SPIR-V text with spirv-as.
type SpirvAssembler struct {
	Path string
}

// Assemble implements Assembler.
func (a *SpirvAssembler) Assemble(ctx context.Context, src shader.Source) ([]byte, error) {
	dir, output, rejected, err := runTool(ctx, a.Path, func(dir string) ([]string, error) {
		in := filepath.Join(dir, "module.spvasm")
		if err := os.WriteFile(in, []byte(src.Code), 0o644); err != nil {
			return nil, fmt.Errorf("toolchain: writing source: %w", err)
		}
		return []string{
			"--target-env", "spv" + targetOrDefault(src.Options.TargetVersion).String(),
			"-o", "out.spv",
			in,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	if rejected {
		return nil, parseAssemblyError(string(output))
	}
	return readBinary(filepath.Join(dir, "out.spv"))
}

// asmDiagnostic matches "file:line:column: error: message".
var asmDiagnostic = regexp.MustCompile(`(?m)^[^:\n]*:(\d+):(\d+):\s*(?:error:\s*)?(.*)$`)

// parseAssemblyError converts spirv-as output into an AssemblyError.
func parseAssemblyError(output string) *AssemblyError {
	m := asmDiagnostic.FindStringSubmatch(output)
	if m == nil {
		return &AssemblyError{Message: strings.TrimSpace(output)}
	}
	line, _ := strconv.Atoi(m[1])
	col, _ := strconv.Atoi(m[2])
	return &AssemblyError{Line: line, Column: col, Message: strings.TrimSpace(m[3])}
}

// SpirvValidator validates binaries with spirv-val.
type SpirvValidator struct {
	Path string
}

// Validate implements Validator.
func (v *SpirvValidator) Validate(ctx context.Context, binary []byte, version spv.Version) (string, error) {
	dir, output, rejected, err := runTool(ctx, v.Path, func(dir string) ([]string, error) {
		in := filepath.Join(dir, "module.spv")
		if err := os.WriteFile(in, binary, 0o644); err != nil {
			return nil, fmt.Errorf("toolchain: writing binary: %w", err)
		}
		return []string{"--target-env", "spv" + targetOrDefault(version).String(), in}, nil
	})
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(dir)

	log := string(output)
	if rejected {
		return log, &ValidationError{Validator: "spirv-val", Log: log}
	}
	return log, nil
}

func targetOrDefault(v spv.Version) spv.Version {
	if v.IsZero() {
		return spv.V1_0
	}
	return v
}

func readBinary(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("toolchain: reading tool output: %w", err)
	}
	if _, err := spv.ParseHeader(b); err != nil {
		return nil, fmt.Errorf("toolchain: tool output is not SPIR-V: %w", err)
	}
	return b, nil
}
