package build

import (
	"context"
	"errors"
	"fmt"

	"github.com/gogpu/progbuild"
	"github.com/gogpu/progbuild/cache"
	"github.com/gogpu/progbuild/spv"
	"github.com/gogpu/progbuild/toolchain"
)

type taskKind uint8

const (
	kindBuildHighLevel taskKind = iota
	kindBuildAsm
	kindValidate
)

func (k taskKind) String() string {
	switch k {
	case kindBuildHighLevel:
		return "build"
	case kindBuildAsm:
		return "assemble"
	case kindValidate:
		return "validate"
	}
	return fmt.Sprintf("taskKind(%d)", k)
}

// task is a unit of work for the executor. It mutates only its Program.
type task struct {
	kind    taskKind
	program *Program
}

// taskEnv is shared, read-only state visible to every task.
type taskEnv struct {
	ctx  context.Context
	tc   *toolchain.Toolchain
	memo *cache.Outcomes
}

func buildKind(p *Program) taskKind {
	if p.Language().HighLevel() {
		return kindBuildHighLevel
	}
	return kindBuildAsm
}

// run executes t. Whatever happens, the step t performs ends in a terminal
// status.
func (t task) run(env *taskEnv) {
	p := t.program
	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("internal error: %v", r)
			progbuild.Logger().Warn("build: task panicked",
				"kind", t.kind, "case", p.CasePath, "program", p.Name, "panic", msg)
			if t.kind == kindValidate {
				p.ValidationStatus = Failed
				p.ValidationLog = msg
				return
			}
			p.BuildStatus = Failed
			p.BuildLog = msg
			p.Binary = nil
		}
	}()

	switch t.kind {
	case kindBuildHighLevel:
		env.build(p, env.compile)
	case kindBuildAsm:
		env.build(p, env.assemble)
	case kindValidate:
		env.validate(p)
	default:
		panic(fmt.Sprintf("unknown task kind %d", t.kind))
	}
}

// build runs produce for p, reusing a memoized outcome when an identical
// source was already built.
func (env *taskEnv) build(p *Program, produce func(*Program) ([]byte, error)) {
	key := ""
	if env.memo != nil {
		key = p.Source.Key()
		if out, ok := env.memo.Lookup(key); ok {
			p.CacheHit = true
			env.finishBuild(p, out.Binary, out.Log, out.Passed)
			progbuild.Logger().Debug("build: cache hit", "case", p.CasePath, "program", p.Name)
			return
		}
	}

	bin, err := produce(p)
	switch {
	case err == nil && len(bin) == 0:
		env.finishBuild(p, nil, "compiler returned an empty binary", false)
	case err == nil:
		env.finishBuild(p, bin, "", true)
	default:
		log, attributed := buildLog(err)
		env.finishBuild(p, nil, log, false)
		if !attributed {
			// Tool failures say nothing about the source; do not memoize them.
			return
		}
	}

	if env.memo != nil {
		env.memo.Store(key, cache.Outcome{Binary: p.Binary, Log: p.BuildLog, Passed: p.BuildStatus == Passed})
	}
}

func (env *taskEnv) finishBuild(p *Program, bin []byte, log string, passed bool) {
	p.BuildLog = log
	if !passed {
		p.BuildStatus = Failed
		p.Binary = nil
		return
	}
	p.Binary = bin
	p.BuildStatus = Passed
	if v, err := spv.ExtractVersion(bin); err == nil {
		p.SpirvVersion = v
	}
}

// buildLog renders err for a build log. attributed reports whether the
// tool blamed the source rather than failing to run.
func buildLog(err error) (log string, attributed bool) {
	var ce *toolchain.CompileError
	if errors.As(err, &ce) {
		return ce.Log(), true
	}
	var ae *toolchain.AssemblyError
	if errors.As(err, &ae) {
		return ae.Log(), true
	}
	return err.Error(), false
}

func (env *taskEnv) compile(p *Program) ([]byte, error) {
	c, err := env.tc.CompilerFor(p.Language())
	if err != nil {
		return nil, err
	}
	return c.Compile(env.ctx, p.Source)
}

func (env *taskEnv) assemble(p *Program) ([]byte, error) {
	if env.tc.Assembler == nil {
		return nil, fmt.Errorf("%w: %s", toolchain.ErrUnsupportedLanguage, p.Language())
	}
	return env.tc.Assembler.Assemble(env.ctx, p.Source)
}

// validate checks the binary of a program whose build passed, against the
// SPIR-V version found in its header.
func (env *taskEnv) validate(p *Program) {
	if p.BuildStatus != Passed {
		return
	}
	v, err := spv.ExtractVersion(p.Binary)
	if err != nil {
		p.ValidationStatus = Failed
		p.ValidationLog = err.Error()
		return
	}
	p.SpirvVersion = v

	log, err := env.tc.Validator.Validate(env.ctx, p.Binary, v)
	p.ValidationLog = log
	if err != nil {
		p.ValidationStatus = Failed
		if p.ValidationLog == "" {
			p.ValidationLog = err.Error()
		}
		return
	}
	p.ValidationStatus = Passed
}
