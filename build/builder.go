// Package build turns the programs declared by a test package into SPIR-V
// binaries on a pool of workers.
//
// BuildPrograms walks the test hierarchy on the calling goroutine, which is
// the only producer. Every declared source becomes a Program in an Arena
// and a build task on the executor. Once the pool has drained, an optional
// validation pass runs the same way; then successful binaries are written
// to the registry and statistics are computed, all on the calling goroutine.
package build

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/gogpu/progbuild"
	"github.com/gogpu/progbuild/cache"
	"github.com/gogpu/progbuild/internal/parallel"
	"github.com/gogpu/progbuild/registry"
	"github.com/gogpu/progbuild/testpkg"
	"github.com/gogpu/progbuild/toolchain"
)

// ErrNoValidator is returned when validation is requested but the
// toolchain has no validator.
var ErrNoValidator = errors.New("build: validation requested without a validator")

// Option configures a Builder.
type Option func(*Builder)

// WithWorkers sets the worker count. Values <= 0 use runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(b *Builder) {
		b.workers = n
	}
}

// WithValidation enables the validation pass.
func WithValidation(enabled bool) Option {
	return func(b *Builder) {
		b.validate = enabled
	}
}

// WithVulkanVersion sets the API version handed to test cases. Unless
// WithCeilings is also given, the SPIR-V ceilings follow from it.
func WithVulkanVersion(v *semver.Version) Option {
	return func(b *Builder) {
		b.vulkan = v
	}
}

// WithCeilings overrides the SPIR-V ceilings derived from the Vulkan
// version.
func WithCeilings(c Ceilings) Option {
	return func(b *Builder) {
		b.ceilings = &c
	}
}

// WithFilter restricts the walk to the cases f matches.
func WithFilter(f *testpkg.Filter) Option {
	return func(b *Builder) {
		b.filter = f
	}
}

// WithRegistry stores every successfully built binary in w.
func WithRegistry(w *registry.Writer) Option {
	return func(b *Builder) {
		b.registry = w
	}
}

// WithCache memoizes build outcomes across identical sources.
func WithCache(c *cache.Outcomes) Option {
	return func(b *Builder) {
		b.memo = c
	}
}

// Builder builds the programs of a test package. A Builder holds no state
// between calls and may be reused.
type Builder struct {
	tc       *toolchain.Toolchain
	workers  int
	validate bool
	vulkan   *semver.Version
	ceilings *Ceilings
	filter   *testpkg.Filter
	registry *registry.Writer
	memo     *cache.Outcomes
}

// New creates a Builder using the collaborators in tc.
func New(tc *toolchain.Toolchain, opts ...Option) *Builder {
	b := &Builder{tc: tc}
	for _, opt := range opts {
		opt(b)
	}
	if b.workers <= 0 {
		b.workers = runtime.NumCPU()
	}
	if b.vulkan == nil {
		b.vulkan = semver.MustParse(DefaultVulkanVersion)
	}
	return b
}

// BuildStats summarizes a run.
type BuildStats struct {
	NumSucceeded int
	NumFailed    int
	NotSupported int
}

// Result is the outcome of BuildPrograms.
type Result struct {
	Stats BuildStats

	// Programs lists every built program in declaration order.
	Programs []*Program

	// Validated reports whether the validation pass ran.
	Validated bool

	// Cases is the number of cases that declared their programs.
	Cases int

	// Skipped counts sources above the SPIR-V ceiling.
	Skipped int

	// CacheHits counts programs whose outcome came from the memo.
	CacheHits int

	Workers  int
	Duration time.Duration
}

// Failures returns the programs counted in Stats.NumFailed.
func (r *Result) Failures() []*Program {
	var out []*Program
	for _, p := range r.Programs {
		if !p.Succeeded(r.Validated) {
			out = append(out, p)
		}
	}
	return out
}

// BuildPrograms builds every program declared below root.
//
// Build and validation failures are recorded on the programs and counted;
// they are not errors. An error is returned when a case fails in any way
// other than declining, when ctx is cancelled, or when the registry cannot
// be written. Tasks already submitted always finish first. A cancelled build
// neither validates nor writes the registry.
func (b *Builder) BuildPrograms(ctx context.Context, root *testpkg.Group) (*Result, error) {
	if b.tc == nil {
		return nil, errors.New("build: nil toolchain")
	}
	if b.validate && b.tc.Validator == nil {
		return nil, ErrNoValidator
	}
	ceilings, err := b.resolveCeilings()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	log := progbuild.Logger()

	exec := parallel.NewExecutor(b.workers)
	defer exec.Close()

	env := &taskEnv{ctx: ctx, tc: b.tc, memo: b.memo}
	arena := &Arena{}
	res := &Result{Validated: b.validate, Workers: exec.Workers()}
	caseCtx := &testpkg.Context{VulkanVersion: b.vulkan}

	walkErr := testpkg.Walk(ctx, root, b.filter, func(path string, tc testpkg.TestCase) error {
		sources := testpkg.NewSourceCollections()
		if err := tc.InitPrograms(caseCtx, sources); err != nil {
			if testpkg.IsNotSupported(err) {
				res.Stats.NotSupported++
				log.Debug("build: case not supported", "case", path, "reason", err)
				return nil
			}
			return fmt.Errorf("build: %s: %w", path, err)
		}
		res.Cases++

		for _, ps := range sources.Programs() {
			if !ceilings.Allows(ps.Source) {
				res.Skipped++
				log.Debug("build: source above ceiling", "case", path, "program", ps.Name,
					"target", ps.Source.Options.TargetVersion)
				continue
			}
			p := arena.Alloc()
			p.CasePath = path
			p.Name = ps.Name
			p.Source = ps.Source

			t := task{kind: buildKind(p), program: p}
			exec.Submit(func() { t.run(env) })
		}
		return nil
	})

	exec.WaitForComplete()
	if walkErr != nil {
		return nil, walkErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log.Info("build: build pass finished", "programs", arena.Len(), "cases", res.Cases,
		"not_supported", res.Stats.NotSupported, "skipped", res.Skipped)

	res.Programs = arena.Programs()

	if b.validate {
		n := 0
		for _, p := range res.Programs {
			if p.BuildStatus != Passed {
				continue
			}
			t := task{kind: kindValidate, program: p}
			exec.Submit(func() { t.run(env) })
			n++
		}
		exec.WaitForComplete()
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		log.Info("build: validation pass finished", "programs", n)
	}

	if b.registry != nil {
		for _, p := range res.Programs {
			if p.BuildStatus != Passed {
				continue
			}
			if err := b.registry.Add(p.Identifier(), p.Binary); err != nil {
				return nil, err
			}
		}
		if err := b.registry.Write(); err != nil {
			return nil, err
		}
	}

	for _, p := range res.Programs {
		if p.Succeeded(b.validate) {
			res.Stats.NumSucceeded++
		} else {
			res.Stats.NumFailed++
		}
		if p.CacheHit {
			res.CacheHits++
		}
	}
	res.Duration = time.Since(start)

	log.Info("build: done",
		"passed", res.Stats.NumSucceeded,
		"failed", res.Stats.NumFailed,
		"not_supported", res.Stats.NotSupported,
		"cache_hits", res.CacheHits,
		"duration", res.Duration)
	return res, nil
}

func (b *Builder) resolveCeilings() (Ceilings, error) {
	if b.ceilings != nil {
		return *b.ceilings, nil
	}
	return CeilingsForVulkan(b.vulkan)
}
