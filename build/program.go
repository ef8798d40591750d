package build

import (
	"fmt"

	"github.com/gogpu/progbuild/registry"
	"github.com/gogpu/progbuild/shader"
	"github.com/gogpu/progbuild/spv"
)

// Status is the state of a build or validation step.
type Status uint8

const (
	// NotCompleted means the step has not run (yet).
	NotCompleted Status = iota
	// Failed means the step ran and rejected the program.
	Failed
	// Passed means the step ran and accepted the program.
	Passed
)

func (s Status) String() string {
	switch s {
	case NotCompleted:
		return "NOT_COMPLETED"
	case Failed:
		return "FAILED"
	case Passed:
		return "PASSED"
	}
	return fmt.Sprintf("Status(%d)", s)
}

// ProgramID addresses a Program inside an Arena.
type ProgramID uint32

// Program is one declared program and the outcome of building it.
//
// A Program is written by exactly one build task and at most one validation
// task, which never overlap; after BuildPrograms returns it is read-only.
type Program struct {
	ID       ProgramID
	CasePath string
	Name     string
	Source   shader.Source

	BuildStatus Status
	BuildLog    string

	// Binary is set iff BuildStatus is Passed. It may be shared with other
	// programs built from an identical source and must not be modified.
	Binary []byte

	ValidationStatus Status
	ValidationLog    string

	// SpirvVersion is read from the binary header once the build passed.
	SpirvVersion spv.Version

	// CacheHit reports that the build outcome was reused from an identical
	// source built earlier in the run.
	CacheHit bool
}

// Identifier returns the registry key of p.
func (p *Program) Identifier() registry.ProgramIdentifier {
	return registry.ProgramIdentifier{TestCasePath: p.CasePath, ProgramName: p.Name}
}

// Language is the language p was declared in.
func (p *Program) Language() shader.Language {
	return p.Source.Language
}

// Succeeded reports whether p counts as a success: the build passed and,
// when validation ran, validation did not fail.
func (p *Program) Succeeded(validated bool) bool {
	if p.BuildStatus != Passed {
		return false
	}
	return !validated || p.ValidationStatus != Failed
}

const arenaChunk = 256

// Arena stores Programs in fixed-size chunks. A chunk is never reallocated,
// so pointers returned by Alloc stay valid while the arena keeps growing.
//
// Alloc must only be called from one goroutine.
type Arena struct {
	chunks [][]Program
	n      int
}

// Alloc returns a zeroed Program with its ID set.
func (a *Arena) Alloc() *Program {
	idx := a.n % arenaChunk
	if idx == 0 {
		a.chunks = append(a.chunks, make([]Program, arenaChunk))
	}
	p := &a.chunks[len(a.chunks)-1][idx]
	p.ID = ProgramID(a.n)
	a.n++
	return p
}

// Get returns the program with the given id, or nil.
func (a *Arena) Get(id ProgramID) *Program {
	if int(id) >= a.n {
		return nil
	}
	return &a.chunks[int(id)/arenaChunk][int(id)%arenaChunk]
}

// Len returns the number of allocated programs.
func (a *Arena) Len() int { return a.n }

// Programs returns pointers to every program in allocation order.
func (a *Arena) Programs() []*Program {
	out := make([]*Program, 0, a.n)
	for i := range a.n {
		out = append(out, a.Get(ProgramID(i)))
	}
	return out
}
