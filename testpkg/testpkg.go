// Package testpkg models a test package: a tree of groups whose leaves are
// test cases able to declare shader programs.
//
// Case paths join node names with dots, root included, for example
// "dEQP-VK.api.smoke.triangle".
package testpkg

import (
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/gogpu/progbuild/shader"
)

// ErrNotSupported is the signal a test case raises from InitPrograms when
// it declines to offer programs for the current configuration.
var ErrNotSupported = errors.New("testpkg: not supported")

// ErrDuplicateProgram is returned when a case declares two programs with
// the same name.
var ErrDuplicateProgram = errors.New("testpkg: duplicate program name")

// NotSupportedError carries the reason a case declined.
type NotSupportedError struct {
	Reason string
}

func (e *NotSupportedError) Error() string {
	return "not supported: " + e.Reason
}

// Is makes errors.Is(err, ErrNotSupported) hold.
func (e *NotSupportedError) Is(target error) bool {
	return target == ErrNotSupported
}

// NotSupported returns an error that InitPrograms implementations use to
// decline, formatted like fmt.Sprintf.
func NotSupported(format string, args ...any) error {
	return &NotSupportedError{Reason: fmt.Sprintf(format, args...)}
}

// IsNotSupported reports whether err is a not-supported signal.
func IsNotSupported(err error) bool {
	return errors.Is(err, ErrNotSupported)
}

// Context is the build configuration visible to test cases.
type Context struct {
	// VulkanVersion is the API version the programs are built for.
	VulkanVersion *semver.Version
}

// Node is an element of the test hierarchy: a *Group or a TestCase.
type Node interface {
	Name() string
}

// TestCase is a leaf of the hierarchy.
type TestCase interface {
	Node

	// InitPrograms declares the programs of the case. It returns an error
	// wrapping ErrNotSupported to decline; any other error is fatal.
	InitPrograms(ctx *Context, programs *SourceCollections) error
}

// Group is an inner node of the hierarchy.
type Group struct {
	name     string
	Children []Node
}

// NewGroup creates a group with the given children.
func NewGroup(name string, children ...Node) *Group {
	return &Group{name: name, Children: children}
}

// Name implements Node.
func (g *Group) Name() string { return g.name }

// Add appends children to the group.
func (g *Group) Add(children ...Node) {
	g.Children = append(g.Children, children...)
}

// CountCases returns the number of test cases below g.
func (g *Group) CountCases() int {
	n := 0
	for _, c := range g.Children {
		switch c := c.(type) {
		case *Group:
			n += c.CountCases()
		case TestCase:
			n++
		}
	}
	return n
}

// InitFunc is the InitPrograms body of a case built with NewCase.
type InitFunc func(ctx *Context, programs *SourceCollections) error

type funcCase struct {
	name string
	init InitFunc
}

// NewCase creates a test case whose InitPrograms calls fn.
// A nil fn declares no programs.
func NewCase(name string, fn InitFunc) TestCase {
	return &funcCase{name: name, init: fn}
}

func (c *funcCase) Name() string { return c.name }

func (c *funcCase) InitPrograms(ctx *Context, programs *SourceCollections) error {
	if c.init == nil {
		return nil
	}
	return c.init(ctx, programs)
}

// ProgramSource is one named program declared by a case.
type ProgramSource struct {
	Name   string
	Source shader.Source
}

// SourceCollections accumulates the programs a case declares.
type SourceCollections struct {
	programs []ProgramSource
	names    map[string]struct{}
}

// NewSourceCollections returns an empty collection.
func NewSourceCollections() *SourceCollections {
	return &SourceCollections{names: make(map[string]struct{})}
}

// Add declares a program. Names must be unique within a case.
func (sc *SourceCollections) Add(name string, src shader.Source) error {
	if sc.names == nil {
		sc.names = make(map[string]struct{})
	}
	if _, dup := sc.names[name]; dup {
		return fmt.Errorf("%w: %q", ErrDuplicateProgram, name)
	}
	sc.names[name] = struct{}{}
	sc.programs = append(sc.programs, ProgramSource{Name: name, Source: src})
	return nil
}

// Programs returns the declared programs in declaration order.
func (sc *SourceCollections) Programs() []ProgramSource {
	return sc.programs
}

// Len returns the number of declared programs.
func (sc *SourceCollections) Len() int {
	return len(sc.programs)
}
