package testpkg

import (
	"context"
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// Filter selects test cases by path.
//
// A pattern matches a case when it equals the case path, names one of its
// ancestors (a subtree), or matches it as a glob where '*' spans dots.
// The nil *Filter matches everything.
type Filter struct {
	pattern string
	glob    glob.Glob
}

// ParseFilter compiles pattern. An empty pattern returns a nil filter.
func ParseFilter(pattern string) (*Filter, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return nil, nil
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("testpkg: invalid case filter %q: %w", pattern, err)
	}
	return &Filter{pattern: pattern, glob: g}, nil
}

// Match reports whether the case at path is selected.
func (f *Filter) Match(path string) bool {
	if f == nil {
		return true
	}
	if path == f.pattern || strings.HasPrefix(path, f.pattern+".") {
		return true
	}
	return f.glob.Match(path)
}

func (f *Filter) String() string {
	if f == nil {
		return "*"
	}
	return f.pattern
}

// VisitFunc is called for every selected test case.
// Returning an error stops the walk.
type VisitFunc func(path string, tc TestCase) error

// Walk visits the test cases below root depth-first in declaration order.
// Cancelling ctx stops the walk before the next case.
func Walk(ctx context.Context, root *Group, filter *Filter, visit VisitFunc) error {
	if root == nil {
		return nil
	}
	return walkGroup(ctx, root, root.Name(), filter, visit)
}

func walkGroup(ctx context.Context, g *Group, prefix string, filter *Filter, visit VisitFunc) error {
	for _, child := range g.Children {
		if child == nil {
			continue
		}
		path := prefix + "." + child.Name()
		switch c := child.(type) {
		case *Group:
			if err := walkGroup(ctx, c, path, filter, visit); err != nil {
				return err
			}
		case TestCase:
			if !filter.Match(path) {
				continue
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := visit(path, c); err != nil {
				return err
			}
		default:
			return fmt.Errorf("testpkg: %s: unsupported node type %T", path, child)
		}
	}
	return nil
}
