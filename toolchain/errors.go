package toolchain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gogpu/progbuild/shader"
)

// Sentinel errors.
var (
	// ErrToolNotFound is returned when an external tool cannot be executed.
	ErrToolNotFound = errors.New("toolchain: tool not found")

	// ErrUnsupportedLanguage is returned when no compiler handles a language.
	ErrUnsupportedLanguage = errors.New("toolchain: unsupported language")
)

// StageLog is the compiler output for one shader stage.
type StageLog struct {
	Stage   shader.Stage
	Source  string
	InfoLog string
}

// CompileError is returned by a Compiler that rejected its input.
// It carries the per-stage sources and info logs plus the link log.
type CompileError struct {
	Stages  []StageLog
	LinkLog string
}

func (e *CompileError) Error() string {
	for _, s := range e.Stages {
		if line := firstLine(s.InfoLog); line != "" {
			return fmt.Sprintf("toolchain: %s: %s", s.Stage, line)
		}
	}
	if line := firstLine(e.LinkLog); line != "" {
		return "toolchain: link: " + line
	}
	return "toolchain: compilation failed"
}

// Log renders every stage source and info log followed by the link log.
func (e *CompileError) Log() string {
	var sb strings.Builder
	for _, s := range e.Stages {
		fmt.Fprintf(&sb, "%s source:\n%s\n", s.Stage, strings.TrimRight(s.Source, "\n"))
		fmt.Fprintf(&sb, "%s info log:\n%s\n", s.Stage, strings.TrimRight(s.InfoLog, "\n"))
	}
	fmt.Fprintf(&sb, "link log:\n%s\n", strings.TrimRight(e.LinkLog, "\n"))
	return sb.String()
}

// AssemblyError is returned by an Assembler that rejected its input.
type AssemblyError struct {
	// Line and Column are 1-based; zero when the assembler did not report one.
	Line    int
	Column  int
	Message string
}

func (e *AssemblyError) Error() string {
	if e.Line == 0 {
		return "toolchain: assembly: " + e.Message
	}
	return fmt.Sprintf("toolchain: assembly: %d:%d: %s", e.Line, e.Column, e.Message)
}

// Log renders the diagnostic in the form stored in a program build log.
func (e *AssemblyError) Log() string {
	if e.Line == 0 {
		return e.Message + "\n"
	}
	return fmt.Sprintf("%d:%d: %s\n", e.Line, e.Column, e.Message)
}

// ValidationError is returned by a Validator that rejected a binary.
type ValidationError struct {
	Validator string
	Log       string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("toolchain: %s validation failed: %s", e.Validator, firstLine(e.Log))
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
