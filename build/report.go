package build

import (
	"fmt"
	"io"
	"strings"

	"github.com/muesli/termenv"
)

// Style decorates report text.
type Style struct {
	Heading func(string) string
	Fail    func(string) string
	Pass    func(string) string
}

func identity(s string) string { return s }

// PlainStyle leaves text undecorated.
func PlainStyle() Style {
	return Style{Heading: identity, Fail: identity, Pass: identity}
}

// TermStyle colors text for out's color profile. An Ascii profile yields
// plain text.
func TermStyle(out *termenv.Output) Style {
	paint := func(color string, bold bool) func(string) string {
		return func(s string) string {
			st := out.String(s).Foreground(out.Color(color))
			if bold {
				st = st.Bold()
			}
			return st.String()
		}
	}
	return Style{
		Heading: func(s string) string { return out.String(s).Bold().String() },
		Fail:    paint("1", true),
		Pass:    paint("2", false),
	}
}

func (s Style) orPlain() Style {
	if s.Heading == nil {
		s.Heading = identity
	}
	if s.Fail == nil {
		s.Fail = identity
	}
	if s.Pass == nil {
		s.Pass = identity
	}
	return s
}

// WriteReport prints one block per failed program followed by the summary
// line:
//
//	dEQP-VK.api.smoke.triangle / frag: build failed
//	<build log>
//
//	DONE: 1 passed, 1 failed, 0 not supported
func WriteReport(w io.Writer, res *Result, style Style) error {
	style = style.orPlain()

	for _, p := range res.Failures() {
		what, log := "build", p.BuildLog
		if p.BuildStatus == Passed {
			what, log = "validation", p.ValidationLog
		}
		head := fmt.Sprintf("%s / %s: %s failed", p.CasePath, p.Name, what)
		if _, err := fmt.Fprintf(w, "%s\n", style.Fail(head)); err != nil {
			return err
		}
		if log = strings.TrimRight(log, "\n"); log != "" {
			if _, err := fmt.Fprintf(w, "%s\n", log); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}

	passed := fmt.Sprintf("%d passed", res.Stats.NumSucceeded)
	failed := fmt.Sprintf("%d failed", res.Stats.NumFailed)
	if res.Stats.NumSucceeded > 0 {
		passed = style.Pass(passed)
	}
	if res.Stats.NumFailed > 0 {
		failed = style.Fail(failed)
	}
	_, err := fmt.Fprintf(w, "%s %s, %s, %d not supported\n",
		style.Heading("DONE:"), passed, failed, res.Stats.NotSupported)
	return err
}
