package progbuild

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// discard drops every record. Enabled reports false, so callers never pay
// for building attributes while logging is off.
type discard struct{}

func (discard) Enabled(context.Context, slog.Level) bool  { return false }
func (discard) Handle(context.Context, slog.Record) error { return nil }
func (discard) WithAttrs([]slog.Attr) slog.Handler        { return discard{} }
func (discard) WithGroup(string) slog.Handler             { return discard{} }

func silentLogger() *slog.Logger { return slog.New(discard{}) }

// current is swapped atomically; workers log while the CLI may still be
// installing its handler.
var current atomic.Pointer[slog.Logger]

func init() {
	current.Store(silentLogger())
}

// SetLogger installs the logger shared by progbuild and its sub-packages.
// Nothing is logged until it is called; nil restores the silent default.
// It may be called at any time, from any goroutine.
//
// Levels:
//   - [slog.LevelDebug]: per program (cache hits, skipped sources, tool runs)
//   - [slog.LevelInfo]: pipeline phases and the final counts
//   - [slog.LevelWarn]: recovered task panics, missing optional tools
//
// For example, to see phase progress on stderr:
//
//	progbuild.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//		Level: slog.LevelInfo,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = silentLogger()
	}
	current.Store(l)
}

// Logger returns the installed logger. Sub-packages call it at log time
// rather than caching the result, so a later SetLogger takes effect.
func Logger() *slog.Logger {
	return current.Load()
}
