package dynamic

import (
	"context"
	"log/slog"
	"sync"
)

// entry is a log record reduced to what the tests assert on.
type entry struct {
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

// recorder is a slog.Handler that keeps every record it receives.
type recorder struct {
	mu      sync.Mutex
	entries []entry
}

func newRecorder() (*recorder, *slog.Logger) {
	rec := &recorder{}
	return rec, slog.New(rec)
}

func (rec *recorder) Enabled(context.Context, slog.Level) bool { return true }

func (rec *recorder) Handle(_ context.Context, r slog.Record) error {
	e := entry{Level: r.Level, Message: r.Message, Attrs: map[string]any{}}
	r.Attrs(func(a slog.Attr) bool {
		e.Attrs[a.Key] = a.Value.Any()
		return true
	})
	rec.mu.Lock()
	rec.entries = append(rec.entries, e)
	rec.mu.Unlock()
	return nil
}

func (rec *recorder) WithAttrs([]slog.Attr) slog.Handler { return rec }

func (rec *recorder) WithGroup(string) slog.Handler { return rec }

func (rec *recorder) Entries() []entry {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return append([]entry(nil), rec.entries...)
}

// atLevel returns the recorded entries with the given level.
func (rec *recorder) atLevel(level slog.Level) []entry {
	var out []entry
	for _, e := range rec.Entries() {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}
