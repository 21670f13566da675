package logging

import (
	"sync"

	"github.com/apandit646/droploc/types"
)

// Entry is one recorded log call.
type Entry struct {
	Level  string
	Msg    string
	Fields map[string]any
}

// Recorder keeps every log call in memory so tests can assert on them.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

var _ types.Logger = (*Recorder)(nil)

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Entries returns a copy of the recorded entries.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Entry, len(r.entries))
	copy(out, r.entries)

	return out
}

// Count returns how many entries were logged at level with message msg.
func (r *Recorder) Count(level, msg string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, e := range r.entries {
		if e.Level == level && e.Msg == msg {
			n++
		}
	}

	return n
}

func (r *Recorder) Debug(msg string, keysAndValues ...any) { r.add("DEBUG", msg, keysAndValues) }
func (r *Recorder) Info(msg string, keysAndValues ...any)  { r.add("INFO", msg, keysAndValues) }
func (r *Recorder) Warn(msg string, keysAndValues ...any)  { r.add("WARN", msg, keysAndValues) }
func (r *Recorder) Error(msg string, keysAndValues ...any) { r.add("ERROR", msg, keysAndValues) }
func (r *Recorder) Fatal(msg string, keysAndValues ...any) { r.add("FATAL", msg, keysAndValues) }

func (r *Recorder) add(level, msg string, keysAndValues []any) {
	fields := make(map[string]any, len(keysAndValues)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if i+1 < len(keysAndValues) {
			fields[key] = keysAndValues[i+1]
		} else {
			fields[key] = nil
		}
	}

	r.mu.Lock()
	r.entries = append(r.entries, Entry{Level: level, Msg: msg, Fields: fields})
	r.mu.Unlock()
}
