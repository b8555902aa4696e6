// Package audit is the chronicle engine's diagnostic side channel
// (component C8): an append-only JSONL log of lifecycle events,
// grounded on the teacher's internal/audit package but rotated with
// gopkg.in/natefinch/lumberjack.v2 instead of a single
// indefinitely-growing file, since an engine running for a long
// process lifetime (unlike the teacher's per-command CLI invocation)
// needs bounded-size logs.
//
// The audit trail is diagnostic only: nothing in the engine ever reads
// it back to decide correctness. Losing it loses observability, never
// state.
package audit

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Entry is one chronicle lifecycle event.
type Entry struct {
	Timestamp time.Time `json:"ts"`
	Op        string    `json:"op"`
	DocID     string    `json:"docId"`
	Epoch     int       `json:"epoch,omitempty"`
	BranchID  string    `json:"branchId,omitempty"`
	Serial    int       `json:"serial,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

// Trail writes Entry lines to a rotating file. A nil *Trail (returned
// by New when path is empty) silently discards every Record call, so
// callers never need a nil check of their own.
type Trail struct {
	mu  sync.Mutex
	out *lumberjack.Logger
}

// New opens (creating if necessary) a rotating audit log at path. An
// empty path disables the trail: Record becomes a no-op.
func New(path string) *Trail {
	if path == "" {
		return nil
	}
	return &Trail{
		out: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		},
	}
}

// Record appends e as one JSON line. Errors are returned rather than
// swallowed: a broken audit trail should surface to an operator, but
// per package doc, it must never block or invalidate the caller's own
// operation result.
func (t *Trail) Record(e Entry) error {
	if t == nil {
		return nil
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	blob, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("audit: marshal entry: %w", err)
	}
	blob = append(blob, '\n')

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.out.Write(blob); err != nil {
		return fmt.Errorf("audit: write entry: %w", err)
	}
	return nil
}

// Close flushes and closes the rotating log file.
func (t *Trail) Close() error {
	if t == nil {
		return nil
	}
	if err := t.out.Close(); err != nil {
		return fmt.Errorf("audit: close: %w", err)
	}
	return nil
}
