// Package events writes operator-facing attempt events as JSON lines.
package events

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Type labels one attempt event.
type Type string

const (
	TypeSubmitted Type = "submitted"
	TypeLanded    Type = "landed"
	TypeExpired   Type = "expired"
	TypeFailed    Type = "failed"
	TypeAbandoned Type = "abandoned"
	TypeRebuilt   Type = "rebuilt"
	TypeDuplicate Type = "duplicate_rejected"
	TypeSimulated Type = "simulated"
)

// Event is one attempt lifecycle record.
type Event struct {
	Time        time.Time `json:"time"`
	Type        Type      `json:"type"`
	ExecutionID string    `json:"execution_id,omitempty"`
	Identity    string    `json:"identity,omitempty"`
	BundleID    string    `json:"bundle_id,omitempty"`
	NetProfit   int64     `json:"net_profit,omitempty"`
	Rebuilds    int       `json:"rebuilds,omitempty"`
	Detail      string    `json:"detail,omitempty"`
}

// Emitter serializes events to a writer, one JSON object per line.
// Safe for concurrent use.
type Emitter struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time
}

// NewEmitter creates an Emitter over w.
func NewEmitter(w io.Writer) *Emitter {
	return &Emitter{w: w, now: time.Now}
}

// NewFileEmitter appends events to the given path.
func NewFileEmitter(path string) (*Emitter, *os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open events file: %w", err)
	}
	return NewEmitter(f), f, nil
}

// Emit writes one event. Emission failures are swallowed; the event
// stream is advisory and must never block the trading path.
func (e *Emitter) Emit(ev Event) {
	if e == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = e.now()
	}

	line, err := json.Marshal(ev)
	if err != nil {
		return
	}
	line = append(line, '\n')

	e.mu.Lock()
	defer e.mu.Unlock()
	e.w.Write(line)
}
