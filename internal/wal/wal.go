// Package wal carries key-management metadata writes through the write-ahead
// log.  Every durable mutation (a key provider record, a principal key
// descriptor) is appended as a Record strictly before the backing file is
// written, and is replayed byte-identically at recovery through a Manager of
// registered redo handlers.
//
// The Appender is the narrow contract an embedding engine provides.  The
// SegmentAppender in this package is the standalone implementation used by
// the CLI and by tests.
package wal

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/tde/internal/errors"
	"github.com/hashicorp/tde/internal/types/scope"
)

// RecordType identifies the redo handler for a record.
type RecordType uint8

const (
	RecordTypeUnknown RecordType = iota

	// RecordTypeAddKeyProvider records a key provider write: an append, an
	// in-place change or a tombstone, all addressed by offset.
	RecordTypeAddKeyProvider

	// RecordTypeSetPrincipalKey records a principal key descriptor write,
	// both the initial set and a rotation.
	RecordTypeSetPrincipalKey
)

// String returns a representation of the RecordType
func (t RecordType) String() string {
	switch t {
	case RecordTypeAddKeyProvider:
		return "add-key-provider"
	case RecordTypeSetPrincipalKey:
		return "set-principal-key"
	default:
		return "unknown"
	}
}

// Record is one WAL entry: the full on-disk record bytes for a scope,
// addressed by the offset they are (re)written at.
type Record struct {
	Type    RecordType
	Scope   scope.Scope
	Offset  uint64
	Payload []byte
}

// Appender appends records to the write-ahead log.  Append must not return
// before the record is durably staged: callers write their backing file only
// after Append returns.
type Appender interface {
	Append(ctx context.Context, r Record) error
}

// HandlerFunc applies one replayed record.  Implementations must be
// idempotent: recovery may deliver the same record more than once.
type HandlerFunc func(ctx context.Context, r Record) error

// Manager dispatches replayed records to the handler registered for their
// type.
type Manager struct {
	mu       sync.RWMutex
	handlers map[RecordType]HandlerFunc
}

// NewManager creates a Manager with no registered handlers.
func NewManager() *Manager {
	return &Manager{
		handlers: make(map[RecordType]HandlerFunc),
	}
}

// Register adds the handler for a record type.  A type can only be
// registered once.
func (m *Manager) Register(ctx context.Context, t RecordType, h HandlerFunc) error {
	const op = "wal.(Manager).Register"
	if t == RecordTypeUnknown {
		return errors.New(ctx, errors.InvalidParameter, op, "missing record type")
	}
	if h == nil {
		return errors.New(ctx, errors.InvalidParameter, op, "missing handler")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.handlers[t]; ok {
		return errors.New(ctx, errors.NotUnique, op, fmt.Sprintf("handler already registered for %q records", t.String()))
	}
	m.handlers[t] = h
	return nil
}

// Redo dispatches a single record to its handler.
func (m *Manager) Redo(ctx context.Context, r Record) error {
	const op = "wal.(Manager).Redo"
	m.mu.RLock()
	h, ok := m.handlers[r.Type]
	m.mu.RUnlock()
	if !ok {
		return errors.New(ctx, errors.Decode, op, fmt.Sprintf("no handler registered for record type %d", r.Type))
	}
	if err := h(ctx, r); err != nil {
		return errors.Wrap(ctx, err, op)
	}
	return nil
}
