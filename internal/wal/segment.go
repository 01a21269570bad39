package wal

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/hashicorp/tde/internal/errors"
	"github.com/hashicorp/tde/internal/event"
)

// SegmentFileName is the name of the standalone write-ahead log segment
// inside a data directory.
const SegmentFileName = "tde.wal"

// SegmentAppender is a durable Appender backed by a single append-only
// segment file.  It is the standalone runtime used by the CLI and by tests;
// an embedding engine provides its own Appender instead.
type SegmentAppender struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

// NewSegmentAppender opens (creating if needed) the segment file inside dir.
func NewSegmentAppender(ctx context.Context, dir string) (*SegmentAppender, error) {
	const op = "wal.NewSegmentAppender"
	if dir == "" {
		return nil, errors.New(ctx, errors.InvalidParameter, op, "missing directory")
	}
	path := filepath.Join(dir, SegmentFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, errors.Wrap(ctx, err, op, errors.WithCode(errors.Io),
			errors.WithMsg(fmt.Sprintf("unable to open segment %s", path)))
	}
	return &SegmentAppender{path: path, f: f}, nil
}

// Append encodes the record, writes it to the segment and syncs.  The record
// is durable when Append returns, which is what lets callers write their
// backing files afterwards.
func (a *SegmentAppender) Append(ctx context.Context, r Record) error {
	const op = "wal.(SegmentAppender).Append"
	d, err := EncodeRecord(ctx, r)
	if err != nil {
		return errors.Wrap(ctx, err, op)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.f == nil {
		return errors.New(ctx, errors.Io, op, "segment is closed")
	}
	if _, err := a.f.Write(d); err != nil {
		return errors.Wrap(ctx, err, op, errors.WithCode(errors.Io))
	}
	if err := a.f.Sync(); err != nil {
		return errors.Wrap(ctx, err, op, errors.WithCode(errors.Io))
	}
	return nil
}

// Path returns the segment file path.
func (a *SegmentAppender) Path() string {
	return a.path
}

// Close closes the segment file.
func (a *SegmentAppender) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.f == nil {
		return nil
	}
	err := a.f.Close()
	a.f = nil
	return err
}

// Replay reads the segment in dir from the beginning and dispatches every
// record through the manager.  Replay stops at the first record that does
// not decode cleanly: a torn tail is the expected shape of a crash, so it is
// reported as a system event, not an error.  It returns the number of
// records applied.
func Replay(ctx context.Context, dir string, m *Manager) (int, error) {
	const op = "wal.Replay"
	if dir == "" {
		return 0, errors.New(ctx, errors.InvalidParameter, op, "missing directory")
	}
	if m == nil {
		return 0, errors.New(ctx, errors.InvalidParameter, op, "missing manager")
	}
	path := filepath.Join(dir, SegmentFileName)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, errors.Wrap(ctx, err, op, errors.WithCode(errors.Io))
	}
	defer f.Close()

	var applied int
	for {
		rec, err := DecodeRecord(ctx, f)
		switch {
		case err == io.EOF:
			return applied, nil
		case err == io.ErrUnexpectedEOF || errors.IsCorruptError(err):
			// first invalid record ends the log
			pos, _ := f.Seek(0, io.SeekCurrent)
			event.WriteSysEvent(ctx, op, "stopping replay at invalid record",
				"segment", path, "applied", applied, "position", pos)
			return applied, nil
		case err != nil:
			return applied, errors.Wrap(ctx, err, op)
		}
		if err := m.Redo(ctx, *rec); err != nil {
			return applied, errors.Wrap(ctx, err, op)
		}
		applied++
	}
}
