package kms

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/tde/internal/errors"
	"github.com/hashicorp/tde/internal/types/scope"
	"github.com/hashicorp/tde/internal/wal"
)

// Store persists one principal key descriptor per scope, a single fixed
// record at offset 0 of the scope's descriptor file.  Every write is
// appended to the write-ahead log strictly before the file write, with
// byte-identical redo.
//
// The store does not lock: the Kms serializes mutations per scope through
// its lock table, and redo runs only during recovery.
type Store struct {
	root     string
	appender wal.Appender
}

// NewStore creates a Store rooted at dir.
func NewStore(ctx context.Context, dir string, appender wal.Appender) (*Store, error) {
	const op = "kms.NewStore"
	if dir == "" {
		return nil, errors.New(ctx, errors.InvalidParameter, op, "missing directory")
	}
	if appender == nil {
		return nil, errors.New(ctx, errors.InvalidParameter, op, "missing wal appender")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrap(ctx, err, op, errors.WithCode(errors.Io))
	}
	return &Store{root: dir, appender: appender}, nil
}

// RegisterRedo registers the store's redo handler with the manager.
func (s *Store) RegisterRedo(ctx context.Context, m *wal.Manager) error {
	const op = "kms.(Store).RegisterRedo"
	if m == nil {
		return errors.New(ctx, errors.InvalidParameter, op, "missing wal manager")
	}
	if err := m.Register(ctx, wal.RecordTypeSetPrincipalKey, s.Redo); err != nil {
		return errors.Wrap(ctx, err, op)
	}
	return nil
}

func (s *Store) filePath(sc scope.Scope) string {
	return filepath.Join(s.root, fmt.Sprintf("tde_%s_principal", sc.String()))
}

// Write persists the descriptor, replacing any previous one for the scope.
// The WAL append is strictly first.
func (s *Store) Write(ctx context.Context, info *KeyInfo) error {
	const op = "kms.(Store).Write"
	if info == nil {
		return errors.New(ctx, errors.InvalidParameter, op, "missing key info")
	}
	d, err := info.encode(ctx)
	if err != nil {
		return errors.Wrap(ctx, err, op)
	}
	if err := s.appender.Append(ctx, wal.Record{
		Type:    wal.RecordTypeSetPrincipalKey,
		Scope:   info.Scope,
		Offset:  0,
		Payload: d,
	}); err != nil {
		return errors.Wrap(ctx, err, op)
	}
	if err := s.writeFileAt(ctx, info.Scope, 0, d); err != nil {
		return errors.Wrap(ctx, err, op)
	}
	return nil
}

// Read returns the scope's descriptor, or nil when none has been set.
func (s *Store) Read(ctx context.Context, sc scope.Scope) (*KeyInfo, error) {
	const op = "kms.(Store).Read"
	d, err := os.ReadFile(s.filePath(sc))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(ctx, err, op, errors.WithCode(errors.Io))
	}
	if len(d) != KeyInfoSize {
		return nil, errors.New(ctx, errors.Corrupt, op,
			fmt.Sprintf("descriptor file %s is %d bytes, want %d", s.filePath(sc), len(d), KeyInfoSize))
	}
	info, err := decodeKeyInfo(ctx, d)
	if err != nil {
		return nil, errors.Wrap(ctx, err, op)
	}
	if info.Scope != sc {
		return nil, errors.New(ctx, errors.Corrupt, op,
			fmt.Sprintf("descriptor file %s records scope %s", s.filePath(sc), info.Scope))
	}
	return info, nil
}

// Delete removes the scope's descriptor file.  Removing an absent
// descriptor is not an error.
func (s *Store) Delete(ctx context.Context, sc scope.Scope) error {
	const op = "kms.(Store).Delete"
	if err := os.Remove(s.filePath(sc)); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(ctx, err, op, errors.WithCode(errors.Io))
	}
	return nil
}

// Redo replays one descriptor write exactly as first written.  No
// validation runs and no WAL record is emitted; replaying twice converges
// on the same file.
func (s *Store) Redo(ctx context.Context, rec wal.Record) error {
	const op = "kms.(Store).Redo"
	if len(rec.Payload) != KeyInfoSize {
		return errors.New(ctx, errors.Corrupt, op,
			fmt.Sprintf("redo payload is %d bytes, want %d", len(rec.Payload), KeyInfoSize))
	}
	if err := s.writeFileAt(ctx, rec.Scope, rec.Offset, rec.Payload); err != nil {
		return errors.Wrap(ctx, err, op)
	}
	return nil
}

func (s *Store) writeFileAt(ctx context.Context, sc scope.Scope, offset uint64, d []byte) error {
	const op = "kms.(Store).writeFileAt"
	f, err := os.OpenFile(s.filePath(sc), os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return errors.Wrap(ctx, err, op, errors.WithCode(errors.Io))
	}
	defer f.Close()
	if _, err := f.WriteAt(d, int64(offset)); err != nil {
		return errors.Wrap(ctx, err, op, errors.WithCode(errors.Io))
	}
	if err := f.Sync(); err != nil {
		return errors.Wrap(ctx, err, op, errors.WithCode(errors.Io))
	}
	return nil
}
