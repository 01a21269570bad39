package keyring

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hashicorp/tde/internal/errors"
	"github.com/hashicorp/tde/internal/event"
	"github.com/hashicorp/tde/internal/types/scope"
	"github.com/hashicorp/tde/internal/wal"
)

// Registry is the per-scope store of provider records.  Every mutation is
// appended to the write-ahead log strictly before the registry file is
// written, so recovery can replay the same bytes at the same offset.
type Registry struct {
	root     string
	appender wal.Appender

	// locks serializes access per scope registry file
	locksMu sync.Mutex
	locks   map[scope.Scope]*sync.RWMutex
}

// NewRegistry creates a Registry rooted at dir.  All mutations are logged
// through the appender before they reach the registry files.
func NewRegistry(ctx context.Context, dir string, appender wal.Appender) (*Registry, error) {
	const op = "keyring.NewRegistry"
	if dir == "" {
		return nil, errors.New(ctx, errors.InvalidParameter, op, "missing directory")
	}
	if appender == nil {
		return nil, errors.New(ctx, errors.InvalidParameter, op, "missing wal appender")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrap(ctx, err, op, errors.WithCode(errors.Io))
	}
	return &Registry{
		root:     dir,
		appender: appender,
		locks:    make(map[scope.Scope]*sync.RWMutex),
	}, nil
}

// RegisterRedo registers the registry's redo handler with the manager.
func (r *Registry) RegisterRedo(ctx context.Context, m *wal.Manager) error {
	const op = "keyring.(Registry).RegisterRedo"
	if m == nil {
		return errors.New(ctx, errors.InvalidParameter, op, "missing wal manager")
	}
	if err := m.Register(ctx, wal.RecordTypeAddKeyProvider, r.Redo); err != nil {
		return errors.Wrap(ctx, err, op)
	}
	return nil
}

func (r *Registry) filePath(sc scope.Scope) string {
	return filepath.Join(r.root, fmt.Sprintf("tde_%s_providers", sc.String()))
}

func (r *Registry) lock(sc scope.Scope) *sync.RWMutex {
	r.locksMu.Lock()
	defer r.locksMu.Unlock()
	l, ok := r.locks[sc]
	if !ok {
		l = new(sync.RWMutex)
		r.locks[sc] = l
	}
	return l
}

// readAll loads every record of the scope, tombstoned ones included.  A
// trailing partial record means the file is corrupt: that is surfaced as a
// fatal error, never repaired here.
func (r *Registry) readAll(ctx context.Context, sc scope.Scope) ([]*ProviderRecord, error) {
	const op = "keyring.(Registry).readAll"
	f, err := os.Open(r.filePath(sc))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(ctx, err, op, errors.WithCode(errors.Io))
	}
	defer f.Close()

	var recs []*ProviderRecord
	buf := make([]byte, RecordSize)
	for {
		n, err := io.ReadFull(f, buf)
		switch {
		case err == io.EOF:
			return recs, nil
		case err == io.ErrUnexpectedEOF:
			return nil, errors.New(ctx, errors.Corrupt, op,
				fmt.Sprintf("registry %s has a short record of %d bytes", r.filePath(sc), n))
		case err != nil:
			return nil, errors.Wrap(ctx, err, op, errors.WithCode(errors.Io))
		}
		rec, err := decodeProviderRecord(ctx, buf)
		if err != nil {
			return nil, errors.Wrap(ctx, err, op)
		}
		recs = append(recs, rec)
	}
}

// writeAt logs the record through the WAL and then writes it at the offset.
// The WAL append is strictly first: if the process dies between the two,
// recovery replays the identical bytes at the identical offset.
func (r *Registry) writeAt(ctx context.Context, sc scope.Scope, offset uint64, d []byte) error {
	const op = "keyring.(Registry).writeAt"
	if err := r.appender.Append(ctx, wal.Record{
		Type:    wal.RecordTypeAddKeyProvider,
		Scope:   sc,
		Offset:  offset,
		Payload: d,
	}); err != nil {
		return errors.Wrap(ctx, err, op)
	}
	if err := r.writeFileAt(ctx, sc, offset, d); err != nil {
		return errors.Wrap(ctx, err, op)
	}
	return nil
}

func (r *Registry) writeFileAt(ctx context.Context, sc scope.Scope, offset uint64, d []byte) error {
	const op = "keyring.(Registry).writeFileAt"
	f, err := os.OpenFile(r.filePath(sc), os.O_CREATE|os.O_WRONLY, 0o600)
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

// CreateProvider registers a new provider for the scope.  The record is
// appended after the existing records; its id is one past the highest ever
// assigned (tombstones included, ids are never reused); its name must be
// unique among the live records, compared case-insensitively.
func (r *Registry) CreateProvider(ctx context.Context, sc scope.Scope, name string, typ ProviderType, options []byte) (*Provider, error) {
	const op = "keyring.(Registry).CreateProvider"
	if !json.Valid(options) {
		return nil, errors.New(ctx, errors.InvalidConfiguration, op,
			fmt.Sprintf("options for provider %q are not valid json", name))
	}

	l := r.lock(sc)
	l.Lock()
	defer l.Unlock()

	recs, err := r.readAll(ctx, sc)
	if err != nil {
		return nil, errors.Wrap(ctx, err, op)
	}
	var maxId uint32
	for _, rec := range recs {
		if rec.Id > maxId {
			maxId = rec.Id
		}
		if !rec.Deleted && strings.EqualFold(rec.Name, name) {
			return nil, errors.New(ctx, errors.NotUnique, op,
				fmt.Sprintf("provider %q already exists in scope %s", name, sc))
		}
	}

	rec := &ProviderRecord{
		Id:      maxId + 1,
		Type:    typ,
		Name:    name,
		Options: options,
	}
	d, err := rec.encode(ctx)
	if err != nil {
		return nil, errors.Wrap(ctx, err, op)
	}
	offset := uint64(len(recs)) * RecordSize
	if err := r.writeAt(ctx, sc, offset, d); err != nil {
		return nil, errors.Wrap(ctx, err, op)
	}
	event.WriteSysEvent(ctx, op, "key provider created",
		"scope", sc.String(), "name", name, "type", typ.String(), "id", rec.Id)
	return &Provider{ProviderRecord: *rec, Scope: sc}, nil
}

// LookupProviderByName returns the live provider with the name (compared
// case-insensitively).  A miss is an error: callers asked for it by name and
// need to know it isn't there.
func (r *Registry) LookupProviderByName(ctx context.Context, sc scope.Scope, name string) (*Provider, error) {
	const op = "keyring.(Registry).LookupProviderByName"
	l := r.lock(sc)
	l.RLock()
	defer l.RUnlock()

	recs, err := r.readAll(ctx, sc)
	if err != nil {
		return nil, errors.Wrap(ctx, err, op)
	}
	for _, rec := range recs {
		if !rec.Deleted && strings.EqualFold(rec.Name, name) {
			return &Provider{ProviderRecord: *rec, Scope: sc}, nil
		}
	}
	return nil, errors.New(ctx, errors.RecordNotFound, op,
		fmt.Sprintf("provider %q not found in scope %s; providers are registered per database scope, check the scope it was created in", name, sc))
}

// LookupProviderById returns the provider with the id or nil if the scope
// has no such record.  Unlike the by-name lookup a miss is not an error:
// callers resolving a stored reference handle the nil themselves.
func (r *Registry) LookupProviderById(ctx context.Context, sc scope.Scope, id uint32) (*Provider, error) {
	const op = "keyring.(Registry).LookupProviderById"
	l := r.lock(sc)
	l.RLock()
	defer l.RUnlock()

	recs, err := r.readAll(ctx, sc)
	if err != nil {
		return nil, errors.Wrap(ctx, err, op)
	}
	for _, rec := range recs {
		if !rec.Deleted && rec.Id == id {
			return &Provider{ProviderRecord: *rec, Scope: sc}, nil
		}
	}
	return nil, nil
}

// ListProviders returns the live providers of the scope in record order.
func (r *Registry) ListProviders(ctx context.Context, sc scope.Scope) ([]*Provider, error) {
	const op = "keyring.(Registry).ListProviders"
	l := r.lock(sc)
	l.RLock()
	defer l.RUnlock()

	recs, err := r.readAll(ctx, sc)
	if err != nil {
		return nil, errors.Wrap(ctx, err, op)
	}
	var ps []*Provider
	for _, rec := range recs {
		if rec.Deleted {
			continue
		}
		ps = append(ps, &Provider{ProviderRecord: *rec, Scope: sc})
	}
	return ps, nil
}

// UpdateProvider replaces the options of the named live provider in place.
// The record keeps its id, type, name and offset, which is why WAL records
// carry offsets at all.
func (r *Registry) UpdateProvider(ctx context.Context, sc scope.Scope, name string, options []byte) (*Provider, error) {
	const op = "keyring.(Registry).UpdateProvider"
	if !json.Valid(options) {
		return nil, errors.New(ctx, errors.InvalidConfiguration, op,
			fmt.Sprintf("options for provider %q are not valid json", name))
	}

	l := r.lock(sc)
	l.Lock()
	defer l.Unlock()

	recs, err := r.readAll(ctx, sc)
	if err != nil {
		return nil, errors.Wrap(ctx, err, op)
	}
	for i, rec := range recs {
		if rec.Deleted || !strings.EqualFold(rec.Name, name) {
			continue
		}
		updated := *rec
		updated.Options = options
		d, err := updated.encode(ctx)
		if err != nil {
			return nil, errors.Wrap(ctx, err, op)
		}
		offset := uint64(i) * RecordSize
		if err := r.writeAt(ctx, sc, offset, d); err != nil {
			return nil, errors.Wrap(ctx, err, op)
		}
		event.WriteSysEvent(ctx, op, "key provider updated", "scope", sc.String(), "name", name)
		return &Provider{ProviderRecord: updated, Scope: sc}, nil
	}
	return nil, errors.New(ctx, errors.RecordNotFound, op,
		fmt.Sprintf("provider %q not found in scope %s", name, sc))
}

// DeleteProvider tombstones the named live provider in place.  Integrity
// against in-use providers is the lifecycle manager's check; the registry
// only guarantees the record mechanics.
func (r *Registry) DeleteProvider(ctx context.Context, sc scope.Scope, name string) error {
	const op = "keyring.(Registry).DeleteProvider"
	l := r.lock(sc)
	l.Lock()
	defer l.Unlock()

	recs, err := r.readAll(ctx, sc)
	if err != nil {
		return errors.Wrap(ctx, err, op)
	}
	for i, rec := range recs {
		if rec.Deleted || !strings.EqualFold(rec.Name, name) {
			continue
		}
		deleted := *rec
		deleted.Deleted = true
		d, err := deleted.encode(ctx)
		if err != nil {
			return errors.Wrap(ctx, err, op)
		}
		offset := uint64(i) * RecordSize
		if err := r.writeAt(ctx, sc, offset, d); err != nil {
			return errors.Wrap(ctx, err, op)
		}
		event.WriteSysEvent(ctx, op, "key provider deleted", "scope", sc.String(), "name", name)
		return nil
	}
	return errors.New(ctx, errors.RecordNotFound, op,
		fmt.Sprintf("provider %q not found in scope %s", name, sc))
}

// DeleteAllProviders removes the scope's registry file.  This is the scope
// reset path (dropping a database with no encrypted tables left); the drop
// itself is the host's durable action, so no WAL record is emitted here.
func (r *Registry) DeleteAllProviders(ctx context.Context, sc scope.Scope) error {
	const op = "keyring.(Registry).DeleteAllProviders"
	l := r.lock(sc)
	l.Lock()
	defer l.Unlock()

	if err := os.Remove(r.filePath(sc)); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(ctx, err, op, errors.WithCode(errors.Io))
	}
	return nil
}

// Redo replays one provider record: the payload bytes are written at the
// recorded offset exactly as they were first written.  No validation runs
// and no WAL record is emitted, so replaying twice converges on the same
// file.
func (r *Registry) Redo(ctx context.Context, rec wal.Record) error {
	const op = "keyring.(Registry).Redo"
	if len(rec.Payload) != RecordSize {
		return errors.New(ctx, errors.Corrupt, op,
			fmt.Sprintf("redo payload is %d bytes, want %d", len(rec.Payload), RecordSize))
	}
	l := r.lock(rec.Scope)
	l.Lock()
	defer l.Unlock()
	if err := r.writeFileAt(ctx, rec.Scope, rec.Offset, rec.Payload); err != nil {
		return errors.Wrap(ctx, err, op)
	}
	return nil
}
