// Package kms is the principal key lifecycle manager.  It coordinates the
// provider registry, the per-scope descriptor store and the in-memory key
// cache: callers ask it for the principal key of a scope and it loads,
// creates or rotates that key through the scope's configured provider.
//
// All key material lives in locked buffers for as long as it is resident;
// the reserved global scope's key (the write-ahead log key) is pinned in a
// dedicated slot instead of the shared cache so it is available before and
// after the cache itself.
package kms

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-secure-stdlib/mlock"
	"github.com/hashicorp/tde/internal/errors"
	"github.com/hashicorp/tde/internal/event"
	"github.com/hashicorp/tde/internal/keyring"
	"github.com/hashicorp/tde/internal/types/scope"
	"github.com/hashicorp/tde/internal/wal"
)

// maxKeyVersions caps the version number the probe will consider.  It
// bounds the number of round trips to an external provider on a single
// operation; a key that has genuinely been rotated this many times needs a
// new name, not a higher version.
const maxKeyVersions = 1000

// baseKeyVersion is the version a brand-new key name starts at.
const baseKeyVersion = 0

// Kms manages the principal keys of every scope.  Construct one per
// process with New and share it; all operations are safe for concurrent
// use.
type Kms struct {
	registry *keyring.Registry
	store    *Store
	cache    *cache

	// locks serializes key operations per scope.  The registry keeps its
	// own per-scope lock for provider records; create and rotate hold the
	// key lock across their nested registry and store writes, so
	// descriptor persistence is serialized with cache mutation.
	locksMu sync.Mutex
	locks   map[scope.Scope]*sync.RWMutex

	// walKey pins the global scope's key outside the cache.  Guarded by
	// the global scope's entry in the lock table.
	walKey *PrincipalKey

	// keyringOpts is passed to every keyring built by this Kms.
	keyringOpts []keyring.Option
}

// New creates a Kms over the provider registry and the descriptor store.
// Supported options: WithLockMemory, WithRandomReader, WithKeyringOptions.
func New(ctx context.Context, registry *keyring.Registry, store *Store, opt ...Option) (*Kms, error) {
	const op = "kms.New"
	if registry == nil {
		return nil, errors.New(ctx, errors.InvalidParameter, op, "missing provider registry")
	}
	if store == nil {
		return nil, errors.New(ctx, errors.InvalidParameter, op, "missing key store")
	}
	opts := getOpts(opt...)
	if opts.withLockMemory {
		// A failed lock is an error, never a degrade to pageable memory.
		if err := mlock.LockMemory(); err != nil {
			return nil, errors.Wrap(ctx, err, op, errors.WithCode(errors.Internal),
				errors.WithMsg("failed to lock process memory into physical ram"))
		}
	}
	k := &Kms{
		registry: registry,
		store:    store,
		cache:    newCache(),
		locks:    make(map[scope.Scope]*sync.RWMutex),
	}
	if opts.withRandomReader != nil {
		k.keyringOpts = append(k.keyringOpts, keyring.WithRandomReader(opts.withRandomReader))
	}
	k.keyringOpts = append(k.keyringOpts, opts.withKeyringOptions...)
	return k, nil
}

// RegisterRedo registers the redo handlers of the registry and the store
// with the manager.  Call once before recovery replay.
func (k *Kms) RegisterRedo(ctx context.Context, m *wal.Manager) error {
	const op = "kms.(Kms).RegisterRedo"
	if err := k.registry.RegisterRedo(ctx, m); err != nil {
		return errors.Wrap(ctx, err, op)
	}
	if err := k.store.RegisterRedo(ctx, m); err != nil {
		return errors.Wrap(ctx, err, op)
	}
	return nil
}

func (k *Kms) lock(sc scope.Scope) *sync.RWMutex {
	k.locksMu.Lock()
	defer k.locksMu.Unlock()
	l, ok := k.locks[sc]
	if !ok {
		l = new(sync.RWMutex)
		k.locks[sc] = l
	}
	return l
}

// validateScope rejects scopes that borrow a reserved identifier without
// being the global scope itself.
func validateScope(ctx context.Context, op errors.Op, sc scope.Scope) error {
	if sc.IsGlobal() {
		return nil
	}
	if sc.DatabaseId == scope.GlobalDatabaseId {
		return errors.New(ctx, errors.InvalidParameter, op,
			fmt.Sprintf("database id %d is reserved for the global scope", scope.GlobalDatabaseId))
	}
	if sc.TablespaceId == scope.GlobalTablespaceId {
		return errors.New(ctx, errors.InvalidParameter, op,
			fmt.Sprintf("tablespace id %d is reserved for the global scope", scope.GlobalTablespaceId))
	}
	return nil
}

// resident returns the key already held for the scope, or nil.  Callers
// must hold the scope's lock, shared or exclusive.
func (k *Kms) resident(sc scope.Scope) *PrincipalKey {
	if sc.IsGlobal() {
		return k.walKey
	}
	return k.cache.lookup(sc.DatabaseId)
}

// install makes pk the resident key for its scope and returns the resident
// key, which is pk unless another writer got there first.  Callers must
// hold the scope's lock exclusively.
func (k *Kms) install(pk *PrincipalKey) *PrincipalKey {
	if pk.Scope().IsGlobal() {
		if k.walKey != nil {
			pk.Destroy()
			return k.walKey
		}
		k.walKey = pk
		return pk
	}
	winner, inserted := k.cache.insertOrGet(pk)
	if !inserted {
		pk.Destroy()
	}
	return winner
}

// swap replaces the resident key for pk's scope with pk, destroying the
// previous key.  Callers must hold the scope's lock exclusively.
func (k *Kms) swap(pk *PrincipalKey) {
	if pk.Scope().IsGlobal() {
		if k.walKey != nil {
			k.walKey.Destroy()
		}
		k.walKey = pk
		return
	}
	k.cache.replace(pk)
}

// GetPrincipalKey returns the principal key of the scope, loading it from
// the scope's provider on first use.  The fast path holds the scope lock
// shared; a miss escalates by releasing and reacquiring the lock
// exclusively, so the exclusive path re-checks residency before doing any
// work.  Absence of a stored descriptor is a user error: no principal key
// has been set for the scope yet.
//
// The returned key stays valid until the scope is rotated, removed or the
// Kms is shut down.  Callers needing material beyond that must fetch
// again.
func (k *Kms) GetPrincipalKey(ctx context.Context, sc scope.Scope) (*PrincipalKey, error) {
	const op = "kms.(Kms).GetPrincipalKey"
	if err := validateScope(ctx, op, sc); err != nil {
		return nil, err
	}
	l := k.lock(sc)
	l.RLock()
	if pk := k.resident(sc); pk != nil {
		l.RUnlock()
		return pk, nil
	}
	l.RUnlock()

	l.Lock()
	defer l.Unlock()
	pk, err := k.getLocked(ctx, sc)
	if err != nil {
		return nil, errors.Wrap(ctx, err, op)
	}
	return pk, nil
}

// getLocked loads and installs the scope's key.  The caller holds the
// scope's lock exclusively; because that lock was released between the
// shared check and here, residency is re-checked first.
func (k *Kms) getLocked(ctx context.Context, sc scope.Scope) (*PrincipalKey, error) {
	const op = "kms.(Kms).getLocked"
	if pk := k.resident(sc); pk != nil {
		return pk, nil
	}
	info, err := k.store.Read(ctx, sc)
	if err != nil {
		return nil, errors.Wrap(ctx, err, op)
	}
	if info == nil {
		return nil, errors.New(ctx, errors.KeyNotFound, op,
			fmt.Sprintf("no principal key is set for scope %s, set one first", sc))
	}
	pk, err := k.loadKey(ctx, info)
	if err != nil {
		return nil, errors.Wrap(ctx, err, op)
	}
	return k.install(pk), nil
}

// loadKey resolves the descriptor's provider and fetches the key material
// under the versioned name.  Two steps on purpose: the provider record and
// the key secret are independent lookups, and each absence means something
// different.
func (k *Kms) loadKey(ctx context.Context, info *KeyInfo) (*PrincipalKey, error) {
	const op = "kms.(Kms).loadKey"
	p, err := k.registry.LookupProviderById(ctx, info.Scope, info.ProviderId)
	if err != nil {
		return nil, errors.Wrap(ctx, err, op)
	}
	if p == nil {
		return nil, errors.New(ctx, errors.Corrupt, op,
			fmt.Sprintf("principal key %q in scope %s references provider id %d which does not exist",
				info.KeyId.Name, info.Scope, info.ProviderId))
	}
	kr, err := keyring.BuildForProvider(ctx, p, k.keyringOpts...)
	if err != nil {
		return nil, errors.Wrap(ctx, err, op)
	}
	s, err := kr.FetchSecret(ctx, info.KeyId.VersionedName())
	if err != nil {
		return nil, errors.Wrap(ctx, err, op)
	}
	if s == nil {
		return nil, errors.New(ctx, errors.KeyNotFound, op,
			fmt.Sprintf("provider %q has no secret named %q", p.Name, info.KeyId.VersionedName()))
	}
	pk, err := newPrincipalKey(ctx, *info, s.Value)
	if err != nil {
		return nil, errors.Wrap(ctx, err, op)
	}
	return pk, nil
}

// CreatePrincipalKey sets the scope's principal key for the first time.
// The material is stored with the named provider under the key's versioned
// name: with WithEnsureNewKey the version probe finds an unused name and
// brand-new material is generated there, otherwise an existing secret
// under the name is adopted at its latest version and material is only
// generated when the provider has none.  A scope that already has a key
// rejects the call; rotate it instead.
func (k *Kms) CreatePrincipalKey(ctx context.Context, sc scope.Scope, keyName, providerName string, opt ...Option) (*PrincipalKey, error) {
	const op = "kms.(Kms).CreatePrincipalKey"
	if err := validateScope(ctx, op, sc); err != nil {
		return nil, err
	}
	switch {
	case keyName == "":
		return nil, errors.New(ctx, errors.InvalidParameter, op, "missing key name")
	case len(keyName) > MaxKeyNameLength:
		return nil, errors.New(ctx, errors.InvalidParameter, op,
			fmt.Sprintf("key name is %d bytes, the maximum is %d", len(keyName), MaxKeyNameLength))
	case providerName == "":
		return nil, errors.New(ctx, errors.InvalidParameter, op, "missing provider name")
	}
	opts := getOpts(opt...)

	l := k.lock(sc)
	l.Lock()
	defer l.Unlock()
	if pk := k.resident(sc); pk != nil {
		return nil, errors.New(ctx, errors.KeyAlreadySet, op,
			fmt.Sprintf("scope %s already has principal key %q, rotate it instead", sc, pk.KeyId().Name))
	}
	info, err := k.store.Read(ctx, sc)
	if err != nil {
		return nil, errors.Wrap(ctx, err, op)
	}
	if info != nil {
		return nil, errors.New(ctx, errors.KeyAlreadySet, op,
			fmt.Sprintf("scope %s already has principal key %q, rotate it instead", sc, info.KeyId.Name))
	}

	p, err := k.registry.LookupProviderByName(ctx, sc, providerName)
	if err != nil {
		return nil, errors.Wrap(ctx, err, op)
	}
	pk, err := k.establishKey(ctx, sc, KeyId{Name: keyName, Version: baseKeyVersion}, p, opts.withEnsureNewKey)
	if err != nil {
		return nil, errors.Wrap(ctx, err, op)
	}
	pk = k.install(pk)
	event.WriteSysEvent(ctx, op, "principal key created",
		"scope", sc.String(), "key", pk.VersionedName(), "provider", p.Name)
	return pk, nil
}

// RotatePrincipalKey moves the scope's principal key to its next version.
// Without options the new key keeps the current name and provider at
// version+1.  WithNewKeyName restarts at the base version under the new
// name; WithNewProviderName generates into (or adopts from) the named
// provider.  The descriptor is persisted first and the resident key is
// replaced only after persistence succeeds, inside the same exclusive
// critical section, so a concurrent get observes the old key or the new
// one and never a torn state.
func (k *Kms) RotatePrincipalKey(ctx context.Context, sc scope.Scope, opt ...Option) (*PrincipalKey, error) {
	const op = "kms.(Kms).RotatePrincipalKey"
	if err := validateScope(ctx, op, sc); err != nil {
		return nil, err
	}
	opts := getOpts(opt...)
	if len(opts.withNewKeyName) > MaxKeyNameLength {
		return nil, errors.New(ctx, errors.InvalidParameter, op,
			fmt.Sprintf("key name is %d bytes, the maximum is %d", len(opts.withNewKeyName), MaxKeyNameLength))
	}

	l := k.lock(sc)
	l.Lock()
	defer l.Unlock()
	current, err := k.store.Read(ctx, sc)
	if err != nil {
		return nil, errors.Wrap(ctx, err, op)
	}
	if current == nil {
		return nil, errors.New(ctx, errors.KeyNotFound, op,
			fmt.Sprintf("no principal key is set for scope %s, set one first", sc))
	}

	candidate := KeyId{Name: current.KeyId.Name, Version: current.KeyId.Version + 1}
	if opts.withNewKeyName != "" && opts.withNewKeyName != current.KeyId.Name {
		candidate = KeyId{Name: opts.withNewKeyName, Version: baseKeyVersion}
	}
	var p *keyring.Provider
	switch {
	case opts.withNewProviderName != "":
		p, err = k.registry.LookupProviderByName(ctx, sc, opts.withNewProviderName)
		if err != nil {
			return nil, errors.Wrap(ctx, err, op)
		}
	default:
		p, err = k.registry.LookupProviderById(ctx, sc, current.ProviderId)
		if err != nil {
			return nil, errors.Wrap(ctx, err, op)
		}
		if p == nil {
			return nil, errors.New(ctx, errors.Corrupt, op,
				fmt.Sprintf("principal key %q in scope %s references provider id %d which does not exist",
					current.KeyId.Name, sc, current.ProviderId))
		}
	}

	pk, err := k.establishKey(ctx, sc, candidate, p, opts.withEnsureNewKey)
	if err != nil {
		return nil, errors.Wrap(ctx, err, op)
	}
	k.swap(pk)
	event.WriteSysEvent(ctx, op, "principal key rotated",
		"scope", sc.String(), "key", pk.VersionedName(), "provider", p.Name)
	return pk, nil
}

// establishKey runs the version probe from the candidate id against the
// provider, generates material when the probe lands on an unused name,
// builds the key and persists its descriptor.  The caller holds the
// scope's lock exclusively and installs the returned key.
func (k *Kms) establishKey(ctx context.Context, sc scope.Scope, candidate KeyId, p *keyring.Provider, ensureNewKey bool) (*PrincipalKey, error) {
	const op = "kms.(Kms).establishKey"
	kr, err := keyring.BuildForProvider(ctx, p, k.keyringOpts...)
	if err != nil {
		return nil, errors.Wrap(ctx, err, op)
	}
	secret, version, err := probeLatestVersion(ctx, kr, candidate, ensureNewKey)
	if err != nil {
		return nil, errors.Wrap(ctx, err, op)
	}
	keyId := KeyId{Name: candidate.Name, Version: version}
	if secret == nil {
		secret, err = kr.GenerateSecret(ctx, keyId.VersionedName(), DefaultKeyLength)
		if err != nil {
			return nil, errors.Wrap(ctx, err, op)
		}
	}
	info := KeyInfo{
		Scope:      sc,
		KeyId:      keyId,
		ProviderId: p.Id,
		CreateTime: time.Now(),
	}
	pk, err := newPrincipalKey(ctx, info, secret.Value)
	if err != nil {
		return nil, errors.Wrap(ctx, err, op)
	}
	if err := k.store.Write(ctx, &info); err != nil {
		pk.Destroy()
		return nil, errors.Wrap(ctx, err, op)
	}
	return pk, nil
}

// probeLatestVersion walks versioned names upward from keyId.Version until
// the provider reports a miss.  With ensureNewKey false and at least one
// hit, it steps back one version and fetches that name again, returning
// the last existing version's secret; a provider that no longer returns a
// name it just reported is a hard error, not a cue to generate fresh
// material.  With ensureNewKey true, or no hit at all, it returns a nil
// secret positioned at the first unused version, telling the caller to
// generate there.  Version numbers beyond maxKeyVersions are fatal.
func probeLatestVersion(ctx context.Context, kr keyring.Keyring, keyId KeyId, ensureNewKey bool) (*keyring.Secret, uint32, error) {
	const op = "kms.probeLatestVersion"
	version := keyId.Version
	increments := 0
	for {
		if version > maxKeyVersions {
			return nil, 0, errors.New(ctx, errors.MaxKeyVersions, op,
				fmt.Sprintf("key %q exceeded the maximum of %d versions", keyId.Name, maxKeyVersions))
		}
		s, err := kr.FetchSecret(ctx, KeyId{Name: keyId.Name, Version: version}.VersionedName())
		if err != nil {
			return nil, 0, errors.Wrap(ctx, err, op)
		}
		if s == nil {
			break
		}
		version++
		increments++
	}
	if !ensureNewKey && increments > 0 {
		version--
		name := KeyId{Name: keyId.Name, Version: version}.VersionedName()
		s, err := kr.FetchSecret(ctx, name)
		if err != nil {
			return nil, 0, errors.Wrap(ctx, err, op)
		}
		if s == nil {
			return nil, 0, errors.New(ctx, errors.KeyringRequest, op,
				fmt.Sprintf("provider no longer returns key %q seen during the version probe", name))
		}
		return s, version, nil
	}
	return nil, version, nil
}

// KeyDescription is the descriptor of a scope's principal key joined with
// its provider record.  It never contains key material.
type KeyDescription struct {
	Scope        scope.Scope
	KeyId        KeyId
	ProviderId   uint32
	ProviderName string
	ProviderType keyring.ProviderType
	CreateTime   time.Time
}

// PrincipalKeyInfo describes the scope's principal key without touching
// its material: the stored descriptor joined with its provider record.
func (k *Kms) PrincipalKeyInfo(ctx context.Context, sc scope.Scope) (*KeyDescription, error) {
	const op = "kms.(Kms).PrincipalKeyInfo"
	if err := validateScope(ctx, op, sc); err != nil {
		return nil, err
	}
	l := k.lock(sc)
	l.RLock()
	defer l.RUnlock()
	info, err := k.store.Read(ctx, sc)
	if err != nil {
		return nil, errors.Wrap(ctx, err, op)
	}
	if info == nil {
		return nil, errors.New(ctx, errors.KeyNotFound, op,
			fmt.Sprintf("no principal key is set for scope %s, set one first", sc))
	}
	p, err := k.registry.LookupProviderById(ctx, sc, info.ProviderId)
	if err != nil {
		return nil, errors.Wrap(ctx, err, op)
	}
	if p == nil {
		return nil, errors.New(ctx, errors.Corrupt, op,
			fmt.Sprintf("principal key %q in scope %s references provider id %d which does not exist",
				info.KeyId.Name, sc, info.ProviderId))
	}
	return &KeyDescription{
		Scope:        info.Scope,
		KeyId:        info.KeyId,
		ProviderId:   info.ProviderId,
		ProviderName: p.Name,
		ProviderType: p.Type,
		CreateTime:   info.CreateTime,
	}, nil
}

// VerifyPrincipalKey checks that the scope's principal key is loadable:
// the descriptor exists, its provider record resolves and the provider
// still returns the versioned secret.  Nothing is cached; this is the
// health check behind provider reconfiguration.
func (k *Kms) VerifyPrincipalKey(ctx context.Context, sc scope.Scope) error {
	const op = "kms.(Kms).VerifyPrincipalKey"
	if err := validateScope(ctx, op, sc); err != nil {
		return err
	}
	l := k.lock(sc)
	l.RLock()
	defer l.RUnlock()
	info, err := k.store.Read(ctx, sc)
	if err != nil {
		return errors.Wrap(ctx, err, op)
	}
	if info == nil {
		return errors.New(ctx, errors.KeyNotFound, op,
			fmt.Sprintf("no principal key is set for scope %s, set one first", sc))
	}
	p, err := k.registry.LookupProviderById(ctx, sc, info.ProviderId)
	if err != nil {
		return errors.Wrap(ctx, err, op)
	}
	if p == nil {
		return errors.New(ctx, errors.Corrupt, op,
			fmt.Sprintf("principal key %q in scope %s references provider id %d which does not exist",
				info.KeyId.Name, sc, info.ProviderId))
	}
	kr, err := keyring.BuildForProvider(ctx, p, k.keyringOpts...)
	if err != nil {
		return errors.Wrap(ctx, err, op)
	}
	s, err := kr.FetchSecret(ctx, info.KeyId.VersionedName())
	if err != nil {
		return errors.Wrap(ctx, err, op)
	}
	if s == nil {
		return errors.New(ctx, errors.KeyNotFound, op,
			fmt.Sprintf("provider %q has no secret named %q", p.Name, info.KeyId.VersionedName()))
	}
	return nil
}

// LoadWALKey loads the cluster's write-ahead log key into its pinned slot.
// Call at startup, before any WAL data needs the key; the slot lives
// outside the shared cache so it remains available across cache teardown.
func (k *Kms) LoadWALKey(ctx context.Context) (*PrincipalKey, error) {
	const op = "kms.(Kms).LoadWALKey"
	pk, err := k.GetPrincipalKey(ctx, scope.Global)
	if err != nil {
		return nil, errors.Wrap(ctx, err, op)
	}
	return pk, nil
}

// CreateWALKey sets the cluster's write-ahead log key for the first time.
func (k *Kms) CreateWALKey(ctx context.Context, keyName, providerName string, opt ...Option) (*PrincipalKey, error) {
	const op = "kms.(Kms).CreateWALKey"
	pk, err := k.CreatePrincipalKey(ctx, scope.Global, keyName, providerName, opt...)
	if err != nil {
		return nil, errors.Wrap(ctx, err, op)
	}
	return pk, nil
}

// RotateWALKey moves the cluster's write-ahead log key to its next
// version, updating the pinned slot instead of the cache.
func (k *Kms) RotateWALKey(ctx context.Context, opt ...Option) (*PrincipalKey, error) {
	const op = "kms.(Kms).RotateWALKey"
	pk, err := k.RotatePrincipalKey(ctx, scope.Global, opt...)
	if err != nil {
		return nil, errors.Wrap(ctx, err, op)
	}
	return pk, nil
}

// CreateKeyProvider registers a provider configuration in the scope.
func (k *Kms) CreateKeyProvider(ctx context.Context, sc scope.Scope, name string, typ keyring.ProviderType, options []byte) (*keyring.Provider, error) {
	const op = "kms.(Kms).CreateKeyProvider"
	if err := validateScope(ctx, op, sc); err != nil {
		return nil, err
	}
	p, err := k.registry.CreateProvider(ctx, sc, name, typ, options)
	if err != nil {
		return nil, errors.Wrap(ctx, err, op)
	}
	return p, nil
}

// LookupKeyProvider returns the scope's live provider with the name.
func (k *Kms) LookupKeyProvider(ctx context.Context, sc scope.Scope, name string) (*keyring.Provider, error) {
	const op = "kms.(Kms).LookupKeyProvider"
	if err := validateScope(ctx, op, sc); err != nil {
		return nil, err
	}
	p, err := k.registry.LookupProviderByName(ctx, sc, name)
	if err != nil {
		return nil, errors.Wrap(ctx, err, op)
	}
	return p, nil
}

// ListKeyProviders returns the scope's live providers in record order.
func (k *Kms) ListKeyProviders(ctx context.Context, sc scope.Scope) ([]*keyring.Provider, error) {
	const op = "kms.(Kms).ListKeyProviders"
	if err := validateScope(ctx, op, sc); err != nil {
		return nil, err
	}
	ps, err := k.registry.ListProviders(ctx, sc)
	if err != nil {
		return nil, errors.Wrap(ctx, err, op)
	}
	return ps, nil
}

// UpdateKeyProvider replaces the named provider's options.  The new
// options are not verified against the resident key here; run
// VerifyPrincipalKey afterwards to confirm the key is still loadable.
func (k *Kms) UpdateKeyProvider(ctx context.Context, sc scope.Scope, name string, options []byte) (*keyring.Provider, error) {
	const op = "kms.(Kms).UpdateKeyProvider"
	if err := validateScope(ctx, op, sc); err != nil {
		return nil, err
	}
	p, err := k.registry.UpdateProvider(ctx, sc, name, options)
	if err != nil {
		return nil, errors.Wrap(ctx, err, op)
	}
	return p, nil
}

// DeleteKeyProvider tombstones the named provider unless the scope's
// principal key descriptor still references it.  Deleting the provider
// that holds the active key would orphan the key material, so the check
// runs under the scope's key lock to serialize with create and rotate.
func (k *Kms) DeleteKeyProvider(ctx context.Context, sc scope.Scope, name string) error {
	const op = "kms.(Kms).DeleteKeyProvider"
	if err := validateScope(ctx, op, sc); err != nil {
		return err
	}
	l := k.lock(sc)
	l.Lock()
	defer l.Unlock()
	p, err := k.registry.LookupProviderByName(ctx, sc, name)
	if err != nil {
		return errors.Wrap(ctx, err, op)
	}
	info, err := k.store.Read(ctx, sc)
	if err != nil {
		return errors.Wrap(ctx, err, op)
	}
	if info != nil && info.ProviderId == p.Id {
		return errors.New(ctx, errors.ProviderInUse, op,
			fmt.Sprintf("provider %q holds principal key %q of scope %s and cannot be deleted",
				p.Name, info.KeyId.Name, sc))
	}
	if err := k.registry.DeleteProvider(ctx, sc, name); err != nil {
		return errors.Wrap(ctx, err, op)
	}
	return nil
}

// RemoveDatabaseKeys drops every trace of the scope's key state: the
// resident cache entry, the key descriptor and the provider registry
// file.  This is the database-drop hook; the host guarantees the database
// is gone, so the removals need no WAL records of their own.  The global
// scope cannot be removed.
func (k *Kms) RemoveDatabaseKeys(ctx context.Context, sc scope.Scope) error {
	const op = "kms.(Kms).RemoveDatabaseKeys"
	if sc.IsGlobal() {
		return errors.New(ctx, errors.InvalidParameter, op, "the global scope key cannot be removed")
	}
	if err := validateScope(ctx, op, sc); err != nil {
		return err
	}
	l := k.lock(sc)
	l.Lock()
	defer l.Unlock()
	k.cache.remove(sc.DatabaseId)
	if err := k.store.Delete(ctx, sc); err != nil {
		return errors.Wrap(ctx, err, op)
	}
	if err := k.registry.DeleteAllProviders(ctx, sc); err != nil {
		return errors.Wrap(ctx, err, op)
	}
	event.WriteSysEvent(ctx, op, "database key state removed", "scope", sc.String())
	return nil
}

// Shutdown destroys every resident key, the pinned write-ahead log key
// included.  The Kms must not be used afterwards.
func (k *Kms) Shutdown(ctx context.Context) {
	k.cache.clear()
	l := k.lock(scope.Global)
	l.Lock()
	defer l.Unlock()
	if k.walKey != nil {
		k.walKey.Destroy()
		k.walKey = nil
	}
}
