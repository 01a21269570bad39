package kms

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/hashicorp/tde/internal/keyring"
	"github.com/hashicorp/tde/internal/types/scope"
	"github.com/hashicorp/tde/internal/wal"
	"github.com/stretchr/testify/require"
)

// TestKms creates a Kms over a fresh temp directory and returns it along
// with the directory, so tests can place file provider stores inside it or
// build a second Kms over the same state.
func TestKms(t testing.TB, opt ...Option) (*Kms, string) {
	t.Helper()
	dir := t.TempDir()
	return TestKmsAt(t, dir, opt...), dir
}

// TestKmsAt creates a Kms over dir, reusing whatever registry, store and
// log state is already there.
func TestKmsAt(t testing.TB, dir string, opt ...Option) *Kms {
	t.Helper()
	require := require.New(t)
	ctx := context.Background()
	a, err := wal.NewSegmentAppender(ctx, dir)
	require.NoError(err)
	t.Cleanup(func() { a.Close() })
	r, err := keyring.NewRegistry(ctx, dir, a)
	require.NoError(err)
	s, err := NewStore(ctx, dir, a)
	require.NoError(err)
	k, err := New(ctx, r, s, opt...)
	require.NoError(err)
	t.Cleanup(func() { k.Shutdown(ctx) })
	return k
}

// TestFileProvider registers a file provider for the scope whose secret
// store lives under dir, named uniquely per provider and scope.
func TestFileProvider(t testing.TB, k *Kms, sc scope.Scope, name, dir string) *keyring.Provider {
	t.Helper()
	require := require.New(t)
	store := filepath.Join(dir, fmt.Sprintf("%s_%s.keyring", name, sc))
	p, err := k.CreateKeyProvider(context.Background(), sc, name, keyring.ProviderTypeFile,
		keyring.TestFileOptions(t, store))
	require.NoError(err)
	return p
}

// TestPrincipalKey sets a principal key for the scope through a fresh file
// provider and returns it.
func TestPrincipalKey(t testing.TB, k *Kms, sc scope.Scope, dir string) *PrincipalKey {
	t.Helper()
	require := require.New(t)
	p := TestFileProvider(t, k, sc, "default", dir)
	pk, err := k.CreatePrincipalKey(context.Background(), sc, "test-key", p.Name)
	require.NoError(err)
	return pk
}
