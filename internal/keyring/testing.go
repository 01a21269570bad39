package keyring

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/hashicorp/tde/internal/types/scope"
	"github.com/hashicorp/tde/internal/wal"
	"github.com/stretchr/testify/require"
)

// TestRegistry creates a Registry rooted in a fresh temp directory, logging
// to a real segment appender in the same directory.
func TestRegistry(t testing.TB) (*Registry, *wal.SegmentAppender) {
	t.Helper()
	require := require.New(t)
	ctx := context.Background()
	dir := t.TempDir()
	a, err := wal.NewSegmentAppender(ctx, dir)
	require.NoError(err)
	t.Cleanup(func() { a.Close() })
	r, err := NewRegistry(ctx, dir, a)
	require.NoError(err)
	return r, a
}

// TestProvider registers a provider and returns it, failing the test on
// error.
func TestProvider(t testing.TB, r *Registry, sc scope.Scope, name string, typ ProviderType, options []byte) *Provider {
	t.Helper()
	require := require.New(t)
	p, err := r.CreateProvider(context.Background(), sc, name, typ, options)
	require.NoError(err)
	return p
}

// TestFileOptions returns a file provider configuration document pointing
// at path.
func TestFileOptions(t testing.TB, path string) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]string{"type": "file", "path": path})
	require.NoError(t, err)
	return b
}

// TestVaultV2Options returns a vault-v2 provider configuration document.
func TestVaultV2Options(t testing.TB, addr, token, mountPath string) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]string{
		"type":      "vault-v2",
		"token":     token,
		"url":       addr,
		"mountPath": mountPath,
	})
	require.NoError(t, err)
	return b
}
