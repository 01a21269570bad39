package keyring

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hashicorp/tde/internal/errors"
	"github.com/hashicorp/tde/internal/types/scope"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tests := []struct {
		name         string
		conf         Config
		wantErrMatch *errors.Template
	}{
		{
			name: "file",
			conf: &FileConfig{Path: "/var/lib/keyring"},
		},
		{
			name: "vault-v2",
			conf: &VaultV2Config{
				Token:     TokenSecret("t"),
				Address:   "https://vault.internal:8200",
				MountPath: "tde",
			},
		},
		{
			name:         "nil",
			conf:         nil,
			wantErrMatch: errors.T(errors.InvalidParameter),
		},
		{
			name:         "file-missing-path",
			conf:         &FileConfig{},
			wantErrMatch: errors.T(errors.InvalidConfiguration),
		},
		{
			name: "vault-v2-missing-token",
			conf: &VaultV2Config{
				Address:   "https://vault.internal:8200",
				MountPath: "tde",
			},
			wantErrMatch: errors.T(errors.InvalidConfiguration),
		},
		{
			name: "vault-v2-missing-url",
			conf: &VaultV2Config{
				Token:     TokenSecret("t"),
				MountPath: "tde",
			},
			wantErrMatch: errors.T(errors.InvalidConfiguration),
		},
		{
			name: "vault-v2-missing-mount-path",
			conf: &VaultV2Config{
				Token:   TokenSecret("t"),
				Address: "https://vault.internal:8200",
			},
			wantErrMatch: errors.T(errors.InvalidConfiguration),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			got, err := Build(ctx, tt.conf)
			if tt.wantErrMatch != nil {
				require.Error(err)
				assert.True(errors.Match(tt.wantErrMatch, err), "unexpected error %v", err)
				return
			}
			require.NoError(err)
			require.NotNil(got)
		})
	}
}

func TestBuildForProvider(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	sc := scope.ForDatabase(5)

	t.Run("file-round-trip", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		r, _ := TestRegistry(t)
		store := filepath.Join(t.TempDir(), "keyring")
		p := TestProvider(t, r, sc, "local", ProviderTypeFile, TestFileOptions(t, store))

		k, err := BuildForProvider(ctx, p)
		require.NoError(err)
		created, err := k.GenerateSecret(ctx, "tde5-key_0", 32)
		require.NoError(err)

		// a fresh keyring built from the same provider reads the same
		// secret
		again, err := BuildForProvider(ctx, p)
		require.NoError(err)
		got, err := again.FetchSecret(ctx, "tde5-key_0")
		require.NoError(err)
		require.NotNil(got)
		assert.Equal(created.Value, got.Value)
	})
	t.Run("vault-v2", func(t *testing.T) {
		require := require.New(t)
		r, _ := TestRegistry(t)
		p := TestProvider(t, r, sc, "corp-vault", ProviderTypeVaultV2,
			TestVaultV2Options(t, "https://vault.internal:8200", "t", "tde"))
		k, err := BuildForProvider(ctx, p)
		require.NoError(err)
		require.IsType(&vaultV2Keyring{}, k)
	})
	t.Run("missing-provider", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		_, err := BuildForProvider(ctx, nil)
		require.Error(err)
		assert.True(errors.Match(errors.T(errors.InvalidParameter), err))
	})
	t.Run("unresolvable-required-field", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		r, _ := TestRegistry(t)
		p := TestProvider(t, r, sc, "broken", ProviderTypeFile,
			[]byte(`{"type":"file","path":{"type":"file","path":"/no/such/value"}}`))
		_, err := BuildForProvider(ctx, p)
		require.Error(err)
		assert.True(errors.IsConfigurationError(err))
	})
}
