package keyring

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// externalVaultConfig is the environment of the opt-in test against a real
// Vault server, e.g. one started with "vault server -dev".
type externalVaultConfig struct {
	VaultAddr  string `envconfig:"VAULT_ADDR"`  // e.g. "http://127.0.0.1:8200"
	VaultToken string `envconfig:"VAULT_TOKEN"` // e.g. the dev server root token
	MountPath  string `envconfig:"VAULT_MOUNT_PATH" default:"secret"`
}

// TestVaultV2Keyring_external exercises the fetch and generate contract
// against a real Vault server instead of the in-process fake.  Skipped unless
// VAULT_ADDR and VAULT_TOKEN are set.
func TestVaultV2Keyring_external(t *testing.T) {
	assert, require := assert.New(t), require.New(t)
	ctx := context.Background()

	var c externalVaultConfig
	require.NoError(envconfig.Process("", &c))
	if c.VaultAddr == "" || c.VaultToken == "" {
		t.Skip("VAULT_ADDR and VAULT_TOKEN are not set")
	}

	k, err := Build(ctx, &VaultV2Config{
		Token:     TokenSecret(c.VaultToken),
		Address:   c.VaultAddr,
		MountPath: c.MountPath,
	})
	require.NoError(err)

	// a name no earlier run can collide with
	name := fmt.Sprintf("tde-external-test-%d", time.Now().UnixNano())

	got, err := k.FetchSecret(ctx, name)
	require.NoError(err)
	assert.Nil(got)

	created, err := k.GenerateSecret(ctx, name, 32)
	require.NoError(err)
	require.Len(created.Value, 32)

	fetched, err := k.FetchSecret(ctx, name)
	require.NoError(err)
	require.NotNil(fetched)
	assert.Equal(created.Value, fetched.Value)

	// a second generate under the live name must refuse rather than
	// overwrite
	_, err = k.GenerateSecret(ctx, name, 32)
	require.Error(err)
}
