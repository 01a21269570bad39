package keyring

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"

	"github.com/hashicorp/go-rootcerts"
	"github.com/hashicorp/go-uuid"
	"github.com/hashicorp/tde/internal/errors"
	vault "github.com/hashicorp/vault/api"
	"github.com/mitchellh/mapstructure"
)

// vaultSecretField is the field under which the key material is stored in
// a Vault KV v2 secret, base64 encoded.
const vaultSecretField = "key"

// vaultV2Keyring stores secrets in a Vault KV version 2 secrets engine,
// one KV secret per keyring secret.
type vaultV2Keyring struct {
	client       *vault.Client
	mountPath    string
	randomReader io.Reader
}

func newVaultV2Keyring(ctx context.Context, c *VaultV2Config, opt ...Option) (*vaultV2Keyring, error) {
	const op = "keyring.newVaultV2Keyring"
	if c == nil {
		return nil, errors.New(ctx, errors.InvalidParameter, op, "missing configuration")
	}
	opts := getOpts(opt...)
	r := opts.withRandomReader
	if r == nil {
		r = rand.Reader
	}

	vc := vault.DefaultConfig()
	vc.Address = c.Address
	if c.CaPath != "" {
		rootConfig := &rootcerts.Config{
			CAFile: c.CaPath,
		}
		tlsConfig := vc.HttpClient.Transport.(*http.Transport).TLSClientConfig
		if err := rootcerts.ConfigureTLS(tlsConfig, rootConfig); err != nil {
			return nil, errors.Wrap(ctx, err, op, errors.WithCode(errors.InvalidConfiguration),
				errors.WithMsg(fmt.Sprintf("configuring tls with ca %s", c.CaPath)))
		}
	}
	vClient, err := vault.NewClient(vc)
	if err != nil {
		return nil, errors.Wrap(ctx, err, op, errors.WithCode(errors.InvalidConfiguration))
	}
	vClient.SetToken(string(c.Token))

	return &vaultV2Keyring{
		client:       vClient,
		mountPath:    c.MountPath,
		randomReader: r,
	}, nil
}

// FetchSecret reads the KV secret stored under name.  A missing or deleted
// secret returns nil with a nil error.
func (k *vaultV2Keyring) FetchSecret(ctx context.Context, name string) (*Secret, error) {
	const op = "keyring.(vaultV2Keyring).FetchSecret"
	if name == "" {
		return nil, errors.New(ctx, errors.InvalidParameter, op, "missing secret name")
	}
	kv, err := k.client.KVv2(k.mountPath).Get(ctx, name)
	if err != nil {
		if errors.Is(err, vault.ErrSecretNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(ctx, err, op, errors.WithCode(errors.KeyringRequest),
			errors.WithMsg(fmt.Sprintf("vault: %s", k.client.Address())))
	}
	if kv == nil || kv.Data == nil {
		return nil, nil
	}
	var data struct {
		Key string `mapstructure:"key"`
	}
	if err := mapstructure.Decode(kv.Data, &data); err != nil {
		return nil, errors.Wrap(ctx, err, op, errors.WithCode(errors.Decode),
			errors.WithMsg(fmt.Sprintf("secret %q has an unexpected shape", name)))
	}
	if data.Key == "" {
		return nil, errors.New(ctx, errors.Decode, op,
			fmt.Sprintf("secret %q has no %s field", name, vaultSecretField))
	}
	value, err := base64.StdEncoding.DecodeString(data.Key)
	if err != nil {
		return nil, errors.Wrap(ctx, err, op, errors.WithCode(errors.Decode),
			errors.WithMsg(fmt.Sprintf("secret %q is not base64", name)))
	}
	if len(value) > MaxSecretSize {
		return nil, errors.New(ctx, errors.Decode, op,
			fmt.Sprintf("secret %q of %d bytes exceeds the %d byte limit", name, len(value), MaxSecretSize))
	}
	return &Secret{Name: name, Value: value}, nil
}

// GenerateSecret creates length random bytes and writes them under name
// with a check-and-set of zero, so only the first writer for a name wins.
func (k *vaultV2Keyring) GenerateSecret(ctx context.Context, name string, length int) (*Secret, error) {
	const op = "keyring.(vaultV2Keyring).GenerateSecret"
	switch {
	case name == "":
		return nil, errors.New(ctx, errors.InvalidParameter, op, "missing secret name")
	case length <= 0:
		return nil, errors.New(ctx, errors.InvalidParameter, op, "secret length must be positive")
	case length > MaxSecretSize:
		return nil, errors.New(ctx, errors.InvalidParameter, op,
			fmt.Sprintf("secret length %d exceeds the %d byte limit", length, MaxSecretSize))
	}
	existing, err := k.FetchSecret(ctx, name)
	if err != nil {
		return nil, errors.Wrap(ctx, err, op)
	}
	if existing != nil {
		return nil, errors.New(ctx, errors.NotUnique, op,
			fmt.Sprintf("secret %q already exists in vault mount %s", name, k.mountPath))
	}

	value, err := uuid.GenerateRandomBytesWithReader(length, k.randomReader)
	if err != nil {
		return nil, errors.Wrap(ctx, err, op, errors.WithCode(errors.GenKey))
	}
	data := map[string]interface{}{
		vaultSecretField: base64.StdEncoding.EncodeToString(value),
	}
	if _, err := k.client.KVv2(k.mountPath).Put(ctx, name, data, vault.WithCheckAndSet(0)); err != nil {
		return nil, errors.Wrap(ctx, err, op, errors.WithCode(errors.KeyringRequest),
			errors.WithMsg(fmt.Sprintf("vault: %s", k.client.Address())))
	}
	return &Secret{Name: name, Value: value}, nil
}
