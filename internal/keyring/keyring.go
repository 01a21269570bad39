package keyring

import (
	"context"

	"github.com/hashicorp/tde/internal/errors"
)

// MaxSecretSize is the largest secret a keyring stores or returns.
const MaxSecretSize = 512

// Keyring stores and retrieves named secrets for one provider.
type Keyring interface {
	// FetchSecret returns the secret stored under name, or nil with a nil
	// error when no secret with that name exists.
	FetchSecret(ctx context.Context, name string) (*Secret, error)

	// GenerateSecret creates a new random secret of length bytes, stores
	// it under name and returns it.  A secret with that name must not
	// already exist.
	GenerateSecret(ctx context.Context, name string, length int) (*Secret, error)
}

// Build constructs the keyring described by c.  Required fields missing
// from the configuration, including fields whose indirection failed to
// resolve, are reported here.
func Build(ctx context.Context, c Config, opt ...Option) (Keyring, error) {
	const op = "keyring.Build"
	if c == nil {
		return nil, errors.New(ctx, errors.InvalidParameter, op, "missing configuration")
	}
	switch conf := c.(type) {
	case *FileConfig:
		if conf.Path == "" {
			return nil, errors.New(ctx, errors.InvalidConfiguration, op, "file keyring requires a path")
		}
		return newFileKeyring(ctx, conf, opt...)
	case *VaultV2Config:
		switch {
		case len(conf.Token) == 0:
			return nil, errors.New(ctx, errors.InvalidConfiguration, op, "vault-v2 keyring requires a token")
		case conf.Address == "":
			return nil, errors.New(ctx, errors.InvalidConfiguration, op, "vault-v2 keyring requires a url")
		case conf.MountPath == "":
			return nil, errors.New(ctx, errors.InvalidConfiguration, op, "vault-v2 keyring requires a mountPath")
		}
		return newVaultV2Keyring(ctx, conf, opt...)
	default:
		return nil, errors.New(ctx, errors.InvalidParameter, op, "unknown configuration type")
	}
}

// BuildForProvider parses the provider's stored options and builds its
// keyring in one step.
func BuildForProvider(ctx context.Context, p *Provider, opt ...Option) (Keyring, error) {
	const op = "keyring.BuildForProvider"
	if p == nil {
		return nil, errors.New(ctx, errors.InvalidParameter, op, "missing provider")
	}
	c, err := ParseConfig(ctx, p.Type, p.Options, opt...)
	if err != nil {
		return nil, errors.Wrap(ctx, err, op)
	}
	k, err := Build(ctx, c, opt...)
	if err != nil {
		return nil, errors.Wrap(ctx, err, op)
	}
	return k, nil
}
