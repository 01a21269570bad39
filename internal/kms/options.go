package kms

import (
	"io"

	"github.com/hashicorp/tde/internal/keyring"
)

// getOpts - iterate the inbound Options and return a struct
func getOpts(opt ...Option) options {
	opts := getDefaultOptions()
	for _, o := range opt {
		o(&opts)
	}
	return opts
}

// Option - how Options are passed as arguments
type Option func(*options)

// options = how options are represented
type options struct {
	withEnsureNewKey    bool
	withNewKeyName      string
	withNewProviderName string
	withLockMemory      bool
	withRandomReader    io.Reader
	withKeyringOptions  []keyring.Option
}

func getDefaultOptions() options {
	return options{}
}

// WithEnsureNewKey requires the version probe to land on an unused
// versioned name, so brand-new key material is always generated.
func WithEnsureNewKey(ensure bool) Option {
	return func(o *options) {
		o.withEnsureNewKey = ensure
	}
}

// WithNewKeyName provides a new key name for rotation.  The rotated key
// restarts at the base version under this name.
func WithNewKeyName(name string) Option {
	return func(o *options) {
		o.withNewKeyName = name
	}
}

// WithNewProviderName provides a new provider for rotation; the rotated
// key's material is generated into (or adopted from) that provider.
func WithNewProviderName(name string) Option {
	return func(o *options) {
		o.withNewProviderName = name
	}
}

// WithLockMemory locks the whole process address space into physical
// memory at construction, on top of the per-key locked buffers.
func WithLockMemory(lock bool) Option {
	return func(o *options) {
		o.withLockMemory = lock
	}
}

// WithRandomReader provides an optional random reader for key generation,
// otherwise crypto/rand is used.
func WithRandomReader(r io.Reader) Option {
	return func(o *options) {
		o.withRandomReader = r
	}
}

// WithKeyringOptions provides options passed through to every keyring
// built by the Kms.
func WithKeyringOptions(opt ...keyring.Option) Option {
	return func(o *options) {
		o.withKeyringOptions = append(o.withKeyringOptions, opt...)
	}
}
