package keyring

import (
	"io"

	"github.com/hashicorp/go-retryablehttp"
)

// getOpts - iterate the inbound Options and return a struct
func getOpts(opt ...Option) options {
	opts := getDefaultOptions()
	for _, o := range opt {
		if o != nil {
			o(&opts)
		}
	}
	return opts
}

// Option - how Options are passed as arguments
type Option func(*options)

// options = how options are represented
type options struct {
	withIndirectionClient *retryablehttp.Client
	withRandomReader      io.Reader
}

func getDefaultOptions() options {
	return options{}
}

// WithIndirectionClient provides the http client used to resolve remote
// configuration indirections.  Mostly useful for tests.
func WithIndirectionClient(c *retryablehttp.Client) Option {
	return func(o *options) {
		o.withIndirectionClient = c
	}
}

// WithRandomReader provides an optional random reader for secret
// generation, otherwise crypto/rand is used.
func WithRandomReader(r io.Reader) Option {
	return func(o *options) {
		o.withRandomReader = r
	}
}
