// Package config parses the tde CLI configuration file.
package config

import (
	"os"

	"github.com/hashicorp/hcl"
)

// Config is the configuration for the tde command line. All fields are
// optional; flags and environment variables take precedence over the file.
type Config struct {
	// DisableMlock skips locking process memory into physical ram before
	// key material is handled.
	DisableMlock bool `hcl:"disable_mlock"`

	// DataDir is the directory holding the key provider registry, the
	// principal key descriptors and the write-ahead log.
	DataDir string `hcl:"data_dir"`
}

func New() *Config {
	return &Config{}
}

// LoadFile loads the configuration from the given file.
func LoadFile(path string) (*Config, error) {
	d, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(string(d))
}

func Parse(d string) (*Config, error) {
	obj, err := hcl.Parse(d)
	if err != nil {
		return nil, err
	}

	result := New()
	if err := hcl.DecodeObject(result, obj); err != nil {
		return nil, err
	}

	return result, nil
}
