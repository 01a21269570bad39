package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		want    *Config
		wantErr bool
	}{
		{
			name: "empty",
			in:   "",
			want: &Config{},
		},
		{
			name: "all fields",
			in: `
disable_mlock = true
data_dir = "/var/lib/tde"
`,
			want: &Config{
				DisableMlock: true,
				DataDir:      "/var/lib/tde",
			},
		},
		{
			name: "data dir only",
			in:   `data_dir = "/tmp/keys"`,
			want: &Config{
				DataDir: "/tmp/keys",
			},
		},
		{
			name:    "malformed",
			in:      `data_dir = `,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			got, err := Parse(tt.in)
			if tt.wantErr {
				require.Error(err)
				return
			}
			require.NoError(err)
			assert.Equal(tt.want, got)
		})
	}
}

func TestLoadFile(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "tde.hcl")
	require.NoError(os.WriteFile(path, []byte(`
disable_mlock = true
data_dir = "/var/lib/tde"
`), 0o600))

	got, err := LoadFile(path)
	require.NoError(err)
	assert.True(got.DisableMlock)
	assert.Equal("/var/lib/tde", got.DataDir)

	_, err = LoadFile(filepath.Join(dir, "missing.hcl"))
	require.Error(err)
}
