package keyring

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/hashicorp/tde/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// nestedValue returns a json value wrapped in n nested objects.
func nestedValue(n int) string {
	v := `"x"`
	for i := 0; i < n; i++ {
		v = `{"a":` + v + `}`
	}
	return v
}

func testIndirectionClient(t *testing.T) *retryablehttp.Client {
	t.Helper()
	c := retryablehttp.NewClient()
	c.HTTPClient = cleanhttp.DefaultClient()
	c.RetryMax = 0
	c.Logger = nil
	return c
}

func TestParseConfig_file(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tests := []struct {
		name         string
		raw          string
		want         *FileConfig
		wantErrMatch *errors.Template
	}{
		{
			name: "valid",
			raw:  `{"type":"file","path":"/var/lib/keyring"}`,
			want: &FileConfig{Path: "/var/lib/keyring"},
		},
		{
			name: "type-case-insensitive",
			raw:  `{"type":"FILE","path":"/var/lib/keyring"}`,
			want: &FileConfig{Path: "/var/lib/keyring"},
		},
		{
			name: "no-type-field",
			raw:  `{"path":"/var/lib/keyring"}`,
			want: &FileConfig{Path: "/var/lib/keyring"},
		},
		{
			name: "unknown-field-ignored",
			raw:  `{"type":"file","path":"/var/lib/keyring","color":"blue"}`,
			want: &FileConfig{Path: "/var/lib/keyring"},
		},
		{
			name: "null-path",
			raw:  `{"type":"file","path":null}`,
			want: &FileConfig{},
		},
		{
			name:         "type-mismatch",
			raw:          `{"type":"vault-v2","path":"/var/lib/keyring"}`,
			wantErrMatch: errors.T(errors.InvalidConfiguration),
		},
		{
			name:         "number-value",
			raw:          `{"type":"file","path":7}`,
			wantErrMatch: errors.T(errors.InvalidConfiguration),
		},
		{
			name:         "bool-value",
			raw:          `{"type":"file","path":true}`,
			wantErrMatch: errors.T(errors.InvalidConfiguration),
		},
		{
			name:         "array-value",
			raw:          `{"type":"file","path":["/a","/b"]}`,
			wantErrMatch: errors.T(errors.InvalidConfiguration),
		},
		{
			name:         "not-an-object",
			raw:          `"file"`,
			wantErrMatch: errors.T(errors.InvalidConfiguration),
		},
		{
			name:         "truncated",
			raw:          `{"type":"file","path":`,
			wantErrMatch: errors.T(errors.InvalidConfiguration),
		},
		{
			name:         "trailing-data",
			raw:          `{"type":"file","path":"/p"} 5`,
			wantErrMatch: errors.T(errors.InvalidConfiguration),
		},
		{
			name:         "empty",
			raw:          ``,
			wantErrMatch: errors.T(errors.InvalidConfiguration),
		},
		{
			name: "at-depth-limit",
			raw:  `{"path":` + nestedValue(MaxConfigDepth-1) + `}`,
			want: &FileConfig{},
		},
		{
			name:         "exceeds-depth-limit",
			raw:          `{"path":` + nestedValue(MaxConfigDepth) + `}`,
			wantErrMatch: errors.T(errors.ConfigExceedsDepth),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			got, err := ParseConfig(ctx, ProviderTypeFile, []byte(tt.raw))
			if tt.wantErrMatch != nil {
				require.Error(err)
				assert.True(errors.Match(tt.wantErrMatch, err), "unexpected error %v", err)
				return
			}
			require.NoError(err)
			require.IsType(&FileConfig{}, got)
			assert.Equal(tt.want, got)
		})
	}
}

func TestParseConfig_vaultV2(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	assert, require := assert.New(t), require.New(t)
	raw := `{"type":"vault-v2","token":"hvs.t0ken","url":"https://vault.internal:8200","mountPath":"tde","caPath":"/etc/ssl/ca.pem"}`
	got, err := ParseConfig(ctx, ProviderTypeVaultV2, []byte(raw))
	require.NoError(err)
	require.IsType(&VaultV2Config{}, got)
	c := got.(*VaultV2Config)
	assert.Equal("hvs.t0ken", string(c.Token))
	assert.Equal("https://vault.internal:8200", c.Address)
	assert.Equal("tde", c.MountPath)
	assert.Equal("/etc/ssl/ca.pem", c.CaPath)
	assert.Equal(ProviderTypeVaultV2, c.ProviderType())
}

func TestParseConfig_oversize(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	assert, require := assert.New(t), require.New(t)
	raw := fmt.Sprintf(`{"type":"file","path":"%s"}`, strings.Repeat("p", MaxOptionsLength))
	_, err := ParseConfig(ctx, ProviderTypeFile, []byte(raw))
	require.Error(err)
	assert.True(errors.Match(errors.T(errors.InvalidParameter), err))
}

func TestParseConfig_fileIndirection(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	writeValue := func(t *testing.T, content string) string {
		t.Helper()
		p := filepath.Join(t.TempDir(), "value")
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
		return p
	}

	t.Run("resolves", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		p := writeValue(t, "/var/lib/keyring")
		raw := fmt.Sprintf(`{"type":"file","path":{"type":"file","path":"%s"}}`, p)
		got, err := ParseConfig(ctx, ProviderTypeFile, []byte(raw))
		require.NoError(err)
		assert.Equal(&FileConfig{Path: "/var/lib/keyring"}, got)
	})
	t.Run("trailing-whitespace-trimmed", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		p := writeValue(t, "hunter2 \t\r\n")
		raw := fmt.Sprintf(`{"type":"vault-v2","token":{"type":"file","path":"%s"},"url":"https://v:8200","mountPath":"tde"}`, p)
		got, err := ParseConfig(ctx, ProviderTypeVaultV2, []byte(raw))
		require.NoError(err)
		assert.Equal("hunter2", string(got.(*VaultV2Config).Token))
	})
	t.Run("interior-whitespace-preserved", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		p := writeValue(t, "pass word\n")
		raw := fmt.Sprintf(`{"type":"vault-v2","token":{"type":"file","path":"%s"},"url":"https://v:8200","mountPath":"tde"}`, p)
		got, err := ParseConfig(ctx, ProviderTypeVaultV2, []byte(raw))
		require.NoError(err)
		assert.Equal("pass word", string(got.(*VaultV2Config).Token))
	})
	t.Run("missing-file-yields-null", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		raw := `{"type":"file","path":{"type":"file","path":"/no/such/value"}}`
		got, err := ParseConfig(ctx, ProviderTypeFile, []byte(raw))
		require.NoError(err)
		assert.Equal(&FileConfig{}, got)
		_, err = Build(ctx, got)
		require.Error(err)
		assert.True(errors.IsConfigurationError(err))
	})
	t.Run("oversize-value-yields-null", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		p := writeValue(t, strings.Repeat("v", maxIndirectionSize+1))
		raw := fmt.Sprintf(`{"type":"file","path":{"type":"file","path":"%s"}}`, p)
		got, err := ParseConfig(ctx, ProviderTypeFile, []byte(raw))
		require.NoError(err)
		assert.Equal(&FileConfig{}, got)
	})
	t.Run("value-at-size-limit", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		p := writeValue(t, strings.Repeat("v", maxIndirectionSize))
		raw := fmt.Sprintf(`{"type":"file","path":{"type":"file","path":"%s"}}`, p)
		got, err := ParseConfig(ctx, ProviderTypeFile, []byte(raw))
		require.NoError(err)
		assert.Equal(strings.Repeat("v", maxIndirectionSize), got.(*FileConfig).Path)
	})
	t.Run("unknown-indirection-type-yields-null", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		raw := `{"type":"file","path":{"type":"env","name":"KEYRING"}}`
		got, err := ParseConfig(ctx, ProviderTypeFile, []byte(raw))
		require.NoError(err)
		assert.Equal(&FileConfig{}, got)
	})
	t.Run("nested-structure-not-evaluated", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		p := writeValue(t, "/var/lib/keyring")
		raw := fmt.Sprintf(`{"type":"file","path":{"type":"file","path":"%s","extra":{"type":"file","path":"/other"}}}`, p)
		got, err := ParseConfig(ctx, ProviderTypeFile, []byte(raw))
		require.NoError(err)
		assert.Equal(&FileConfig{Path: "/var/lib/keyring"}, got)
	})
}

func TestParseConfig_remoteIndirection(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			fmt.Fprint(w, "hvs.remote \n")
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	t.Run("resolves-and-trims", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		raw := fmt.Sprintf(`{"type":"vault-v2","token":{"type":"remote","url":"%s/token"},"url":"https://v:8200","mountPath":"tde"}`, ts.URL)
		got, err := ParseConfig(ctx, ProviderTypeVaultV2, []byte(raw), WithIndirectionClient(testIndirectionClient(t)))
		require.NoError(err)
		assert.Equal("hvs.remote", string(got.(*VaultV2Config).Token))
	})
	t.Run("non-200-yields-null", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		raw := fmt.Sprintf(`{"type":"vault-v2","token":{"type":"remote","url":"%s/missing"},"url":"https://v:8200","mountPath":"tde"}`, ts.URL)
		got, err := ParseConfig(ctx, ProviderTypeVaultV2, []byte(raw), WithIndirectionClient(testIndirectionClient(t)))
		require.NoError(err)
		assert.Empty(got.(*VaultV2Config).Token)
		_, err = Build(ctx, got)
		require.Error(err)
		assert.True(errors.IsConfigurationError(err))
	})
}

// noDialTransport keeps remote indirections from leaving the process while
// fuzzing.
type noDialTransport struct{}

func (noDialTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, fmt.Errorf("dialing is disabled")
}

func FuzzParseConfig(f *testing.F) {
	f.Add([]byte(`{"type":"file","path":"/var/lib/keyring"}`))
	f.Add([]byte(`{"type":"vault-v2","token":{"type":"remote","url":"http://127.0.0.1:1/v"},"url":"https://v:8200","mountPath":"tde"}`))
	f.Add([]byte(`{"path":{"type":"file"},"unknown":[1,[2,[3,{"a":"b"}]]]}`))
	f.Add([]byte(`{"path":` + nestedValue(MaxConfigDepth) + `}`))
	f.Add([]byte(`{"type":"file","path":`))
	f.Add([]byte(`{} trailing`))

	client := retryablehttp.NewClient()
	client.HTTPClient = &http.Client{Transport: noDialTransport{}}
	client.RetryMax = 0
	client.Logger = nil

	wantCodes := []*errors.Template{
		errors.T(errors.InvalidConfiguration),
		errors.T(errors.InvalidParameter),
		errors.T(errors.ConfigExceedsDepth),
	}

	f.Fuzz(func(t *testing.T, raw []byte) {
		for _, typ := range []ProviderType{ProviderTypeFile, ProviderTypeVaultV2} {
			c, err := ParseConfig(context.Background(), typ, raw, WithIndirectionClient(client))
			if err != nil {
				if c != nil {
					t.Errorf("%s: both a config and an error returned for %q", typ, raw)
				}
				matched := false
				for _, tmpl := range wantCodes {
					if errors.Match(tmpl, err) {
						matched = true
						break
					}
				}
				if !matched {
					t.Errorf("%s: unclassified error %v for %q", typ, err, raw)
				}
				continue
			}
			if c == nil {
				t.Errorf("%s: neither a config nor an error returned for %q", typ, raw)
				continue
			}
			if c.ProviderType() != typ {
				t.Errorf("configuration parsed for %s reports type %s", typ, c.ProviderType())
			}
		}
	})
}
