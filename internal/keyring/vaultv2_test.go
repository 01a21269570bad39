package keyring

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/hashicorp/tde/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeVault serves just enough of the KV v2 http api for the keyring:
// reads and check-and-set writes under /v1/<mount>/data/<name>.
type fakeVault struct {
	mu        sync.Mutex
	secrets   map[string]map[string]interface{}
	lastToken string
}

func (f *fakeVault) put(name string, data map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.secrets[name] = data
}

func (f *fakeVault) get(name string) (map[string]interface{}, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.secrets[name]
	return d, ok
}

func (f *fakeVault) token() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastToken
}

func newFakeVault(t *testing.T, mountPath string) (*fakeVault, string) {
	t.Helper()
	f := &fakeVault{secrets: make(map[string]map[string]interface{})}
	prefix := "/v1/" + mountPath + "/data/"
	mux := http.NewServeMux()
	mux.HandleFunc(prefix, func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, prefix)
		f.mu.Lock()
		defer f.mu.Unlock()
		f.lastToken = r.Header.Get("X-Vault-Token")
		switch r.Method {
		case http.MethodGet:
			data, ok := f.secrets[name]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				fmt.Fprint(w, `{"errors":[]}`)
				return
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"request_id": "test",
				"data": map[string]interface{}{
					"data": data,
					"metadata": map[string]interface{}{
						"created_time": "2026-01-01T00:00:00Z",
						"version":      1,
					},
				},
			})
		case http.MethodPut, http.MethodPost:
			var body struct {
				Data    map[string]interface{} `json:"data"`
				Options struct {
					Cas *int `json:"cas"`
				} `json:"options"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				fmt.Fprint(w, `{"errors":["malformed request"]}`)
				return
			}
			if body.Options.Cas != nil && *body.Options.Cas == 0 {
				if _, exists := f.secrets[name]; exists {
					w.WriteHeader(http.StatusBadRequest)
					fmt.Fprint(w, `{"errors":["check-and-set parameter did not match the current version"]}`)
					return
				}
			}
			f.secrets[name] = body.Data
			json.NewEncoder(w).Encode(map[string]interface{}{
				"request_id": "test",
				"data": map[string]interface{}{
					"created_time": "2026-01-01T00:00:00Z",
					"version":      1,
				},
			})
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return f, ts.URL
}

func testVaultV2Keyring(t *testing.T, addr, mountPath string) Keyring {
	t.Helper()
	k, err := Build(context.Background(), &VaultV2Config{
		Token:     TokenSecret("test-token"),
		Address:   addr,
		MountPath: mountPath,
	})
	require.NoError(t, err)
	return k
}

func TestVaultV2Keyring_generateFetch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	assert, require := assert.New(t), require.New(t)
	f, addr := newFakeVault(t, "tde")
	k := testVaultV2Keyring(t, addr, "tde")

	got, err := k.FetchSecret(ctx, "tde5-key_0")
	require.NoError(err)
	assert.Nil(got)

	created, err := k.GenerateSecret(ctx, "tde5-key_0", 32)
	require.NoError(err)
	require.Len(created.Value, 32)
	assert.Equal("test-token", f.token())

	// the stored value is the base64 of the generated bytes
	stored, ok := f.get("tde5-key_0")
	require.True(ok)
	raw, err := base64.StdEncoding.DecodeString(stored["key"].(string))
	require.NoError(err)
	assert.Equal([]byte(created.Value), raw)

	got, err = k.FetchSecret(ctx, "tde5-key_0")
	require.NoError(err)
	require.NotNil(got)
	assert.Equal(created.Value, got.Value)
}

func TestVaultV2Keyring_duplicateName(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	assert, require := assert.New(t), require.New(t)
	f, addr := newFakeVault(t, "tde")
	k := testVaultV2Keyring(t, addr, "tde")

	f.put("tde5-key_0", map[string]interface{}{
		"key": base64.StdEncoding.EncodeToString([]byte("already-there-already-there-1234")),
	})
	_, err := k.GenerateSecret(ctx, "tde5-key_0", 32)
	require.Error(err)
	assert.True(errors.IsUniqueError(err))
}

func TestVaultV2Keyring_badStoredSecret(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f, addr := newFakeVault(t, "tde")
	k := testVaultV2Keyring(t, addr, "tde")

	tests := []struct {
		name string
		data map[string]interface{}
	}{
		{
			name: "missing-key-field",
			data: map[string]interface{}{"other": "x"},
		},
		{
			name: "not-base64",
			data: map[string]interface{}{"key": "not base64 at all!"},
		},
		{
			name: "oversize",
			data: map[string]interface{}{
				"key": base64.StdEncoding.EncodeToString(make([]byte, MaxSecretSize+1)),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			f.put(tt.name, tt.data)
			_, err := k.FetchSecret(ctx, tt.name)
			require.Error(err)
			assert.True(errors.Match(errors.T(errors.Decode), err), "unexpected error %v", err)
		})
	}
}

func TestVaultV2Keyring_unreachable(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	assert, require := assert.New(t), require.New(t)
	// a closed listener: the request fails without a response
	ts := httptest.NewServer(http.NotFoundHandler())
	addr := ts.URL
	ts.Close()
	k := testVaultV2Keyring(t, addr, "tde")

	_, err := k.FetchSecret(ctx, "tde5-key_0")
	require.Error(err)
	assert.True(errors.Match(errors.T(errors.KeyringRequest), err), "unexpected error %v", err)
}
