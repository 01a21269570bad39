package keyring

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecretRedaction(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)

	token := TokenSecret("hvs.sup3rs3cret")
	assert.Equal(redactedText, token.String())
	assert.Equal(redactedText, fmt.Sprintf("%s", token))
	assert.Equal(redactedText, fmt.Sprintf("%v", token))
	assert.Equal(redactedText, fmt.Sprintf("%#v", token))

	b, err := json.Marshal(token)
	require.NoError(err)
	assert.JSONEq(`"[REDACTED]"`, string(b))

	s := Secret{Name: "tde5-key_0", Value: SecretBytes("raw key material")}
	rendered := fmt.Sprintf("%v", s)
	assert.Contains(rendered, "tde5-key_0")
	assert.NotContains(rendered, "raw key material")

	b, err = json.Marshal(s)
	require.NoError(err)
	assert.Contains(string(b), redactedText)
	assert.NotContains(string(b), "raw key material")
}
