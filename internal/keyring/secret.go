package keyring

const redactedText = "[REDACTED]"

// TokenSecret is an authentication token for an external secret store.  Its
// value must never appear in events or rendered output.
type TokenSecret []byte

// String renders a redacted value
func (t TokenSecret) String() string { return redactedText }

// GoString renders a redacted value
func (t TokenSecret) GoString() string { return redactedText }

// MarshalJSON renders a redacted value
func (t TokenSecret) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redactedText + `"`), nil
}

// SecretBytes is key material fetched from or stored into a keyring.  Like
// TokenSecret it renders redacted everywhere.
type SecretBytes []byte

// String renders a redacted value
func (s SecretBytes) String() string { return redactedText }

// GoString renders a redacted value
func (s SecretBytes) GoString() string { return redactedText }

// MarshalJSON renders a redacted value
func (s SecretBytes) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redactedText + `"`), nil
}

// Secret is one named blob held by a keyring.
type Secret struct {
	// Name the secret is stored under (a versioned principal key name).
	Name string

	// Value is the key material.
	Value SecretBytes
}
