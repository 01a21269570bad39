// Package keyring registers and resolves the external secret stores
// ("key providers") principal keys live in.  A provider is registered per
// scope as a fixed-size record in an append-only registry file, its
// configuration is a small JSON document, and the configured store is
// addressed through the Keyring interface with file and Vault KV v2
// implementations.
package keyring

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/hashicorp/tde/internal/errors"
	"github.com/hashicorp/tde/internal/types/scope"
)

// ProviderType enumerates the supported kinds of key providers.
type ProviderType uint8

const (
	ProviderTypeUnknown ProviderType = iota
	ProviderTypeFile
	ProviderTypeVaultV2
)

// String returns the wire name of the provider type, which is also the value
// accepted in a configuration document's "type" field.
func (t ProviderType) String() string {
	switch t {
	case ProviderTypeFile:
		return "file"
	case ProviderTypeVaultV2:
		return "vault-v2"
	default:
		return "unknown"
	}
}

// ParseProviderType parses the wire name of a provider type.
func ParseProviderType(ctx context.Context, s string) (ProviderType, error) {
	const op = "keyring.ParseProviderType"
	switch strings.ToLower(s) {
	case "file":
		return ProviderTypeFile, nil
	case "vault-v2":
		return ProviderTypeVaultV2, nil
	default:
		return ProviderTypeUnknown, errors.New(ctx, errors.InvalidParameter, op,
			fmt.Sprintf("unknown provider type %q", s))
	}
}

const (
	// MaxNameLength bounds a provider name.  Longer names are rejected,
	// never truncated.
	MaxNameLength = 128

	// MaxOptionsLength bounds a provider's configuration document.
	MaxOptionsLength = 2048

	// RecordSize is the fixed on-disk size of one provider record: id (4) +
	// type (1) + flags (1) + name length (1) + name (128) + options length
	// (2) + options (2048), padded to an 8 byte multiple.
	RecordSize = 2192

	recordFlagTombstone = 0x01
)

// ProviderRecord is the decoded form of one fixed-size registry record.
// Records are append-only: a delete tombstones the record in place and its
// id is never reused.
type ProviderRecord struct {
	// Id of the provider, unique and monotonic within a scope.
	Id uint32

	// Type of the provider.
	Type ProviderType

	// Name of the provider, unique (case-insensitively) among the live
	// records of a scope.
	Name string

	// Options is the provider's raw configuration document.
	Options []byte

	// Deleted marks a tombstoned record.
	Deleted bool
}

// Provider is a registry record together with the scope it was read from.
type Provider struct {
	ProviderRecord
	Scope scope.Scope
}

func (r *ProviderRecord) validate(ctx context.Context, op errors.Op) error {
	if r.Id == 0 {
		return errors.New(ctx, errors.InvalidParameter, op, "missing provider id")
	}
	switch r.Type {
	case ProviderTypeFile, ProviderTypeVaultV2:
	default:
		return errors.New(ctx, errors.InvalidParameter, op,
			fmt.Sprintf("missing or unknown provider type %d", r.Type))
	}
	if r.Name == "" {
		return errors.New(ctx, errors.InvalidParameter, op, "missing provider name")
	}
	if len(r.Name) > MaxNameLength {
		return errors.New(ctx, errors.InvalidParameter, op,
			fmt.Sprintf("provider name of %d bytes exceeds the %d byte limit", len(r.Name), MaxNameLength))
	}
	if len(r.Options) == 0 {
		return errors.New(ctx, errors.InvalidParameter, op, "missing provider options")
	}
	if len(r.Options) > MaxOptionsLength {
		return errors.New(ctx, errors.InvalidParameter, op,
			fmt.Sprintf("provider options of %d bytes exceed the %d byte limit", len(r.Options), MaxOptionsLength))
	}
	return nil
}

// encode serializes the record into its fixed RecordSize layout (big
// endian).  Oversized names and options are rejected by validate, never
// truncated.
func (r *ProviderRecord) encode(ctx context.Context) ([]byte, error) {
	const op = "keyring.(ProviderRecord).encode"
	if err := r.validate(ctx, op); err != nil {
		return nil, err
	}
	var flags uint8
	if r.Deleted {
		flags |= recordFlagTombstone
	}
	d := make([]byte, 0, RecordSize)
	d = binary.BigEndian.AppendUint32(d, r.Id)
	d = append(d, byte(r.Type), flags, uint8(len(r.Name)))
	d = append(d, r.Name...)
	d = append(d, make([]byte, MaxNameLength-len(r.Name))...)
	d = binary.BigEndian.AppendUint16(d, uint16(len(r.Options)))
	d = append(d, r.Options...)
	d = append(d, make([]byte, RecordSize-len(d))...)
	return d, nil
}

// decodeProviderRecord deserializes one fixed-size record.
func decodeProviderRecord(ctx context.Context, d []byte) (*ProviderRecord, error) {
	const op = "keyring.decodeProviderRecord"
	if len(d) != RecordSize {
		return nil, errors.New(ctx, errors.Corrupt, op,
			fmt.Sprintf("provider record is %d bytes, want %d", len(d), RecordSize))
	}
	buf := bytes.NewBuffer(d)
	r := &ProviderRecord{
		Id:   binary.BigEndian.Uint32(buf.Next(4)),
		Type: ProviderType(buf.Next(1)[0]),
	}
	flags := buf.Next(1)[0]
	r.Deleted = flags&recordFlagTombstone != 0
	nameLen := int(buf.Next(1)[0])
	if nameLen > MaxNameLength {
		return nil, errors.New(ctx, errors.Corrupt, op,
			fmt.Sprintf("provider record name length %d out of bounds", nameLen))
	}
	r.Name = string(buf.Next(MaxNameLength)[:nameLen])
	optsLen := int(binary.BigEndian.Uint16(buf.Next(2)))
	if optsLen > MaxOptionsLength {
		return nil, errors.New(ctx, errors.Corrupt, op,
			fmt.Sprintf("provider record options length %d out of bounds", optsLen))
	}
	r.Options = append([]byte(nil), buf.Next(MaxOptionsLength)[:optsLen]...)
	switch r.Type {
	case ProviderTypeFile, ProviderTypeVaultV2:
	default:
		return nil, errors.New(ctx, errors.Corrupt, op,
			fmt.Sprintf("provider record has unknown type %d", r.Type))
	}
	return r, nil
}
