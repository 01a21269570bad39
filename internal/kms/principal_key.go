package kms

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/awnumar/memguard"
	wrapping "github.com/hashicorp/go-kms-wrapping/v2"
	aead "github.com/hashicorp/go-kms-wrapping/v2/aead"
	"github.com/hashicorp/tde/internal/errors"
	"github.com/hashicorp/tde/internal/keyring"
	"github.com/hashicorp/tde/internal/types/scope"
)

const (
	// MaxKeyNameLength bounds a principal key name.  Longer names are
	// rejected, never truncated.
	MaxKeyNameLength = 255

	// KeyInfoSize is the fixed on-disk size of one principal key
	// descriptor: database (4) + tablespace (4) + name length (1) + name
	// (255) + version (4) + provider id (4) + create time (8), plus a
	// reserved tail for future descriptor fields.
	KeyInfoSize = 304

	// DefaultKeyLength is the principal key material length in bytes.
	DefaultKeyLength = 32
)

// KeyId identifies one version of a principal key.  The versioned name is
// the lookup key used against the external provider; incrementing the
// version is how rotation avoids overwriting a still-in-use secret.
type KeyId struct {
	Name    string
	Version uint32
}

// VersionedName returns the provider-side name of this key version.
func (k KeyId) VersionedName() string {
	return fmt.Sprintf("%s_%d", k.Name, k.Version)
}

// KeyInfo is the persisted descriptor of a scope's principal key.  It
// never contains key material.
type KeyInfo struct {
	Scope      scope.Scope
	KeyId      KeyId
	ProviderId uint32
	CreateTime time.Time
}

func (i *KeyInfo) validate(ctx context.Context, op errors.Op) error {
	if i.KeyId.Name == "" {
		return errors.New(ctx, errors.InvalidParameter, op, "missing key name")
	}
	if len(i.KeyId.Name) > MaxKeyNameLength {
		return errors.New(ctx, errors.InvalidParameter, op,
			fmt.Sprintf("key name of %d bytes exceeds the %d byte limit", len(i.KeyId.Name), MaxKeyNameLength))
	}
	if i.ProviderId == 0 {
		return errors.New(ctx, errors.InvalidParameter, op, "missing provider id")
	}
	return nil
}

// encode serializes the descriptor into its fixed KeyInfoSize layout (big
// endian, create time as unix nanoseconds).
func (i *KeyInfo) encode(ctx context.Context) ([]byte, error) {
	const op = "kms.(KeyInfo).encode"
	if err := i.validate(ctx, op); err != nil {
		return nil, err
	}
	d := make([]byte, 0, KeyInfoSize)
	d = binary.BigEndian.AppendUint32(d, i.Scope.DatabaseId)
	d = binary.BigEndian.AppendUint32(d, i.Scope.TablespaceId)
	d = append(d, uint8(len(i.KeyId.Name)))
	d = append(d, i.KeyId.Name...)
	d = append(d, make([]byte, MaxKeyNameLength-len(i.KeyId.Name))...)
	d = binary.BigEndian.AppendUint32(d, i.KeyId.Version)
	d = binary.BigEndian.AppendUint32(d, i.ProviderId)
	d = binary.BigEndian.AppendUint64(d, uint64(i.CreateTime.UnixNano()))
	d = append(d, make([]byte, KeyInfoSize-len(d))...)
	return d, nil
}

// decodeKeyInfo deserializes one fixed-size descriptor.
func decodeKeyInfo(ctx context.Context, d []byte) (*KeyInfo, error) {
	const op = "kms.decodeKeyInfo"
	if len(d) != KeyInfoSize {
		return nil, errors.New(ctx, errors.Corrupt, op,
			fmt.Sprintf("principal key descriptor is %d bytes, want %d", len(d), KeyInfoSize))
	}
	buf := bytes.NewBuffer(d)
	info := &KeyInfo{
		Scope: scope.New(
			binary.BigEndian.Uint32(buf.Next(4)),
			binary.BigEndian.Uint32(buf.Next(4)),
		),
	}
	nameLen := int(buf.Next(1)[0])
	if nameLen == 0 || nameLen > MaxKeyNameLength {
		return nil, errors.New(ctx, errors.Corrupt, op,
			fmt.Sprintf("principal key descriptor name length %d out of bounds", nameLen))
	}
	info.KeyId.Name = string(buf.Next(MaxKeyNameLength)[:nameLen])
	info.KeyId.Version = binary.BigEndian.Uint32(buf.Next(4))
	info.ProviderId = binary.BigEndian.Uint32(buf.Next(4))
	info.CreateTime = time.Unix(0, int64(binary.BigEndian.Uint64(buf.Next(8))))
	if info.ProviderId == 0 {
		return nil, errors.New(ctx, errors.Corrupt, op, "principal key descriptor has no provider id")
	}
	return info, nil
}

// PrincipalKey is a resident principal key: its descriptor plus the key
// material in a locked, non-swappable, canary-guarded buffer.  The
// material lives there until the key is destroyed by rotation replacement
// or cache removal.
type PrincipalKey struct {
	info     KeyInfo
	material *memguard.LockedBuffer
}

// newPrincipalKey moves secret into a locked buffer.  The source slice is
// wiped in the process.
func newPrincipalKey(ctx context.Context, info KeyInfo, secret []byte) (*PrincipalKey, error) {
	const op = "kms.newPrincipalKey"
	if err := info.validate(ctx, op); err != nil {
		return nil, err
	}
	if len(secret) == 0 {
		return nil, errors.New(ctx, errors.InvalidParameter, op, "missing key material")
	}
	if len(secret) > keyring.MaxSecretSize {
		return nil, errors.New(ctx, errors.InvalidParameter, op,
			fmt.Sprintf("key material of %d bytes exceeds the %d byte limit", len(secret), keyring.MaxSecretSize))
	}
	b := memguard.NewBufferFromBytes(secret)
	b.Freeze()
	return &PrincipalKey{info: info, material: b}, nil
}

// Info returns a copy of the descriptor.
func (k *PrincipalKey) Info() KeyInfo { return k.info }

// Scope the key belongs to.
func (k *PrincipalKey) Scope() scope.Scope { return k.info.Scope }

// KeyId of the key.
func (k *PrincipalKey) KeyId() KeyId { return k.info.KeyId }

// VersionedName is the provider-side name of the key.
func (k *PrincipalKey) VersionedName() string { return k.info.KeyId.VersionedName() }

// ProviderId of the provider holding the key material.
func (k *PrincipalKey) ProviderId() uint32 { return k.info.ProviderId }

// CreateTime of the descriptor.
func (k *PrincipalKey) CreateTime() time.Time { return k.info.CreateTime }

// Bytes returns the key material.  The slice aliases locked memory: use it
// in place and do not retain it.
func (k *PrincipalKey) Bytes() []byte { return k.material.Bytes() }

// Pinned reports whether the material is still resident in locked memory.
func (k *PrincipalKey) Pinned() bool { return k.material.IsAlive() }

// Destroy wipes and releases the locked material.
func (k *PrincipalKey) Destroy() { k.material.Destroy() }

// Wrapper builds an AEAD wrapper over the key material, keyed by the
// versioned name, for downstream encrypt and decrypt consumers.
func (k *PrincipalKey) Wrapper(ctx context.Context) (wrapping.Wrapper, error) {
	const op = "kms.(PrincipalKey).Wrapper"
	w := aead.NewWrapper()
	if _, err := w.SetConfig(ctx, wrapping.WithKeyId(k.VersionedName())); err != nil {
		return nil, errors.Wrap(ctx, err, op, errors.WithCode(errors.Internal))
	}
	if err := w.SetAesGcmKeyBytes(k.material.Bytes()); err != nil {
		return nil, errors.Wrap(ctx, err, op, errors.WithCode(errors.InvalidParameter),
			errors.WithMsg("key material is not a valid aes key size"))
	}
	return w, nil
}
