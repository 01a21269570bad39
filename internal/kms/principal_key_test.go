package kms

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/hashicorp/tde/internal/errors"
	"github.com/hashicorp/tde/internal/keyring"
	"github.com/hashicorp/tde/internal/types/scope"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyId_VersionedName(t *testing.T) {
	assert := assert.New(t)
	assert.Equal("mykey_0", KeyId{Name: "mykey", Version: 0}.VersionedName())
	assert.Equal("mykey_1", KeyId{Name: "mykey", Version: 1}.VersionedName())
	assert.Equal("wal-key_42", KeyId{Name: "wal-key", Version: 42}.VersionedName())
}

func TestKeyInfo_encodeDecode(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		info KeyInfo
	}{
		{
			name: "database",
			info: KeyInfo{
				Scope:      scope.New(5, 1663),
				KeyId:      KeyId{Name: "mykey", Version: 3},
				ProviderId: 7,
				CreateTime: time.Unix(0, 1766000000123456789),
			},
		},
		{
			name: "global",
			info: KeyInfo{
				Scope:      scope.Global,
				KeyId:      KeyId{Name: "wal-key", Version: 0},
				ProviderId: 1,
				CreateTime: time.Unix(0, 1),
			},
		},
		{
			name: "max name",
			info: KeyInfo{
				Scope:      scope.ForDatabase(9),
				KeyId:      KeyId{Name: strings.Repeat("n", MaxKeyNameLength), Version: 1000},
				ProviderId: 4,
				CreateTime: time.Unix(0, 1766000000000000000),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			d, err := tt.info.encode(ctx)
			require.NoError(err)
			assert.Len(d, KeyInfoSize)

			got, err := decodeKeyInfo(ctx, d)
			require.NoError(err)
			assert.Equal(tt.info.Scope, got.Scope)
			assert.Equal(tt.info.KeyId, got.KeyId)
			assert.Equal(tt.info.ProviderId, got.ProviderId)
			assert.True(tt.info.CreateTime.Equal(got.CreateTime))
		})
	}
}

func TestKeyInfo_encodeInvalid(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		info KeyInfo
	}{
		{
			name: "missing name",
			info: KeyInfo{Scope: scope.ForDatabase(5), ProviderId: 1},
		},
		{
			name: "name too long",
			info: KeyInfo{
				Scope:      scope.ForDatabase(5),
				KeyId:      KeyId{Name: strings.Repeat("n", MaxKeyNameLength+1)},
				ProviderId: 1,
			},
		},
		{
			name: "missing provider id",
			info: KeyInfo{Scope: scope.ForDatabase(5), KeyId: KeyId{Name: "mykey"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			d, err := tt.info.encode(ctx)
			require.Error(err)
			assert.Nil(d)
			assert.True(errors.Match(errors.T(errors.InvalidParameter), err))
		})
	}
}

func TestDecodeKeyInfo_corrupt(t *testing.T) {
	ctx := context.Background()
	valid := KeyInfo{
		Scope:      scope.New(5, 1663),
		KeyId:      KeyId{Name: "mykey", Version: 2},
		ProviderId: 3,
		CreateTime: time.Unix(0, 1766000000123456789),
	}
	encoded, err := valid.encode(ctx)
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{
			name:   "short",
			mutate: func(d []byte) []byte { return d[:KeyInfoSize-1] },
		},
		{
			name: "zero name length",
			mutate: func(d []byte) []byte {
				d[8] = 0
				return d
			},
		},
		{
			name: "zero provider id",
			mutate: func(d []byte) []byte {
				d[268], d[269], d[270], d[271] = 0, 0, 0, 0
				return d
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			d := tt.mutate(append([]byte(nil), encoded...))
			got, err := decodeKeyInfo(ctx, d)
			require.Error(err)
			assert.Nil(got)
			assert.True(errors.IsCorruptError(err))
		})
	}
}

func TestNewPrincipalKey(t *testing.T) {
	ctx := context.Background()
	info := KeyInfo{
		Scope:      scope.ForDatabase(5),
		KeyId:      KeyId{Name: "mykey", Version: 0},
		ProviderId: 1,
		CreateTime: time.Now(),
	}

	t.Run("valid", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		material := bytes.Repeat([]byte{0x5a}, DefaultKeyLength)
		secret := append([]byte(nil), material...)
		pk, err := newPrincipalKey(ctx, info, secret)
		require.NoError(err)
		assert.True(pk.Pinned())
		assert.Equal(material, pk.Bytes())
		// the source slice is wiped when the material moves into the
		// locked buffer
		assert.Equal(make([]byte, DefaultKeyLength), secret)
		assert.Equal("mykey_0", pk.VersionedName())
		assert.Equal(info.Scope, pk.Scope())
		assert.Equal(uint32(1), pk.ProviderId())

		pk.Destroy()
		assert.False(pk.Pinned())
	})

	t.Run("missing material", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		pk, err := newPrincipalKey(ctx, info, nil)
		require.Error(err)
		assert.Nil(pk)
		assert.True(errors.Match(errors.T(errors.InvalidParameter), err))
	})

	t.Run("oversize material", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		pk, err := newPrincipalKey(ctx, info, make([]byte, keyring.MaxSecretSize+1))
		require.Error(err)
		assert.Nil(pk)
		assert.True(errors.Match(errors.T(errors.InvalidParameter), err))
	})

	t.Run("invalid info", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		bad := info
		bad.KeyId.Name = ""
		pk, err := newPrincipalKey(ctx, bad, make([]byte, DefaultKeyLength))
		require.Error(err)
		assert.Nil(pk)
		assert.True(errors.Match(errors.T(errors.InvalidParameter), err))
	})
}

func TestPrincipalKey_Wrapper(t *testing.T) {
	ctx := context.Background()
	info := KeyInfo{
		Scope:      scope.ForDatabase(5),
		KeyId:      KeyId{Name: "mykey", Version: 1},
		ProviderId: 1,
		CreateTime: time.Now(),
	}
	material := bytes.Repeat([]byte{0x11}, DefaultKeyLength)

	t.Run("round trip", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		pk, err := newPrincipalKey(ctx, info, append([]byte(nil), material...))
		require.NoError(err)
		t.Cleanup(pk.Destroy)

		w, err := pk.Wrapper(ctx)
		require.NoError(err)
		keyId, err := w.KeyId(ctx)
		require.NoError(err)
		assert.Equal("mykey_1", keyId)

		blob, err := w.Encrypt(ctx, []byte("page bytes"))
		require.NoError(err)

		// a second key over the same material must decrypt what the
		// first encrypted
		pk2, err := newPrincipalKey(ctx, info, append([]byte(nil), material...))
		require.NoError(err)
		t.Cleanup(pk2.Destroy)
		w2, err := pk2.Wrapper(ctx)
		require.NoError(err)
		pt, err := w2.Decrypt(ctx, blob)
		require.NoError(err)
		assert.Equal([]byte("page bytes"), pt)
	})

	t.Run("invalid aes size", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		pk, err := newPrincipalKey(ctx, info, make([]byte, 15))
		require.NoError(err)
		t.Cleanup(pk.Destroy)

		w, err := pk.Wrapper(ctx)
		require.Error(err)
		assert.Nil(w)
		assert.True(errors.Match(errors.T(errors.InvalidParameter), err))
	})
}
