package kms

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/tde/internal/errors"
	"github.com/hashicorp/tde/internal/types/scope"
	"github.com/hashicorp/tde/internal/wal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) (*Store, string) {
	t.Helper()
	require := require.New(t)
	ctx := context.Background()
	dir := t.TempDir()
	a, err := wal.NewSegmentAppender(ctx, dir)
	require.NoError(err)
	t.Cleanup(func() { a.Close() })
	s, err := NewStore(ctx, dir, a)
	require.NoError(err)
	return s, dir
}

func descriptorFile(dir string, sc scope.Scope) string {
	return filepath.Join(dir, fmt.Sprintf("tde_%s_principal", sc))
}

func testKeyInfo(sc scope.Scope, name string, version, providerId uint32) *KeyInfo {
	return &KeyInfo{
		Scope:      sc,
		KeyId:      KeyId{Name: name, Version: version},
		ProviderId: providerId,
		CreateTime: time.Unix(0, 1766000000123456789),
	}
}

func TestStore_writeRead(t *testing.T) {
	assert, require := assert.New(t), require.New(t)
	ctx := context.Background()
	s, dir := testStore(t)
	sc := scope.New(5, 1663)

	// nothing set yet
	got, err := s.Read(ctx, sc)
	require.NoError(err)
	assert.Nil(got)

	info := testKeyInfo(sc, "mykey", 0, 1)
	require.NoError(s.Write(ctx, info))

	got, err = s.Read(ctx, sc)
	require.NoError(err)
	require.NotNil(got)
	assert.Equal(info.Scope, got.Scope)
	assert.Equal(info.KeyId, got.KeyId)
	assert.Equal(info.ProviderId, got.ProviderId)
	assert.True(info.CreateTime.Equal(got.CreateTime))

	fi, err := os.Stat(descriptorFile(dir, sc))
	require.NoError(err)
	assert.Equal(int64(KeyInfoSize), fi.Size())

	// a rotation overwrites in place, the file does not grow
	require.NoError(s.Write(ctx, testKeyInfo(sc, "mykey", 1, 1)))
	got, err = s.Read(ctx, sc)
	require.NoError(err)
	assert.Equal(uint32(1), got.KeyId.Version)
	fi, err = os.Stat(descriptorFile(dir, sc))
	require.NoError(err)
	assert.Equal(int64(KeyInfoSize), fi.Size())

	// scopes do not share descriptors
	other, err := s.Read(ctx, scope.New(6, 1663))
	require.NoError(err)
	assert.Nil(other)
}

func TestStore_writeInvalid(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s, _ := testStore(t)

	err := s.Write(ctx, nil)
	assert.True(errors.Match(errors.T(errors.InvalidParameter), err))

	err = s.Write(ctx, testKeyInfo(scope.ForDatabase(5), "", 0, 1))
	assert.True(errors.Match(errors.T(errors.InvalidParameter), err))
}

func TestStore_corrupt(t *testing.T) {
	ctx := context.Background()
	sc := scope.New(5, 1663)

	t.Run("truncated", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		s, dir := testStore(t)
		require.NoError(s.Write(ctx, testKeyInfo(sc, "mykey", 0, 1)))
		require.NoError(os.Truncate(descriptorFile(dir, sc), KeyInfoSize-8))

		got, err := s.Read(ctx, sc)
		require.Error(err)
		assert.Nil(got)
		assert.True(errors.IsCorruptError(err))
	})

	t.Run("wrong scope", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		s, dir := testStore(t)
		require.NoError(s.Write(ctx, testKeyInfo(sc, "mykey", 0, 1)))

		// a descriptor file holding another scope's record is corrupt
		other := scope.New(6, 1663)
		d, err := os.ReadFile(descriptorFile(dir, sc))
		require.NoError(err)
		require.NoError(os.WriteFile(descriptorFile(dir, other), d, 0o600))

		got, err := s.Read(ctx, other)
		require.Error(err)
		assert.Nil(got)
		assert.True(errors.IsCorruptError(err))
	})
}

func TestStore_delete(t *testing.T) {
	assert, require := assert.New(t), require.New(t)
	ctx := context.Background()
	s, dir := testStore(t)
	sc := scope.New(5, 1663)

	require.NoError(s.Write(ctx, testKeyInfo(sc, "mykey", 0, 1)))
	require.NoError(s.Delete(ctx, sc))

	got, err := s.Read(ctx, sc)
	require.NoError(err)
	assert.Nil(got)
	_, err = os.Stat(descriptorFile(dir, sc))
	assert.True(os.IsNotExist(err))

	// deleting an absent descriptor is not an error
	require.NoError(s.Delete(ctx, sc))
}

func TestStore_redo(t *testing.T) {
	assert, require := assert.New(t), require.New(t)
	ctx := context.Background()
	s, dir := testStore(t)
	sc := scope.New(5, 1663)

	// a set followed by a rotation: two log records for the same offset
	require.NoError(s.Write(ctx, testKeyInfo(sc, "mykey", 0, 1)))
	require.NoError(s.Write(ctx, testKeyInfo(sc, "mykey", 1, 1)))

	replayDir := t.TempDir()
	a, err := wal.NewSegmentAppender(ctx, replayDir)
	require.NoError(err)
	t.Cleanup(func() { a.Close() })
	replayed, err := NewStore(ctx, replayDir, a)
	require.NoError(err)
	m := wal.NewManager()
	require.NoError(replayed.RegisterRedo(ctx, m))

	applied, err := wal.Replay(ctx, dir, m)
	require.NoError(err)
	assert.Equal(2, applied)

	want, err := os.ReadFile(descriptorFile(dir, sc))
	require.NoError(err)
	got, err := os.ReadFile(descriptorFile(replayDir, sc))
	require.NoError(err)
	assert.Equal(want, got)

	// replaying the same log again converges on the same bytes
	applied, err = wal.Replay(ctx, dir, m)
	require.NoError(err)
	assert.Equal(2, applied)
	got, err = os.ReadFile(descriptorFile(replayDir, sc))
	require.NoError(err)
	assert.Equal(want, got)
}

func TestStore_redoRejectsShortPayload(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s, _ := testStore(t)

	err := s.Redo(ctx, wal.Record{
		Type:    wal.RecordTypeSetPrincipalKey,
		Scope:   scope.New(5, 1663),
		Offset:  0,
		Payload: make([]byte, KeyInfoSize-1),
	})
	assert.True(errors.IsCorruptError(err))
}
