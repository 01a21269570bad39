package wal

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/tde/internal/errors"
	"github.com/hashicorp/tde/internal/types/scope"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRecord(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name            string
		r               Record
		wantErrContains string
	}{
		{
			name: "valid",
			r: Record{
				Type:    RecordTypeAddKeyProvider,
				Scope:   scope.New(5, scope.DefaultTablespaceId),
				Offset:  4384,
				Payload: []byte("fixed size provider record bytes"),
			},
		},
		{
			name: "missing-type",
			r: Record{
				Scope:   scope.Global,
				Payload: []byte("x"),
			},
			wantErrContains: "missing record type",
		},
		{
			name: "missing-payload",
			r: Record{
				Type:  RecordTypeSetPrincipalKey,
				Scope: scope.Global,
			},
			wantErrContains: "missing payload",
		},
		{
			name: "oversize-payload",
			r: Record{
				Type:    RecordTypeSetPrincipalKey,
				Scope:   scope.Global,
				Payload: make([]byte, maxPayloadSize+1),
			},
			wantErrContains: "exceeds",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			d, err := EncodeRecord(ctx, tt.r)
			if tt.wantErrContains != "" {
				require.Error(err)
				assert.Contains(err.Error(), tt.wantErrContains)
				return
			}
			require.NoError(err)

			got, err := DecodeRecord(ctx, bytes.NewReader(d))
			require.NoError(err)
			assert.Equal(tt.r.Type, got.Type)
			assert.Equal(tt.r.Scope, got.Scope)
			assert.Equal(tt.r.Offset, got.Offset)
			assert.Equal(tt.r.Payload, got.Payload)
		})
	}
}

func TestDecodeRecord_corruption(t *testing.T) {
	ctx := context.Background()
	assert, require := assert.New(t), require.New(t)
	d, err := EncodeRecord(ctx, Record{
		Type:    RecordTypeAddKeyProvider,
		Scope:   scope.ForDatabase(1),
		Payload: []byte("payload"),
	})
	require.NoError(err)

	t.Run("flipped-byte", func(t *testing.T) {
		bad := append([]byte(nil), d...)
		bad[len(bad)-6] ^= 0xff
		_, err := DecodeRecord(ctx, bytes.NewReader(bad))
		assert.True(errors.IsCorruptError(err))
	})
	t.Run("torn-tail", func(t *testing.T) {
		_, err := DecodeRecord(ctx, bytes.NewReader(d[:len(d)-3]))
		assert.ErrorIs(err, io.ErrUnexpectedEOF)
	})
	t.Run("empty", func(t *testing.T) {
		_, err := DecodeRecord(ctx, bytes.NewReader(nil))
		assert.ErrorIs(err, io.EOF)
	})
}

func TestManager(t *testing.T) {
	ctx := context.Background()
	assert, require := assert.New(t), require.New(t)
	m := NewManager()

	var got []Record
	handler := func(_ context.Context, r Record) error {
		got = append(got, r)
		return nil
	}
	require.NoError(m.Register(ctx, RecordTypeAddKeyProvider, handler))

	err := m.Register(ctx, RecordTypeAddKeyProvider, handler)
	require.Error(err)
	assert.True(errors.IsUniqueError(err))

	err = m.Register(ctx, RecordTypeUnknown, handler)
	require.Error(err)

	rec := Record{Type: RecordTypeAddKeyProvider, Scope: scope.Global, Payload: []byte("p")}
	require.NoError(m.Redo(ctx, rec))
	require.Len(got, 1)
	assert.Equal(rec.Payload, got[0].Payload)

	err = m.Redo(ctx, Record{Type: RecordTypeSetPrincipalKey, Payload: []byte("p")})
	require.Error(err)
	assert.Contains(err.Error(), "no handler registered")
}

func TestSegmentAppendReplay(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	a, err := NewSegmentAppender(ctx, dir)
	require.NoError(t, err)
	defer a.Close()

	recs := []Record{
		{Type: RecordTypeAddKeyProvider, Scope: scope.ForDatabase(10), Offset: 0, Payload: []byte("provider-1")},
		{Type: RecordTypeAddKeyProvider, Scope: scope.ForDatabase(10), Offset: 2192, Payload: []byte("provider-2")},
		{Type: RecordTypeSetPrincipalKey, Scope: scope.ForDatabase(10), Offset: 0, Payload: []byte("key-descriptor")},
	}
	for _, r := range recs {
		require.NoError(t, a.Append(ctx, r))
	}

	t.Run("full-replay", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		m := NewManager()
		var gotProviders, gotKeys []Record
		require.NoError(m.Register(ctx, RecordTypeAddKeyProvider, func(_ context.Context, r Record) error {
			gotProviders = append(gotProviders, r)
			return nil
		}))
		require.NoError(m.Register(ctx, RecordTypeSetPrincipalKey, func(_ context.Context, r Record) error {
			gotKeys = append(gotKeys, r)
			return nil
		}))

		applied, err := Replay(ctx, dir, m)
		require.NoError(err)
		assert.Equal(3, applied)
		require.Len(gotProviders, 2)
		require.Len(gotKeys, 1)
		assert.Equal(uint64(2192), gotProviders[1].Offset)
	})

	t.Run("torn-tail-stops-replay", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		path := filepath.Join(dir, SegmentFileName)
		full, err := os.ReadFile(path)
		require.NoError(err)
		require.NoError(os.WriteFile(path, full[:len(full)-5], 0o600))

		m := NewManager()
		var n int
		require.NoError(m.Register(ctx, RecordTypeAddKeyProvider, func(context.Context, Record) error { n++; return nil }))
		require.NoError(m.Register(ctx, RecordTypeSetPrincipalKey, func(context.Context, Record) error { n++; return nil }))
		applied, err := Replay(ctx, dir, m)
		require.NoError(err)
		assert.Equal(2, applied)
		assert.Equal(2, n)
	})

	t.Run("missing-segment-is-empty", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		applied, err := Replay(ctx, t.TempDir(), NewManager())
		require.NoError(err)
		assert.Zero(applied)
	})
}
