package errors_test

import (
	"context"
	"errors"
	"testing"

	tdeerrors "github.com/hashicorp/tde/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		code tdeerrors.Code
		op   tdeerrors.Op
		msg  string
		opt  []tdeerrors.Option
		want string
	}{
		{
			name: "all-fields",
			code: tdeerrors.InvalidParameter,
			op:   "kms.TestOp",
			msg:  "test msg",
			want: "kms.TestOp: test msg: error #100",
		},
		{
			name: "no-msg-uses-code-info",
			code: tdeerrors.RecordNotFound,
			op:   "keyring.TestOp",
			want: "keyring.TestOp: record not found, search issue: error #1100",
		},
		{
			name: "with-wrapped",
			code: tdeerrors.Io,
			op:   "wal.TestOp",
			msg:  "write failed",
			opt:  []tdeerrors.Option{tdeerrors.WithWrap(errors.New("disk full"))},
			want: "wal.TestOp: write failed: error #3000: disk full",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			opt := append(tt.opt, tdeerrors.WithoutEvent())
			err := tdeerrors.New(ctx, tt.code, tt.op, tt.msg, opt...)
			require.Error(err)
			assert.Equal(tt.want, err.Error())

			var domainErr *tdeerrors.Err
			require.True(tdeerrors.As(err, &domainErr))
			assert.Equal(tt.code, domainErr.Code)
			assert.Equal(tt.op, domainErr.Op)
		})
	}
}

func TestWrap(t *testing.T) {
	ctx := context.Background()
	t.Run("inherits-code-from-wrapped", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		inner := tdeerrors.New(ctx, tdeerrors.RecordNotFound, "keyring.inner", "no provider", tdeerrors.WithoutEvent())
		outer := tdeerrors.Wrap(ctx, inner, "kms.outer", tdeerrors.WithoutEvent())

		var domainErr *tdeerrors.Err
		require.True(tdeerrors.As(outer, &domainErr))
		assert.Equal(tdeerrors.RecordNotFound, domainErr.Code)
		assert.True(tdeerrors.IsNotFoundError(outer))
		assert.True(tdeerrors.Is(outer, inner))
	})
	t.Run("explicit-code-wins", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		inner := tdeerrors.New(ctx, tdeerrors.Io, "wal.inner", "short read", tdeerrors.WithoutEvent())
		outer := tdeerrors.Wrap(ctx, inner, "keyring.outer", tdeerrors.WithCode(tdeerrors.Corrupt), tdeerrors.WithoutEvent())

		var domainErr *tdeerrors.Err
		require.True(tdeerrors.As(outer, &domainErr))
		assert.Equal(tdeerrors.Corrupt, domainErr.Code)
		assert.True(tdeerrors.IsCorruptError(outer))
	})
	t.Run("wraps-stdlib-error", func(t *testing.T) {
		assert := assert.New(t)
		inner := errors.New("plain")
		outer := tdeerrors.Wrap(ctx, inner, "cmd.outer", tdeerrors.WithoutEvent())
		assert.True(tdeerrors.Is(outer, inner))
	})
}

func TestIsPredicates(t *testing.T) {
	ctx := context.Background()
	assert := assert.New(t)

	notFound := tdeerrors.New(ctx, tdeerrors.KeyNotFound, "op", "", tdeerrors.WithoutEvent())
	assert.True(tdeerrors.IsNotFoundError(notFound))
	assert.False(tdeerrors.IsUniqueError(notFound))

	dup := tdeerrors.New(ctx, tdeerrors.NotUnique, "op", "", tdeerrors.WithoutEvent())
	assert.True(tdeerrors.IsUniqueError(dup))

	external := tdeerrors.New(ctx, tdeerrors.KeyringRequest, "op", "", tdeerrors.WithoutEvent())
	assert.True(tdeerrors.IsExternalError(external))
	assert.False(tdeerrors.IsExternalError(notFound))

	config := tdeerrors.New(ctx, tdeerrors.InvalidConfiguration, "op", "", tdeerrors.WithoutEvent())
	assert.True(tdeerrors.IsConfigurationError(config))

	assert.False(tdeerrors.IsNotFoundError(nil))
	assert.False(tdeerrors.IsUniqueError(errors.New("plain")))
}
