package event

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEventer(t *testing.T) {
	testLock := &sync.Mutex{}
	tests := []struct {
		name            string
		logger          hclog.Logger
		lock            *sync.Mutex
		serverName      string
		config          EventerConfig
		wantErrContains string
	}{
		{
			name:            "missing-logger",
			lock:            testLock,
			serverName:      "test",
			wantErrContains: "missing logger",
		},
		{
			name:            "missing-lock",
			logger:          hclog.Default(),
			serverName:      "test",
			wantErrContains: "missing serialization lock",
		},
		{
			name:            "missing-server-name",
			logger:          hclog.Default(),
			lock:            testLock,
			wantErrContains: "missing server name",
		},
		{
			name:       "empty-config-gets-default-sink",
			logger:     hclog.Default(),
			lock:       testLock,
			serverName: "test",
		},
		{
			name:       "invalid-sink",
			logger:     hclog.Default(),
			lock:       testLock,
			serverName: "test",
			config: EventerConfig{
				Sinks: []*SinkConfig{
					{
						Name:       "invalid",
						EventTypes: []Type{ErrorType},
						Format:     "bare",
						Type:       StderrSink,
					},
				},
			},
			wantErrContains: "not a valid sink format",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			e, err := NewEventer(tt.logger, tt.lock, tt.serverName, tt.config)
			if tt.wantErrContains != "" {
				require.Error(err)
				assert.Nil(e)
				assert.Contains(err.Error(), tt.wantErrContains)
				return
			}
			require.NoError(err)
			require.NotNil(e)
			assert.NotNil(e.broker)
		})
	}
}

func TestEventer_writeCycle(t *testing.T) {
	assert, require := assert.New(t), require.New(t)
	c := TestEventerConfig(t, "TestEventer_writeCycle")
	eventer := TestEventer(t, c.EventerConfig)

	ctx, err := NewEventerContext(context.Background(), eventer)
	require.NoError(err)

	WriteSysEvent(ctx, "eventer_test.testOp", "hello", "name", "alice")
	WriteError(ctx, "eventer_test.testOp", os.ErrPermission)
	require.NoError(WriteObservation(ctx, "eventer_test.testOp", WithHeader("latency-ms", 42)))

	all, err := os.ReadFile(c.AllEvents.Name())
	require.NoError(err)
	assert.Contains(string(all), "eventer_test.testOp")
	assert.Contains(string(all), "hello")

	errOut, err := os.ReadFile(c.ErrorEvents.Name())
	require.NoError(err)
	assert.Contains(string(errOut), "permission denied")
}

func TestWriteSysEvent_fallback(t *testing.T) {
	// no eventer in the ctx and no system eventer: the fallback logger is
	// used and nothing panics
	TestResetSysEventer(t)
	WriteSysEvent(context.Background(), "eventer_test.fallback", "msg with no eventer")
	WriteError(context.Background(), "eventer_test.fallback", os.ErrClosed)
}

func TestConvertArgs(t *testing.T) {
	assert := assert.New(t)
	assert.Nil(ConvertArgs())
	got := ConvertArgs("k1", "v1", "dangling")
	assert.Equal(map[string]any{"k1": "v1", MissingKey: "dangling"}, got)
}
