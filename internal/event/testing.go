package event

import (
	"os"
	"sync"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"
)

// TestConfig defines a configuration suitable for testing and contains the
// temp files the test sinks will write to.
type TestConfig struct {
	EventerConfig EventerConfig
	AllEvents     *os.File
	ErrorEvents   *os.File
}

// TestEventerConfig creates a test config which writes every event type to
// one temp file and error events to a second temp file.
func TestEventerConfig(t testing.TB, testName string) TestConfig {
	t.Helper()
	require := require.New(t)
	tmpAllFile, err := os.CreateTemp(t.TempDir(), "tmp-all-events")
	require.NoError(err)
	tmpErrFile, err := os.CreateTemp(t.TempDir(), "tmp-errors")
	require.NoError(err)

	return TestConfig{
		EventerConfig: EventerConfig{
			ObservationsEnabled: true,
			SysEventsEnabled:    true,
			Sinks: []*SinkConfig{
				{
					Name:       "every-type-file-sink",
					EventTypes: []Type{EveryType},
					Format:     JSONHclogSinkFormat,
					Type:       FileSink,
					FileConfig: &FileSinkTypeConfig{
						FileName: tmpAllFile.Name(),
					},
				},
				{
					Name:       "err-file-sink",
					EventTypes: []Type{ErrorType},
					Format:     JSONHclogSinkFormat,
					Type:       FileSink,
					FileConfig: &FileSinkTypeConfig{
						FileName: tmpErrFile.Name(),
					},
				},
			},
		},
		AllEvents:   tmpAllFile,
		ErrorEvents: tmpErrFile,
	}
}

// TestEventer creates a test eventer for the config.
func TestEventer(t testing.TB, c EventerConfig) *Eventer {
	t.Helper()
	require := require.New(t)
	eventer, err := NewEventer(hclog.Default(), &sync.Mutex{}, t.Name(), c)
	require.NoError(err)
	return eventer
}

// TestWithSysEventer initializes the system wide eventer for the test and
// registers a cleanup which resets it when the test completes.
func TestWithSysEventer(t testing.TB, eventer *Eventer) {
	t.Helper()
	require := require.New(t)
	TestResetSysEventer(t)
	require.NoError(InitSysEventer(hclog.Default(), &sync.Mutex{}, t.Name(), WithEventer(eventer)))
	t.Cleanup(func() {
		TestResetSysEventer(t)
	})
}

// TestResetSysEventer resets the system wide eventer and it's ONLY for tests.
func TestResetSysEventer(t testing.TB) {
	t.Helper()
	sysEventerLock.Lock()
	defer sysEventerLock.Unlock()
	sysEventer = nil
}
