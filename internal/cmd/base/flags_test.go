package base

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlagSet_Uint32Var(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name            string
		setString       string
		wantErrContains string
		wantTarget      uint32
	}{
		{
			name:       "decimal",
			setString:  "1663",
			wantTarget: 1663,
		},
		{
			name:       "zero",
			setString:  "0",
			wantTarget: 0,
		},
		{
			name:       "max",
			setString:  "4294967295",
			wantTarget: 4294967295,
		},
		{
			name:            "overflow",
			setString:       "4294967296",
			wantErrContains: "value out of range",
		},
		{
			name:            "negative",
			setString:       "-1",
			wantErrContains: "invalid syntax",
		},
		{
			name:            "not a number",
			setString:       "five",
			wantErrContains: "invalid syntax",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)

			var target uint32
			v := newUint32Value(0, &target, false)

			err := v.Set(tt.setString)
			if tt.wantErrContains != "" {
				require.Error(err)
				assert.Contains(err.Error(), tt.wantErrContains)
				return
			}
			require.NoError(err)
			assert.Equal(tt.wantTarget, target)
		})
	}
}

func TestFlagSets_Parse(t *testing.T) {
	assert, require := assert.New(t), require.New(t)

	t.Setenv(EnvTdeDataDir, "/env/dir")

	var dataDir, format string
	var databaseId, tablespaceId uint32
	var ensure bool

	sets := NewFlagSets()
	f := sets.NewFlagSet("Test Options")
	f.StringVar(&StringVar{
		Name:   FlagNameDataDir,
		Target: &dataDir,
		EnvVar: EnvTdeDataDir,
		Usage:  "test data dir",
	})
	f.Uint32Var(&Uint32Var{
		Name:   FlagNameDatabaseId,
		Target: &databaseId,
		Usage:  "test database id",
	})
	f.Uint32Var(&Uint32Var{
		Name:    FlagNameTablespaceId,
		Target:  &tablespaceId,
		Default: 1663,
		Usage:   "test tablespace id",
	})
	f.StringVar(&StringVar{
		Name:    "format",
		Target:  &format,
		Default: "table",
		Usage:   "test format",
	})
	f.BoolVar(&BoolVar{
		Name:   "ensure-new-key",
		Target: &ensure,
		Usage:  "test bool",
	})

	require.NoError(sets.Parse([]string{"-database-id", "5", "-ensure-new-key"}))

	// The env var fills an unset flag, defaults survive, given flags win.
	assert.Equal("/env/dir", dataDir)
	assert.Equal(uint32(5), databaseId)
	assert.Equal(uint32(1663), tablespaceId)
	assert.Equal("table", format)
	assert.True(ensure)
}

func TestFlagSets_Help(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)

	var visible, hidden string

	sets := NewFlagSets()
	f := sets.NewFlagSet("Test Options")
	f.StringVar(&StringVar{
		Name:   "visible",
		Target: &visible,
		EnvVar: "TDE_TEST_VISIBLE",
		Usage:  "a visible flag",
	})
	f.StringVar(&StringVar{
		Name:   "invisible",
		Target: &hidden,
		Hidden: true,
		Usage:  "a hidden flag",
	})

	require.NoError(sets.Parse(nil))

	help := sets.Help()
	assert.Contains(help, "Test Options:")
	assert.Contains(help, "-visible")
	assert.Contains(help, "a visible flag")
	assert.Contains(help, "TDE_TEST_VISIBLE environment variable")
	assert.NotContains(help, "-invisible")
}
