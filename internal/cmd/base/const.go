package base

const (
	// FlagNameDataDir is the flag used in the base command to read in the
	// directory holding the key state.
	FlagNameDataDir = "data-dir"
	// FlagNameConfig is the flag used in the base command to read in the
	// path of the configuration file.
	FlagNameConfig = "config"
	// FlagNameDatabaseId is the flag used in the base command to read in
	// the database id of the scope to operate on.
	FlagNameDatabaseId = "database-id"
	// FlagNameTablespaceId is the flag used in the base command to read in
	// the tablespace id of the scope to operate on.
	FlagNameTablespaceId = "tablespace-id"
	// FlagNameFilter is the flag used in list commands to filter the items
	// returned.
	FlagNameFilter = "filter"
)

const (
	EnvTdeCLINoColor = `TDE_CLI_NO_COLOR`
	EnvTdeCLIFormat  = `TDE_CLI_FORMAT`
	EnvTdeDataDir    = `TDE_DATA_DIR`
)
