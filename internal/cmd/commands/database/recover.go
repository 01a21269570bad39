package database

import (
	"fmt"

	"github.com/hashicorp/tde/internal/cmd/base"
	"github.com/hashicorp/tde/internal/wal"
	"github.com/mitchellh/cli"
	"github.com/mitchellh/go-wordwrap"
	"github.com/posener/complete"
)

var (
	_ cli.Command             = (*RecoverCommand)(nil)
	_ cli.CommandAutocomplete = (*RecoverCommand)(nil)
)

type RecoverCommand struct {
	*base.Command
}

func (c *RecoverCommand) Synopsis() string {
	return wordwrap.WrapString("Replay the write-ahead log over the key state", base.TermWidth)
}

func (c *RecoverCommand) Help() string {
	return base.WrapForHelpText([]string{
		"Usage: tde database recover [options]",
		"",
		"  Replays the data directory's write-ahead log over the key state files, rewriting each logged record at its logged offset. The replay is idempotent and stops cleanly at a torn tail, so it is safe to run after a crash or on a standby copy of the directory. Example:",
		"",
		`    $ tde database recover -data-dir /var/lib/tde`,
		"",
		"",
	}) + c.Flags().Help()
}

func (c *RecoverCommand) Flags() *base.FlagSets {
	set := c.FlagSet(base.FlagSetOutputFormat)

	return set
}

func (c *RecoverCommand) AutocompleteArgs() complete.Predictor {
	return complete.PredictAnything
}

func (c *RecoverCommand) AutocompleteFlags() complete.Flags {
	return c.Flags().Completions()
}

func (c *RecoverCommand) Run(args []string) int {
	f := c.Flags()

	if err := f.Parse(args); err != nil {
		c.PrintCliError(err)
		return base.CommandUserError
	}

	dir, err := c.DataDir()
	if err != nil {
		c.PrintCliError(err)
		return base.CommandUserError
	}

	k, cleanup, err := c.Kms(c.Context)
	if err != nil {
		c.PrintCliError(err)
		return base.CommandCliError
	}
	defer func() {
		if err := cleanup(); err != nil {
			c.PrintCliError(fmt.Errorf("Error closing key store: %w", err))
		}
	}()

	m := wal.NewManager()
	if err := k.RegisterRedo(c.Context, m); err != nil {
		c.PrintKmsError(err, "Error registering redo handlers")
		return base.CommandCliError
	}

	applied, err := wal.Replay(c.Context, dir, m)
	if err != nil {
		c.PrintKmsError(err, "Error replaying the write-ahead log")
		return base.CommandKmsError
	}

	switch base.Format(c.UI) {
	case "json":
		output := struct {
			AppliedRecords int `json:"applied_records"`
		}{
			AppliedRecords: applied,
		}
		b, _ := base.JsonFormatter{}.Format(output)
		c.UI.Output(string(b))
	default:
		c.UI.Output(fmt.Sprintf("The recover operation completed successfully, %d records applied.", applied))
	}

	return base.CommandSuccess
}
