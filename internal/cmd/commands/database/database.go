package database

import (
	"github.com/hashicorp/tde/internal/cmd/base"
	"github.com/mitchellh/cli"
	"github.com/mitchellh/go-wordwrap"
)

var _ cli.Command = (*Command)(nil)

type Command struct {
	*base.Command
}

func (c *Command) Synopsis() string {
	return wordwrap.WrapString("Manage the key state of a data directory", base.TermWidth)
}

func (c *Command) Help() string {
	return base.WrapForHelpText([]string{
		"Usage: tde database <subcommand> [options]",
		"",
		"  This command groups subcommands operating on the key state of a whole data directory or database.",
		"",
		"    Subcommands: recover, remove-keys",
		"",
		"  Please see the individual subcommand help for detailed usage information.",
	})
}

func (c *Command) Run(args []string) int {
	return cli.RunResultHelp
}
