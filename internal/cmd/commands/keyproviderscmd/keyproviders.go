package keyproviderscmd

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
	return wordwrap.WrapString("Manage the key providers of a scope", base.TermWidth)
}

func (c *Command) Help() string {
	return base.WrapForHelpText([]string{
		"Usage: tde key-providers <subcommand> [options]",
		"",
		"  This command groups subcommands for managing the key providers registered in a scope.",
		"",
		"    Subcommands: create, delete, list, read, update",
		"",
		"  Please see the individual subcommand help for detailed usage information.",
	})
}

func (c *Command) Run(args []string) int {
	return cli.RunResultHelp
}
