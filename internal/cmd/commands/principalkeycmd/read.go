package principalkeycmd

import (
	"fmt"

	"github.com/hashicorp/tde/internal/cmd/base"
	"github.com/mitchellh/cli"
	"github.com/mitchellh/go-wordwrap"
	"github.com/posener/complete"
)

var (
	_ cli.Command             = (*ReadCommand)(nil)
	_ cli.CommandAutocomplete = (*ReadCommand)(nil)
)

type ReadCommand struct {
	*base.Command
}

func (c *ReadCommand) Synopsis() string {
	return wordwrap.WrapString("Describe the principal key of a scope", base.TermWidth)
}

func (c *ReadCommand) Help() string {
	return base.WrapForHelpText([]string{
		"Usage: tde principal-key read [options]",
		"",
		"  Prints the descriptor of a scope's principal key joined with its provider record. Key material is never printed. Example:",
		"",
		`    $ tde principal-key read -database-id 5`,
		"",
		"",
	}) + c.Flags().Help()
}

func (c *ReadCommand) Flags() *base.FlagSets {
	set := c.FlagSet(base.FlagSetScope | base.FlagSetOutputFormat)

	return set
}

func (c *ReadCommand) AutocompleteArgs() complete.Predictor {
	return complete.PredictAnything
}

func (c *ReadCommand) AutocompleteFlags() complete.Flags {
	return c.Flags().Completions()
}

func (c *ReadCommand) Run(args []string) int {
	f := c.Flags()

	if err := f.Parse(args); err != nil {
		c.PrintCliError(err)
		return base.CommandUserError
	}

	sc, err := c.Scope()
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

	desc, err := k.PrincipalKeyInfo(c.Context, sc)
	if err != nil {
		c.PrintKmsError(err, "Error reading principal key")
		return base.CommandKmsError
	}

	switch base.Format(c.UI) {
	case "json":
		if ok := c.PrintJsonItem(newKeyItem(desc)); !ok {
			return base.CommandCliError
		}
	default:
		c.UI.Output(printKeyTable(desc))
	}

	return base.CommandSuccess
}
