package keyproviderscmd

import (
	"errors"
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

	flagName string
}

func (c *ReadCommand) Synopsis() string {
	return wordwrap.WrapString("Read a key provider in a scope", base.TermWidth)
}

func (c *ReadCommand) Help() string {
	return base.WrapForHelpText([]string{
		"Usage: tde key-providers read [options]",
		"",
		"  Reads a key provider by name. Example:",
		"",
		`    $ tde key-providers read -database-id 5 -name default`,
		"",
		"",
	}) + c.Flags().Help()
}

func (c *ReadCommand) Flags() *base.FlagSets {
	set := c.FlagSet(base.FlagSetScope | base.FlagSetOutputFormat)
	f := set.NewFlagSet("Command Options")

	f.StringVar(&base.StringVar{
		Name:   "name",
		Target: &c.flagName,
		Usage:  "The name of the provider to read.",
	})

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

	if c.flagName == "" {
		c.PrintCliError(errors.New("Provider name must be provided via -name"))
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

	p, err := k.LookupKeyProvider(c.Context, sc, c.flagName)
	if err != nil {
		c.PrintKmsError(err, "Error reading key provider")
		return base.CommandKmsError
	}

	switch base.Format(c.UI) {
	case "json":
		if ok := c.PrintJsonItem(newProviderItem(p)); !ok {
			return base.CommandCliError
		}
	default:
		c.UI.Output(printProviderTable(p))
	}

	return base.CommandSuccess
}
