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
	_ cli.Command             = (*DeleteCommand)(nil)
	_ cli.CommandAutocomplete = (*DeleteCommand)(nil)
)

type DeleteCommand struct {
	*base.Command

	flagName string
}

func (c *DeleteCommand) Synopsis() string {
	return wordwrap.WrapString("Delete a key provider from a scope", base.TermWidth)
}

func (c *DeleteCommand) Help() string {
	return base.WrapForHelpText([]string{
		"Usage: tde key-providers delete [options]",
		"",
		"  Deletes a key provider by name. A provider that still holds the scope's principal key cannot be deleted; rotate the key to another provider first. Example:",
		"",
		`    $ tde key-providers delete -database-id 5 -name old-vault`,
		"",
		"",
	}) + c.Flags().Help()
}

func (c *DeleteCommand) Flags() *base.FlagSets {
	set := c.FlagSet(base.FlagSetScope | base.FlagSetOutputFormat)
	f := set.NewFlagSet("Command Options")

	f.StringVar(&base.StringVar{
		Name:   "name",
		Target: &c.flagName,
		Usage:  "The name of the provider to delete.",
	})

	return set
}

func (c *DeleteCommand) AutocompleteArgs() complete.Predictor {
	return complete.PredictAnything
}

func (c *DeleteCommand) AutocompleteFlags() complete.Flags {
	return c.Flags().Completions()
}

func (c *DeleteCommand) Run(args []string) int {
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

	if err := k.DeleteKeyProvider(c.Context, sc, c.flagName); err != nil {
		c.PrintKmsError(err, "Error deleting key provider")
		return base.CommandKmsError
	}

	switch base.Format(c.UI) {
	case "json":
		output := struct {
			Deleted bool `json:"deleted"`
		}{
			Deleted: true,
		}
		b, _ := base.JsonFormatter{}.Format(output)
		c.UI.Output(string(b))
	default:
		c.UI.Output("The delete operation completed successfully.")
	}

	return base.CommandSuccess
}
