package keyproviderscmd

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-secure-stdlib/parseutil"
	"github.com/hashicorp/tde/internal/cmd/base"
	"github.com/mitchellh/cli"
	"github.com/mitchellh/go-wordwrap"
	"github.com/posener/complete"
)

var (
	_ cli.Command             = (*UpdateCommand)(nil)
	_ cli.CommandAutocomplete = (*UpdateCommand)(nil)
)

type UpdateCommand struct {
	*base.Command

	flagName    string
	flagOptions string
}

func (c *UpdateCommand) Synopsis() string {
	return wordwrap.WrapString("Update a key provider's options", base.TermWidth)
}

func (c *UpdateCommand) Help() string {
	return base.WrapForHelpText([]string{
		"Usage: tde key-providers update [options]",
		"",
		"  Replaces the options of a key provider. The provider's name and type are immutable. Example:",
		"",
		`    $ tde key-providers update -database-id 5 -name default -options '{"type":"file","path":"/var/lib/tde/keyring-new"}'`,
		"",
		"  The new options are not checked against the scope's principal key; run \"tde principal-key verify\" afterwards to confirm the key is still loadable.",
		"",
	}) + c.Flags().Help()
}

func (c *UpdateCommand) Flags() *base.FlagSets {
	set := c.FlagSet(base.FlagSetScope | base.FlagSetOutputFormat)
	f := set.NewFlagSet("Command Options")

	f.StringVar(&base.StringVar{
		Name:   "name",
		Target: &c.flagName,
		Usage:  "The name of the provider to update.",
	})

	f.StringVar(&base.StringVar{
		Name:   "options",
		Target: &c.flagOptions,
		Usage:  "The replacement provider options JSON document.",
	})

	return set
}

func (c *UpdateCommand) AutocompleteArgs() complete.Predictor {
	return complete.PredictAnything
}

func (c *UpdateCommand) AutocompleteFlags() complete.Flags {
	return c.Flags().Completions()
}

func (c *UpdateCommand) Run(args []string) int {
	f := c.Flags()

	if err := f.Parse(args); err != nil {
		c.PrintCliError(err)
		return base.CommandUserError
	}

	switch {
	case c.flagName == "":
		c.PrintCliError(errors.New("Provider name must be provided via -name"))
		return base.CommandUserError
	case c.flagOptions == "":
		c.PrintCliError(errors.New("Provider options must be provided via -options"))
		return base.CommandUserError
	}

	sc, err := c.Scope()
	if err != nil {
		c.PrintCliError(err)
		return base.CommandUserError
	}

	options, err := parseutil.ParsePath(c.flagOptions)
	if err != nil && !errors.Is(err, parseutil.ErrNotAUrl) {
		c.PrintCliError(fmt.Errorf("Error resolving provider options: %w", err))
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

	p, err := k.UpdateKeyProvider(c.Context, sc, c.flagName, []byte(options))
	if err != nil {
		c.PrintKmsError(err, "Error updating key provider")
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
