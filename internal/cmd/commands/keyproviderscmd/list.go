package keyproviderscmd

import (
	"fmt"

	"github.com/hashicorp/tde/internal/cmd/base"
	"github.com/hashicorp/tde/internal/keyring"
	"github.com/mitchellh/cli"
	"github.com/mitchellh/go-wordwrap"
	"github.com/posener/complete"
)

var (
	_ cli.Command             = (*ListCommand)(nil)
	_ cli.CommandAutocomplete = (*ListCommand)(nil)
)

type ListCommand struct {
	*base.Command
}

func (c *ListCommand) Synopsis() string {
	return wordwrap.WrapString("List the key providers of a scope", base.TermWidth)
}

func (c *ListCommand) Help() string {
	return base.WrapForHelpText([]string{
		"Usage: tde key-providers list [options]",
		"",
		"  Lists the live key providers of a scope in record order. Example:",
		"",
		`    $ tde key-providers list -database-id 5`,
		"",
		"  The list can be filtered; the expression operates against the json",
		"  form of each item:",
		"",
		`    $ tde key-providers list -database-id 5 -filter '"/item/type" == "vault-v2"'`,
		"",
		"",
	}) + c.Flags().Help()
}

func (c *ListCommand) Flags() *base.FlagSets {
	set := c.FlagSet(base.FlagSetScope | base.FlagSetOutputFormat | base.FlagSetListFilter)

	return set
}

func (c *ListCommand) AutocompleteArgs() complete.Predictor {
	return complete.PredictAnything
}

func (c *ListCommand) AutocompleteFlags() complete.Flags {
	return c.Flags().Completions()
}

func (c *ListCommand) Run(args []string) int {
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

	filter, err := c.Filter()
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

	providers, err := k.ListKeyProviders(c.Context, sc)
	if err != nil {
		c.PrintKmsError(err, "Error listing key providers")
		return base.CommandKmsError
	}

	// the filter sees each item as it would print in json form
	filtered := make([]*keyring.Provider, 0, len(providers))
	for _, p := range providers {
		if filter.Match(newProviderItem(p)) {
			filtered = append(filtered, p)
		}
	}
	providers = filtered

	switch base.Format(c.UI) {
	case "json":
		if ok := c.PrintJsonItems(newProviderItems(providers)); !ok {
			return base.CommandCliError
		}
	default:
		c.UI.Output(printProviderListTable(providers))
	}

	return base.CommandSuccess
}
