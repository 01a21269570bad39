package principalkeycmd

import (
	"errors"
	"fmt"

	"github.com/hashicorp/tde/internal/cmd/base"
	"github.com/hashicorp/tde/internal/kms"
	"github.com/mitchellh/cli"
	"github.com/mitchellh/go-wordwrap"
	"github.com/posener/complete"
)

var (
	_ cli.Command             = (*SetCommand)(nil)
	_ cli.CommandAutocomplete = (*SetCommand)(nil)
)

type SetCommand struct {
	*base.Command

	flagKeyName      string
	flagProvider     string
	flagEnsureNewKey bool
}

func (c *SetCommand) Synopsis() string {
	return wordwrap.WrapString("Set the principal key of a scope", base.TermWidth)
}

func (c *SetCommand) Help() string {
	return base.WrapForHelpText([]string{
		"Usage: tde principal-key set [options]",
		"",
		"  Sets the principal key of a scope that has none yet. If the provider already holds versions of the key the latest one is adopted; otherwise fresh key material is generated. Example:",
		"",
		`    $ tde principal-key set -database-id 5 -key-name master -provider default`,
		"",
		"  A scope that already has a principal key refuses this command; rotate instead.",
		"",
	}) + c.Flags().Help()
}

func (c *SetCommand) Flags() *base.FlagSets {
	set := c.FlagSet(base.FlagSetScope | base.FlagSetOutputFormat)
	f := set.NewFlagSet("Command Options")

	f.StringVar(&base.StringVar{
		Name:   "key-name",
		Target: &c.flagKeyName,
		Usage:  "The name of the principal key.",
	})

	f.StringVar(&base.StringVar{
		Name:   "provider",
		Target: &c.flagProvider,
		Usage:  "The name of the key provider holding the key material.",
	})

	f.BoolVar(&base.BoolVar{
		Name:   "ensure-new-key",
		Target: &c.flagEnsureNewKey,
		Usage: "Generate fresh key material at the first free version instead of " +
			"adopting the latest version the provider already holds.",
	})

	return set
}

func (c *SetCommand) AutocompleteArgs() complete.Predictor {
	return complete.PredictAnything
}

func (c *SetCommand) AutocompleteFlags() complete.Flags {
	return c.Flags().Completions()
}

func (c *SetCommand) Run(args []string) int {
	f := c.Flags()

	if err := f.Parse(args); err != nil {
		c.PrintCliError(err)
		return base.CommandUserError
	}

	switch {
	case c.flagKeyName == "":
		c.PrintCliError(errors.New("Key name must be provided via -key-name"))
		return base.CommandUserError
	case c.flagProvider == "":
		c.PrintCliError(errors.New("Provider name must be provided via -provider"))
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

	var opt []kms.Option
	if c.flagEnsureNewKey {
		opt = append(opt, kms.WithEnsureNewKey(true))
	}
	if _, err := k.CreatePrincipalKey(c.Context, sc, c.flagKeyName, c.flagProvider, opt...); err != nil {
		c.PrintKmsError(err, "Error setting principal key")
		return base.CommandKmsError
	}

	desc, err := k.PrincipalKeyInfo(c.Context, sc)
	if err != nil {
		c.PrintKmsError(err, "Error describing principal key after set")
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
