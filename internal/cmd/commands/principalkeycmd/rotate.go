package principalkeycmd

import (
	"fmt"

	"github.com/hashicorp/tde/internal/cmd/base"
	"github.com/hashicorp/tde/internal/kms"
	"github.com/mitchellh/cli"
	"github.com/mitchellh/go-wordwrap"
	"github.com/posener/complete"
)

var (
	_ cli.Command             = (*RotateCommand)(nil)
	_ cli.CommandAutocomplete = (*RotateCommand)(nil)
)

type RotateCommand struct {
	*base.Command

	flagNewKeyName   string
	flagNewProvider  string
	flagEnsureNewKey bool
}

func (c *RotateCommand) Synopsis() string {
	return wordwrap.WrapString("Rotate the principal key of a scope", base.TermWidth)
}

func (c *RotateCommand) Help() string {
	return base.WrapForHelpText([]string{
		"Usage: tde principal-key rotate [options]",
		"",
		"  Rotates a scope's principal key to the next version of its current name, or to a new name or provider. Running transactions keep the old key until they finish; new ones see the rotated key. Example:",
		"",
		`    $ tde principal-key rotate -database-id 5`,
		"",
		"",
	}) + c.Flags().Help()
}

func (c *RotateCommand) Flags() *base.FlagSets {
	set := c.FlagSet(base.FlagSetScope | base.FlagSetOutputFormat)
	f := set.NewFlagSet("Command Options")

	f.StringVar(&base.StringVar{
		Name:   "new-key-name",
		Target: &c.flagNewKeyName,
		Usage: "Rotate to this key name instead of the current one. A name " +
			"different from the current one restarts the version chain at 0.",
	})

	f.StringVar(&base.StringVar{
		Name:   "new-provider",
		Target: &c.flagNewProvider,
		Usage:  "Rotate the key onto this provider instead of the current one.",
	})

	f.BoolVar(&base.BoolVar{
		Name:   "ensure-new-key",
		Target: &c.flagEnsureNewKey,
		Usage: "Generate fresh key material at the first free version instead of " +
			"adopting an existing version the provider already holds.",
	})

	return set
}

func (c *RotateCommand) AutocompleteArgs() complete.Predictor {
	return complete.PredictAnything
}

func (c *RotateCommand) AutocompleteFlags() complete.Flags {
	return c.Flags().Completions()
}

func (c *RotateCommand) Run(args []string) int {
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

	var opt []kms.Option
	if c.flagNewKeyName != "" {
		opt = append(opt, kms.WithNewKeyName(c.flagNewKeyName))
	}
	if c.flagNewProvider != "" {
		opt = append(opt, kms.WithNewProviderName(c.flagNewProvider))
	}
	if c.flagEnsureNewKey {
		opt = append(opt, kms.WithEnsureNewKey(true))
	}
	if _, err := k.RotatePrincipalKey(c.Context, sc, opt...); err != nil {
		c.PrintKmsError(err, "Error rotating principal key")
		return base.CommandKmsError
	}

	desc, err := k.PrincipalKeyInfo(c.Context, sc)
	if err != nil {
		c.PrintKmsError(err, "Error describing principal key after rotate")
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
