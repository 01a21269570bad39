package principalkeycmd

import (
	"fmt"

	"github.com/hashicorp/tde/internal/cmd/base"
	"github.com/mitchellh/cli"
	"github.com/mitchellh/go-wordwrap"
	"github.com/posener/complete"
)

var (
	_ cli.Command             = (*VerifyCommand)(nil)
	_ cli.CommandAutocomplete = (*VerifyCommand)(nil)
)

type VerifyCommand struct {
	*base.Command
}

func (c *VerifyCommand) Synopsis() string {
	return wordwrap.WrapString("Verify that the principal key of a scope is loadable", base.TermWidth)
}

func (c *VerifyCommand) Help() string {
	return base.WrapForHelpText([]string{
		"Usage: tde principal-key verify [options]",
		"",
		"  Checks that a scope's principal key descriptor exists, that its provider record resolves and that the provider still returns the versioned secret. Run this after changing a provider's options. Example:",
		"",
		`    $ tde principal-key verify -database-id 5`,
		"",
		"",
	}) + c.Flags().Help()
}

func (c *VerifyCommand) Flags() *base.FlagSets {
	set := c.FlagSet(base.FlagSetScope | base.FlagSetOutputFormat)

	return set
}

func (c *VerifyCommand) AutocompleteArgs() complete.Predictor {
	return complete.PredictAnything
}

func (c *VerifyCommand) AutocompleteFlags() complete.Flags {
	return c.Flags().Completions()
}

func (c *VerifyCommand) Run(args []string) int {
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

	if err := k.VerifyPrincipalKey(c.Context, sc); err != nil {
		c.PrintKmsError(err, fmt.Sprintf("The principal key of scope %s is not loadable", sc))
		return base.CommandKmsError
	}

	switch base.Format(c.UI) {
	case "json":
		output := struct {
			DatabaseId   uint32 `json:"database_id"`
			TablespaceId uint32 `json:"tablespace_id"`
			Loadable     bool   `json:"loadable"`
		}{
			DatabaseId:   sc.DatabaseId,
			TablespaceId: sc.TablespaceId,
			Loadable:     true,
		}
		b, _ := base.JsonFormatter{}.Format(output)
		c.UI.Output(string(b))
	default:
		c.UI.Output(fmt.Sprintf("The principal key of scope %s is loadable.", sc))
	}

	return base.CommandSuccess
}
