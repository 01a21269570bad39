package keyproviderscmd

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-secure-stdlib/parseutil"
	"github.com/hashicorp/tde/internal/cmd/base"
	"github.com/hashicorp/tde/internal/keyring"
	"github.com/mitchellh/cli"
	"github.com/mitchellh/go-wordwrap"
	"github.com/posener/complete"
)

var (
	_ cli.Command             = (*CreateCommand)(nil)
	_ cli.CommandAutocomplete = (*CreateCommand)(nil)
)

type CreateCommand struct {
	*base.Command

	flagName    string
	flagType    string
	flagOptions string
}

func (c *CreateCommand) Synopsis() string {
	return wordwrap.WrapString("Register a key provider in a scope", base.TermWidth)
}

func (c *CreateCommand) Help() string {
	return base.WrapForHelpText([]string{
		"Usage: tde key-providers create [options]",
		"",
		"  Registers a key provider in a scope. The provider options are a JSON document whose string fields may use one level of file:// or remote indirection. Example:",
		"",
		`    $ tde key-providers create -database-id 5 -name default -type file -options '{"type":"file","path":"/var/lib/tde/keyring"}'`,
		"",
		"  The -options value itself may also be given as file://path or env://VAR.",
		"",
	}) + c.Flags().Help()
}

func (c *CreateCommand) Flags() *base.FlagSets {
	set := c.FlagSet(base.FlagSetScope | base.FlagSetOutputFormat)
	f := set.NewFlagSet("Command Options")

	f.StringVar(&base.StringVar{
		Name:   "name",
		Target: &c.flagName,
		Usage:  "The name of the provider, unique within its scope.",
	})

	f.StringVar(&base.StringVar{
		Name:       "type",
		Target:     &c.flagType,
		Completion: complete.PredictSet("file", "vault-v2"),
		Usage:      `The type of the provider. Either "file" or "vault-v2".`,
	})

	f.StringVar(&base.StringVar{
		Name:   "options",
		Target: &c.flagOptions,
		Usage:  "The provider options JSON document.",
	})

	return set
}

func (c *CreateCommand) AutocompleteArgs() complete.Predictor {
	return complete.PredictAnything
}

func (c *CreateCommand) AutocompleteFlags() complete.Flags {
	return c.Flags().Completions()
}

func (c *CreateCommand) Run(args []string) int {
	f := c.Flags()

	if err := f.Parse(args); err != nil {
		c.PrintCliError(err)
		return base.CommandUserError
	}

	switch {
	case c.flagName == "":
		c.PrintCliError(errors.New("Provider name must be provided via -name"))
		return base.CommandUserError
	case c.flagType == "":
		c.PrintCliError(errors.New("Provider type must be provided via -type"))
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

	typ, err := keyring.ParseProviderType(c.Context, c.flagType)
	if err != nil {
		c.PrintKmsError(err, "Error parsing provider type")
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

	p, err := k.CreateKeyProvider(c.Context, sc, c.flagName, typ, []byte(options))
	if err != nil {
		c.PrintKmsError(err, "Error creating key provider")
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
