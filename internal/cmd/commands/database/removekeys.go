package database

import (
	"fmt"

	"github.com/hashicorp/tde/internal/cmd/base"
	"github.com/mitchellh/cli"
	"github.com/mitchellh/go-wordwrap"
	"github.com/posener/complete"
)

var (
	_ cli.Command             = (*RemoveKeysCommand)(nil)
	_ cli.CommandAutocomplete = (*RemoveKeysCommand)(nil)
)

type RemoveKeysCommand struct {
	*base.Command
}

func (c *RemoveKeysCommand) Synopsis() string {
	return wordwrap.WrapString("Remove all key state of a dropped database", base.TermWidth)
}

func (c *RemoveKeysCommand) Help() string {
	return base.WrapForHelpText([]string{
		"Usage: tde database remove-keys [options]",
		"",
		"  Removes the key state of a scope after its database has been dropped: the cached key is destroyed and the scope's principal key descriptor and provider registry files are deleted. The key material held by the providers themselves is not touched. Example:",
		"",
		`    $ tde database remove-keys -database-id 5`,
		"",
		"  This cannot be undone. The scope's encrypted data becomes unreadable once its key state is gone.",
		"",
	}) + c.Flags().Help()
}

func (c *RemoveKeysCommand) Flags() *base.FlagSets {
	set := c.FlagSet(base.FlagSetScope | base.FlagSetOutputFormat)

	return set
}

func (c *RemoveKeysCommand) AutocompleteArgs() complete.Predictor {
	return complete.PredictAnything
}

func (c *RemoveKeysCommand) AutocompleteFlags() complete.Flags {
	return c.Flags().Completions()
}

func (c *RemoveKeysCommand) Run(args []string) int {
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

	if err := k.RemoveDatabaseKeys(c.Context, sc); err != nil {
		c.PrintKmsError(err, "Error removing database key state")
		return base.CommandKmsError
	}

	switch base.Format(c.UI) {
	case "json":
		output := struct {
			DatabaseId   uint32 `json:"database_id"`
			TablespaceId uint32 `json:"tablespace_id"`
			Removed      bool   `json:"removed"`
		}{
			DatabaseId:   sc.DatabaseId,
			TablespaceId: sc.TablespaceId,
			Removed:      true,
		}
		b, _ := base.JsonFormatter{}.Format(output)
		c.UI.Output(string(b))
	default:
		c.UI.Output(fmt.Sprintf("The key state of scope %s was removed.", sc))
	}

	return base.CommandSuccess
}
