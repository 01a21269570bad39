package cmd

import (
	"github.com/hashicorp/tde/internal/cmd/base"
	"github.com/hashicorp/tde/internal/cmd/commands/database"
	"github.com/hashicorp/tde/internal/cmd/commands/keyproviderscmd"
	"github.com/hashicorp/tde/internal/cmd/commands/principalkeycmd"
	"github.com/hashicorp/tde/internal/cmd/commands/version"

	"github.com/mitchellh/cli"
)

// Commands is the mapping of all the available commands.
var Commands map[string]cli.CommandFactory

func initCommands(ui cli.Ui) {
	Commands = map[string]cli.CommandFactory{
		"key-providers": func() (cli.Command, error) {
			return &keyproviderscmd.Command{
				Command: base.NewCommand(ui),
			}, nil
		},
		"key-providers create": func() (cli.Command, error) {
			return &keyproviderscmd.CreateCommand{
				Command: base.NewCommand(ui),
			}, nil
		},
		"key-providers read": func() (cli.Command, error) {
			return &keyproviderscmd.ReadCommand{
				Command: base.NewCommand(ui),
			}, nil
		},
		"key-providers update": func() (cli.Command, error) {
			return &keyproviderscmd.UpdateCommand{
				Command: base.NewCommand(ui),
			}, nil
		},
		"key-providers delete": func() (cli.Command, error) {
			return &keyproviderscmd.DeleteCommand{
				Command: base.NewCommand(ui),
			}, nil
		},
		"key-providers list": func() (cli.Command, error) {
			return &keyproviderscmd.ListCommand{
				Command: base.NewCommand(ui),
			}, nil
		},

		"principal-key": func() (cli.Command, error) {
			return &principalkeycmd.Command{
				Command: base.NewCommand(ui),
			}, nil
		},
		"principal-key set": func() (cli.Command, error) {
			return &principalkeycmd.SetCommand{
				Command: base.NewCommand(ui),
			}, nil
		},
		"principal-key rotate": func() (cli.Command, error) {
			return &principalkeycmd.RotateCommand{
				Command: base.NewCommand(ui),
			}, nil
		},
		"principal-key read": func() (cli.Command, error) {
			return &principalkeycmd.ReadCommand{
				Command: base.NewCommand(ui),
			}, nil
		},
		"principal-key verify": func() (cli.Command, error) {
			return &principalkeycmd.VerifyCommand{
				Command: base.NewCommand(ui),
			}, nil
		},

		"database": func() (cli.Command, error) {
			return &database.Command{
				Command: base.NewCommand(ui),
			}, nil
		},
		"database recover": func() (cli.Command, error) {
			return &database.RecoverCommand{
				Command: base.NewCommand(ui),
			}, nil
		},
		"database remove-keys": func() (cli.Command, error) {
			return &database.RemoveKeysCommand{
				Command: base.NewCommand(ui),
			}, nil
		},

		"version": func() (cli.Command, error) {
			return &version.Command{
				Command: base.NewCommand(ui),
			}, nil
		},
	}
}
