package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/tinoosan/gamedock/internal/commands"
	legendarysrc "github.com/tinoosan/gamedock/internal/source/legendary"
)

var titlesCmd = &cobra.Command{
	Use:   "titles",
	Short: "Load the catalog once and print it as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := setup()
		if err != nil {
			return err
		}
		defer rt.Close()
		if err := rt.initialize(cmd.Context()); err != nil {
			return err
		}
		titles, err := rt.app.Titles.List(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(titles)
	},
}

var commandsCmd = &cobra.Command{
	Use:   "commands [title-id]",
	Short: "Print the commands of a title, or the source-wide commands",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := setup()
		if err != nil {
			return err
		}
		defer rt.Close()
		if err := rt.initialize(cmd.Context()); err != nil {
			return err
		}
		var cmds []commands.Command
		if len(args) == 1 {
			cmds, err = rt.host.TitleCommands(cmd.Context(), args[0])
		} else {
			cmds, err = rt.host.GlobalCommands(cmd.Context(), legendarysrc.Slug)
		}
		if err != nil {
			return err
		}
		return printJSON(commands.Views(cmds))
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
