package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mixtape/mixtape/internal/playlist"
)

func newPlaylistCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "playlist",
		Aliases: []string{"pl"},
		Short:   "List and manage playlists",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "Show playlists in display order",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := a.collection()
				if err != nil {
					return err
				}
				a.printPlaylists(c.All())
				return nil
			},
		},
		&cobra.Command{
			Use:   "create <name>",
			Short: "Create an empty playlist",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := a.collection()
				if err != nil {
					return err
				}
				name := ""
				if len(args) == 1 {
					name = args[0]
				}
				p, err := c.Create(name)
				if err != nil {
					return err
				}
				a.successf("created %s (%s)", p.Name, p.ID)
				return nil
			},
		},
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete a playlist",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := a.collection()
				if err != nil {
					return err
				}
				ok, err := c.Delete(args[0])
				if err != nil {
					return err
				}
				if !ok {
					return notFound(args[0])
				}
				a.successf("deleted %s", args[0])
				return nil
			},
		},
		&cobra.Command{
			Use:   "rename <id> <name>",
			Short: "Rename a playlist",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := a.collection()
				if err != nil {
					return err
				}
				ok, err := c.Rename(args[0], args[1])
				if err != nil {
					return err
				}
				if !ok {
					return notFound(args[0])
				}
				a.successf("renamed %s to %s", args[0], args[1])
				return nil
			},
		},
		&cobra.Command{
			Use:   "search <keyword>",
			Short: "Find playlists by name",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := a.collection()
				if err != nil {
					return err
				}
				found := c.Search(args[0])
				if len(found) == 0 {
					a.printf("%s\n", a.theme.Dim.Render("no playlists match "+args[0]))
					return nil
				}
				a.printPlaylists(found)
				return nil
			},
		},
		&cobra.Command{
			Use:   "reorder <id...>",
			Short: "Set the display order; every playlist id must be named once",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := a.collection()
				if err != nil {
					return err
				}
				ok, err := c.ReorderCollection(args)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("order must name each of %s exactly once", strings.Join(c.Order(), ", "))
				}
				a.successf("reordered playlists")
				return nil
			},
		},
		&cobra.Command{
			Use:   "export <id> <file>",
			Short: "Write a playlist to a standalone JSON file",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := a.collection()
				if err != nil {
					return err
				}
				ok, err := c.Export(args[0], args[1])
				if err != nil {
					return err
				}
				if !ok {
					return notFound(args[0])
				}
				a.successf("exported %s to %s", args[0], args[1])
				return nil
			},
		},
		&cobra.Command{
			Use:   "import <file>",
			Short: "Add a playlist from a JSON file, replacing one with the same id",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := a.collection()
				if err != nil {
					return err
				}
				p, replaced, err := c.Import(args[0])
				if err != nil {
					return err
				}
				if replaced {
					a.warnf("replaced existing playlist %s", p.ID)
				}
				a.successf("imported %s (%s, %d songs)", p.Name, p.ID, p.Count())
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear <id>",
			Short: "Remove every song from a playlist",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := a.collection()
				if err != nil {
					return err
				}
				ok, err := c.ClearPlaylist(args[0])
				if err != nil {
					return err
				}
				if !ok {
					return notFound(args[0])
				}
				a.successf("cleared %s", args[0])
				return nil
			},
		},
	)
	return cmd
}

func (a *app) printPlaylists(pls []playlist.Playlist) {
	for _, p := range pls {
		marker := " "
		if p.CurrentPlayingIndex >= 0 {
			marker = a.theme.Accent.Render("▶")
		}
		a.printf("%s %s  %s  %s\n",
			marker,
			a.theme.Title.Render(p.Name),
			a.theme.Dim.Render(p.ID),
			a.theme.Text.Render(fmt.Sprintf("%d songs", p.Count())),
		)
	}
}
