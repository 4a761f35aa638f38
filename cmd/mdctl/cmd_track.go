package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/netmd-tools/mdctl/pkg/cache"
	"github.com/netmd-tools/mdctl/pkg/playlist"
)

var renameCmd = &cobra.Command{
	Use:   "rename [track] [title]",
	Short: "Set the title of a track",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		track, err := parseTrack(args[0])
		if err != nil {
			return err
		}
		return withApp(func(a *desktopApp) error {
			return playlist.Apply(a.Dev, []playlist.Entry{{Track: track, Title: args[1]}})
		})
	},
}

var moveCmd = &cobra.Command{
	Use:   "move [from] [to]",
	Short: "Move a track to another position",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := parseTrack(args[0])
		if err != nil {
			return err
		}
		to, err := parseTrack(args[1])
		if err != nil {
			return err
		}
		return withApp(func(a *desktopApp) error {
			return a.Dev.MoveTrack(from, to)
		})
	},
}

var delTrackCmd = &cobra.Command{
	Use:   "del_track [track]",
	Short: "Delete a track and update the groups",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		track, err := parseTrack(args[0])
		if err != nil {
			return err
		}
		return withApp(func(a *desktopApp) error {
			return a.DeleteTracks(track, track)
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete [first] [last]",
	Short: "Delete a range of tracks",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		first, err := parseTrack(args[0])
		if err != nil {
			return err
		}
		last := first
		if len(args) > 1 {
			last, err = parseTrack(args[1])
			if err != nil {
				return err
			}
		}
		return withApp(func(a *desktopApp) error {
			return a.DeleteTracks(first, last)
		})
	},
}

var eraseCmd = &cobra.Command{
	Use:   "erase force",
	Short: "Erase the whole disc",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if args[0] != "force" {
			return fmt.Errorf("'force' must be given as argument to proceed")
		}
		return withApp(func(a *desktopApp) error {
			if a.Backups != nil {
				raw, err := a.Dev.RawHeader()
				if err == nil {
					_, err = a.Backups.Save(a.Name(), cache.PayloadKindTOC, []byte(raw))
				}
				if err != nil {
					slog.Warn("Could not back up disc header", "err", err)
				}
			}
			slog.Info("Erasing disc...")
			return a.Dev.EraseDisc()
		})
	},
}

var m3uImportCmd = &cobra.Command{
	Use:   "m3uimport [playlist.m3u]",
	Short: "Title tracks from an extended M3U playlist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("could not read playlist: %w", err)
		}
		defer f.Close()
		entries, err := playlist.Parse(f)
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		slog.Info("Playlist parsed", "titles", len(entries))
		return withApp(func(a *desktopApp) error {
			return playlist.Apply(a.Dev, entries)
		})
	},
}
