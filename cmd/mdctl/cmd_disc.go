package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/netmd-tools/mdctl/pkg/discheader"
	"github.com/netmd-tools/mdctl/pkg/listing"
)

var discInfoOutput string

var discInfoCmd = &cobra.Command{
	Use:   "disc_info",
	Short: "List the disc title, groups and tracks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := listing.ParseFormat(discInfoOutput)
		if err != nil {
			return err
		}
		return withApp(func(a *desktopApp) error {
			h, err := a.Header()
			if err != nil {
				return fmt.Errorf("could not read disc header: %w", err)
			}
			d, err := listing.Collect(a.Dev, h)
			if err != nil {
				return err
			}
			return d.Write(os.Stdout, format)
		})
	},
}

var capacityCmd = &cobra.Command{
	Use:   "capacity",
	Short: "Show recorded, total and available time",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *desktopApp) error {
			c, err := a.Dev.Capacity()
			if err != nil {
				return err
			}
			fmt.Printf("Recorded:  %s\nTotal:     %s\nAvailable: %s\n", c.Recorded, c.Total, c.Available)
			return nil
		})
	},
}

// editHeader is the body of every command that only changes the header.
func editHeader(fn func(h *discheader.Header) error) error {
	return withApp(func(a *desktopApp) error {
		return a.EditHeader(fn)
	})
}

var renameDiscCmd = &cobra.Command{
	Use:   "rename_disc [title]",
	Short: "Set the disc title, keeping groups",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editHeader(func(h *discheader.Header) error {
			h.SetDiscTitle(args[0])
			return nil
		})
	},
}

var setTitleCmd = &cobra.Command{
	Use:   "settitle [header]",
	Short: "Overwrite the raw disc title text, including group definitions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editHeader(func(h *discheader.Header) error {
			*h = *discheader.Parse(args[0])
			return nil
		})
	},
}

var addGroupCmd = &cobra.Command{
	Use:   "add_group [name] [first] [last]",
	Short: "Create a group spanning tracks first to last (one-based)",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		first, err := parseNumber(args[1], 16)
		if err != nil {
			return err
		}
		last, err := parseNumber(args[2], 16)
		if err != nil {
			return err
		}
		return editHeader(func(h *discheader.Header) error {
			gid, err := h.AddGroup(args[0], int(first), int(last))
			if err == nil {
				slog.Info("Group added", "id", gid)
			}
			return err
		})
	},
}

var newGroupCmd = &cobra.Command{
	Use:   "newgroup [name]",
	Short: "Create an empty group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editHeader(func(h *discheader.Header) error {
			gid, err := h.AddGroup(args[0], discheader.None, discheader.None)
			if err == nil {
				slog.Info("Group added", "id", gid)
			}
			return err
		})
	},
}

func parseGroup(s string) (int, error) {
	gid, err := strconv.Atoi(s)
	if err != nil || gid < 0 {
		return 0, fmt.Errorf("invalid group %q", s)
	}
	return gid, nil
}

var groupCmd = &cobra.Command{
	Use:   "group [track] [group]",
	Short: "Add a track (one-based) to a group",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		track, err := parseNumber(args[0], 16)
		if err != nil {
			return err
		}
		gid, err := parseGroup(args[1])
		if err != nil {
			return err
		}
		return editHeader(func(h *discheader.Header) error {
			return h.AddTrackToGroup(gid, int(track))
		})
	},
}

var retitleCmd = &cobra.Command{
	Use:   "retitle [group] [name]",
	Short: "Rename a group",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		gid, err := parseGroup(args[0])
		if err != nil {
			return err
		}
		return editHeader(func(h *discheader.Header) error {
			return h.RenameGroup(gid, args[1])
		})
	},
}

var deleteGroupCmd = &cobra.Command{
	Use:   "deletegroup [group]",
	Short: "Delete a group, leaving its tracks ungrouped",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		gid, err := parseGroup(args[0])
		if err != nil {
			return err
		}
		return editHeader(func(h *discheader.Header) error {
			return h.DeleteGroup(gid)
		})
	},
}
