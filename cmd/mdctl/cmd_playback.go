package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/netmd-tools/mdctl/pkg/netmd"
)

// simpleCmd makes a command running one argument-less device operation.
func simpleCmd(use, short string, op func(d *netmd.Device) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *desktopApp) error {
				return op(a.Dev)
			})
		},
	}
}

var (
	stopCmd     = simpleCmd("stop", "Stop playback", (*netmd.Device).Stop)
	pauseCmd    = simpleCmd("pause", "Pause playback", (*netmd.Device).Pause)
	fforwardCmd = simpleCmd("fforward", "Fast forward", (*netmd.Device).FastForward)
	rewindCmd   = simpleCmd("rewind", "Rewind", (*netmd.Device).Rewind)
	nextCmd     = simpleCmd("next", "Skip to the next track", (*netmd.Device).Next)
	previousCmd = simpleCmd("previous", "Skip to the previous track", (*netmd.Device).Previous)
	restartCmd  = simpleCmd("restart", "Restart the current track", (*netmd.Device).Restart)
)

var playCmd = &cobra.Command{
	Use:   "play [track]",
	Short: "Start playback, optionally from a track",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var track uint16
		if len(args) > 0 {
			var err error
			if track, err = parseTrack(args[0]); err != nil {
				return err
			}
		}
		return withApp(func(a *desktopApp) error {
			if len(args) > 0 {
				if err := a.Dev.SetTrack(track); err != nil {
					return err
				}
			}
			return a.Dev.Play()
		})
	},
}

var setTimeCmd = &cobra.Command{
	Use:   "settime [track] [hour] [minute] [second] [frame]",
	Short: "Seek within a track",
	Long: `Seek to a position within a track. With three numbers after the track they
are minute, second and frame, with two minute and second.`,
	Args: cobra.RangeArgs(3, 5),
	RunE: func(cmd *cobra.Command, args []string) error {
		track, err := parseTrack(args[0])
		if err != nil {
			return err
		}
		var nums []uint8
		for _, a := range args[1:] {
			n, err := parseNumber(a, 8)
			if err != nil {
				return err
			}
			nums = append(nums, uint8(n))
		}
		var t netmd.Time
		switch len(nums) {
		case 4:
			t = netmd.Time{Hour: uint16(nums[0]), Minute: nums[1], Second: nums[2], Frame: nums[3]}
		case 3:
			t = netmd.Time{Minute: nums[0], Second: nums[1], Frame: nums[2]}
		case 2:
			t = netmd.Time{Minute: nums[0], Second: nums[1]}
		}
		return withApp(func(a *desktopApp) error {
			return a.Dev.SetTime(track, t)
		})
	},
}

var setPlayModeCmd = &cobra.Command{
	Use:   "setplaymode [single|repeat|shuffle]...",
	Short: "Set the play mode flags",
	RunE: func(cmd *cobra.Command, args []string) error {
		var mode netmd.PlayMode
		for _, a := range args {
			m, ok := netmd.PlayModes[a]
			if !ok {
				return fmt.Errorf("unknown play mode %q", a)
			}
			mode |= m
		}
		slog.Debug("Play mode", "mode", fmt.Sprintf("%#x", uint16(mode)))
		return withApp(func(a *desktopApp) error {
			return a.Dev.SetPlayMode(mode)
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current track and position",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *desktopApp) error {
			track, err := a.Dev.CurrentTrack()
			if err != nil {
				return err
			}
			pos, err := a.Dev.Position()
			if err != nil {
				return err
			}
			title, err := a.Dev.TrackTitle(track)
			if err != nil {
				slog.Warn("Could not read title", "track", track, "err", err)
			}
			fmt.Printf("Current track: %d %s\n", track, title)
			fmt.Printf("Current playback position: %s\n", pos)
			return nil
		})
	},
}
