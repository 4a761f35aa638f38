package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/netmd-tools/mdctl/pkg/audio"
	"github.com/netmd-tools/mdctl/pkg/secure"
)

var sendOnTheFly string

var sendCmd = &cobra.Command{
	Use:   "send [file] [title]",
	Short: "Download a wave file to the disc",
	Long: `Download a 16-bit 44.1kHz PCM wave file, an ATRAC3 (LP2/LP4) wave file or
a pre-encoded SP file to the disc. SP files need a unit whose firmware can be
patched.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode := sendOnTheFly
		if mode == "" {
			mode = cfg.OnTheFly
		}
		otf, err := secure.ParseOnTheFly(mode)
		if err != nil {
			return err
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("could not read input: %w", err)
		}
		track, err := audio.Load(data)
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		title := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
		if len(args) > 1 {
			title = args[1]
		}
		slog.Info("Loaded track", "format", track.Wire, "disc", track.Disc, "channels", track.Channels, "bytes", len(track.Data))

		return withApp(func(a *desktopApp) error {
			if otf != secure.NoConversion && !a.Desc.OnTheFly {
				slog.Warn("Device does not support on-the-fly conversion", "device", a.Desc)
			}

			start := time.Now()
			res, err := a.Session(track.SP()).Send(&secure.Upload{
				Track:    track,
				Title:    title,
				OnTheFly: otf,
			})
			var partial *secure.PartialError
			switch {
			case errors.As(err, &partial):
				slog.Warn("Track downloaded, but not titled", "track", partial.Track, "err", partial.Err)
			case err != nil:
				return err
			}
			slog.Info("Done!", "track", res.Track, "uuid", hex.EncodeToString(res.UUID[:]), "seconds", int(time.Since(start).Seconds()))
			return nil
		})
	},
}

var leaveCmd = &cobra.Command{
	Use:   "leave",
	Short: "Tear down a download session left behind by a crashed client",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *desktopApp) error {
			return a.Leave()
		})
	},
}

var rawCmd = &cobra.Command{
	Use:   "raw [hex]",
	Short: "Send a raw command and print the reply",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := hex.DecodeString(strings.ReplaceAll(args[0], " ", ""))
		if err != nil {
			return fmt.Errorf("invalid command: %w", err)
		}
		if len(req) == 0 {
			return fmt.Errorf("empty command")
		}
		return withApp(func(a *desktopApp) error {
			rsp, err := a.Dev.Exchange(req)
			if err != nil {
				return err
			}
			fmt.Println(hex.EncodeToString(rsp))
			return nil
		})
	},
}
