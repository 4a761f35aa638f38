package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/netmd-tools/mdctl/pkg/cache"
	"github.com/netmd-tools/mdctl/pkg/devices"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List supported NetMD units",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, d := range devices.Descriptions {
			otf := ""
			if d.OnTheFly {
				otf = " [on-the-fly LP2/LP4]"
			}
			fmt.Printf("%s%s\n", d, otf)
		}
		return nil
	},
}

var backupsCmd = &cobra.Command{
	Use:   "backups",
	Short: "Manage disc header backups",
}

var backupsListCmd = &cobra.Command{
	Use:   "list [device]",
	Short: "List header backups of a device, newest first",
	Long:  "List header backups. The device defaults to the connected one.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		list := func(device string) error {
			backups, err := cache.New().List(device, cache.PayloadKindTOC)
			if err != nil {
				return err
			}
			for _, b := range backups {
				fmt.Printf("%s  %s\n", b.Sum[:min(12, len(b.Sum))], b.Time.Format(time.DateTime))
			}
			return nil
		}
		if len(args) > 0 {
			return list(args[0])
		}
		return withApp(func(a *desktopApp) error {
			return list(a.Name())
		})
	},
}

var backupsRestoreCmd = &cobra.Command{
	Use:   "restore [checksum]",
	Short: "Write a header backup back to the disc",
	Long:  "Write a header backup back to the disc. A unique prefix of the checksum is enough.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *desktopApp) error {
			if a.Backups == nil {
				return fmt.Errorf("backups are disabled in %s", configPath)
			}
			b, err := a.Backups.Find(a.Name(), cache.PayloadKindTOC, args[0])
			if err != nil {
				return err
			}
			return a.RestoreHeader(b)
		})
	},
}
