package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/netmd-tools/mdctl/pkg/config"
)

var rootCmd = &cobra.Command{
	Use:   "mdctl",
	Short: "mdctl controls NetMD minidisc units",
	Long: `Lists, titles, groups and deletes tracks on minidiscs in a NetMD unit
connected over USB, controls playback and downloads wave files to the disc.

Track numbers are zero-based for track commands, and one-based (as shown by
disc_info) for group commands.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

var (
	verboseLog bool
	traceLog   bool
	configPath string

	cfg = config.Default()
)

func setup(cmd *cobra.Command, args []string) error {
	c, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg = c

	flag.Set("logtostderr", "true")
	if verboseLog || cfg.Verbose {
		slog.SetLogLoggerLevel(slog.LevelDebug)
		flag.Set("v", "1")
	}
	if traceLog {
		flag.Set("v", "2")
	}
	return nil
}

func main() {
	sendCmd.Flags().StringVarP(&sendOnTheFly, "onthefly", "d", "", "On-the-fly conversion of SP audio ('lp2' or 'lp4', default from config)")
	discInfoCmd.Flags().StringVarP(&discInfoOutput, "output", "o", "text", "Output format (one of 'text', 'yaml', 'plist')")
	backupsCmd.AddCommand(backupsListCmd)
	backupsCmd.AddCommand(backupsRestoreCmd)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().BoolVarP(&verboseLog, "verbose", "v", false, "Enable verbose debug logging")
	rootCmd.PersistentFlags().BoolVarP(&traceLog, "trace", "t", false, "Trace USB commands and responses")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.Path(), "Path to config file")

	rootCmd.AddCommand(discInfoCmd, capacityCmd, renameDiscCmd, setTitleCmd)
	rootCmd.AddCommand(addGroupCmd, newGroupCmd, groupCmd, retitleCmd, deleteGroupCmd)
	rootCmd.AddCommand(renameCmd, moveCmd, delTrackCmd, deleteCmd, eraseCmd, m3uImportCmd)
	rootCmd.AddCommand(playCmd, stopCmd, pauseCmd, fforwardCmd, rewindCmd, nextCmd, previousCmd, restartCmd)
	rootCmd.AddCommand(setTimeCmd, setPlayModeCmd, statusCmd)
	rootCmd.AddCommand(sendCmd, leaveCmd, rawCmd)
	rootCmd.AddCommand(devicesCmd, backupsCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// glog's -v would collide with the --verbose shorthand.
	flag.CommandLine.VisitAll(func(f *flag.Flag) {
		pf := pflag.PFlagFromGoFlag(f)
		pf.Shorthand = ""
		pflag.CommandLine.AddFlag(pf)
	})
}

func parseNumber(s string, bits int) (uint64, error) {
	var err error
	var res uint64
	if strings.HasPrefix(strings.ToLower(s), "0x") {
		res, err = strconv.ParseUint(s[2:], 16, bits)
	} else {
		res, err = strconv.ParseUint(s, 10, bits)
	}
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return res, nil
}

func parseTrack(s string) (uint16, error) {
	n, err := parseNumber(s, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid track: %w", err)
	}
	return uint16(n), nil
}

// withApp runs fn against the connected device.
func withApp(fn func(a *desktopApp) error) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
