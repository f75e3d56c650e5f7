package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/diodeinc/pcb-layout-lens/cmd/snapshot"
	"github.com/diodeinc/pcb-layout-lens/cmd/sync"
	"github.com/diodeinc/pcb-layout-lens/internal/logger"
	"github.com/diodeinc/pcb-layout-lens/internal/version"
	"github.com/spf13/cobra"
)

var Debug bool

// Build-time variables set via ldflags
var (
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var RootCmd = &cobra.Command{
	Use:   "pcblens",
	Short: "Synchronize a PCB layout with its source netlist",
	Long: fmt.Sprintf(`pcblens keeps a PCB layout in sync with the netlist it was derived
from, without discarding manual placement, grouping, or routing work.

Version: %s@%s %s %s

Commands:
  sync      Apply a netlist's changes onto an existing layout
  snapshot  Emit the canonical JSON snapshot of a layout
  version   Show version information

Use "pcblens [command] --help" for more information about a command.`,
		version.Version(), GitCommit, platform(), BuildDate),
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogger()
		return nil
	},
}

func init() {
	RootCmd.PersistentFlags().BoolVar(&Debug, "debug", false, "Enable debug logging")
	RootCmd.AddCommand(sync.Cmd)
	RootCmd.AddCommand(snapshot.Cmd)
	RootCmd.AddCommand(VersionCmd)
}

func setupLogger() {
	level := slog.LevelInfo
	if Debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	handler := slog.NewTextHandler(os.Stderr, opts)
	logger.SetGlobal(slog.New(handler), Debug)
}

// platform returns the OS/architecture combination
func platform() string {
	return runtime.GOOS + "/" + runtime.GOARCH
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
