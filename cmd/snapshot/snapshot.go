// Package snapshot implements the "pcblens snapshot" subcommand: emit
// the canonical JSON snapshot of a layout's current state.
package snapshot

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/diodeinc/pcb-layout-lens/internal/backend"
	internalsnapshot "github.com/diodeinc/pcb-layout-lens/internal/snapshot"
)

var (
	layoutPath string
	outPath    string
)

var Cmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Emit the canonical JSON snapshot of a layout",
	Long: `snapshot renders a layout's current footprints, groups, tracks,
vias, and zones as the canonical sort-keyed JSON document, suitable
for diffing two runs byte-for-byte.`,
	RunE: runSnapshot,
}

func init() {
	Cmd.Flags().StringVar(&layoutPath, "layout", "", "path to the layout snapshot file (required)")
	Cmd.Flags().StringVar(&outPath, "out", "", "path to write the snapshot to (default: stdout)")
	Cmd.MarkFlagRequired("layout")
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	b, err := backend.LoadMemoryBackend(layoutPath)
	if err != nil {
		return fmt.Errorf("loading layout %s: %w", layoutPath, err)
	}

	doc, err := internalsnapshot.Build(b)
	if err != nil {
		return fmt.Errorf("building snapshot: %w", err)
	}
	data, err := internalsnapshot.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}

	if outPath == "" {
		fmt.Println(string(data))
		return nil
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("writing snapshot to %s: %w", outPath, err)
	}
	return nil
}
