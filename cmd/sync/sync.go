// Package sync implements the "pcblens sync" subcommand: apply a
// netlist's changes onto an existing layout, writing back the updated
// layout snapshot plus an OpLog and diagnostics report.
package sync

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/diodeinc/pcb-layout-lens/cmd/util"
	"github.com/diodeinc/pcb-layout-lens/internal/apply"
	"github.com/diodeinc/pcb-layout-lens/internal/backend"
	"github.com/diodeinc/pcb-layout-lens/internal/color"
	"github.com/diodeinc/pcb-layout-lens/internal/diagnostics"
	"github.com/diodeinc/pcb-layout-lens/internal/fragment"
	"github.com/diodeinc/pcb-layout-lens/internal/lens"
	"github.com/diodeinc/pcb-layout-lens/internal/logger"
	"github.com/diodeinc/pcb-layout-lens/internal/netlist"
	"github.com/diodeinc/pcb-layout-lens/internal/oplog"
)

var (
	netlistPath  string
	layoutPath   string
	packageRoots []string
	oplogPath    string
	diagsPath    string
	noColor      bool
)

var Cmd = &cobra.Command{
	Use:   "sync",
	Short: "Apply a netlist's changes onto an existing layout",
	Long: `sync extracts the layout's current View/Complement split, builds
a fresh View from --netlist, adapts the layout's Complement to that
View, derives a Changeset against the layout's prior Complement, and
applies it: reconciling nets, additions, removals, group membership,
fragment composition, and hierarchical placement of new content. A
footprint whose path changed in the source is treated as a removal
plus an addition; renames are not tracked.`,
	RunE: runSync,
}

func init() {
	Cmd.Flags().StringVar(&netlistPath, "netlist", "", "path to the netlist JSON document (required)")
	Cmd.Flags().StringVar(&layoutPath, "layout", "", "path to the layout snapshot file (required)")
	Cmd.Flags().StringArrayVar(&packageRoots, "package-root", nil, "name=path mapping for fpid/fragment resolution, repeatable")
	Cmd.Flags().StringVar(&oplogPath, "oplog", "", "path to write the OpLog to (default: stdout)")
	Cmd.Flags().StringVar(&diagsPath, "diagnostics", "", "path to write diagnostics JSON to (default: stderr)")
	Cmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored summary output")
	Cmd.MarkFlagRequired("netlist")
	Cmd.MarkFlagRequired("layout")
}

func runSync(cmd *cobra.Command, args []string) error {
	log := logger.Get()

	roots, err := util.ParsePackageRoots(packageRoots)
	if err != nil {
		return err
	}

	netlistData, err := os.ReadFile(netlistPath)
	if err != nil {
		return fmt.Errorf("reading netlist %s: %w", netlistPath, err)
	}
	doc, err := netlist.Parse(netlistData)
	if err != nil {
		return fmt.Errorf("parsing netlist %s: %w", netlistPath, err)
	}
	viewNew, err := netlist.Get(doc)
	if err != nil {
		return fmt.Errorf("projecting netlist into a view: %w", err)
	}

	b, err := backend.LoadMemoryBackend(layoutPath)
	if err != nil {
		return fmt.Errorf("loading layout %s: %w", layoutPath, err)
	}

	_, complementOld, extractDiags, err := lens.Extract(b)
	if err != nil {
		return fmt.Errorf("extracting layout state: %w", err)
	}

	complementNew, adaptDiags := lens.AdaptComplement(viewNew, complementOld)
	changeset, changesetDiags := lens.BuildChangeset(complementNew, complementOld)

	log.Info("sync starting", "added_footprints", len(changeset.AddedFootprints), "removed_footprints", len(changeset.RemovedFootprints), "added_groups", len(changeset.AddedGroups), "removed_groups", len(changeset.RemovedGroups))

	result, err := apply.ApplyChangeset(viewNew, changeset, b, roots, fragment.YAMLLoader{})
	if err != nil {
		return fmt.Errorf("applying changeset: %w", err)
	}

	allDiags := append([]diagnostics.Diagnostic{}, extractDiags...)
	allDiags = append(allDiags, adaptDiags...)
	allDiags = append(allDiags, changesetDiags...)
	allDiags = append(allDiags, result.Diags...)

	if err := writeOplog(result.Log.Serialize()); err != nil {
		return err
	}
	if err := writeDiagnostics(allDiags); err != nil {
		return err
	}

	for _, d := range allDiags {
		if d.Severity == diagnostics.SeverityError {
			log.Error("diagnostic", "kind", d.Kind, "path", d.Path, "body", d.Body)
		}
	}

	printSummary(result.Log)

	return nil
}

// printSummary prints a Terraform-plan-style colored count of the
// footprints added, changed, and removed by this sync run.
func printSummary(log oplog.OpLog) {
	c := color.New(!noColor)
	var added, changed, removed int
	for _, e := range log.Events {
		switch e.Kind {
		case oplog.KindFootprintAdd:
			added++
		case oplog.KindFootprintReplace:
			changed++
		case oplog.KindFootprintRemove:
			removed++
		}
	}
	fmt.Fprintln(os.Stderr, c.FormatSyncSummary(added, changed, removed))
}

func writeOplog(serialized string) error {
	if oplogPath == "" {
		fmt.Print(serialized)
		return nil
	}
	if err := os.WriteFile(oplogPath, []byte(serialized), 0o644); err != nil {
		return fmt.Errorf("writing oplog to %s: %w", oplogPath, err)
	}
	return nil
}

func writeDiagnostics(diags []diagnostics.Diagnostic) error {
	data, err := diagnostics.MarshalJSON(diags)
	if err != nil {
		return fmt.Errorf("encoding diagnostics: %w", err)
	}
	if diagsPath == "" {
		fmt.Fprintln(os.Stderr, string(data))
		return nil
	}
	if err := os.WriteFile(diagsPath, data, 0o644); err != nil {
		return fmt.Errorf("writing diagnostics to %s: %w", diagsPath, err)
	}
	return nil
}
