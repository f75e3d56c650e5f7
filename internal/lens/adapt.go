package lens

import (
	"github.com/diodeinc/pcb-layout-lens/internal/diagnostics"
	"github.com/diodeinc/pcb-layout-lens/model"
)

// AdaptComplement is the pure adapter at the heart of the lens
// (spec.md §4.3): it carries every complement entry whose id still
// exists in view_new over verbatim (L2 ComplementPreservation),
// assigns a default complement to newly-appeared ids, and drops
// complement entries whose id left the view (L1/L4). CheckInvariants
// is then run over the result and any violation is reported as a
// non-fatal diagnostic.
func AdaptComplement(viewNew model.BoardView, complementOld model.BoardComplement) (model.BoardComplement, []diagnostics.Diagnostic) {
	out := model.NewBoardComplement()

	for id := range viewNew.Footprints {
		if c, ok := complementOld.Footprints[id]; ok {
			out.Footprints[id] = c
		} else {
			out.Footprints[id] = model.DefaultFootprintComplement()
		}
	}
	for id := range viewNew.Groups {
		if c, ok := complementOld.Groups[id]; ok {
			out.Groups[id] = c
		} else {
			out.Groups[id] = model.DefaultGroupComplement()
		}
	}

	diags := CheckInvariants(viewNew, out)
	return out, diags
}
