// Package lens implements the bidirectional lens between a
// netlist-derived View and a layout-derived Complement: extraction from
// a backend, complement adaptation, invariant checking, and changeset
// synthesis (spec.md §4.2-§4.4).
package lens

import (
	"fmt"
	"sort"
	"strings"

	"github.com/diodeinc/pcb-layout-lens/internal/diagnostics"
	"github.com/diodeinc/pcb-layout-lens/model"
)

// Changeset is the pure set-difference between an old and new
// complement domain (spec.md §4.4): what must be added or removed for
// the backend to match view_new. Removed entries keep their old
// complement values so the apply protocol can use them as placement
// hints (e.g. FPID changes, §8 FP-04).
type Changeset struct {
	AddedFootprints   []model.EntityId
	RemovedFootprints map[model.EntityId]model.FootprintComplement
	AddedGroups       []model.EntityId
	RemovedGroups     map[model.EntityId]model.GroupComplement
}

// BuildChangeset computes the four changeset sets by pure id-domain
// difference, and emits the accompanying diagnostics (spec.md §4.4).
func BuildChangeset(complementNew, complementOld model.BoardComplement) (Changeset, []diagnostics.Diagnostic) {
	cs := Changeset{
		RemovedFootprints: map[model.EntityId]model.FootprintComplement{},
		RemovedGroups:     map[model.EntityId]model.GroupComplement{},
	}
	var diags []diagnostics.Diagnostic

	for id := range complementNew.Footprints {
		if _, ok := complementOld.Footprints[id]; !ok {
			cs.AddedFootprints = append(cs.AddedFootprints, id)
			diags = append(diags, diagnostics.Diagnostic{
				Kind:     diagnostics.KindMissingFootprint,
				Severity: diagnostics.SeverityInfo,
				Body:     fmt.Sprintf("footprint %s will be added", id),
				Path:     id.Path.String(),
			})
		}
	}
	for id, c := range complementOld.Footprints {
		if _, ok := complementNew.Footprints[id]; !ok {
			cs.RemovedFootprints[id] = c
			diags = append(diags, diagnostics.Diagnostic{
				Kind:     diagnostics.KindExtraFootprint,
				Severity: diagnostics.SeverityWarning,
				Body:     fmt.Sprintf("footprint %s is no longer in the source and will be removed", id),
				Path:     id.Path.String(),
			})
		}
	}
	for id := range complementNew.Groups {
		if _, ok := complementOld.Groups[id]; !ok {
			cs.AddedGroups = append(cs.AddedGroups, id)
		}
	}
	for id, c := range complementOld.Groups {
		if _, ok := complementNew.Groups[id]; !ok {
			cs.RemovedGroups[id] = c
		}
	}

	sortIDs(cs.AddedFootprints)
	sortIDs(cs.AddedGroups)

	return cs, diags
}

func sortIDs(ids []model.EntityId) {
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Path.String() != ids[j].Path.String() {
			return ids[i].Path.String() < ids[j].Path.String()
		}
		return ids[i].Fpid < ids[j].Fpid
	})
}

// Serialize renders a deterministic plaintext form of the changeset,
// sorted by path with fields in a fixed order, for use as a snapshot
// test oracle (spec.md §4.4).
func (cs Changeset) Serialize() string {
	removedFP := make([]model.EntityId, 0, len(cs.RemovedFootprints))
	for id := range cs.RemovedFootprints {
		removedFP = append(removedFP, id)
	}
	sortIDs(removedFP)

	removedGR := make([]model.EntityId, 0, len(cs.RemovedGroups))
	for id := range cs.RemovedGroups {
		removedGR = append(removedGR, id)
	}
	sortIDs(removedGR)

	addedGR := append([]model.EntityId(nil), cs.AddedGroups...)
	sortIDs(addedGR)

	var b strings.Builder
	for _, id := range cs.AddedFootprints {
		fmt.Fprintf(&b, "ADD_FOOTPRINT path=%s fpid=%s\n", id.Path.String(), id.Fpid)
	}
	for _, id := range removedFP {
		fmt.Fprintf(&b, "REMOVE_FOOTPRINT path=%s fpid=%s\n", id.Path.String(), id.Fpid)
	}
	for _, id := range addedGR {
		fmt.Fprintf(&b, "ADD_GROUP path=%s\n", id.Path.String())
	}
	for _, id := range removedGR {
		fmt.Fprintf(&b, "REMOVE_GROUP path=%s\n", id.Path.String())
	}
	return b.String()
}
