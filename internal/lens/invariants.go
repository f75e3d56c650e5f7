package lens

import (
	"fmt"
	"sort"

	"github.com/diodeinc/pcb-layout-lens/internal/diagnostics"
	"github.com/diodeinc/pcb-layout-lens/model"
)

// CheckInvariants verifies the lens laws and the NoLeafGroups /
// GroupMembership invariants (spec.md §3) over a view/complement pair,
// returning one diagnostic per violation. None of these are fatal here;
// callers decide severity escalation (spec.md §7).
func CheckInvariants(view model.BoardView, complement model.BoardComplement) []diagnostics.Diagnostic {
	var diags []diagnostics.Diagnostic

	// L1 ViewConsistency: complement domain must equal view domain.
	for id := range complement.Footprints {
		if _, ok := view.Footprints[id]; !ok {
			diags = append(diags, diagnostics.Diagnostic{
				Kind:     diagnostics.KindDomainMismatch,
				Severity: diagnostics.SeverityError,
				Body:     fmt.Sprintf("complement has footprint %s absent from view", id),
				Path:     id.Path.String(),
			})
		}
	}
	for id := range view.Footprints {
		if _, ok := complement.Footprints[id]; !ok {
			diags = append(diags, diagnostics.Diagnostic{
				Kind:     diagnostics.KindDomainMismatch,
				Severity: diagnostics.SeverityError,
				Body:     fmt.Sprintf("view has footprint %s absent from complement", id),
				Path:     id.Path.String(),
			})
		}
	}

	footprintPaths := map[string]bool{}
	for id := range view.Footprints {
		footprintPaths[id.Path.String()] = true
	}

	for gid, g := range view.Groups {
		// NoLeafGroups: a group's path must not coincide with any
		// footprint's path.
		if footprintPaths[gid.Path.String()] {
			diags = append(diags, diagnostics.Diagnostic{
				Kind:     diagnostics.KindNoLeafGroups,
				Severity: diagnostics.SeverityError,
				Body:     fmt.Sprintf("group %s shares its path with a footprint", gid),
				Path:     gid.Path.String(),
			})
		}

		if len(g.MemberIds) == 0 {
			diags = append(diags, diagnostics.Diagnostic{
				Kind:     diagnostics.KindEmptyGroup,
				Severity: diagnostics.SeverityWarning,
				Body:     fmt.Sprintf("group %s has no members", gid),
				Path:     gid.Path.String(),
			})
		}

		// GroupMembership: every member must be a footprint present in
		// the view and a strict descendant of the group's path.
		for _, mid := range g.MemberIds {
			fv, ok := view.Footprints[mid]
			if !ok {
				diags = append(diags, diagnostics.Diagnostic{
					Kind:     diagnostics.KindInvalidGroupMember,
					Severity: diagnostics.SeverityError,
					Body:     fmt.Sprintf("group %s member %s is not in the view", gid, mid),
					Path:     gid.Path.String(),
				})
				continue
			}
			if !gid.Path.IsAncestorOf(fv.Path()) {
				diags = append(diags, diagnostics.Diagnostic{
					Kind:     diagnostics.KindInvalidGroupMember,
					Severity: diagnostics.SeverityError,
					Body:     fmt.Sprintf("group %s member %s is not a descendant of its path", gid, mid),
					Path:     gid.Path.String(),
				})
			}
		}
	}

	// Unknown nets: routing elements referencing a net not in the view
	// (or the empty no-net sentinel) violate L4 StructuralFidelity.
	netNames := map[string]bool{"": true}
	for name := range view.Nets {
		netNames[name] = true
	}
	unknown := map[string]bool{}
	for _, gc := range complement.Groups {
		for _, t := range gc.Tracks {
			if !netNames[t.NetName] {
				unknown[t.NetName] = true
			}
		}
		for _, v := range gc.Vias {
			if !netNames[v.NetName] {
				unknown[v.NetName] = true
			}
		}
		for _, z := range gc.Zones {
			if !netNames[z.NetName] {
				unknown[z.NetName] = true
			}
		}
	}
	if len(unknown) > 0 {
		names := make([]string, 0, len(unknown))
		for n := range unknown {
			names = append(names, n)
		}
		sort.Strings(names)
		diags = append(diags, diagnostics.Diagnostic{
			Kind:     diagnostics.KindUnknownNets,
			Severity: diagnostics.SeverityWarning,
			Body:     fmt.Sprintf("routing references nets absent from the view: %v", names),
		})
	}

	sort.Slice(diags, func(i, j int) bool {
		if diags[i].Kind != diags[j].Kind {
			return diags[i].Kind < diags[j].Kind
		}
		return diags[i].Path < diags[j].Path
	})
	return diags
}
