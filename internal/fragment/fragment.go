// Package fragment implements the composition of pre-laid sub-layouts
// referenced by a group's layout_path (spec.md §4.7): Top-Most
// Fragment Wins discovery, net-remap construction, and the fragment
// repair guard.
package fragment

import (
	"fmt"
	"sort"

	"github.com/diodeinc/pcb-layout-lens/model"
)

// PadKey identifies one pad within a fragment, relative to the
// fragment's own root.
type PadKey struct {
	RelativePath string
	PadName      string
}

// Fragment is a loaded pre-laid sub-layout: its routing (in
// fragment-local net-name terms), per-member footprint placement
// hints, and the pad-to-local-net map used to build the board-relative
// remap.
type Fragment struct {
	GroupComplement       model.GroupComplement
	FootprintComplements  map[string]model.FootprintComplement // keyed by relative path
	PadNetMap             map[PadKey]string
}

// Loader resolves a layout_path (via package_roots) to its parsed
// Fragment. Binding this to a concrete file format is outside the
// lens's core scope (spec.md §1); production callers provide their own
// implementation (e.g. parsing a .kicad_pcb fragment plus its YAML
// sidecar manifest).
type Loader interface {
	Load(layoutPath string, packageRoots map[string]string) (Fragment, error)
}

// DiscoverAuthoritative implements Rule A, "Top-Most Fragment Wins"
// (spec.md §4.7): walking groups in pre-order (shallowest path first,
// then lexicographic), a group with a non-empty LayoutPath is
// authoritative only if no ancestor group has already been admitted.
// Descendants of an admitted group are masked from later placement and
// are not independently checked for their own layout_path.
func DiscoverAuthoritative(view model.BoardView) []model.EntityId {
	groupIDs := make([]model.EntityId, 0, len(view.Groups))
	for gid, g := range view.Groups {
		if g.LayoutPath != "" {
			groupIDs = append(groupIDs, gid)
		}
	}
	sort.Slice(groupIDs, func(i, j int) bool {
		pi, pj := groupIDs[i].Path, groupIDs[j].Path
		if pi.Depth() != pj.Depth() {
			return pi.Depth() < pj.Depth()
		}
		return pi.String() < pj.String()
	})

	var authoritative []model.EntityId
	for _, gid := range groupIDs {
		masked := false
		for _, a := range authoritative {
			if a.Path.IsAncestorOf(gid.Path) {
				masked = true
				break
			}
		}
		if !masked {
			authoritative = append(authoritative, gid)
		}
	}
	return authoritative
}

// BuildNetRemap computes the fragment-local-net -> board-net mapping
// for one group (spec.md §4.7 "Net remap construction"). For each pad
// of each member footprint, the fragment-local net at that pad's
// relative position is looked up in fragment.PadNetMap; the first
// board net observed for a given fragment-local net wins, and every
// subsequent conflicting board net produces a warning diagnostic body
// (callers decide how to surface it). Fragment-local nets with no
// board pad mapping to them are omitted from the result, which callers
// treat as "no net" (empty string).
func BuildNetRemap(group model.GroupView, view model.BoardView, frag Fragment) (map[string]string, []string) {
	members := make(map[model.EntityId]bool, len(group.MemberIds))
	for _, m := range group.MemberIds {
		members[m] = true
	}

	remap := map[string]string{}
	var warnings []string

	netNames := make([]string, 0, len(view.Nets))
	for name := range view.Nets {
		netNames = append(netNames, name)
	}
	sort.Strings(netNames)

	for _, netName := range netNames {
		nv := view.Nets[netName]
		conns := append([]model.Connection(nil), nv.Connections...)
		sort.Slice(conns, func(i, j int) bool {
			if conns[i].EntityId.Path.String() != conns[j].EntityId.Path.String() {
				return conns[i].EntityId.Path.String() < conns[j].EntityId.Path.String()
			}
			return conns[i].PadName < conns[j].PadName
		})
		for _, conn := range conns {
			if !members[conn.EntityId] {
				continue
			}
			rel, ok := conn.EntityId.Path.RelativeTo(group.Path())
			if !ok {
				continue
			}
			key := PadKey{RelativePath: rel.String(), PadName: conn.PadName}
			fragNet, ok := frag.PadNetMap[key]
			if !ok {
				continue
			}
			if existing, ok := remap[fragNet]; ok {
				if existing != netName {
					warnings = append(warnings, fmt.Sprintf(
						"fragment net %q maps to both %q and %q; keeping %q", fragNet, existing, netName, existing))
				}
				continue
			}
			remap[fragNet] = netName
		}
	}
	return remap, warnings
}

// RewriteNetName applies a net remap to one fragment-local net name,
// returning the board net name and whether the name was mapped. An
// unmapped name yields the empty string (no-net) and mapped=false; the
// empty fragment net name maps to itself with mapped=true.
func RewriteNetName(remap map[string]string, fragNetName string) (boardNet string, mapped bool) {
	if fragNetName == "" {
		return "", true
	}
	n, ok := remap[fragNetName]
	if !ok {
		return "", false
	}
	return n, true
}

// RepairGuardSkipsLoad implements spec.md §4.7's fragment repair guard:
// if every one of the group's members already exists on the backend at
// a user-authored position, the fragment is not loaded and no
// placement event is recorded, even though the group container itself
// is being (re)created.
func RepairGuardSkipsLoad(allMembersPreexisting bool) bool {
	return allMembersPreexisting
}
