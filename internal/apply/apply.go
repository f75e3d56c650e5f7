// Package apply drives the seven-phase apply protocol (spec.md §4.5)
// that brings a LayoutBackend's state in line with a Changeset,
// recording every action into an OpLog for deterministic snapshot
// testing.
package apply

import (
	"context"
	"fmt"
	"sort"

	"github.com/diodeinc/pcb-layout-lens/internal/backend"
	"github.com/diodeinc/pcb-layout-lens/internal/diagnostics"
	"github.com/diodeinc/pcb-layout-lens/internal/fragment"
	"github.com/diodeinc/pcb-layout-lens/internal/lens"
	"github.com/diodeinc/pcb-layout-lens/internal/oplog"
	"github.com/diodeinc/pcb-layout-lens/internal/placement"
	"github.com/diodeinc/pcb-layout-lens/model"
	"golang.org/x/sync/errgroup"
)

// Result bundles the apply protocol's outputs: the deterministic
// action log and any non-fatal diagnostics collected along the way.
type Result struct {
	Log   oplog.OpLog
	Diags []diagnostics.Diagnostic
}

// ApplyChangeset executes the ordered phases of spec.md §4.5 against
// b. view is the new source-authoritative view; changeset is the
// footprint/group delta already computed by lens.BuildChangeset.
// loader resolves fragment layout_path references; it may be nil if no
// group in view declares one.
func ApplyChangeset(view model.BoardView, changeset lens.Changeset, b backend.Backend, packageRoots map[string]string, loader fragment.Loader) (Result, error) {
	res := Result{}

	addedFootprints := map[model.EntityId]bool{}
	for _, id := range changeset.AddedFootprints {
		addedFootprints[id] = true
	}
	addedGroups := map[model.EntityId]bool{}
	for _, id := range changeset.AddedGroups {
		addedGroups[id] = true
	}

	if err := phase1NetReconcileCreate(view, b, &res.Log); err != nil {
		return res, err
	}
	if err := phase2Deletions(changeset, b, &res.Log); err != nil {
		return res, err
	}
	if err := phase1NetReconcileRemove(view, b, &res.Log); err != nil {
		return res, err
	}
	if err := phase3Additions(view, changeset, b, packageRoots, &res.Log); err != nil {
		return res, err
	}
	if err := phase4ViewUpdates(view, addedFootprints, b, &res.Log); err != nil {
		return res, err
	}
	changedMembership, err := phase5GroupMembership(view, b, &res.Log)
	if err != nil {
		return res, err
	}
	finalPositions, diags, err := phase6FragmentComposition(view, addedFootprints, addedGroups, changedMembership, b, packageRoots, loader, &res.Log)
	if err != nil {
		return res, err
	}
	res.Diags = append(res.Diags, diags...)

	inheritFpidChangePositions(changeset, addedFootprints, finalPositions, &res.Log)

	if err := phase7Placement(view, addedFootprints, addedGroups, finalPositions, b, &res.Log); err != nil {
		return res, err
	}

	if err := writeComplements(finalPositions, b); err != nil {
		return res, err
	}
	if err := b.RebuildConnectivity(); err != nil {
		return res, fmt.Errorf("rebuilding connectivity: %w", err)
	}
	if err := b.Save(); err != nil {
		return res, fmt.Errorf("saving: %w", err)
	}

	return res, nil
}

// --- Phase 1: net reconciliation ---

func existingNetNames(b backend.Backend) (map[string]bool, error) {
	names := map[string]bool{}
	fps, err := b.EnumerateFootprints()
	if err != nil {
		return nil, fmt.Errorf("enumerating footprints: %w", err)
	}
	for _, fp := range fps {
		for _, n := range fp.PadNets {
			if n != "" {
				names[n] = true
			}
		}
	}
	grs, err := b.EnumerateGroups()
	if err != nil {
		return nil, fmt.Errorf("enumerating groups: %w", err)
	}
	for _, gr := range grs {
		for _, it := range gr.Items {
			if it.NetName != "" {
				names[it.NetName] = true
			}
		}
	}
	return names, nil
}

func phase1NetReconcileCreate(view model.BoardView, b backend.Backend, log *oplog.OpLog) error {
	existing, err := existingNetNames(b)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(view.Nets))
	for n := range view.Nets {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		if existing[n] {
			continue
		}
		if err := b.CreateNet(n); err != nil {
			return fmt.Errorf("creating net %q: %w", n, err)
		}
		log.Add(oplog.New(oplog.KindNetAdd, "name", n))
	}
	return nil
}

// phase1NetReconcileRemove deletes backend nets no longer present in
// the view. It runs after phase 2's deletions, since a net is only
// safe to remove once nothing references it (spec.md §4.5 phase 1).
func phase1NetReconcileRemove(view model.BoardView, b backend.Backend, log *oplog.OpLog) error {
	existing, err := existingNetNames(b)
	if err != nil {
		return err
	}
	var toRemove []string
	for n := range existing {
		if _, ok := view.Nets[n]; !ok {
			toRemove = append(toRemove, n)
		}
	}
	sort.Strings(toRemove)
	for _, n := range toRemove {
		if err := b.DeleteNet(n); err != nil {
			return fmt.Errorf("deleting net %q: %w", n, err)
		}
		log.Add(oplog.New(oplog.KindNetRemove, "name", n))
	}
	return nil
}

// --- Phase 2: deletions ---

func phase2Deletions(changeset lens.Changeset, b backend.Backend, log *oplog.OpLog) error {
	removedGroups := make([]model.EntityId, 0, len(changeset.RemovedGroups))
	for id := range changeset.RemovedGroups {
		removedGroups = append(removedGroups, id)
	}
	sortByPath(removedGroups)
	for _, gid := range removedGroups {
		grs, err := b.EnumerateGroups()
		if err != nil {
			return fmt.Errorf("enumerating groups: %w", err)
		}
		h, ok := findGroupHandle(grs, gid.Path.String())
		if !ok {
			continue
		}
		if err := b.DeleteGroup(h); err != nil {
			return fmt.Errorf("deleting group %s: %w", gid, err)
		}
		log.Add(oplog.New(oplog.KindGroupRemove, "path", gid.Path.String()))
	}

	removedFootprints := make([]model.EntityId, 0, len(changeset.RemovedFootprints))
	for id := range changeset.RemovedFootprints {
		removedFootprints = append(removedFootprints, id)
	}
	sortByPath(removedFootprints)
	for _, fid := range removedFootprints {
		fps, err := b.EnumerateFootprints()
		if err != nil {
			return fmt.Errorf("enumerating footprints: %w", err)
		}
		h, ok := findFootprintHandle(fps, fid)
		if !ok {
			continue
		}
		if err := b.DeleteFootprint(h); err != nil {
			return fmt.Errorf("deleting footprint %s: %w", fid, err)
		}
		log.Add(oplog.New(oplog.KindFootprintRemove, "path", fid.Path.String(), "fpid", fid.Fpid))
	}
	return nil
}

func findGroupHandle(recs []backend.GroupRecord, name string) (backend.Handle, bool) {
	for _, r := range recs {
		if r.Name == name {
			return r.Handle, true
		}
	}
	return backend.Handle{}, false
}

func findFootprintHandle(recs []backend.FootprintRecord, id model.EntityId) (backend.Handle, bool) {
	for _, r := range recs {
		if r.Path == id.Path.String() && r.Fpid == id.Fpid {
			return r.Handle, true
		}
	}
	return backend.Handle{}, false
}

// --- Phase 3: additions ---

func phase3Additions(view model.BoardView, changeset lens.Changeset, b backend.Backend, packageRoots map[string]string, log *oplog.OpLog) error {
	added := append([]model.EntityId(nil), changeset.AddedFootprints...)
	sortByPath(added)

	for _, id := range added {
		fv, ok := view.Footprints[id]
		if !ok {
			continue
		}
		h, err := b.AddFootprint(id.Fpid, packageRoots)
		if err != nil {
			return fmt.Errorf("instantiating footprint %s: %w", id, err)
		}
		if err := b.SetFootprintFields(h, fv.Reference, fv.Value, fv.Fields, fv.Dnp, fv.ExcludeFromBom, fv.ExcludeFromPos); err != nil {
			return fmt.Errorf("setting fields on %s: %w", id, err)
		}
		if err := b.SetFootprintPath(h, id.Path.String(), id.KiidPath()); err != nil {
			return fmt.Errorf("setting path on %s: %w", id, err)
		}
		pads := padsForFootprint(view, id)
		for _, pn := range pads {
			if err := b.AssignPad(h, pn.pad, pn.net); err != nil {
				return fmt.Errorf("assigning pad %s.%s: %w", id, pn.pad, err)
			}
		}
		log.Add(oplog.New(oplog.KindFootprintAdd, "path", id.Path.String(), "fpid", id.Fpid, "reference", fv.Reference))
	}

	addedGroups := append([]model.EntityId(nil), changeset.AddedGroups...)
	sortByPath(addedGroups)
	for _, gid := range addedGroups {
		if _, err := b.AddGroup(gid.Path.String()); err != nil {
			return fmt.Errorf("adding group %s: %w", gid, err)
		}
		log.Add(oplog.New(oplog.KindGroupAdd, "path", gid.Path.String()))
	}
	return nil
}

type padNet struct {
	pad string
	net string
}

// padsForFootprint returns every (pad, net) assignment view.Nets makes
// for id — the source of truth for phase 3's "assign pads to nets by
// consulting view.nets, not by preserving any prior pad-net
// relationship" rule.
func padsForFootprint(view model.BoardView, id model.EntityId) []padNet {
	var out []padNet
	names := make([]string, 0, len(view.Nets))
	for n := range view.Nets {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		for _, c := range view.Nets[n].Connections {
			if c.EntityId == id {
				out = append(out, padNet{pad: c.PadName, net: n})
			}
		}
	}
	return out
}

// --- Phase 4: view updates ---

func phase4ViewUpdates(view model.BoardView, added map[model.EntityId]bool, b backend.Backend, log *oplog.OpLog) error {
	fps, err := b.EnumerateFootprints()
	if err != nil {
		return fmt.Errorf("enumerating footprints: %w", err)
	}
	var toUpdate []backend.FootprintRecord
	for _, r := range fps {
		id := model.NewEntityId(model.PathFromString(r.Path), r.Fpid)
		if added[id] {
			continue
		}
		fv, ok := view.Footprints[id]
		if !ok {
			continue
		}
		if footprintFieldsDiffer(r, fv) {
			toUpdate = append(toUpdate, r)
		}
	}
	sort.Slice(toUpdate, func(i, j int) bool { return toUpdate[i].Path < toUpdate[j].Path })
	for _, r := range toUpdate {
		id := model.NewEntityId(model.PathFromString(r.Path), r.Fpid)
		fv := view.Footprints[id]
		if err := b.SetFootprintFields(r.Handle, fv.Reference, fv.Value, fv.Fields, fv.Dnp, fv.ExcludeFromBom, fv.ExcludeFromPos); err != nil {
			return fmt.Errorf("updating footprint %s: %w", id, err)
		}
		log.Add(oplog.New(oplog.KindFootprintReplace, "path", id.Path.String(), "fpid", id.Fpid))
	}
	return nil
}

func footprintFieldsDiffer(r backend.FootprintRecord, fv model.FootprintView) bool {
	if r.Reference != fv.Reference || r.Value != fv.Value || r.Dnp != fv.Dnp ||
		r.ExcludeFromBom != fv.ExcludeFromBom || r.ExcludeFromPos != fv.ExcludeFromPos {
		return true
	}
	if len(r.Fields) != len(fv.Fields) {
		return true
	}
	for k, v := range fv.Fields {
		if r.Fields[k] != v {
			return true
		}
	}
	return false
}

// --- Phase 5: group-membership rebuild ---

// phase5GroupMembership resets every view group's membership to its
// descendant footprint set and returns which groups' membership
// actually changed, for phase 6's "newly added or membership changed"
// fragment-composition gate.
func phase5GroupMembership(view model.BoardView, b backend.Backend, log *oplog.OpLog) (map[model.EntityId]bool, error) {
	changed := map[model.EntityId]bool{}

	fps, err := b.EnumerateFootprints()
	if err != nil {
		return nil, fmt.Errorf("enumerating footprints: %w", err)
	}
	fpHandle := map[model.EntityId]backend.Handle{}
	for _, r := range fps {
		fpHandle[model.NewEntityId(model.PathFromString(r.Path), r.Fpid)] = r.Handle
	}

	grs, err := b.EnumerateGroups()
	if err != nil {
		return nil, fmt.Errorf("enumerating groups: %w", err)
	}
	groupRecByPath := map[string]backend.GroupRecord{}
	for _, r := range grs {
		groupRecByPath[r.Name] = r
	}
	handleToID := map[backend.Handle]model.EntityId{}
	for id, h := range fpHandle {
		handleToID[h] = id
	}

	gids := make([]model.EntityId, 0, len(view.Groups))
	for gid := range view.Groups {
		gids = append(gids, gid)
	}
	sortByPath(gids)

	for _, gid := range gids {
		gv := view.Groups[gid]
		rec, ok := groupRecByPath[gid.Path.String()]
		if !ok {
			continue
		}
		desired := map[model.EntityId]bool{}
		for _, m := range gv.MemberIds {
			desired[m] = true
		}
		current := map[model.EntityId]bool{}
		for _, h := range rec.Members {
			if id, ok := handleToID[h]; ok {
				current[id] = true
			}
		}

		anyChange := false
		var toRemove, toAdd []model.EntityId
		for id := range current {
			if !desired[id] {
				toRemove = append(toRemove, id)
			}
		}
		for id := range desired {
			if !current[id] {
				toAdd = append(toAdd, id)
			}
		}
		sortByPath(toRemove)
		sortByPath(toAdd)

		for _, id := range toRemove {
			if err := b.RemoveItemFromGroup(rec.Handle, fpHandle[id]); err != nil {
				return nil, fmt.Errorf("removing %s from group %s: %w", id, gid, err)
			}
			anyChange = true
		}
		for _, id := range toAdd {
			h, ok := fpHandle[id]
			if !ok {
				continue
			}
			if err := b.AddItemToGroup(rec.Handle, h); err != nil {
				return nil, fmt.Errorf("adding %s to group %s: %w", id, gid, err)
			}
			anyChange = true
		}

		members := append([]model.EntityId(nil), gv.MemberIds...)
		sortByPath(members)
		memberPaths := make([]string, len(members))
		for i, m := range members {
			memberPaths[i] = m.Path.String()
		}
		log.Add(oplog.New(oplog.KindGroupMember, "path", gid.Path.String(), "members", joinStrings(memberPaths)))

		if anyChange {
			changed[gid] = true
		}
	}
	return changed, nil
}

func joinStrings(ss []string) string {
	out := ""
	for i, s := range ss {
		if i > 0 {
			out += ","
		}
		out += s
	}
	return out
}

// --- Phase 6: fragment composition ---

// placedComplement is a footprint complement scheduled to be written
// once, at the very end of the apply run (spec.md §4.5).
type placedComplement struct {
	complement model.FootprintComplement
	inherited  bool // true => PLACE_FP_INHERIT, false => PLACE_FP
}

func phase6FragmentComposition(
	view model.BoardView,
	addedFootprints, addedGroups, changedMembership map[model.EntityId]bool,
	b backend.Backend,
	packageRoots map[string]string,
	loader fragment.Loader,
	log *oplog.OpLog,
) (map[model.EntityId]placedComplement, []diagnostics.Diagnostic, error) {
	final := map[model.EntityId]placedComplement{}
	var diags []diagnostics.Diagnostic

	authoritative := fragment.DiscoverAuthoritative(view)
	if len(authoritative) == 0 {
		return final, diags, nil
	}

	grs, err := b.EnumerateGroups()
	if err != nil {
		return nil, nil, fmt.Errorf("enumerating groups: %w", err)
	}
	groupHandle := map[string]backend.Handle{}
	for _, r := range grs {
		groupHandle[r.Name] = r.Handle
	}

	// Collect the groups that actually need their fragment file read
	// before doing any backend mutation. Distinct groups' fragment
	// files are independent to parse, so loading happens concurrently
	// via errgroup; the mutation below stays strictly sequential since
	// it writes to the shared backend.
	var toLoad []model.EntityId
	for _, gid := range authoritative {
		gv := view.Groups[gid]
		if !addedGroups[gid] && !changedMembership[gid] {
			continue
		}
		allPreexisting := true
		for _, m := range gv.MemberIds {
			if addedFootprints[m] {
				allPreexisting = false
				break
			}
		}
		if fragment.RepairGuardSkipsLoad(allPreexisting) {
			continue
		}
		toLoad = append(toLoad, gid)
	}

	loaded := make(map[model.EntityId]fragment.Fragment, len(toLoad))
	if len(toLoad) > 0 {
		if loader == nil {
			return nil, nil, fmt.Errorf("group %s declares layout_path %q but no fragment loader is configured", toLoad[0], view.Groups[toLoad[0]].LayoutPath)
		}
		results := make([]fragment.Fragment, len(toLoad))
		g, _ := errgroup.WithContext(context.Background())
		for i, gid := range toLoad {
			i, gid := i, gid
			gv := view.Groups[gid]
			g.Go(func() error {
				frag, err := loader.Load(gv.LayoutPath, packageRoots)
				if err != nil {
					return fmt.Errorf("loading fragment %q for group %s: %w", gv.LayoutPath, gid, err)
				}
				results[i] = frag
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, nil, err
		}
		for i, gid := range toLoad {
			loaded[gid] = results[i]
		}
	}

	for _, gid := range toLoad {
		gv := view.Groups[gid]
		frag := loaded[gid]

		remap, warnings := fragment.BuildNetRemap(gv, view, frag)
		for _, w := range warnings {
			diags = append(diags, diagnostics.Diagnostic{
				Kind:     diagnostics.KindUnknownNets,
				Severity: diagnostics.SeverityWarning,
				Body:     w,
				Path:     gid.Path.String(),
			})
		}

		h, ok := groupHandle[gid.Path.String()]
		if !ok {
			return nil, nil, fmt.Errorf("group %s has no backend handle after membership rebuild", gid)
		}

		for _, tr := range sortedTracks(frag.GroupComplement.Tracks) {
			net, mapped := fragment.RewriteNetName(remap, tr.NetName)
			if !mapped {
				diags = append(diags, unmappedNetDiag(gid, tr.NetName))
			}
			if err := b.DuplicateRouting(h, backend.RoutingRecord{
				Kind: backend.RoutingTrack, Uuid: tr.Uuid, NetName: net, Layer: tr.Layer,
				Start: tr.Start, End: tr.End, Width: tr.Width,
			}); err != nil {
				return nil, nil, fmt.Errorf("duplicating track into %s: %w", gid, err)
			}
			log.Add(oplog.New(oplog.KindFragTrack, "group", gid.Path.String(), "uuid", tr.Uuid, "net", net))
		}
		for _, v := range sortedVias(frag.GroupComplement.Vias) {
			net, mapped := fragment.RewriteNetName(remap, v.NetName)
			if !mapped {
				diags = append(diags, unmappedNetDiag(gid, v.NetName))
			}
			if err := b.DuplicateRouting(h, backend.RoutingRecord{
				Kind: backend.RoutingVia, Uuid: v.Uuid, NetName: net,
				Position: v.Position, Diameter: v.Diameter, Drill: v.Drill,
			}); err != nil {
				return nil, nil, fmt.Errorf("duplicating via into %s: %w", gid, err)
			}
			log.Add(oplog.New(oplog.KindFragVia, "group", gid.Path.String(), "uuid", v.Uuid, "net", net))
		}
		for _, z := range sortedZones(frag.GroupComplement.Zones) {
			net, mapped := fragment.RewriteNetName(remap, z.NetName)
			if !mapped {
				diags = append(diags, unmappedNetDiag(gid, z.NetName))
			}
			if err := b.DuplicateRouting(h, backend.RoutingRecord{
				Kind: backend.RoutingZone, Uuid: z.Uuid, NetName: net, Layer: z.Layer,
				Outline: z.Outline, Priority: z.Priority, Name: z.Name,
			}); err != nil {
				return nil, nil, fmt.Errorf("duplicating zone into %s: %w", gid, err)
			}
			log.Add(oplog.New(oplog.KindFragZone, "group", gid.Path.String(), "uuid", z.Uuid, "net", net))
		}
		for _, g := range sortedGraphics(frag.GroupComplement.Graphics) {
			if err := b.DuplicateRouting(h, backend.RoutingRecord{
				Kind: backend.RoutingGraphic, Uuid: g.Uuid, Layer: g.Layer, GraphicType: g.GraphicType,
			}); err != nil {
				return nil, nil, fmt.Errorf("duplicating graphic into %s: %w", gid, err)
			}
			log.Add(oplog.New(oplog.KindFragGraphic, "group", gid.Path.String(), "uuid", g.Uuid))
		}

		members := append([]model.EntityId(nil), gv.MemberIds...)
		sortByPath(members)
		for _, m := range members {
			if !addedFootprints[m] {
				continue
			}
			rel, ok := m.Path.RelativeTo(gid.Path)
			if !ok {
				continue
			}
			hint, ok := frag.FootprintComplements[rel.String()]
			if !ok {
				continue
			}
			final[m] = placedComplement{complement: hint, inherited: true}
			log.Add(oplog.New(oplog.KindPlaceFootprintInherit, "path", m.Path.String(), "from", gid.Path.String()))
		}
	}

	return final, diags, nil
}

func unmappedNetDiag(gid model.EntityId, fragNet string) diagnostics.Diagnostic {
	return diagnostics.Diagnostic{
		Kind:     diagnostics.KindUnknownNets,
		Severity: diagnostics.SeverityWarning,
		Body:     fmt.Sprintf("fragment net %q in group %s has no board equivalent; routed with no net", fragNet, gid),
		Path:     gid.Path.String(),
	}
}

func sortedTracks(ts []model.TrackComplement) []model.TrackComplement {
	out := append([]model.TrackComplement(nil), ts...)
	sort.Slice(out, func(i, j int) bool { return out[i].Uuid < out[j].Uuid })
	return out
}
func sortedVias(vs []model.ViaComplement) []model.ViaComplement {
	out := append([]model.ViaComplement(nil), vs...)
	sort.Slice(out, func(i, j int) bool { return out[i].Uuid < out[j].Uuid })
	return out
}
func sortedZones(zs []model.ZoneComplement) []model.ZoneComplement {
	out := append([]model.ZoneComplement(nil), zs...)
	sort.Slice(out, func(i, j int) bool { return out[i].Uuid < out[j].Uuid })
	return out
}
func sortedGraphics(gs []model.GraphicComplement) []model.GraphicComplement {
	out := append([]model.GraphicComplement(nil), gs...)
	sort.Slice(out, func(i, j int) bool { return out[i].Uuid < out[j].Uuid })
	return out
}

// inheritFpidChangePositions implements the placement-inheritance half
// of an FPID change (spec.md §8 FP-04): build_changeset already models
// a fpid change as a remove-then-add pair sharing the same path. When
// such a pair exists, the new footprint inherits the old one's
// complement directly rather than going through HierPlace, so a part
// whose fpid changed does not visibly jump on the board.
func inheritFpidChangePositions(changeset lens.Changeset, addedFootprints map[model.EntityId]bool, final map[model.EntityId]placedComplement, log *oplog.OpLog) {
	removedByPath := map[string]model.FootprintComplement{}
	for id, c := range changeset.RemovedFootprints {
		removedByPath[id.Path.String()] = c
	}

	added := make([]model.EntityId, 0, len(addedFootprints))
	for id := range addedFootprints {
		added = append(added, id)
	}
	sortByPath(added)

	for _, id := range added {
		if _, already := final[id]; already {
			continue
		}
		old, ok := removedByPath[id.Path.String()]
		if !ok {
			continue
		}
		final[id] = placedComplement{complement: old, inherited: true}
		log.Add(oplog.New(oplog.KindPlaceFootprintInherit, "path", id.Path.String(), "fpid", id.Fpid, "x", old.Position.X, "y", old.Position.Y))
	}
}

// --- Phase 7: hierarchical placement ---

func phase7Placement(
	view model.BoardView,
	addedFootprints, addedGroups map[model.EntityId]bool,
	final map[model.EntityId]placedComplement,
	b backend.Backend,
	log *oplog.OpLog,
) error {
	// Entities already positioned by a fragment hint are excluded.
	unplaced := map[model.EntityId]bool{}
	for id := range addedFootprints {
		if _, ok := final[id]; !ok {
			unplaced[id] = true
		}
	}
	if len(unplaced) == 0 {
		return nil
	}

	anchor, err := existingContentAnchor(b, addedFootprints)
	if err != nil {
		return err
	}

	// Group new footprints by their nearest newly-added non-fragment
	// group ancestor, so siblings added together pack as one cluster
	// before being placed as a unit relative to the rest of the board.
	type cluster struct {
		group model.EntityId
		ids   []model.EntityId
	}
	var clusters []cluster
	standalone := map[model.EntityId]bool{}
	for id := range unplaced {
		standalone[id] = true
	}
	nearest := map[model.EntityId]model.EntityId{}
	for gid := range addedGroups {
		gv := view.Groups[gid]
		if gv.LayoutPath != "" {
			continue // fragment groups are handled by phase 6
		}
		for _, m := range gv.MemberIds {
			if cur, seen := nearest[m]; unplaced[m] && (!seen || gid.Path.Depth() > cur.Path.Depth()) {
				nearest[m] = gid
				delete(standalone, m)
			}
		}
	}
	members := map[model.EntityId][]model.EntityId{}
	for m, gid := range nearest {
		members[gid] = append(members[gid], m)
	}
	for gid, ids := range members {
		sortByPath(ids)
		clusters = append(clusters, cluster{group: gid, ids: ids})
	}
	sort.Slice(clusters, func(i, j int) bool { return clusters[i].group.Path.String() < clusters[j].group.Path.String() })

	topLevelRects := []placement.PlacementRect{}
	clusterLocal := map[model.EntityId]map[model.EntityId]placement.Rect{}
	for _, c := range clusters {
		rects := make([]placement.PlacementRect, 0, len(c.ids))
		for _, id := range c.ids {
			rects = append(rects, footprintPlacementRect(view, id))
		}
		local := placement.PackAtOrigin(rects)
		box := unionOf(local)
		clusterLocal[c.group] = local
		topLevelRects = append(topLevelRects, placement.PlacementRect{EntityID: c.group, Width: box.W, Height: box.H})
	}
	standaloneIDs := make([]model.EntityId, 0, len(standalone))
	for id := range standalone {
		standaloneIDs = append(standaloneIDs, id)
	}
	sortByPath(standaloneIDs)
	for _, id := range standaloneIDs {
		topLevelRects = append(topLevelRects, footprintPlacementRect(view, id))
	}

	placed := placement.HierPlace(topLevelRects, anchor, placement.SheetWidthNM, placement.SheetHeightNM, placement.DefaultMarginNM)

	for _, c := range clusters {
		groupRect, ok := placed[c.group]
		if !ok {
			continue
		}
		log.Add(oplog.New(oplog.KindPlaceGroup, "path", c.group.Path.String(), "x", groupRect.X, "y", groupRect.Y))
		for id, r := range clusterLocal[c.group] {
			final[id] = placedComplement{complement: model.FootprintComplement{
				Position: model.Position{X: r.X + groupRect.X, Y: r.Y + groupRect.Y},
				Layer:    model.LayerFront,
			}}
			log.Add(oplog.New(oplog.KindPlaceFootprint, "path", id.Path.String(), "x", r.X+groupRect.X, "y", r.Y+groupRect.Y))
		}
	}
	for _, id := range standaloneIDs {
		r, ok := placed[id]
		if !ok {
			continue
		}
		final[id] = placedComplement{complement: model.FootprintComplement{
			Position: model.Position{X: r.X, Y: r.Y},
			Layer:    model.LayerFront,
		}}
		log.Add(oplog.New(oplog.KindPlaceFootprint, "path", id.Path.String(), "x", r.X, "y", r.Y))
	}

	return nil
}

// existingContentAnchor computes the bounding box of every footprint
// already on the backend that isn't part of this apply run's new
// additions, giving HierPlace an anchor so newly added content is
// placed beside the existing board rather than always at sheet center
// (spec.md §4.6's anchor is "existing-content bounding box").
func existingContentAnchor(b backend.Backend, addedFootprints map[model.EntityId]bool) (*placement.Rect, error) {
	fps, err := b.EnumerateFootprints()
	if err != nil {
		return nil, fmt.Errorf("enumerating footprints: %w", err)
	}
	var box placement.Rect
	found := false
	for _, r := range fps {
		id := model.NewEntityId(model.PathFromString(r.Path), r.Fpid)
		if addedFootprints[id] {
			continue
		}
		if r.Width <= 0 || r.Height <= 0 {
			continue
		}
		rect := placement.Rect{X: r.Position.X, Y: r.Position.Y, W: r.Width, H: r.Height}
		if !found {
			box = rect
			found = true
			continue
		}
		right := box.X + box.W
		bottom := box.Y + box.H
		if rect.X < box.X {
			box.X = rect.X
		}
		if rect.Y < box.Y {
			box.Y = rect.Y
		}
		if rect.X+rect.W > right {
			right = rect.X + rect.W
		}
		if rect.Y+rect.H > bottom {
			bottom = rect.Y + rect.H
		}
		box.W = right - box.X
		box.H = bottom - box.Y
	}
	if !found {
		return nil, nil
	}
	return &box, nil
}

func footprintPlacementRect(view model.BoardView, id model.EntityId) placement.PlacementRect {
	// The view alone does not carry geometry, and the backend's
	// courtyard size is not consulted here, so every new footprint is
	// sized with the same fixed default. HierPlace only needs non-zero
	// dimensions to produce a placement.
	const fallback = 2_000_000 // 2mm, matches backend's default footprint size
	return placement.PlacementRect{EntityID: id, Width: fallback, Height: fallback}
}

func unionOf(rs map[model.EntityId]placement.Rect) placement.Rect {
	first := true
	var box placement.Rect
	for _, r := range rs {
		if first {
			box = r
			first = false
			continue
		}
		right := box.X + box.W
		bottom := box.Y + box.H
		if r.X < box.X {
			box.X = r.X
		}
		if r.Y < box.Y {
			box.Y = r.Y
		}
		if r.X+r.W > right {
			right = r.X + r.W
		}
		if r.Y+r.H > bottom {
			bottom = r.Y + r.H
		}
		box.W = right - box.X
		box.H = bottom - box.Y
	}
	return box
}

// --- Final complement write ---

func writeComplements(final map[model.EntityId]placedComplement, b backend.Backend) error {
	ids := make([]model.EntityId, 0, len(final))
	for id := range final {
		ids = append(ids, id)
	}
	sortByPath(ids)

	fps, err := b.EnumerateFootprints()
	if err != nil {
		return fmt.Errorf("enumerating footprints: %w", err)
	}
	handle := map[model.EntityId]backend.Handle{}
	for _, r := range fps {
		handle[model.NewEntityId(model.PathFromString(r.Path), r.Fpid)] = r.Handle
	}

	for _, id := range ids {
		h, ok := handle[id]
		if !ok {
			continue
		}
		c := final[id].complement
		if err := b.SetFootprintPlacement(h, c.Position, c.OrientationDegrees, c.Layer, c.Locked); err != nil {
			return fmt.Errorf("placing %s: %w", id, err)
		}
	}
	return nil
}

func sortByPath(ids []model.EntityId) {
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Path.String() != ids[j].Path.String() {
			return ids[i].Path.String() < ids[j].Path.String()
		}
		return ids[i].Fpid < ids[j].Fpid
	})
}
