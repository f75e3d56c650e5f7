package lens

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/diodeinc/pcb-layout-lens/model"
)

func id(path, fpid string) model.EntityId {
	return model.NewEntityId(model.PathFromString(path), fpid)
}

// TestAdaptComplement_L1L2 exercises P1/P2 (spec.md §8): the adapted
// complement's domain matches the view, and preserved entries are
// carried over byte-identical.
func TestAdaptComplement_L1L2(t *testing.T) {
	a, b, c := id("Top.A", "lib:R"), id("Top.B", "lib:R"), id("Top.C", "lib:R")

	view := model.NewBoardView()
	view.Footprints[a] = model.FootprintView{EntityId: a}
	view.Footprints[b] = model.FootprintView{EntityId: b}
	view.Footprints[c] = model.FootprintView{EntityId: c}

	old := model.NewBoardComplement()
	old.Footprints[a] = model.FootprintComplement{Position: model.Position{X: 10, Y: 10}}
	old.Footprints[b] = model.FootprintComplement{Position: model.Position{X: 20, Y: 20}}

	adapted, _ := AdaptComplement(view, old)

	if len(adapted.Footprints) != 3 {
		t.Fatalf("expected domain of size 3, got %d", len(adapted.Footprints))
	}
	if diff := cmp.Diff(old.Footprints[a], adapted.Footprints[a]); diff != "" {
		t.Fatalf("A not preserved (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(old.Footprints[b], adapted.Footprints[b]); diff != "" {
		t.Fatalf("B not preserved (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(model.DefaultFootprintComplement(), adapted.Footprints[c]); diff != "" {
		t.Fatalf("C should get default complement (-want +got):\n%s", diff)
	}
}

// TestAdaptComplement_Idempotent exercises P3/L3: a second adapt pass
// over its own output is a no-op changeset.
func TestAdaptComplement_Idempotent(t *testing.T) {
	a := id("Top.A", "lib:R")
	view := model.NewBoardView()
	view.Footprints[a] = model.FootprintView{EntityId: a}

	first, _ := AdaptComplement(view, model.NewBoardComplement())
	second, _ := AdaptComplement(view, first)

	cs, _ := BuildChangeset(second, first)
	if len(cs.AddedFootprints) != 0 || len(cs.RemovedFootprints) != 0 {
		t.Fatalf("second pass should be a no-op changeset, got %+v", cs)
	}
}

func TestBuildChangeset_AddRemove(t *testing.T) {
	a, c := id("Top.A", "lib:R"), id("Top.C", "lib:R")

	old := model.NewBoardComplement()
	old.Footprints[a] = model.DefaultFootprintComplement()
	old.Footprints[c] = model.DefaultFootprintComplement()

	next := model.NewBoardComplement()
	next.Footprints[a] = old.Footprints[a]
	b := id("Top.B", "lib:R")
	next.Footprints[b] = model.DefaultFootprintComplement()

	cs, diags := BuildChangeset(next, old)
	if len(cs.AddedFootprints) != 1 || cs.AddedFootprints[0] != b {
		t.Fatalf("expected B added, got %+v", cs.AddedFootprints)
	}
	if _, ok := cs.RemovedFootprints[c]; !ok {
		t.Fatalf("expected C removed, got %+v", cs.RemovedFootprints)
	}
	if len(diags) != 2 {
		t.Fatalf("expected 2 diagnostics, got %d: %+v", len(diags), diags)
	}
}

func TestCheckInvariants_NoLeafGroups(t *testing.T) {
	a := id("Top.A", "lib:R")
	g := id("Top.A", "")

	view := model.NewBoardView()
	view.Footprints[a] = model.FootprintView{EntityId: a}
	view.Groups[g] = model.GroupView{EntityId: g, MemberIds: []model.EntityId{a}}

	complement := model.NewBoardComplement()
	complement.Footprints[a] = model.DefaultFootprintComplement()
	complement.Groups[g] = model.DefaultGroupComplement()

	diags := CheckInvariants(view, complement)
	found := false
	for _, d := range diags {
		if d.Kind == "layout.sync.no_leaf_groups" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a no_leaf_groups diagnostic, got %+v", diags)
	}
}
