package apply

import (
	"strings"
	"testing"

	"github.com/diodeinc/pcb-layout-lens/internal/backend"
	"github.com/diodeinc/pcb-layout-lens/internal/fragment"
	"github.com/diodeinc/pcb-layout-lens/internal/lens"
	"github.com/diodeinc/pcb-layout-lens/model"
)

func id(path, fpid string) model.EntityId {
	return model.NewEntityId(model.PathFromString(path), fpid)
}

func seedFootprint(fb *backend.FakeBackend, path, fpid, ref string, pos model.Position) backend.Handle {
	return fb.AddFakeFootprint(backend.FootprintRecord{
		Path:     path,
		KiidPath: model.ExpectedKiidPath(path),
		Fpid:     fpid,
		Reference: ref,
		Fields:   map[string]string{},
		Width:    2_000_000,
		Height:   1_000_000,
		Position: pos,
		PadNets:  map[string]string{},
	})
}

// TestApply_FP01_AddFootprint exercises spec.md §8 FP-01: source {A,B,C}
// with C new. A and B keep their positions; C gets placed by HierPlace.
func TestApply_FP01_AddFootprint(t *testing.T) {
	a, b, c := id("Top.A", "lib:R"), id("Top.B", "lib:R"), id("Top.C", "lib:R")

	fb := backend.NewFakeBackend()
	seedFootprint(fb, "Top.A", "lib:R", "R1", model.Position{X: 10, Y: 10})
	seedFootprint(fb, "Top.B", "lib:R", "R2", model.Position{X: 20, Y: 20})

	view := model.NewBoardView()
	view.Footprints[a] = model.FootprintView{EntityId: a, Reference: "R1", Fields: map[string]string{}}
	view.Footprints[b] = model.FootprintView{EntityId: b, Reference: "R2", Fields: map[string]string{}}
	view.Footprints[c] = model.FootprintView{EntityId: c, Reference: "R3", Fields: map[string]string{}}

	oldComplement := model.NewBoardComplement()
	oldComplement.Footprints[a] = model.FootprintComplement{Position: model.Position{X: 10, Y: 10}}
	oldComplement.Footprints[b] = model.FootprintComplement{Position: model.Position{X: 20, Y: 20}}

	newComplement, _ := lens.AdaptComplement(view, oldComplement)
	cs, _ := lens.BuildChangeset(newComplement, oldComplement)

	if len(cs.AddedFootprints) != 1 || cs.AddedFootprints[0] != c {
		t.Fatalf("expected C to be the only addition, got %+v", cs.AddedFootprints)
	}

	res, err := ApplyChangeset(view, cs, fb, nil, nil)
	if err != nil {
		t.Fatalf("ApplyChangeset: %v", err)
	}

	fps, _ := fb.EnumerateFootprints()
	var recA, recB, recC backend.FootprintRecord
	for _, r := range fps {
		switch r.Path {
		case "Top.A":
			recA = r
		case "Top.B":
			recB = r
		case "Top.C":
			recC = r
		}
	}
	if recA.Position != (model.Position{X: 10, Y: 10}) {
		t.Fatalf("A should keep its position, got %+v", recA.Position)
	}
	if recB.Position != (model.Position{X: 20, Y: 20}) {
		t.Fatalf("B should keep its position, got %+v", recB.Position)
	}
	if recC.Reference != "R3" {
		t.Fatalf("C not instantiated: %+v", recC)
	}
	if !strings.Contains(res.Log.Serialize(), "FP_ADD path=Top.C") {
		t.Fatalf("expected FP_ADD for C in log:\n%s", res.Log.Serialize())
	}
	if !strings.Contains(res.Log.Serialize(), "PLACE_FP path=Top.C") {
		t.Fatalf("expected PLACE_FP for C in log:\n%s", res.Log.Serialize())
	}
}

// TestApply_FP02_RemoveFootprint exercises spec.md §8 FP-02: source
// {A,B}, complement_old has A,B,C. C is removed, A/B preserved, and a
// layout.sync.extra_footprint warning is emitted by BuildChangeset.
func TestApply_FP02_RemoveFootprint(t *testing.T) {
	a, b, c := id("Top.A", "lib:R"), id("Top.B", "lib:R"), id("Top.C", "lib:R")

	fb := backend.NewFakeBackend()
	seedFootprint(fb, "Top.A", "lib:R", "R1", model.Position{X: 10, Y: 10})
	seedFootprint(fb, "Top.B", "lib:R", "R2", model.Position{X: 20, Y: 20})
	seedFootprint(fb, "Top.C", "lib:R", "R3", model.Position{X: 30, Y: 30})

	view := model.NewBoardView()
	view.Footprints[a] = model.FootprintView{EntityId: a, Reference: "R1", Fields: map[string]string{}}
	view.Footprints[b] = model.FootprintView{EntityId: b, Reference: "R2", Fields: map[string]string{}}

	oldComplement := model.NewBoardComplement()
	oldComplement.Footprints[a] = model.FootprintComplement{Position: model.Position{X: 10, Y: 10}}
	oldComplement.Footprints[b] = model.FootprintComplement{Position: model.Position{X: 20, Y: 20}}
	oldComplement.Footprints[c] = model.FootprintComplement{Position: model.Position{X: 30, Y: 30}}

	newComplement, _ := lens.AdaptComplement(view, oldComplement)
	cs, diags := lens.BuildChangeset(newComplement, oldComplement)

	if _, removed := cs.RemovedFootprints[c]; !removed {
		t.Fatalf("expected C in RemovedFootprints, got %+v", cs.RemovedFootprints)
	}
	foundWarning := false
	for _, d := range diags {
		if d.Path == "Top.C" {
			foundWarning = true
		}
	}
	if !foundWarning {
		t.Fatalf("expected an extra_footprint diagnostic for Top.C, got %+v", diags)
	}

	if _, err := ApplyChangeset(view, cs, fb, nil, nil); err != nil {
		t.Fatalf("ApplyChangeset: %v", err)
	}

	fps, _ := fb.EnumerateFootprints()
	if len(fps) != 2 {
		t.Fatalf("expected 2 remaining footprints, got %d: %+v", len(fps), fps)
	}
	for _, r := range fps {
		if r.Path == "Top.C" {
			t.Fatalf("C should have been deleted")
		}
	}
}

// TestApply_FP03_MetadataUpdate exercises spec.md §8 FP-03: only A's
// value changes. No additions/removals, A's position is preserved, and
// only its fields are rewritten.
func TestApply_FP03_MetadataUpdate(t *testing.T) {
	a := id("Top.A", "lib:R")

	fb := backend.NewFakeBackend()
	h := seedFootprint(fb, "Top.A", "lib:R", "R1", model.Position{X: 10, Y: 10})
	if err := fb.SetFootprintFields(h, "R1", "10k", map[string]string{}, false, false, false); err != nil {
		t.Fatalf("setup: %v", err)
	}

	view := model.NewBoardView()
	view.Footprints[a] = model.FootprintView{EntityId: a, Reference: "R1", Value: "4.7k", Fields: map[string]string{}}

	oldComplement := model.NewBoardComplement()
	oldComplement.Footprints[a] = model.FootprintComplement{Position: model.Position{X: 10, Y: 10}}

	newComplement, _ := lens.AdaptComplement(view, oldComplement)
	cs, diags := lens.BuildChangeset(newComplement, oldComplement)

	if len(cs.AddedFootprints) != 0 || len(cs.RemovedFootprints) != 0 {
		t.Fatalf("expected no additions/removals, got %+v", cs)
	}
	if len(diags) != 0 {
		t.Fatalf("expected no diagnostics, got %+v", diags)
	}

	res, err := ApplyChangeset(view, cs, fb, nil, nil)
	if err != nil {
		t.Fatalf("ApplyChangeset: %v", err)
	}

	fps, _ := fb.EnumerateFootprints()
	if fps[0].Value != "4.7k" {
		t.Fatalf("expected value updated to 4.7k, got %q", fps[0].Value)
	}
	if fps[0].Position != (model.Position{X: 10, Y: 10}) {
		t.Fatalf("position should be preserved, got %+v", fps[0].Position)
	}
	if !strings.Contains(res.Log.Serialize(), "FP_REPLACE path=Top.A") {
		t.Fatalf("expected FP_REPLACE for A in log:\n%s", res.Log.Serialize())
	}
	if strings.Contains(res.Log.Serialize(), "PLACE_FP ") {
		t.Fatalf("A should not be re-placed, log:\n%s", res.Log.Serialize())
	}
}

// TestApply_FP04_FpidChange exercises spec.md §8 FP-04: A's fpid
// changes from R_0402 to R_0603. The old (A, R_0402) is removed, the
// new (A, R_0603) is added, and it inherits the old entity's position.
func TestApply_FP04_FpidChange(t *testing.T) {
	oldID := id("Top.A", "lib:R_0402")
	newID := id("Top.A", "lib:R_0603")

	fb := backend.NewFakeBackend()
	seedFootprint(fb, "Top.A", "lib:R_0402", "R1", model.Position{X: 50, Y: 60})

	view := model.NewBoardView()
	view.Footprints[newID] = model.FootprintView{EntityId: newID, Reference: "R1", Fields: map[string]string{}}

	oldComplement := model.NewBoardComplement()
	oldComplement.Footprints[oldID] = model.FootprintComplement{Position: model.Position{X: 50, Y: 60}}

	newComplement, _ := lens.AdaptComplement(view, oldComplement)
	cs, _ := lens.BuildChangeset(newComplement, oldComplement)

	if len(cs.AddedFootprints) != 1 || cs.AddedFootprints[0] != newID {
		t.Fatalf("expected new fpid entity added, got %+v", cs.AddedFootprints)
	}
	if _, ok := cs.RemovedFootprints[oldID]; !ok {
		t.Fatalf("expected old fpid entity removed, got %+v", cs.RemovedFootprints)
	}

	if _, err := ApplyChangeset(view, cs, fb, nil, nil); err != nil {
		t.Fatalf("ApplyChangeset: %v", err)
	}

	fps, _ := fb.EnumerateFootprints()
	if len(fps) != 1 {
		t.Fatalf("expected exactly one footprint, got %d", len(fps))
	}
	if fps[0].Fpid != "lib:R_0603" {
		t.Fatalf("expected new fpid, got %q", fps[0].Fpid)
	}
	if fps[0].Position != (model.Position{X: 50, Y: 60}) {
		t.Fatalf("expected inherited position (50,60), got %+v", fps[0].Position)
	}
}

// TestApply_FR01_FragmentRepairGuard exercises spec.md §8 FR-01: group
// G1 is deleted but its member F1 already exists at a user position.
// G1 is recreated, F1's position is unchanged, no PLACE_GR, no
// fragment loading.
func TestApply_FR01_FragmentRepairGuard(t *testing.T) {
	f1 := id("G1.F1", "lib:R")
	g1 := id("G1", "")

	fb := backend.NewFakeBackend()
	h := seedFootprint(fb, "G1.F1", "lib:R", "R1", model.Position{X: 50, Y: 60})
	_ = h

	view := model.NewBoardView()
	view.Footprints[f1] = model.FootprintView{EntityId: f1, Reference: "R1", Fields: map[string]string{}}
	view.Groups[g1] = model.GroupView{EntityId: g1, MemberIds: []model.EntityId{f1}, LayoutPath: "pkg://filter"}

	oldComplement := model.NewBoardComplement()
	oldComplement.Footprints[f1] = model.FootprintComplement{Position: model.Position{X: 50, Y: 60}}
	// complement_old has no G1 group, matching a prior delete

	newComplement, _ := lens.AdaptComplement(view, oldComplement)
	cs, _ := lens.BuildChangeset(newComplement, oldComplement)

	if len(cs.AddedGroups) != 1 || cs.AddedGroups[0] != g1 {
		t.Fatalf("expected G1 added, got %+v", cs.AddedGroups)
	}
	if len(cs.AddedFootprints) != 0 {
		t.Fatalf("expected no added footprints, got %+v", cs.AddedFootprints)
	}

	loader := &explodingLoader{t: t}
	res, err := ApplyChangeset(view, cs, fb, nil, loader)
	if err != nil {
		t.Fatalf("ApplyChangeset: %v", err)
	}
	if loader.called {
		t.Fatalf("fragment loader should not have been invoked: repair guard should skip it")
	}
	if strings.Contains(res.Log.Serialize(), "PLACE_GR") {
		t.Fatalf("no PLACE_GR expected, log:\n%s", res.Log.Serialize())
	}

	fps, _ := fb.EnumerateFootprints()
	if fps[0].Position != (model.Position{X: 50, Y: 60}) {
		t.Fatalf("F1's position should be unchanged, got %+v", fps[0].Position)
	}

	grs, _ := fb.EnumerateGroups()
	found := false
	for _, gr := range grs {
		if gr.Name == "G1" {
			found = true
		}
	}
	if !found {
		t.Fatalf("G1 should have been recreated")
	}
}

// explodingLoader fails the test if Load is ever called; used to prove
// the fragment repair guard actually skips loading.
type explodingLoader struct {
	t      *testing.T
	called bool
}

func (l *explodingLoader) Load(layoutPath string, packageRoots map[string]string) (fragment.Fragment, error) {
	l.called = true
	l.t.Fatalf("Load should not be called when repair guard applies")
	return fragment.Fragment{}, nil
}
