package backend

import (
	"testing"

	"github.com/diodeinc/pcb-layout-lens/model"
)

func TestFakeBackend_HandleInvalidationOnDelete(t *testing.T) {
	fb := NewFakeBackend()
	h1 := fb.AddFakeFootprint(FootprintRecord{Path: "Top.A", Fpid: "lib:R", Fields: map[string]string{}, PadNets: map[string]string{}})
	h2 := fb.AddFakeFootprint(FootprintRecord{Path: "Top.B", Fpid: "lib:R", Fields: map[string]string{}, PadNets: map[string]string{}})

	if err := fb.DeleteFootprint(h1); err != nil {
		t.Fatalf("DeleteFootprint: %v", err)
	}

	// h2 was issued before the delete bumped the generation counter; it
	// must now be rejected by every handle-consuming method, not just
	// Delete*.
	if err := fb.SetFootprintFields(h2, "R2", "10k", map[string]string{}, false, false, false); err == nil {
		t.Fatalf("expected stale handle h2 to be rejected by SetFootprintFields")
	}
	if err := fb.AssignPad(h2, "1", "VCC"); err == nil {
		t.Fatalf("expected stale handle h2 to be rejected by AssignPad")
	}
	if err := fb.SetFootprintPlacement(h2, model.Position{}, 0, model.LayerFront, false); err == nil {
		t.Fatalf("expected stale handle h2 to be rejected by SetFootprintPlacement")
	}

	// A fresh enumeration reissues a valid handle for B at the new
	// generation.
	fps, err := fb.EnumerateFootprints()
	if err != nil {
		t.Fatalf("EnumerateFootprints: %v", err)
	}
	if len(fps) != 1 {
		t.Fatalf("expected 1 remaining footprint, got %d", len(fps))
	}
	fresh := fps[0].Handle
	if err := fb.SetFootprintFields(fresh, "R2", "10k", map[string]string{}, false, false, false); err != nil {
		t.Fatalf("fresh handle should be accepted: %v", err)
	}
}

func TestFakeBackend_GroupHandleInvalidationOnAddFootprint(t *testing.T) {
	fb := NewFakeBackend()
	gh := fb.AddFakeGroup(GroupRecord{Name: "Top.Filter"})

	// Any structural addition bumps generation, invalidating gh too.
	if _, err := fb.AddFootprint("lib:R", nil); err != nil {
		t.Fatalf("AddFootprint: %v", err)
	}

	if err := fb.DeleteGroup(gh); err == nil {
		t.Fatalf("expected stale group handle to be rejected after AddFootprint bumped generation")
	}
}

func TestFakeBackend_GroupMembershipRoundTrip(t *testing.T) {
	fb := NewFakeBackend()
	fh := fb.AddFakeFootprint(FootprintRecord{Path: "Top.A", Fpid: "lib:R", Fields: map[string]string{}, PadNets: map[string]string{}})
	gh := fb.AddFakeGroup(GroupRecord{Name: "Top.Filter"})

	if err := fb.AddItemToGroup(gh, fh); err != nil {
		t.Fatalf("AddItemToGroup: %v", err)
	}

	grs, err := fb.EnumerateGroups()
	if err != nil {
		t.Fatalf("EnumerateGroups: %v", err)
	}
	if len(grs) != 1 || len(grs[0].Members) != 1 {
		t.Fatalf("expected 1 group with 1 member, got %+v", grs)
	}
	if grs[0].Members[0] != fh {
		t.Fatalf("expected member handle to equal the footprint's handle")
	}

	if err := fb.RemoveItemFromGroup(grs[0].Handle, fh); err != nil {
		t.Fatalf("RemoveItemFromGroup: %v", err)
	}
	grs, _ = fb.EnumerateGroups()
	if len(grs[0].Members) != 0 {
		t.Fatalf("expected 0 members after removal, got %+v", grs[0].Members)
	}
}
