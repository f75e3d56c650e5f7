package fragment

import (
	"testing"

	"github.com/diodeinc/pcb-layout-lens/model"
)

func gid(path string) model.EntityId {
	return model.NewEntityId(model.PathFromString(path), "")
}

func TestDiscoverAuthoritative_TopMostWins(t *testing.T) {
	view := model.NewBoardView()
	view.Groups[gid("Outer")] = model.GroupView{EntityId: gid("Outer"), LayoutPath: "pkg://a"}
	view.Groups[gid("Outer.Inner")] = model.GroupView{EntityId: gid("Outer.Inner"), LayoutPath: "pkg://b"}
	view.Groups[gid("Sibling")] = model.GroupView{EntityId: gid("Sibling"), LayoutPath: "pkg://c"}

	got := DiscoverAuthoritative(view)
	if len(got) != 2 {
		t.Fatalf("expected 2 authoritative groups (Outer, Sibling), got %v", got)
	}
	for _, id := range got {
		if id.Path.String() == "Outer.Inner" {
			t.Fatalf("nested fragment group should be masked: %v", got)
		}
	}
}

func TestBuildNetRemap(t *testing.T) {
	member := model.NewEntityId(model.PathFromString("Filter.C1"), "lib:C")
	group := model.GroupView{EntityId: gid("Filter"), MemberIds: []model.EntityId{member}}

	view := model.NewBoardView()
	view.Nets["VCC"] = model.NetView{
		Name:        "VCC",
		Connections: []model.Connection{{EntityId: member, PadName: "1"}},
	}

	frag := Fragment{
		PadNetMap: map[PadKey]string{
			{RelativePath: "C1", PadName: "1"}: "net_vcc_fragment",
		},
	}

	remap, warnings := BuildNetRemap(group, view, frag)
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if remap["net_vcc_fragment"] != "VCC" {
		t.Fatalf("expected net_vcc_fragment -> VCC, got %v", remap)
	}

	boardNet, mapped := RewriteNetName(remap, "net_vcc_fragment")
	if !mapped || boardNet != "VCC" {
		t.Fatalf("RewriteNetName = (%q,%v)", boardNet, mapped)
	}
	if _, mapped := RewriteNetName(remap, "unrelated"); mapped {
		t.Fatalf("unrelated fragment net should be unmapped")
	}
}

func TestRepairGuardSkipsLoad(t *testing.T) {
	if !RepairGuardSkipsLoad(true) {
		t.Fatalf("guard should skip when all members preexist")
	}
	if RepairGuardSkipsLoad(false) {
		t.Fatalf("guard should not skip when members are new")
	}
}
