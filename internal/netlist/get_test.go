package netlist

import (
	"testing"

	"github.com/diodeinc/pcb-layout-lens/model"
)

func mustGet(t *testing.T, doc Document) model.BoardView {
	t.Helper()
	v, err := Get(doc)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	return v
}

func TestGet_FootprintFields(t *testing.T) {
	doc := Document{
		Instances: map[string]Instance{
			"Power.C1": {
				Kind:                 KindComponent,
				ReferenceDesignator:  "C1",
				Attributes: map[string]Attribute{
					"footprint":   {String: strPtr("lib:C_0402")},
					"value":       {String: strPtr("10k")},
					"dnp":         {Boolean: boolPtr(true)},
					"Datasheet":   {String: strPtr("http://example.com")},
					"manufacturer_part_number": {String: strPtr("ABC123")},
				},
			},
		},
	}
	view := mustGet(t, doc)
	id := model.NewEntityId(model.PathFromString("Power.C1"), "lib:C_0402")
	fp, ok := view.Footprints[id]
	if !ok {
		t.Fatalf("footprint %v not found", id)
	}
	if fp.Value != "10k" || !fp.Dnp || fp.Reference != "C1" {
		t.Fatalf("unexpected footprint: %+v", fp)
	}
	if fp.Fields["Path"] != "Power.C1" {
		t.Fatalf("Path field = %q", fp.Fields["Path"])
	}
	if fp.Fields["Datasheet"] != "http://example.com" {
		t.Fatalf("Datasheet field = %q", fp.Fields["Datasheet"])
	}
	if fp.Fields["Manufacturer_part_number"] != "ABC123" {
		t.Fatalf("custom field not title-cased: %+v", fp.Fields)
	}
}

func TestGet_ModuleElisionAndGrouping(t *testing.T) {
	doc := Document{
		Instances: map[string]Instance{
			"Wrap":       {Kind: KindModule},
			"Wrap.R1":    {Kind: KindComponent, ReferenceDesignator: "R1", Attributes: map[string]Attribute{"footprint": {String: strPtr("lib:R")}}},
			"Filter":     {Kind: KindModule, Attributes: map[string]Attribute{"layout_path": {String: strPtr("pkg://fragments/filter.kicad_pcb")}}},
			"Filter.C1":  {Kind: KindComponent, ReferenceDesignator: "C1", Attributes: map[string]Attribute{"footprint": {String: strPtr("lib:C")}}},
			"Multi":      {Kind: KindModule},
			"Multi.U1":   {Kind: KindComponent, ReferenceDesignator: "U1", Attributes: map[string]Attribute{"footprint": {String: strPtr("lib:U")}}},
			"Multi.U2":   {Kind: KindComponent, ReferenceDesignator: "U2", Attributes: map[string]Attribute{"footprint": {String: strPtr("lib:U")}}},
		},
	}
	view := mustGet(t, doc)

	wrapID := model.NewEntityId(model.PathFromString("Wrap"), "")
	if _, ok := view.Groups[wrapID]; ok {
		t.Fatalf("single-child wrapper module Wrap should be elided")
	}

	filterID := model.NewEntityId(model.PathFromString("Filter"), "")
	fg, ok := view.Groups[filterID]
	if !ok {
		t.Fatalf("Filter should become a group (has layout_path)")
	}
	if fg.LayoutPath != "pkg://fragments/filter.kicad_pcb" {
		t.Fatalf("LayoutPath = %q", fg.LayoutPath)
	}
	if len(fg.MemberIds) != 1 {
		t.Fatalf("Filter members = %v", fg.MemberIds)
	}

	multiID := model.NewEntityId(model.PathFromString("Multi"), "")
	mg, ok := view.Groups[multiID]
	if !ok {
		t.Fatalf("Multi should become a group (>1 direct child)")
	}
	if len(mg.MemberIds) != 2 {
		t.Fatalf("Multi members = %v", mg.MemberIds)
	}
}

func TestGet_NotConnectedFanout(t *testing.T) {
	doc := Document{
		Instances: map[string]Instance{
			"Power.C1": {
				Kind:                "Component",
				ReferenceDesignator: "C1",
				Attributes:          map[string]Attribute{"footprint": {String: strPtr("lib:C")}},
				Pins:                map[string][]string{"NC": {"1", "2"}},
			},
		},
		Nets: map[string]NetRecord{
			"unconnected-1": {Ports: []string{"Power.C1:NC"}, Kind: "NotConnected"},
		},
	}
	view := mustGet(t, doc)
	if _, ok := view.Nets["unconnected-1"]; ok {
		t.Fatalf("original net name should not survive fan-out")
	}
	n1, ok := view.Nets["unconnected-(Power.C1:1)"]
	if !ok {
		t.Fatalf("missing exploded net for pad 1: %v", view.Nets)
	}
	n2, ok := view.Nets["unconnected-(Power.C1:2)"]
	if !ok {
		t.Fatalf("missing exploded net for pad 2: %v", view.Nets)
	}
	for _, n := range []model.NetView{n1, n2} {
		if len(n.Connections) != 1 {
			t.Fatalf("net %s: want 1 connection, got %d", n.Name, len(n.Connections))
		}
		if len(n.LogicalPorts) != 1 || n.LogicalPorts[0] != (model.PadRef{ComponentRef: "C1", PinName: "NC"}) {
			t.Fatalf("net %s: unexpected logical ports %v", n.Name, n.LogicalPorts)
		}
	}
}

func TestNaturalLess(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"2", "10", true},
		{"10", "2", false},
		{"1", "A1", true},
		{"A1", "1", false},
		{"A1", "B1", true},
	}
	for _, c := range cases {
		if got := naturalLess(c.a, c.b); got != c.want {
			t.Errorf("naturalLess(%q,%q) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }
