// Package snapshot renders a Backend's current state as the canonical
// layout snapshot (spec.md §6): deterministic JSON with sorted object
// keys and list elements ordered by their own JSON-string
// representation, used as a regression oracle across sync runs.
package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/diodeinc/pcb-layout-lens/internal/backend"
)

// Document is the top-level canonical snapshot shape. Graphics items
// are intentionally excluded: the canonical snapshot's top-level keys
// are footprints, groups, zones, tracks, vias only.
type Document struct {
	Footprints []json.RawMessage `json:"footprints"`
	Groups     []json.RawMessage `json:"groups"`
	Zones      []json.RawMessage `json:"zones"`
	Tracks     []json.RawMessage `json:"tracks"`
	Vias       []json.RawMessage `json:"vias"`
}

// Build reads every footprint and group off b and renders the
// canonical snapshot document.
func Build(b backend.Backend) (Document, error) {
	fps, err := b.EnumerateFootprints()
	if err != nil {
		return Document{}, fmt.Errorf("enumerating footprints: %w", err)
	}
	grs, err := b.EnumerateGroups()
	if err != nil {
		return Document{}, fmt.Errorf("enumerating groups: %w", err)
	}

	doc := Document{
		Footprints: []json.RawMessage{},
		Groups:     []json.RawMessage{},
		Zones:      []json.RawMessage{},
		Tracks:     []json.RawMessage{},
		Vias:       []json.RawMessage{},
	}

	for _, r := range fps {
		raw, err := canonical(footprintObject(r))
		if err != nil {
			return Document{}, err
		}
		doc.Footprints = append(doc.Footprints, raw)
	}

	for _, g := range grs {
		raw, err := canonical(groupObject(g))
		if err != nil {
			return Document{}, err
		}
		doc.Groups = append(doc.Groups, raw)

		for _, item := range g.Items {
			raw, err := canonical(routingObject(g.Name, item))
			if err != nil {
				return Document{}, err
			}
			switch item.Kind {
			case backend.RoutingTrack:
				doc.Tracks = append(doc.Tracks, raw)
			case backend.RoutingVia:
				doc.Vias = append(doc.Vias, raw)
			case backend.RoutingZone:
				doc.Zones = append(doc.Zones, raw)
			case backend.RoutingGraphic:
				// excluded from the canonical snapshot; see Document's doc comment.
			}
		}
	}

	sortRaw(doc.Footprints)
	sortRaw(doc.Groups)
	sortRaw(doc.Zones)
	sortRaw(doc.Tracks)
	sortRaw(doc.Vias)

	return doc, nil
}

// Marshal renders doc as indented JSON, object keys sorted (guaranteed
// by canonical() building map[string]any values) and list elements
// already sorted by Build.
func Marshal(doc Document) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}

// footprintObject projects a FootprintRecord into a plain map so
// encoding/json sorts its keys alphabetically.
func footprintObject(r backend.FootprintRecord) map[string]any {
	return map[string]any{
		"path":             r.Path,
		"fpid":             r.Fpid,
		"reference":        r.Reference,
		"value":            r.Value,
		"dnp":              r.Dnp,
		"exclude_from_bom": r.ExcludeFromBom,
		"exclude_from_pos": r.ExcludeFromPos,
		"fields":           r.Fields,
		"position":         map[string]any{"x": r.Position.X, "y": r.Position.Y},
		"orientation":      r.OrientationDegrees,
		"layer":            string(r.Layer),
		"locked":           r.Locked,
		"pad_nets":         r.PadNets,
	}
}

func groupObject(g backend.GroupRecord) map[string]any {
	return map[string]any{
		"name":         g.Name,
		"member_count": len(g.Members),
	}
}

func routingObject(group string, item backend.RoutingRecord) map[string]any {
	obj := map[string]any{
		"group": group,
		"uuid":  item.Uuid,
		"net":   item.NetName,
	}
	switch item.Kind {
	case backend.RoutingTrack:
		obj["layer"] = item.Layer
		obj["start"] = map[string]any{"x": item.Start.X, "y": item.Start.Y}
		obj["end"] = map[string]any{"x": item.End.X, "y": item.End.Y}
		obj["width"] = item.Width
	case backend.RoutingVia:
		obj["position"] = map[string]any{"x": item.Position.X, "y": item.Position.Y}
		obj["diameter"] = item.Diameter
		obj["drill"] = item.Drill
	case backend.RoutingZone:
		obj["layer"] = item.Layer
		obj["name"] = item.Name
		obj["priority"] = item.Priority
		outline := make([]map[string]any, len(item.Outline))
		for i, p := range item.Outline {
			outline[i] = map[string]any{"x": p.X, "y": p.Y}
		}
		obj["outline"] = outline
	}
	return obj
}

func canonical(v any) (json.RawMessage, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot element: %w", err)
	}
	return json.RawMessage(b), nil
}

// sortRaw orders a slice of JSON elements by their own serialized
// bytes, per spec.md §6's "list elements sorted by their JSON-string
// representation".
func sortRaw(elems []json.RawMessage) {
	sort.Slice(elems, func(i, j int) bool {
		return bytes.Compare(elems[i], elems[j]) < 0
	})
}
