package netlist

import (
	"fmt"
	"sort"
	"strings"

	"github.com/diodeinc/pcb-layout-lens/model"
)

const (
	attrFootprint   = "footprint"
	attrValue       = "value"
	attrDnp         = "dnp"
	attrSkipBom     = "skip_bom"
	attrSkipPos     = "skip_pos"
	attrLayoutPath  = "layout_path"
	attrDatasheet   = "Datasheet"
	attrDescription = "Description"
)

// reservedAttrs are consumed into named FootprintView properties rather
// than surfacing as generic Fields entries.
var reservedAttrs = map[string]bool{
	attrFootprint:  true,
	attrValue:      true,
	attrDnp:        true,
	attrSkipBom:    true,
	attrSkipPos:    true,
	attrLayoutPath: true,
}

// titleCase upper-cases the first rune of s, leaving the rest
// untouched; netlist attribute names arrive already-delimited (e.g.
// "manufacturer_part_number") so this only normalizes the leading
// letter for display as a field name.
func titleCase(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	if r[0] >= 'a' && r[0] <= 'z' {
		r[0] = r[0] - ('a' - 'A')
	}
	return string(r)
}

// Get projects a netlist document into a BoardView (spec.md §4.1).
func Get(doc Document) (model.BoardView, error) {
	view := model.NewBoardView()

	paths := doc.sortedInstancePaths()

	// entityIDs maps each instance's dotted path string to its derived
	// EntityId (empty Fpid for modules), resolved up front so net and
	// group construction can look components up by path.
	entityIDs := make(map[string]model.EntityId, len(paths))
	entityPaths := make(map[string]model.EntityPath, len(paths))

	for _, p := range paths {
		inst := doc.Instances[p]
		ep := model.PathFromString(p)
		entityPaths[p] = ep
		fpid := ""
		if inst.Kind == KindComponent {
			if fp, ok := inst.Attributes[attrFootprint]; ok {
				fpid = fp.StringValue()
			}
		}
		entityIDs[p] = model.NewEntityId(ep, fpid)
	}

	for _, p := range paths {
		inst := doc.Instances[p]
		if inst.Kind != KindComponent {
			continue
		}
		id := entityIDs[p]
		fv := model.FootprintView{
			EntityId: id,
			Reference: inst.ReferenceDesignator,
			Fpid:      id.Fpid,
			Fields:    map[string]string{"Path": p},
		}
		if v, ok := inst.Attributes[attrValue]; ok {
			fv.Value = v.StringValue()
		}
		if v, ok := inst.Attributes[attrDnp]; ok {
			fv.Dnp = v.BoolValue()
		}
		if v, ok := inst.Attributes[attrSkipBom]; ok {
			fv.ExcludeFromBom = v.BoolValue()
		}
		if v, ok := inst.Attributes[attrSkipPos]; ok {
			fv.ExcludeFromPos = v.BoolValue()
		}
		for key, v := range inst.Attributes {
			if reservedAttrs[key] {
				continue
			}
			switch key {
			case attrDatasheet, attrDescription:
				fv.Fields[key] = v.StringValue()
			default:
				fv.Fields[titleCase(key)] = v.StringValue()
			}
		}
		view.Footprints[id] = fv
	}

	// Groups: a Module becomes a group when it declares layout_path, or
	// when it has more than one direct child; single-child wrapper
	// modules are elided.
	for _, p := range paths {
		inst := doc.Instances[p]
		if inst.Kind != KindModule {
			continue
		}
		ep := entityPaths[p]
		layoutPath := ""
		if lp, ok := inst.Attributes[attrLayoutPath]; ok {
			layoutPath = lp.StringValue()
		}

		directChildren := 0
		var memberIDs []model.EntityId
		for _, q := range paths {
			if q == p {
				continue
			}
			qPath := entityPaths[q]
			parent, ok := qPath.Parent()
			if ok && parent.Equal(ep) {
				directChildren++
			}
			if ep.IsAncestorOf(qPath) && doc.Instances[q].Kind == KindComponent {
				memberIDs = append(memberIDs, entityIDs[q])
			}
		}

		if layoutPath == "" && directChildren <= 1 {
			continue // elided wrapper module
		}

		sort.Slice(memberIDs, func(i, j int) bool {
			return memberIDs[i].Path.String() < memberIDs[j].Path.String()
		})

		gid := model.NewEntityId(ep, "")
		view.Groups[gid] = model.GroupView{
			EntityId:   gid,
			MemberIds:  memberIDs,
			LayoutPath: layoutPath,
		}
	}

	if err := buildNets(doc, entityIDs, &view); err != nil {
		return model.BoardView{}, err
	}

	return view, nil
}

// portPin splits a port identifier into its owning instance path and
// pin name, at the final colon (paths themselves are dot-separated).
func portPin(port string) (path, pin string, ok bool) {
	i := strings.LastIndex(port, ":")
	if i < 0 {
		return "", "", false
	}
	return port[:i], port[i+1:], true
}

func netKindFromString(s string) model.NetKind {
	switch s {
	case "Power":
		return model.NetKindPower
	case "Ground":
		return model.NetKindGround
	case "NotConnected":
		return model.NetKindNotConnected
	default:
		return model.NetKindNet
	}
}

// pinRef identifies one logical (component, pin) endpoint of a net.
type pinRef struct {
	path model.EntityPath
	id   model.EntityId
	ref  string
	pin  string
}

func buildNets(doc Document, entityIDs map[string]model.EntityId, view *model.BoardView) error {
	for _, name := range doc.sortedNetNames() {
		rec := doc.Nets[name]
		kind := netKindFromString(rec.Kind)

		var pins []pinRef
		seenPins := map[string]bool{}
		for _, port := range rec.Ports {
			instPath, pin, ok := portPin(port)
			if !ok {
				return fmt.Errorf("net %q: malformed port %q", name, port)
			}
			inst, ok := doc.Instances[instPath]
			if !ok || inst.Kind != KindComponent {
				return fmt.Errorf("net %q: port %q does not reference a component", name, port)
			}
			key := instPath + ":" + pin
			if seenPins[key] {
				continue
			}
			seenPins[key] = true
			pins = append(pins, pinRef{
				path: model.PathFromString(instPath),
				id:   entityIDs[instPath],
				ref:  inst.ReferenceDesignator,
				pin:  pin,
			})
		}

		if kind == model.NetKindNotConnected && len(pins) == 1 {
			fanout := padsForPin(doc, pins[0])
			if len(fanout) > 1 {
				explodeNotConnected(name, pins[0], fanout, view)
				continue
			}
		}

		nv := model.NetView{Name: name, Kind: kind}
		ports := map[model.PadRef]bool{}
		for _, p := range pins {
			fanout := padsForPin(doc, p)
			for _, pad := range fanout {
				conn := model.Connection{EntityId: p.id, PadName: pad}
				nv.Connections = append(nv.Connections, conn)
				if kind == model.NetKindNotConnected {
					view.NotConnectedPads[model.NotConnectedPad{EntityId: p.id, PadName: pad}] = struct{}{}
				}
			}
			ports[model.PadRef{ComponentRef: p.ref, PinName: p.pin}] = true
		}
		for pr := range ports {
			nv.LogicalPorts = append(nv.LogicalPorts, pr)
		}
		sort.Slice(nv.LogicalPorts, func(i, j int) bool {
			if nv.LogicalPorts[i].ComponentRef != nv.LogicalPorts[j].ComponentRef {
				return nv.LogicalPorts[i].ComponentRef < nv.LogicalPorts[j].ComponentRef
			}
			return nv.LogicalPorts[i].PinName < nv.LogicalPorts[j].PinName
		})
		sort.Slice(nv.Connections, func(i, j int) bool {
			a, b := nv.Connections[i], nv.Connections[j]
			if a.EntityId.Path.String() != b.EntityId.Path.String() {
				return a.EntityId.Path.String() < b.EntityId.Path.String()
			}
			return naturalLess(a.PadName, b.PadName)
		})
		view.Nets[name] = nv
	}
	return nil
}

// padsForPin returns the physical pad numbers a logical pin fans out
// to, sorted naturally; a pin with no declared fanout is its own pad.
func padsForPin(doc Document, p pinRef) []string {
	inst := doc.Instances[p.path.String()]
	pads, ok := inst.Pins[p.pin]
	if !ok || len(pads) == 0 {
		return []string{p.pin}
	}
	out := make([]string, len(pads))
	copy(out, pads)
	sort.Slice(out, func(i, j int) bool { return naturalLess(out[i], out[j]) })
	return out
}

// explodeNotConnected implements spec.md §4.1's NotConnected fan-out
// rule: a single logical pin fanning out to multiple physical pads is
// split into one net per pad, named "unconnected-(<path>:<pad>)" with
// "__2", "__3", ... suffixes on name collision.
func explodeNotConnected(originalName string, p pinRef, pads []string, view *model.BoardView) {
	for _, pad := range pads {
		base := fmt.Sprintf("unconnected-(%s:%s)", p.path.String(), pad)
		name := base
		for suffix := 2; ; suffix++ {
			if _, exists := view.Nets[name]; !exists {
				break
			}
			name = fmt.Sprintf("%s__%d", base, suffix)
		}
		view.Nets[name] = model.NetView{
			Name: name,
			Kind: model.NetKindNotConnected,
			Connections: []model.Connection{
				{EntityId: p.id, PadName: pad},
			},
			LogicalPorts: []model.PadRef{{ComponentRef: p.ref, PinName: p.pin}},
		}
		view.NotConnectedPads[model.NotConnectedPad{EntityId: p.id, PadName: pad}] = struct{}{}
	}
}
