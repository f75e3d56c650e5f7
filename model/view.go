package model

// FootprintView is the source-authoritative (netlist-derived) portion of
// a footprint: the metadata that must exist, independent of where the
// user placed the part.
type FootprintView struct {
	EntityId        EntityId
	Reference       string
	Value           string
	Fpid            string
	Dnp             bool
	ExcludeFromBom  bool
	ExcludeFromPos  bool
	Fields          map[string]string
}

// Path returns the footprint's hierarchical path.
func (v FootprintView) Path() EntityPath { return v.EntityId.Path }

// GroupView is the source-authoritative portion of a group: its member
// footprints and, if it wraps a pre-laid sub-layout, the fragment path.
type GroupView struct {
	EntityId   EntityId
	MemberIds  []EntityId
	LayoutPath string // empty means "no fragment"
}

// Path returns the group's hierarchical path.
func (v GroupView) Path() EntityPath { return v.EntityId.Path }

// NetKind classifies a net's electrical role.
type NetKind string

const (
	NetKindNet          NetKind = "Net"
	NetKindPower        NetKind = "Power"
	NetKindGround       NetKind = "Ground"
	NetKindNotConnected NetKind = "NotConnected"
)

// PadRef names a (refdes, pin) pair forming a net's logical port,
// independent of physical pad fanout.
type PadRef struct {
	ComponentRef string
	PinName      string
}

// Connection is a single footprint-pad binding to a net.
type Connection struct {
	EntityId EntityId
	PadName  string
}

// NetView is the source-authoritative view of a net.
type NetView struct {
	Name          string
	Connections   []Connection
	Kind          NetKind
	LogicalPorts  []PadRef // sorted, deduplicated
}

// NotConnectedPad identifies a pad on a NotConnected net (or, from
// extraction, a pad with no net). The pad keeps its net connection;
// the apply protocol does not read this set and sets no pad pin-type
// on the backend.
type NotConnectedPad struct {
	EntityId EntityId
	PadName  string
}

// BoardView is the complete source-authoritative projection of a
// netlist: everything that must exist on the board.
type BoardView struct {
	Footprints      map[EntityId]FootprintView
	Groups          map[EntityId]GroupView
	Nets            map[string]NetView
	NotConnectedPads map[NotConnectedPad]struct{}
}

// NewBoardView returns an empty, initialized BoardView.
func NewBoardView() BoardView {
	return BoardView{
		Footprints:       map[EntityId]FootprintView{},
		Groups:           map[EntityId]GroupView{},
		Nets:             map[string]NetView{},
		NotConnectedPads: map[NotConnectedPad]struct{}{},
	}
}
