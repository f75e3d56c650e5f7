package model

// FootprintComplement is the layout-authoritative (user-authored)
// portion of a footprint: where it sits, how it is rotated, and the
// visibility/position of its reference and value text.
type FootprintComplement struct {
	Position          Position
	OrientationDegrees float64
	Layer             Layer
	Locked            bool
	ReferencePosition *Position
	ReferenceVisible  bool
	ValuePosition     *Position
	ValueVisible      bool
}

// Layer is a copper side.
type Layer string

const (
	LayerFront Layer = "F.Cu"
	LayerBack  Layer = "B.Cu"
)

// DefaultFootprintComplement is the placement assigned to a
// newly-introduced footprint; HierPlace positions it later.
func DefaultFootprintComplement() FootprintComplement {
	return FootprintComplement{
		Position: Position{X: 0, Y: 0},
		Layer:    LayerFront,
	}
}

// TrackComplement is a routed copper track or arc segment.
type TrackComplement struct {
	Uuid    string
	Start   Position
	End     Position
	Width   int64
	Layer   string
	NetName string
}

// ViaComplement is a via.
type ViaComplement struct {
	Uuid     string
	Position Position
	Diameter int64
	Drill    int64
	ViaType  string
	NetName  string
}

// ZoneComplement is a copper pour zone outline.
type ZoneComplement struct {
	Uuid     string
	Name     string
	Outline  []Position
	Layer    string
	Priority int
	NetName  string
}

// GraphicComplement is a non-electrical drawing element (silkscreen,
// courtyard line, text, etc.) kept alongside a group's routing.
type GraphicComplement struct {
	Uuid        string
	GraphicType string
	Layer       string
}

// GroupComplement is the layout-authoritative portion of a group: its
// routing and graphics, independent of which footprints are members.
type GroupComplement struct {
	Tracks   []TrackComplement
	Vias     []ViaComplement
	Zones    []ZoneComplement
	Graphics []GraphicComplement
}

// IsEmpty reports whether the group carries no routing or graphics.
func (c GroupComplement) IsEmpty() bool {
	return len(c.Tracks) == 0 && len(c.Vias) == 0 && len(c.Zones) == 0 && len(c.Graphics) == 0
}

// DefaultGroupComplement is the complement assigned to a newly
// introduced group: empty routing.
func DefaultGroupComplement() GroupComplement {
	return GroupComplement{}
}

// BoardComplement is the complete layout-authoritative data: positions,
// rotations, and routing, independent of the source netlist.
type BoardComplement struct {
	Footprints map[EntityId]FootprintComplement
	Groups     map[EntityId]GroupComplement
}

// NewBoardComplement returns an empty, initialized BoardComplement.
func NewBoardComplement() BoardComplement {
	return BoardComplement{
		Footprints: map[EntityId]FootprintComplement{},
		Groups:     map[EntityId]GroupComplement{},
	}
}

// Board pairs a view with its complement.
type Board struct {
	View       BoardView
	Complement BoardComplement
}
