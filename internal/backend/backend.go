// Package backend defines the layout backend capability contract: the
// abstract interface the apply protocol drives, and the handle
// invalidation model described in spec §5/§6. Binding this interface to
// a concrete PCB toolkit is out of scope for the core (spec.md §1); this
// package only defines the contract plus an in-memory reference
// implementation used by the CLI and a fake used by tests.
package backend

import (
	"fmt"

	"github.com/diodeinc/pcb-layout-lens/model"
)

// Handle is an opaque token identifying a footprint or group on a
// backend. It is valid only until the next structural mutation of the
// backend that issued it — see Backend's doc comment.
type Handle struct {
	id         string
	generation int
}

// Invalid reports whether this is the zero Handle.
func (h Handle) Invalid() bool { return h.id == "" }

// FootprintRecord is the raw data a backend exposes for one footprint,
// prior to being split into its View and Complement halves.
type FootprintRecord struct {
	Handle    Handle
	Path      string // from the footprint's "Path" field, "" if absent
	KiidPath  string // the backend's internal stable-id path
	Reference string
	Value     string
	Fpid      string
	Dnp       bool
	ExcludeFromBom bool
	ExcludeFromPos bool
	Fields    map[string]string // custom fields, excluding Reference/Value/Footprint

	// Width/Height are the footprint's courtyard bounding box, in
	// nanometers, used by HierPlace to size its placement rect. A real
	// toolkit binding derives these from the footprint's courtyard
	// layer; this reference backend assigns a fixed default.
	Width, Height int64

	Position           model.Position
	OrientationDegrees float64
	Layer              model.Layer
	Locked             bool
	ReferencePosition  model.Position
	ReferenceVisible   bool
	ValuePosition      model.Position
	ValueVisible       bool

	// PadNets maps pad name -> net name, net name "" meaning unconnected.
	PadNets map[string]string
}

// RoutingKind classifies a group-contained routing/graphic item.
type RoutingKind string

const (
	RoutingVia     RoutingKind = "via"
	RoutingTrack   RoutingKind = "track"
	RoutingZone    RoutingKind = "zone"
	RoutingGraphic RoutingKind = "graphic"
)

// RoutingRecord is the raw data a backend exposes for one routing or
// graphic item contained in a group.
type RoutingRecord struct {
	Kind     RoutingKind
	Uuid     string
	NetName  string
	Layer    string
	Start    model.Position
	End      model.Position
	Position model.Position
	Width    int64
	Diameter int64
	Drill    int64
	Outline  []model.Position
	Name     string
	Priority int
	GraphicType string
}

// GroupRecord is the raw data a backend exposes for one group.
type GroupRecord struct {
	Handle  Handle
	Name    string // the group's path string
	Items   []RoutingRecord
	Members []Handle // current member footprint handles
}

// Backend is the capability contract the apply protocol is written
// against (spec.md §6). Any structural mutation (DeleteFootprint,
// DeleteGroup, AddFootprint, AddGroup) invalidates every Handle
// previously returned by Enumerate* — callers must re-enumerate after
// every such mutation; see spec.md §5. Net operations and the
// AddItemToGroup/RemoveItemFromGroup/DuplicateRouting relationship
// edits leave existing handles valid.
type Backend interface {
	// EnumerateFootprints returns fresh handles and raw records for
	// every footprint currently on the backend.
	EnumerateFootprints() ([]FootprintRecord, error)
	// EnumerateGroups returns fresh handles and raw records for every
	// group currently on the backend.
	EnumerateGroups() ([]GroupRecord, error)

	// FindNet reports whether a net with the given name exists.
	FindNet(name string) (bool, error)
	// CreateNet creates a net; a no-op if it already exists.
	CreateNet(name string) error
	// DeleteNet removes a net by name.
	DeleteNet(name string) error

	// DeleteFootprint removes a footprint by handle.
	DeleteFootprint(h Handle) error
	// DeleteGroup removes a group container by handle; its member
	// footprints are preserved.
	DeleteGroup(h Handle) error

	// AddFootprint instantiates a fresh footprint from a library
	// reference ("library:name" or an absolute .kicad_mod path) and
	// returns its handle.
	AddFootprint(fpid string, packageRoots map[string]string) (Handle, error)
	// SetFootprintFields sets reference/value/fields/DNP flags.
	SetFootprintFields(h Handle, ref, value string, fields map[string]string, dnp, excludeFromBom, excludeFromPos bool) error
	// SetFootprintPath attaches the canonical Path field and KIID-path.
	SetFootprintPath(h Handle, path, kiidPath string) error
	// AssignPad binds a pad to a net by name, creating the net if
	// necessary.
	AssignPad(h Handle, padName, netName string) error
	// SetFootprintPlacement sets position/orientation/layer/lock.
	SetFootprintPlacement(h Handle, pos model.Position, orientationDegrees float64, layer model.Layer, locked bool) error

	// AddGroup creates an empty group container named by path and
	// returns its handle.
	AddGroup(path string) (Handle, error)
	// AddItemToGroup adds a footprint to a group's membership.
	AddItemToGroup(group, item Handle) error
	// RemoveItemFromGroup removes a footprint from a group's
	// membership.
	RemoveItemFromGroup(group, item Handle) error

	// DuplicateRouting duplicates a track/via/zone/graphic from a
	// fragment source into the destination group, with its net name
	// already rewritten by the caller.
	DuplicateRouting(group Handle, item RoutingRecord) error

	// RebuildConnectivity asks the backend to recompute net
	// connectivity after structural changes.
	RebuildConnectivity() error
	// Save persists the backend's state to disk.
	Save() error
}

// errInvalidHandle is returned by FakeBackend when a stale handle is
// used after a structural mutation invalidated it.
func errInvalidHandle(h Handle) error {
	return fmt.Errorf("handle %q is stale (generation %d)", h.id, h.generation)
}
