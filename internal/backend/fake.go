package backend

import (
	"fmt"
	"sort"

	"github.com/diodeinc/pcb-layout-lens/model"
)

// fakeFootprint is the mutable state kept for one footprint entity.
type fakeFootprint struct {
	id         int
	generation int
	record     FootprintRecord
}

// fakeGroup is the mutable state kept for one group entity.
type fakeGroup struct {
	id         int
	generation int
	record     GroupRecord
	members    map[int]bool // footprint ids
}

// FakeBackend is an in-memory Backend whose handles are generation
// stamped: any structural mutation (Delete/Add of a footprint or group)
// bumps a global generation counter, and every handle issued before that
// bump becomes invalid. This makes the FakeBackend a faithful test
// double for the real invalidation contract (spec.md §5) rather than a
// backend that merely happens to work with stale handles.
type FakeBackend struct {
	generation int
	nextID     int

	footprints map[int]*fakeFootprint
	groups     map[int]*fakeGroup
	nets       map[string]bool

	saved bool
}

// NewFakeBackend returns an empty FakeBackend.
func NewFakeBackend() *FakeBackend {
	return &FakeBackend{
		footprints: map[int]*fakeFootprint{},
		groups:     map[int]*fakeGroup{},
		nets:       map[string]bool{},
	}
}

func (b *FakeBackend) handle(id int) Handle {
	return Handle{id: fmt.Sprintf("fp:%d", id), generation: b.generation}
}

func (b *FakeBackend) groupHandle(id int) Handle {
	return Handle{id: fmt.Sprintf("gr:%d", id), generation: b.generation}
}

func (b *FakeBackend) bump() {
	b.generation++
}

func (b *FakeBackend) checkGeneration(h Handle) error {
	if h.generation != b.generation {
		return errInvalidHandle(h)
	}
	return nil
}

func (b *FakeBackend) footprintID(h Handle) (int, error) {
	if h.generation != b.generation {
		return 0, errInvalidHandle(h)
	}
	var id int
	if _, err := fmt.Sscanf(h.id, "fp:%d", &id); err != nil {
		return 0, fmt.Errorf("not a footprint handle: %q", h.id)
	}
	return id, nil
}

func (b *FakeBackend) groupID(h Handle) (int, error) {
	if h.generation != b.generation {
		return 0, errInvalidHandle(h)
	}
	var id int
	if _, err := fmt.Sscanf(h.id, "gr:%d", &id); err != nil {
		return 0, fmt.Errorf("not a group handle: %q", h.id)
	}
	return id, nil
}

// AddFakeFootprint seeds the backend with a footprint for test setup,
// bypassing the mutation/invalidation protocol real callers must use.
func (b *FakeBackend) AddFakeFootprint(rec FootprintRecord) Handle {
	b.nextID++
	id := b.nextID
	rec.Handle = b.handle(id)
	b.footprints[id] = &fakeFootprint{id: id, generation: b.generation, record: rec}
	return rec.Handle
}

// AddFakeGroup seeds the backend with a group for test setup.
func (b *FakeBackend) AddFakeGroup(rec GroupRecord, memberFootprintIDs ...int) Handle {
	b.nextID++
	id := b.nextID
	rec.Handle = b.groupHandle(id)
	members := map[int]bool{}
	for _, m := range memberFootprintIDs {
		members[m] = true
	}
	b.groups[id] = &fakeGroup{id: id, generation: b.generation, record: rec, members: members}
	return rec.Handle
}

func (b *FakeBackend) EnumerateFootprints() ([]FootprintRecord, error) {
	ids := make([]int, 0, len(b.footprints))
	for id := range b.footprints {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]FootprintRecord, 0, len(ids))
	for _, id := range ids {
		fp := b.footprints[id]
		rec := fp.record
		rec.Handle = b.handle(id)
		out = append(out, rec)
	}
	return out, nil
}

func (b *FakeBackend) EnumerateGroups() ([]GroupRecord, error) {
	ids := make([]int, 0, len(b.groups))
	for id := range b.groups {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]GroupRecord, 0, len(ids))
	for _, id := range ids {
		gr := b.groups[id]
		rec := gr.record
		rec.Handle = b.groupHandle(id)
		rec.Members = nil
		memberIDs := make([]int, 0, len(gr.members))
		for m := range gr.members {
			memberIDs = append(memberIDs, m)
		}
		sort.Ints(memberIDs)
		for _, m := range memberIDs {
			rec.Members = append(rec.Members, b.handle(m))
		}
		out = append(out, rec)
	}
	return out, nil
}

func (b *FakeBackend) FindNet(name string) (bool, error) {
	return b.nets[name], nil
}

func (b *FakeBackend) CreateNet(name string) error {
	b.nets[name] = true
	return nil
}

func (b *FakeBackend) DeleteNet(name string) error {
	delete(b.nets, name)
	return nil
}

func (b *FakeBackend) DeleteFootprint(h Handle) error {
	if err := b.checkGeneration(h); err != nil {
		return err
	}
	id, err := b.footprintID(h)
	if err != nil {
		return err
	}
	if _, ok := b.footprints[id]; !ok {
		return fmt.Errorf("footprint %q does not exist", h.id)
	}
	delete(b.footprints, id)
	for _, gr := range b.groups {
		delete(gr.members, id)
	}
	b.bump()
	return nil
}

func (b *FakeBackend) DeleteGroup(h Handle) error {
	if err := b.checkGeneration(h); err != nil {
		return err
	}
	id, err := b.groupID(h)
	if err != nil {
		return err
	}
	if _, ok := b.groups[id]; !ok {
		return fmt.Errorf("group %q does not exist", h.id)
	}
	delete(b.groups, id)
	b.bump()
	return nil
}

func (b *FakeBackend) AddFootprint(fpid string, packageRoots map[string]string) (Handle, error) {
	b.nextID++
	id := b.nextID
	b.footprints[id] = &fakeFootprint{
		id:         id,
		generation: b.generation,
		record: FootprintRecord{
			Fpid:    fpid,
			Fields:  map[string]string{},
			PadNets: map[string]string{},
			Width:   defaultFootprintSizeNM,
			Height:  defaultFootprintSizeNM,
		},
	}
	b.bump()
	return b.handle(id), nil
}

func (b *FakeBackend) SetFootprintFields(h Handle, ref, value string, fields map[string]string, dnp, excludeFromBom, excludeFromPos bool) error {
	id, err := b.footprintID(h)
	if err != nil {
		return err
	}
	fp, ok := b.footprints[id]
	if !ok {
		return fmt.Errorf("footprint %q does not exist", h.id)
	}
	fp.record.Reference = ref
	fp.record.Value = value
	fp.record.Fields = fields
	fp.record.Dnp = dnp
	fp.record.ExcludeFromBom = excludeFromBom
	fp.record.ExcludeFromPos = excludeFromPos
	return nil
}

func (b *FakeBackend) SetFootprintPath(h Handle, path, kiidPath string) error {
	id, err := b.footprintID(h)
	if err != nil {
		return err
	}
	fp, ok := b.footprints[id]
	if !ok {
		return fmt.Errorf("footprint %q does not exist", h.id)
	}
	fp.record.Path = path
	fp.record.KiidPath = kiidPath
	return nil
}

func (b *FakeBackend) AssignPad(h Handle, padName, netName string) error {
	id, err := b.footprintID(h)
	if err != nil {
		return err
	}
	fp, ok := b.footprints[id]
	if !ok {
		return fmt.Errorf("footprint %q does not exist", h.id)
	}
	if netName != "" {
		b.nets[netName] = true
	}
	if fp.record.PadNets == nil {
		fp.record.PadNets = map[string]string{}
	}
	fp.record.PadNets[padName] = netName
	return nil
}

func (b *FakeBackend) SetFootprintPlacement(h Handle, pos model.Position, orientationDegrees float64, layer model.Layer, locked bool) error {
	id, err := b.footprintID(h)
	if err != nil {
		return err
	}
	fp, ok := b.footprints[id]
	if !ok {
		return fmt.Errorf("footprint %q does not exist", h.id)
	}
	fp.record.Position = pos
	fp.record.OrientationDegrees = orientationDegrees
	fp.record.Layer = layer
	fp.record.Locked = locked
	return nil
}

func (b *FakeBackend) AddGroup(path string) (Handle, error) {
	b.nextID++
	id := b.nextID
	b.groups[id] = &fakeGroup{
		id:         id,
		generation: b.generation,
		record:     GroupRecord{Name: path},
		members:    map[int]bool{},
	}
	b.bump()
	return b.groupHandle(id), nil
}

func (b *FakeBackend) AddItemToGroup(group, item Handle) error {
	gid, err := b.groupID(group)
	if err != nil {
		return err
	}
	fid, err := b.footprintID(item)
	if err != nil {
		return err
	}
	gr, ok := b.groups[gid]
	if !ok {
		return fmt.Errorf("group %q does not exist", group.id)
	}
	if _, ok := b.footprints[fid]; !ok {
		return fmt.Errorf("footprint %q does not exist", item.id)
	}
	gr.members[fid] = true
	return nil
}

func (b *FakeBackend) RemoveItemFromGroup(group, item Handle) error {
	gid, err := b.groupID(group)
	if err != nil {
		return err
	}
	fid, err := b.footprintID(item)
	if err != nil {
		return err
	}
	gr, ok := b.groups[gid]
	if !ok {
		return fmt.Errorf("group %q does not exist", group.id)
	}
	delete(gr.members, fid)
	return nil
}

func (b *FakeBackend) DuplicateRouting(group Handle, item RoutingRecord) error {
	gid, err := b.groupID(group)
	if err != nil {
		return err
	}
	gr, ok := b.groups[gid]
	if !ok {
		return fmt.Errorf("group %q does not exist", group.id)
	}
	gr.record.Items = append(gr.record.Items, item)
	return nil
}

func (b *FakeBackend) RebuildConnectivity() error { return nil }

func (b *FakeBackend) Save() error {
	b.saved = true
	return nil
}

// Saved reports whether Save was called, for test assertions.
func (b *FakeBackend) Saved() bool { return b.saved }

// defaultFootprintSizeNM is the courtyard size assigned to a freshly
// instantiated footprint whose real geometry is unknown (this is a
// fake backend; see backend.go's FootprintRecord doc).
const defaultFootprintSizeNM = 2_000_000

var _ Backend = (*FakeBackend)(nil)
