package backend

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/diodeinc/pcb-layout-lens/model"
)

// memoryDoc is the on-disk representation of a MemoryBackend: a plain,
// JSON-friendly dump of footprints and groups keyed by an integer id
// stable across saves. It is intentionally not the canonical sorted
// snapshot format (internal/snapshot builds that from Enumerate*); this
// is the backend's own persistence format.
type memoryDoc struct {
	NextID     int                        `json:"next_id"`
	Footprints map[string]FootprintRecord `json:"footprints"`
	Groups     map[string]memoryGroupDoc  `json:"groups"`
	Nets       []string                   `json:"nets"`
}

type memoryGroupDoc struct {
	Name    string            `json:"name"`
	Items   []RoutingRecord   `json:"items"`
	Members []int             `json:"members"`
}

// MemoryBackend is the reference Backend implementation: it holds the
// entire board in memory and persists to a JSON file on Save. It is
// used by the CLI as a stand-in for a real PCB toolkit integration,
// which is out of scope for the core (spec.md §1).
type MemoryBackend struct {
	mu sync.Mutex

	path       string
	generation int
	nextID     int

	footprints map[int]*fakeFootprint
	groups     map[int]*fakeGroup
	nets       map[string]bool
}

// NewMemoryBackend returns an empty MemoryBackend that will persist to
// path on Save.
func NewMemoryBackend(path string) *MemoryBackend {
	return &MemoryBackend{
		path:       path,
		footprints: map[int]*fakeFootprint{},
		groups:     map[int]*fakeGroup{},
		nets:       map[string]bool{},
	}
}

// LoadMemoryBackend reads a previously-saved board from path. A missing
// file yields an empty backend, matching first-sync behavior.
func LoadMemoryBackend(path string) (*MemoryBackend, error) {
	b := NewMemoryBackend(path)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return b, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var doc memoryDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	b.nextID = doc.NextID
	for idStr, rec := range doc.Footprints {
		id, err := parseID(idStr)
		if err != nil {
			return nil, err
		}
		rec.Handle = b.handle(id)
		b.footprints[id] = &fakeFootprint{id: id, generation: b.generation, record: rec}
	}
	for idStr, gdoc := range doc.Groups {
		id, err := parseID(idStr)
		if err != nil {
			return nil, err
		}
		members := map[int]bool{}
		for _, m := range gdoc.Members {
			members[m] = true
		}
		b.groups[id] = &fakeGroup{
			id:         id,
			generation: b.generation,
			record:     GroupRecord{Handle: b.groupHandle(id), Name: gdoc.Name, Items: gdoc.Items},
			members:    members,
		}
	}
	for _, n := range doc.Nets {
		b.nets[n] = true
	}
	return b, nil
}

func parseID(s string) (int, error) {
	var id int
	if _, err := fmt.Sscanf(s, "%d", &id); err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return id, nil
}

func (b *MemoryBackend) handle(id int) Handle {
	return Handle{id: fmt.Sprintf("fp:%d", id), generation: b.generation}
}

func (b *MemoryBackend) groupHandle(id int) Handle {
	return Handle{id: fmt.Sprintf("gr:%d", id), generation: b.generation}
}

func (b *MemoryBackend) bump() { b.generation++ }

func (b *MemoryBackend) footprintID(h Handle) (int, error) {
	var id int
	if _, err := fmt.Sscanf(h.id, "fp:%d", &id); err != nil {
		return 0, fmt.Errorf("not a footprint handle: %q", h.id)
	}
	if h.generation != b.generation {
		return 0, errInvalidHandle(h)
	}
	return id, nil
}

func (b *MemoryBackend) groupID(h Handle) (int, error) {
	var id int
	if _, err := fmt.Sscanf(h.id, "gr:%d", &id); err != nil {
		return 0, fmt.Errorf("not a group handle: %q", h.id)
	}
	if h.generation != b.generation {
		return 0, errInvalidHandle(h)
	}
	return id, nil
}

func (b *MemoryBackend) EnumerateFootprints() ([]FootprintRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := make([]int, 0, len(b.footprints))
	for id := range b.footprints {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]FootprintRecord, 0, len(ids))
	for _, id := range ids {
		rec := b.footprints[id].record
		rec.Handle = b.handle(id)
		out = append(out, rec)
	}
	return out, nil
}

func (b *MemoryBackend) EnumerateGroups() ([]GroupRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
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

func (b *MemoryBackend) FindNet(name string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nets[name], nil
}

func (b *MemoryBackend) CreateNet(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nets[name] = true
	return nil
}

func (b *MemoryBackend) DeleteNet(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.nets, name)
	return nil
}

func (b *MemoryBackend) DeleteFootprint(h Handle) error {
	b.mu.Lock()
	defer b.mu.Unlock()
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

func (b *MemoryBackend) DeleteGroup(h Handle) error {
	b.mu.Lock()
	defer b.mu.Unlock()
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

func (b *MemoryBackend) AddFootprint(fpid string, packageRoots map[string]string) (Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
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

func (b *MemoryBackend) SetFootprintFields(h Handle, ref, value string, fields map[string]string, dnp, excludeFromBom, excludeFromPos bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	id, err := b.footprintID(h)
	if err != nil {
		return err
	}
	fp := b.footprints[id]
	fp.record.Reference = ref
	fp.record.Value = value
	fp.record.Fields = fields
	fp.record.Dnp = dnp
	fp.record.ExcludeFromBom = excludeFromBom
	fp.record.ExcludeFromPos = excludeFromPos
	return nil
}

func (b *MemoryBackend) SetFootprintPath(h Handle, path, kiidPath string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	id, err := b.footprintID(h)
	if err != nil {
		return err
	}
	fp := b.footprints[id]
	fp.record.Path = path
	fp.record.KiidPath = kiidPath
	return nil
}

func (b *MemoryBackend) AssignPad(h Handle, padName, netName string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	id, err := b.footprintID(h)
	if err != nil {
		return err
	}
	fp := b.footprints[id]
	if netName != "" {
		b.nets[netName] = true
	}
	if fp.record.PadNets == nil {
		fp.record.PadNets = map[string]string{}
	}
	fp.record.PadNets[padName] = netName
	return nil
}

func (b *MemoryBackend) SetFootprintPlacement(h Handle, pos model.Position, orientationDegrees float64, layer model.Layer, locked bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	id, err := b.footprintID(h)
	if err != nil {
		return err
	}
	fp := b.footprints[id]
	fp.record.Position = pos
	fp.record.OrientationDegrees = orientationDegrees
	fp.record.Layer = layer
	fp.record.Locked = locked
	return nil
}

func (b *MemoryBackend) AddGroup(path string) (Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
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

func (b *MemoryBackend) AddItemToGroup(group, item Handle) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	gid, err := b.groupID(group)
	if err != nil {
		return err
	}
	fid, err := b.footprintID(item)
	if err != nil {
		return err
	}
	b.groups[gid].members[fid] = true
	return nil
}

func (b *MemoryBackend) RemoveItemFromGroup(group, item Handle) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	gid, err := b.groupID(group)
	if err != nil {
		return err
	}
	fid, err := b.footprintID(item)
	if err != nil {
		return err
	}
	delete(b.groups[gid].members, fid)
	return nil
}

func (b *MemoryBackend) DuplicateRouting(group Handle, item RoutingRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	gid, err := b.groupID(group)
	if err != nil {
		return err
	}
	gr := b.groups[gid]
	gr.record.Items = append(gr.record.Items, item)
	return nil
}

func (b *MemoryBackend) RebuildConnectivity() error { return nil }

// Save persists the current board state to the backend's path as
// indented JSON.
func (b *MemoryBackend) Save() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	doc := memoryDoc{
		NextID:     b.nextID,
		Footprints: map[string]FootprintRecord{},
		Groups:     map[string]memoryGroupDoc{},
	}
	for id, fp := range b.footprints {
		doc.Footprints[fmt.Sprintf("%d", id)] = fp.record
	}
	for id, gr := range b.groups {
		members := make([]int, 0, len(gr.members))
		for m := range gr.members {
			members = append(members, m)
		}
		sort.Ints(members)
		doc.Groups[fmt.Sprintf("%d", id)] = memoryGroupDoc{
			Name:    gr.record.Name,
			Items:   gr.record.Items,
			Members: members,
		}
	}
	for n := range b.nets {
		doc.Nets = append(doc.Nets, n)
	}
	sort.Strings(doc.Nets)

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding memory backend: %w", err)
	}
	if err := os.WriteFile(b.path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", b.path, err)
	}
	return nil
}

var _ Backend = (*MemoryBackend)(nil)
