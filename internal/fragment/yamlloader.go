package fragment

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/diodeinc/pcb-layout-lens/model"
)

// YAMLLoader is the reference Loader implementation: it resolves a
// group's layout_path against packageRoots (the first path component
// names a package root, the rest is a path within it, mirroring how
// fpid library references resolve) and reads a YAML sidecar manifest
// describing the fragment's routing, per-member placement hints, and
// pad/net map. Binding to the real .kicad_pcb fragment format itself
// is outside the lens's core scope (spec.md §1); this loader covers
// the metadata a production loader would parse out of one.
type YAMLLoader struct{}

type yamlFragment struct {
	Tracks     []yamlTrack              `yaml:"tracks"`
	Vias       []yamlVia                `yaml:"vias"`
	Zones      []yamlZone               `yaml:"zones"`
	Graphics   []yamlGraphic            `yaml:"graphics"`
	Footprints map[string]yamlFootprint `yaml:"footprints"`
	PadNets    map[string]string        `yaml:"pad_nets"`
}

type yamlPosition struct {
	X int64 `yaml:"x"`
	Y int64 `yaml:"y"`
}

func (p yamlPosition) toModel() model.Position {
	return model.Position{X: p.X, Y: p.Y}
}

type yamlTrack struct {
	Uuid    string       `yaml:"uuid"`
	Start   yamlPosition `yaml:"start"`
	End     yamlPosition `yaml:"end"`
	Width   int64        `yaml:"width"`
	Layer   string       `yaml:"layer"`
	NetName string       `yaml:"net"`
}

type yamlVia struct {
	Uuid     string       `yaml:"uuid"`
	Position yamlPosition `yaml:"position"`
	Diameter int64        `yaml:"diameter"`
	Drill    int64        `yaml:"drill"`
	ViaType  string       `yaml:"via_type"`
	NetName  string       `yaml:"net"`
}

type yamlZone struct {
	Uuid     string         `yaml:"uuid"`
	Name     string         `yaml:"name"`
	Outline  []yamlPosition `yaml:"outline"`
	Layer    string         `yaml:"layer"`
	Priority int            `yaml:"priority"`
	NetName  string         `yaml:"net"`
}

type yamlGraphic struct {
	Uuid        string `yaml:"uuid"`
	GraphicType string `yaml:"graphic_type"`
	Layer       string `yaml:"layer"`
}

type yamlFootprint struct {
	Position           yamlPosition `yaml:"position"`
	OrientationDegrees float64      `yaml:"orientation"`
	Layer              string       `yaml:"layer"`
	Locked             bool         `yaml:"locked"`
}

// Load implements Loader. layoutPath is "rootName/relative/path.yaml";
// rootName is looked up in packageRoots to find the directory the
// fragment file is read from.
func (YAMLLoader) Load(layoutPath string, packageRoots map[string]string) (Fragment, error) {
	root, rel, err := splitLayoutPath(layoutPath)
	if err != nil {
		return Fragment{}, err
	}
	base, ok := packageRoots[root]
	if !ok {
		return Fragment{}, fmt.Errorf("layout_path %q references unknown package root %q", layoutPath, root)
	}

	data, err := os.ReadFile(filepath.Join(base, rel))
	if err != nil {
		return Fragment{}, fmt.Errorf("reading fragment %q: %w", layoutPath, err)
	}

	var y yamlFragment
	if err := yaml.Unmarshal(data, &y); err != nil {
		return Fragment{}, fmt.Errorf("parsing fragment %q: %w", layoutPath, err)
	}

	frag := Fragment{
		GroupComplement: model.GroupComplement{
			Tracks:   make([]model.TrackComplement, len(y.Tracks)),
			Vias:     make([]model.ViaComplement, len(y.Vias)),
			Zones:    make([]model.ZoneComplement, len(y.Zones)),
			Graphics: make([]model.GraphicComplement, len(y.Graphics)),
		},
		FootprintComplements: make(map[string]model.FootprintComplement, len(y.Footprints)),
		PadNetMap:            make(map[PadKey]string, len(y.PadNets)),
	}

	for i, t := range y.Tracks {
		frag.GroupComplement.Tracks[i] = model.TrackComplement{
			Uuid: t.Uuid, Start: t.Start.toModel(), End: t.End.toModel(), Width: t.Width, Layer: t.Layer, NetName: t.NetName,
		}
	}
	for i, v := range y.Vias {
		frag.GroupComplement.Vias[i] = model.ViaComplement{
			Uuid: v.Uuid, Position: v.Position.toModel(), Diameter: v.Diameter, Drill: v.Drill, ViaType: v.ViaType, NetName: v.NetName,
		}
	}
	for i, z := range y.Zones {
		outline := make([]model.Position, len(z.Outline))
		for j, p := range z.Outline {
			outline[j] = p.toModel()
		}
		frag.GroupComplement.Zones[i] = model.ZoneComplement{
			Uuid: z.Uuid, Name: z.Name, Outline: outline, Layer: z.Layer, Priority: z.Priority, NetName: z.NetName,
		}
	}
	for i, g := range y.Graphics {
		frag.GroupComplement.Graphics[i] = model.GraphicComplement{Uuid: g.Uuid, GraphicType: g.GraphicType, Layer: g.Layer}
	}
	for relPath, fp := range y.Footprints {
		layer := model.LayerFront
		if fp.Layer != "" {
			layer = model.Layer(fp.Layer)
		}
		frag.FootprintComplements[relPath] = model.FootprintComplement{
			Position:           fp.Position.toModel(),
			OrientationDegrees: fp.OrientationDegrees,
			Layer:              layer,
			Locked:             fp.Locked,
		}
	}
	for key, net := range y.PadNets {
		relPath, padName, err := splitPadKey(key)
		if err != nil {
			return Fragment{}, fmt.Errorf("fragment %q: %w", layoutPath, err)
		}
		frag.PadNetMap[PadKey{RelativePath: relPath, PadName: padName}] = net
	}

	return frag, nil
}

// splitLayoutPath splits "root/rest/of/path" into its leading package
// root name and the remaining relative path.
func splitLayoutPath(layoutPath string) (root, rel string, err error) {
	root, rel, ok := cutFirstSlash(layoutPath)
	if !ok {
		return "", "", fmt.Errorf("layout_path %q has no package root prefix", layoutPath)
	}
	return root, rel, nil
}

// splitPadKey splits a "relative.path#padName" manifest key into its
// pad reference components.
func splitPadKey(key string) (relPath, padName string, err error) {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == '#' {
			return key[:i], key[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("pad_nets key %q is missing a '#padName' suffix", key)
}

func cutFirstSlash(s string) (before, after string, ok bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			return s[:i], s[i+1:], true
		}
	}
	return s, "", false
}
