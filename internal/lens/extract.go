package lens

import (
	"fmt"
	"sort"
	"strings"

	"github.com/diodeinc/pcb-layout-lens/internal/backend"
	"github.com/diodeinc/pcb-layout-lens/internal/diagnostics"
	"github.com/diodeinc/pcb-layout-lens/model"
)

// Extract walks a backend's current footprints and groups and splits
// them into a View and Complement pair (spec.md §4.2). Unmanaged
// footprints (whose KIID path does not match the UUID-5 derived from
// their own Path field) are excluded from both and reported as a
// warning diagnostic, never a fatal error.
func Extract(b backend.Backend) (model.BoardView, model.BoardComplement, []diagnostics.Diagnostic, error) {
	view := model.NewBoardView()
	complement := model.NewBoardComplement()
	var diags []diagnostics.Diagnostic

	fpRecords, err := b.EnumerateFootprints()
	if err != nil {
		return model.BoardView{}, model.BoardComplement{}, nil, fmt.Errorf("enumerating footprints: %w", err)
	}

	for _, rec := range fpRecords {
		if rec.Path == "" {
			diags = append(diags, diagnostics.Diagnostic{
				Kind:      diagnostics.KindUnmanagedFootprint,
				Severity:  diagnostics.SeverityWarning,
				Body:      fmt.Sprintf("footprint %s has no Path field; treated as unmanaged", rec.Reference),
				Reference: rec.Reference,
			})
			continue
		}
		expected := model.ExpectedKiidPath(rec.Path)
		if rec.KiidPath != expected {
			diags = append(diags, diagnostics.Diagnostic{
				Kind:      diagnostics.KindUnmanagedFootprint,
				Severity:  diagnostics.SeverityWarning,
				Body:      fmt.Sprintf("footprint at %s has a KIID path that does not match its Path field; treated as a manual duplicate", rec.Path),
				Path:      rec.Path,
				Reference: rec.Reference,
			})
			continue
		}

		path := model.PathFromString(rec.Path)
		id := model.NewEntityId(path, rec.Fpid)

		view.Footprints[id] = model.FootprintView{
			EntityId:       id,
			Reference:      rec.Reference,
			Value:          rec.Value,
			Fpid:           rec.Fpid,
			Dnp:            rec.Dnp,
			ExcludeFromBom: rec.ExcludeFromBom,
			ExcludeFromPos: rec.ExcludeFromPos,
			Fields:         copyFields(rec.Fields),
		}
		complement.Footprints[id] = model.FootprintComplement{
			Position:           rec.Position,
			OrientationDegrees: rec.OrientationDegrees,
			Layer:              rec.Layer,
			Locked:             rec.Locked,
			ReferencePosition:  &rec.ReferencePosition,
			ReferenceVisible:   rec.ReferenceVisible,
			ValuePosition:      &rec.ValuePosition,
			ValueVisible:       rec.ValueVisible,
		}

		for padName, netName := range rec.PadNets {
			if netName == "" {
				view.NotConnectedPads[model.NotConnectedPad{EntityId: id, PadName: padName}] = struct{}{}
				continue
			}
			nv := view.Nets[netName]
			nv.Name = netName
			if nv.Kind == "" {
				nv.Kind = model.NetKindNet
			}
			nv.Connections = append(nv.Connections, model.Connection{EntityId: id, PadName: padName})
			nv.LogicalPorts = append(nv.LogicalPorts, model.PadRef{ComponentRef: rec.Reference, PinName: padName})
			view.Nets[netName] = nv
		}
	}

	for name, nv := range view.Nets {
		sort.Slice(nv.Connections, func(i, j int) bool {
			return nv.Connections[i].EntityId.Path.String() < nv.Connections[j].EntityId.Path.String()
		})
		sort.Slice(nv.LogicalPorts, func(i, j int) bool {
			if nv.LogicalPorts[i].ComponentRef != nv.LogicalPorts[j].ComponentRef {
				return nv.LogicalPorts[i].ComponentRef < nv.LogicalPorts[j].ComponentRef
			}
			return nv.LogicalPorts[i].PinName < nv.LogicalPorts[j].PinName
		})
		view.Nets[name] = nv
	}

	groupRecords, err := b.EnumerateGroups()
	if err != nil {
		return model.BoardView{}, model.BoardComplement{}, nil, fmt.Errorf("enumerating groups: %w", err)
	}

	for _, rec := range groupRecords {
		if strings.HasPrefix(rec.Name, "group-board") {
			continue // backend-internal bookkeeping group
		}
		path := model.PathFromString(rec.Name)
		gid := model.NewEntityId(path, "")

		var memberIDs []model.EntityId
		for fid := range view.Footprints {
			if path.IsAncestorOf(fid.Path) {
				memberIDs = append(memberIDs, fid)
			}
		}
		sort.Slice(memberIDs, func(i, j int) bool { return memberIDs[i].Path.String() < memberIDs[j].Path.String() })

		view.Groups[gid] = model.GroupView{EntityId: gid, MemberIds: memberIDs}

		gc := model.GroupComplement{}
		for _, item := range rec.Items {
			switch item.Kind {
			case backend.RoutingVia:
				gc.Vias = append(gc.Vias, model.ViaComplement{
					Uuid: item.Uuid, Position: item.Position, Diameter: item.Diameter,
					Drill: item.Drill, NetName: item.NetName,
				})
			case backend.RoutingTrack:
				gc.Tracks = append(gc.Tracks, model.TrackComplement{
					Uuid: item.Uuid, Start: item.Start, End: item.End,
					Width: item.Width, Layer: item.Layer, NetName: item.NetName,
				})
			case backend.RoutingZone:
				gc.Zones = append(gc.Zones, model.ZoneComplement{
					Uuid: item.Uuid, Name: item.Name, Outline: item.Outline,
					Layer: item.Layer, Priority: item.Priority, NetName: item.NetName,
				})
			case backend.RoutingGraphic:
				gc.Graphics = append(gc.Graphics, model.GraphicComplement{
					Uuid: item.Uuid, GraphicType: item.GraphicType, Layer: item.Layer,
				})
			}
		}
		complement.Groups[gid] = gc
	}

	return view, complement, diags, nil
}

func copyFields(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
