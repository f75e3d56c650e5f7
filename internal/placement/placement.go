// Package placement implements the deterministic corner-packing
// HierPlace algorithm (spec.md §4.6): pack_at_origin followed by an
// anchor- or sheet-center-relative translation.
package placement

import (
	"sort"

	"github.com/diodeinc/pcb-layout-lens/model"
)

// Nanometers per millimeter, KiCad's internal unit scale.
const nmPerMM = 1_000_000

const (
	// DefaultMarginNM is the gap left between newly-placed content and
	// existing content when an anchor is supplied.
	DefaultMarginNM = 10 * nmPerMM
	// fallbackGapNM separates a rect placed by the no-candidate-fits
	// fallback from the already-placed cluster.
	fallbackGapNM = 5 * nmPerMM

	// Default A4 sheet dimensions, landscape, in nanometers.
	SheetWidthNM  = 297 * nmPerMM
	SheetHeightNM = 210 * nmPerMM
)

// Rect is an axis-aligned bounding box in nanometers.
type Rect struct {
	X, Y, W, H int64
}

// Right returns the rect's right edge.
func (r Rect) Right() int64 { return r.X + r.W }

// Bottom returns the rect's bottom edge (Y increases downward, matching
// KiCad's coordinate convention).
func (r Rect) Bottom() int64 { return r.Y + r.H }

// CenterX and CenterY return the rect's center, truncated toward zero.
func (r Rect) CenterX() int64 { return r.X + r.W/2 }
func (r Rect) CenterY() int64 { return r.Y + r.H/2 }

// intersects reports whether two rects overlap with positive area;
// edge-touching is not intersecting.
func (r Rect) intersects(o Rect) bool {
	if r.Right() <= o.X || o.Right() <= r.X {
		return false
	}
	if r.Bottom() <= o.Y || o.Bottom() <= r.Y {
		return false
	}
	return true
}

// PlacementRect is one entity awaiting placement.
type PlacementRect struct {
	EntityID model.EntityId
	Width    int64
	Height   int64
}

// point is a packing candidate anchor point.
type point struct{ x, y int64 }

// sizeMetric scores a bounding box by spec.md §4.6's rule: w + h + |w -
// h|, which prefers square clusters over long thin ones.
func sizeMetric(r Rect) int64 {
	w, h := r.W, r.H
	diff := w - h
	if diff < 0 {
		diff = -diff
	}
	return w + h + diff
}

func unionRect(a, b Rect) Rect {
	x0 := minI64(a.X, b.X)
	y0 := minI64(a.Y, b.Y)
	x1 := maxI64(a.Right(), b.Right())
	y1 := maxI64(a.Bottom(), b.Bottom())
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

func minI64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func maxI64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

// PackAtOrigin places every positive-area rect into a non-overlapping
// cluster normalized so its bounding box's top-left is the origin
// (spec.md §4.6 pass 1). The returned map is keyed by EntityID; zero-
// size rects are silently dropped, matching the spec's filter step.
func PackAtOrigin(rects []PlacementRect) map[model.EntityId]Rect {
	input := make([]PlacementRect, 0, len(rects))
	for _, r := range rects {
		if r.Width > 0 && r.Height > 0 {
			input = append(input, r)
		}
	}
	if len(input) == 0 {
		return map[model.EntityId]Rect{}
	}

	sort.SliceStable(input, func(i, j int) bool {
		ai := input[i].Width * input[i].Height
		aj := input[j].Width * input[j].Height
		if ai != aj {
			return ai > aj
		}
		return input[i].EntityID.Path.String() < input[j].EntityID.Path.String()
	})

	placed := make(map[model.EntityId]Rect, len(input))
	order := make([]model.EntityId, 0, len(input))

	first := input[0]
	firstRect := Rect{X: 0, Y: 0, W: first.Width, H: first.Height}
	placed[first.EntityID] = firstRect
	order = append(order, first.EntityID)

	candidates := []point{
		{firstRect.X, firstRect.Y},
		{firstRect.Right(), firstRect.Bottom()},
	}

	bbox := firstRect

	for _, pr := range input[1:] {
		var (
			bestRect  Rect
			bestMerge Rect
			bestScore int64
			found     bool
		)
		for _, cand := range candidates {
			candRect := Rect{X: cand.x, Y: cand.y - pr.Height, W: pr.Width, H: pr.Height}
			collides := false
			for _, id := range order {
				if candRect.intersects(placed[id]) {
					collides = true
					break
				}
			}
			if collides {
				continue
			}
			merged := unionRect(bbox, candRect)
			score := sizeMetric(merged)
			if !found || score < bestScore {
				found = true
				bestScore = score
				bestRect = candRect
				bestMerge = merged
			}
		}
		if !found {
			bestRect = Rect{X: bbox.Right() + fallbackGapNM, Y: 0, W: pr.Width, H: pr.Height}
			bestMerge = unionRect(bbox, bestRect)
		}

		placed[pr.EntityID] = bestRect
		order = append(order, pr.EntityID)
		bbox = bestMerge
		candidates = append(candidates, point{bestRect.X, bestRect.Y}, point{bestRect.Right(), bestRect.Bottom()})
	}

	// Normalize so the cluster's bounding box top-left sits at the
	// origin.
	minX, minY := bbox.X, bbox.Y
	if minX != 0 || minY != 0 {
		for id, r := range placed {
			placed[id] = Rect{X: r.X - minX, Y: r.Y - minY, W: r.W, H: r.H}
		}
	}
	return placed
}

// boundingBox returns the union bounding box of a non-empty rect set.
func boundingBox(rs map[model.EntityId]Rect) (Rect, bool) {
	first := true
	var box Rect
	for _, r := range rs {
		if first {
			box = r
			first = false
			continue
		}
		box = unionRect(box, r)
	}
	return box, !first
}

// HierPlace translates a packed cluster relative to an anchor's right
// edge, or to the sheet center if no anchor is supplied (spec.md §4.6
// pass 2).
func HierPlace(rects []PlacementRect, anchor *Rect, sheetWidth, sheetHeight, margin int64) map[model.EntityId]Rect {
	packed := PackAtOrigin(rects)
	box, ok := boundingBox(packed)
	if !ok {
		return packed
	}

	var dx, dy int64
	if anchor != nil {
		dx = anchor.Right() + margin
		dy = anchor.CenterY() - box.H/2
	} else {
		dx = sheetWidth/2 - box.W/2
		dy = sheetHeight/2 - box.H/2
	}

	out := make(map[model.EntityId]Rect, len(packed))
	for id, r := range packed {
		out[id] = Rect{X: r.X + dx, Y: r.Y + dy, W: r.W, H: r.H}
	}
	return out
}
