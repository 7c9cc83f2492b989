// Package match defines the tile and point-match records consumed by the solver,
// their validation, and the spatial evening of matched points.
package match

import (
	"math"

	"meshlens/pkg/geometry"
	"meshlens/pkg/lenserr"
)

// Tile is one rectangular captured image. Coordinates inside a tile are local
// pixel coordinates in [0,Width]x[0,Height].
type Tile struct {
	ID       string  `json:"id"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	InitialX float64 `json:"initial_x"`
	InitialY float64 `json:"initial_y"`
}

// Bounds returns the tile rectangle in local coordinates.
func (t Tile) Bounds() geometry.Rect {
	return geometry.NewRect(0, 0, t.Width, t.Height)
}

// PointMatch holds correspondences between two tiles. PointsA are in tile A's
// local frame and PointsB in tile B's.
type PointMatch struct {
	TileA   string             `json:"tileA"`
	TileB   string             `json:"tileB"`
	PointsA []geometry.Point2D `json:"pointsA"`
	PointsB []geometry.Point2D `json:"pointsB"`
	Weights []float64          `json:"weights,omitempty"`
}

// Len returns the number of point pairs.
func (m PointMatch) Len() int {
	return len(m.PointsA)
}

// Weight returns the weight of pair i, 1 when no weights were supplied.
func (m PointMatch) Weight(i int) float64 {
	if len(m.Weights) == 0 {
		return 1
	}
	return m.Weights[i]
}

// Group is one lens-correction group: the tiles of one acquisition pass and
// the matches between them.
type Group struct {
	Tiles   []Tile       `json:"tiles"`
	Matches []PointMatch `json:"matches"`
}

// TileIndex maps tile ids to their position in the ordered tile list.
type TileIndex map[string]int

// Validate checks the group and returns the tile index and the shared tile size.
// All failures are INVALID_INPUT.
func (g Group) Validate() (TileIndex, float64, float64, error) {
	if len(g.Tiles) == 0 {
		return nil, 0, 0, lenserr.New(lenserr.CodeInvalidInput, "empty tile list")
	}

	width, height := g.Tiles[0].Width, g.Tiles[0].Height
	index := make(TileIndex, len(g.Tiles))
	for i, t := range g.Tiles {
		if t.ID == "" {
			return nil, 0, 0, lenserr.New(lenserr.CodeInvalidInput, "tile %d has an empty id", i)
		}
		if _, dup := index[t.ID]; dup {
			return nil, 0, 0, lenserr.New(lenserr.CodeInvalidInput, "duplicate tile id %q", t.ID)
		}
		if !(t.Width > 0) || !(t.Height > 0) || math.IsInf(t.Width, 0) || math.IsInf(t.Height, 0) {
			return nil, 0, 0, lenserr.New(lenserr.CodeInvalidInput,
				"tile %q has non-positive dimensions %gx%g", t.ID, t.Width, t.Height)
		}
		if t.Width != width || t.Height != height {
			return nil, 0, 0, lenserr.New(lenserr.CodeInvalidInput,
				"tile %q is %gx%g, group tiles are %gx%g", t.ID, t.Width, t.Height, width, height)
		}
		if math.IsNaN(t.InitialX) || math.IsNaN(t.InitialY) {
			return nil, 0, 0, lenserr.New(lenserr.CodeInvalidInput, "tile %q has a NaN initial position", t.ID)
		}
		index[t.ID] = i
	}

	pairs := 0
	for i, m := range g.Matches {
		if _, ok := index[m.TileA]; !ok {
			return nil, 0, 0, lenserr.New(lenserr.CodeInvalidInput, "match %d references unknown tile %q", i, m.TileA)
		}
		if _, ok := index[m.TileB]; !ok {
			return nil, 0, 0, lenserr.New(lenserr.CodeInvalidInput, "match %d references unknown tile %q", i, m.TileB)
		}
		if m.TileA == m.TileB {
			return nil, 0, 0, lenserr.New(lenserr.CodeInvalidInput, "match %d pairs tile %q with itself", i, m.TileA)
		}
		if len(m.PointsA) != len(m.PointsB) {
			return nil, 0, 0, lenserr.New(lenserr.CodeInvalidInput,
				"match %d (%s-%s) has %d points in A and %d in B", i, m.TileA, m.TileB, len(m.PointsA), len(m.PointsB))
		}
		if len(m.Weights) != 0 && len(m.Weights) != len(m.PointsA) {
			return nil, 0, 0, lenserr.New(lenserr.CodeInvalidInput,
				"match %d (%s-%s) has %d weights for %d points", i, m.TileA, m.TileB, len(m.Weights), len(m.PointsA))
		}
		for j := range m.PointsA {
			if !m.PointsA[j].IsFinite() || !m.PointsB[j].IsFinite() {
				return nil, 0, 0, lenserr.New(lenserr.CodeInvalidInput, "match %d pair %d has a non-finite coordinate", i, j)
			}
			if w := m.Weight(j); !(w >= 0) || math.IsInf(w, 0) {
				return nil, 0, 0, lenserr.New(lenserr.CodeInvalidInput, "match %d pair %d has invalid weight %g", i, j, w)
			}
		}
		pairs += m.Len()
	}
	if pairs == 0 {
		return nil, 0, 0, lenserr.New(lenserr.CodeInvalidInput,
			"group of %d tiles has no point matches", len(g.Tiles))
	}

	return index, width, height, nil
}

// Points concatenates every matched point of the group, A side then B side per match.
func (g Group) Points() []geometry.Point2D {
	n := 0
	for _, m := range g.Matches {
		n += 2 * m.Len()
	}
	points := make([]geometry.Point2D, 0, n)
	for _, m := range g.Matches {
		points = append(points, m.PointsA...)
		points = append(points, m.PointsB...)
	}
	return points
}

// PairCount returns the total number of point pairs.
func (g Group) PairCount() int {
	n := 0
	for _, m := range g.Matches {
		n += m.Len()
	}
	return n
}
