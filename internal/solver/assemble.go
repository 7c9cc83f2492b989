// Package solver assembles and solves the regularized least-squares system
// that places tiles and recovers the per-vertex lens displacement.
//
// Both spatial channels share the same observation coefficients, so the
// constraint matrix is stored once with one row per point pair and applied to
// the x and y unknown vectors separately.
package solver

import (
	"meshlens/internal/match"
	"meshlens/internal/mesh"
	"meshlens/pkg/geometry"
	"meshlens/pkg/lenserr"
)

// SlotsPerRow is the nonzero bound of one constraint row: three affine and
// three lens coefficients for each side of the pair.
const SlotsPerRow = 12

// Layout describes the unknown vector: three affine coefficients per tile,
// then one lens displacement per mesh vertex.
type Layout struct {
	Tiles    int
	Vertices int
}

// Size returns the unknown vector length.
func (l Layout) Size() int { return 3*l.Tiles + l.Vertices }

// TileColumn returns the first column of tile t.
func (l Layout) TileColumn(t int) int { return 3 * t }

// VertexColumn returns the column of mesh vertex v.
func (l Layout) VertexColumn(v int) int { return 3*l.Tiles + v }

// AssembleOptions configures Assemble.
type AssembleOptions struct {
	// UseMatchWeights puts match weights on the diagonal of W instead of ones.
	UseMatchWeights bool
}

// System is the assembled observation system for one group.
type System struct {
	Layout Layout
	A      *CSR
	W      []float64 // diagonal observation weights, one per row of A
	X0X    []float64 // initial guess, x channel
	X0Y    []float64 // initial guess, y channel

	Pairs          int // point pairs kept, one row of A each
	ConstraintRows int // rows across both channels
	DroppedPairs   int // pairs with a point inside the mesh hole
}

type observation struct {
	tileA, tileB int
	p, q         geometry.Point2D
	bp, bq       mesh.Barycentric
	weight       float64
}

// Assemble builds A, W and the initial guesses from the matches. Points must
// lie in their tile rectangle; pairs touching the mesh hole are dropped.
func Assemble(tiles []match.Tile, index match.TileIndex, matches []match.PointMatch,
	m *mesh.Mesh, loc *mesh.Locator, opts AssembleOptions) (*System, error) {
	layout := Layout{Tiles: len(tiles), Vertices: m.VertexCount()}
	bounds := m.Bounds()
	tol := 1e-6 * (m.Width + m.Height)

	var obs []observation
	dropped := 0
	for mi, pm := range matches {
		ta, ok := index[pm.TileA]
		if !ok {
			return nil, lenserr.New(lenserr.CodeInvalidInput, "match %d references unknown tile %q", mi, pm.TileA)
		}
		tb, ok := index[pm.TileB]
		if !ok {
			return nil, lenserr.New(lenserr.CodeInvalidInput, "match %d references unknown tile %q", mi, pm.TileB)
		}
		for j := range pm.PointsA {
			p, q := pm.PointsA[j], pm.PointsB[j]
			if !bounds.ContainsTol(p, tol) || !bounds.ContainsTol(q, tol) {
				return nil, lenserr.New(lenserr.CodeInvalidInput,
					"match %d pair %d (%v, %v) lies outside the %gx%g tile", mi, j, p, q, m.Width, m.Height)
			}
			if m.InHole(p) || m.InHole(q) {
				dropped++
				continue
			}
			bp, err := loc.Locate(clamp(p, bounds))
			if err != nil {
				return nil, lenserr.Wrap(lenserr.CodeInvalidInput, err, "match %d pair %d", mi, j)
			}
			bq, err := loc.Locate(clamp(q, bounds))
			if err != nil {
				return nil, lenserr.Wrap(lenserr.CodeInvalidInput, err, "match %d pair %d", mi, j)
			}
			w := 1.0
			if opts.UseMatchWeights {
				w = pm.Weight(j)
			}
			obs = append(obs, observation{tileA: ta, tileB: tb, p: p, q: q, bp: bp, bq: bq, weight: w})
		}
	}

	sys := &System{
		Layout:         layout,
		A:              NewCSR(len(obs), layout.Size(), SlotsPerRow),
		W:              make([]float64, len(obs)),
		Pairs:          len(obs),
		ConstraintRows: 2 * len(obs),
		DroppedPairs:   dropped,
	}

	cols := make([]int, SlotsPerRow)
	vals := make([]float64, SlotsPerRow)
	for r, o := range obs {
		ca, cb := layout.TileColumn(o.tileA), layout.TileColumn(o.tileB)
		copy(cols, []int{ca, ca + 1, ca + 2, cb, cb + 1, cb + 2})
		copy(vals, []float64{o.p.X, o.p.Y, 1, -o.q.X, -o.q.Y, -1})
		tp, tq := o.bp.Vertices(m), o.bq.Vertices(m)
		for k := 0; k < 3; k++ {
			cols[6+k], vals[6+k] = layout.VertexColumn(tp[k]), o.bp.Weights[k]
			cols[9+k], vals[9+k] = layout.VertexColumn(tq[k]), -o.bq.Weights[k]
		}
		sys.A.SetRow(r, cols, vals)
		sys.W[r] = o.weight
	}

	sys.X0X, sys.X0Y = InitialGuess(tiles, layout)
	return sys, nil
}

// InitialGuess places every tile by its initial position with identity linear
// part and zero lens displacement.
func InitialGuess(tiles []match.Tile, layout Layout) ([]float64, []float64) {
	x0x := make([]float64, layout.Size())
	x0y := make([]float64, layout.Size())
	for t, tile := range tiles {
		c := layout.TileColumn(t)
		x0x[c], x0x[c+1], x0x[c+2] = 1, 0, tile.InitialX
		x0y[c], x0y[c+1], x0y[c+2] = 0, 1, tile.InitialY
	}
	return x0x, x0y
}

func clamp(p geometry.Point2D, r geometry.Rect) geometry.Point2D {
	if p.X < r.X {
		p.X = r.X
	} else if p.X > r.X+r.Width {
		p.X = r.X + r.Width
	}
	if p.Y < r.Y {
		p.Y = r.Y
	} else if p.Y > r.Y+r.Height {
		p.Y = r.Y + r.Height
	}
	return p
}
