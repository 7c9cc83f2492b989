// Package export turns solved unknown vectors into per-tile affine transforms
// and a shared lens-correction transform.
package export

import (
	"meshlens/internal/match"
	"meshlens/internal/mesh"
	"meshlens/internal/solver"
	"meshlens/pkg/geometry"
	"meshlens/pkg/lenserr"
)

// Options controls the lens transform outputs.
type Options struct {
	// PolynomialDegree enables the polynomial approximation when positive.
	PolynomialDegree int
	// PolynomialGrid is the per-side sample count of the fitting lattice.
	PolynomialGrid int
}

// DefaultOptions disables the polynomial and samples a 20x20 grid when enabled.
func DefaultOptions() Options {
	return Options{PolynomialDegree: 0, PolynomialGrid: 20}
}

// TileTransform is the solved placement of one tile.
type TileTransform struct {
	ID        string                   `json:"id"`
	Transform geometry.AffineTransform `json:"transform"`
}

// Transforms is everything exported from one solve.
type Transforms struct {
	Tiles      []TileTransform  `json:"tiles"`
	Lens       *ThinPlateSpline `json:"lens"`
	Polynomial *Polynomial      `json:"polynomial,omitempty"`
}

// TileAffines reshapes the tile block of both solution vectors.
func TileAffines(tiles []match.Tile, layout solver.Layout, x, y []float64) []TileTransform {
	out := make([]TileTransform, len(tiles))
	for t, tile := range tiles {
		out[t] = TileTransform{ID: tile.ID, Transform: solver.TileAffine(layout, x, y, t)}
	}
	return out
}

// Export builds the tile transforms, the spline through every mesh vertex and,
// when requested, its polynomial approximation over the tile.
func Export(tiles []match.Tile, m *mesh.Mesh, layout solver.Layout, x, y []float64, opts Options) (*Transforms, error) {
	if layout.Vertices != m.VertexCount() {
		return nil, lenserr.New(lenserr.CodeInternal, "layout has %d vertices, mesh has %d", layout.Vertices, m.VertexCount())
	}
	tps, err := FitThinPlateSpline(m.Vertices, solver.LensDisplacements(layout, x, y))
	if err != nil {
		return nil, err
	}
	out := &Transforms{
		Tiles: TileAffines(tiles, layout, x, y),
		Lens:  tps,
	}
	if opts.PolynomialDegree > 0 {
		grid := opts.PolynomialGrid
		if grid <= 0 {
			grid = DefaultOptions().PolynomialGrid
		}
		out.Polynomial, err = FitPolynomial(tps.Displacement, m.Bounds(), opts.PolynomialDegree, grid)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
