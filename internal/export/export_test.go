package export

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meshlens/internal/match"
	"meshlens/internal/mesh"
	"meshlens/internal/solver"
	"meshlens/pkg/geometry"
)

func radial(p geometry.Point2D) geometry.Point2D {
	c := geometry.Point2D{X: 50, Y: 40}
	d := p.Sub(c)
	k := 2e-5 * (d.X*d.X + d.Y*d.Y)
	return d.Scale(k * 0.1)
}

func TestThinPlateSplineExactAtControlPoints(t *testing.T) {
	m, _ := mesh.Triangulate(mesh.Domain{Bounds: geometry.NewRect(0, 0, 100, 80)}, 60, 0)
	disp := make([]geometry.Point2D, m.VertexCount())
	for i, v := range m.Vertices {
		disp[i] = radial(v)
	}

	tps, err := FitThinPlateSpline(m.Vertices, disp)
	require.NoError(t, err)
	require.Len(t, tps.Weights, m.VertexCount())

	for i, v := range m.Vertices {
		got := tps.Apply(v)
		assert.InDelta(t, v.X+disp[i].X, got.X, 1e-9, "vertex %d", i)
		assert.InDelta(t, v.Y+disp[i].Y, got.Y, 1e-9, "vertex %d", i)
		assert.Equal(t, tps.Targets[i], v.Add(disp[i]))
	}

	// Between vertices the spline stays close to the smooth field.
	p := geometry.Point2D{X: 33.3, Y: 41.7}
	assert.InDelta(t, radial(p).X, tps.Displacement(p).X, 0.05)
	assert.InDelta(t, radial(p).Y, tps.Displacement(p).Y, 0.05)
}

func TestThinPlateSplineReproducesAffineField(t *testing.T) {
	src := []geometry.Point2D{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 0, Y: 10}, {X: 10, Y: 10}, {X: 4, Y: 7}}
	field := func(p geometry.Point2D) geometry.Point2D {
		return geometry.Point2D{X: 0.5 + 0.01*p.X, Y: -0.2 + 0.02*p.Y}
	}
	disp := make([]geometry.Point2D, len(src))
	for i, s := range src {
		disp[i] = field(s)
	}
	tps, err := FitThinPlateSpline(src, disp)
	require.NoError(t, err)
	for _, w := range tps.Weights {
		assert.InDelta(t, 0, w[0], 1e-9)
		assert.InDelta(t, 0, w[1], 1e-9)
	}
	got := tps.Displacement(geometry.Point2D{X: 7, Y: 2})
	want := field(geometry.Point2D{X: 7, Y: 2})
	assert.InDelta(t, want.X, got.X, 1e-9)
	assert.InDelta(t, want.Y, got.Y, 1e-9)
}

func TestThinPlateSplineRejectsTooFewPoints(t *testing.T) {
	_, err := FitThinPlateSpline([]geometry.Point2D{{}, {X: 1}}, []geometry.Point2D{{}, {}})
	assert.Error(t, err)
}

func TestFitPolynomialExactForPolynomialField(t *testing.T) {
	bounds := geometry.NewRect(0, 0, 200, 100)
	field := func(p geometry.Point2D) geometry.Point2D {
		u := (p.X - 100) / 100
		v := (p.Y - 50) / 100
		return geometry.Point2D{X: 0.3 + 0.2*u*u - 0.1*u*v, Y: -0.4*v + 0.05*v*v}
	}

	poly, err := FitPolynomial(field, bounds, 2, 10)
	require.NoError(t, err)
	assert.Len(t, poly.CoeffX, TermCount(2))
	assert.Less(t, poly.RMSError, 1e-12)

	// Terms: 1, u, v, u², uv, v².
	assert.InDelta(t, 0.3, poly.CoeffX[0], 1e-12)
	assert.InDelta(t, 0.2, poly.CoeffX[3], 1e-12)
	assert.InDelta(t, -0.1, poly.CoeffX[4], 1e-12)
	assert.InDelta(t, -0.4, poly.CoeffY[2], 1e-12)

	p := geometry.Point2D{X: 37, Y: 81}
	assert.InDelta(t, p.X+field(p).X, poly.Apply(p).X, 1e-12)
	assert.InDelta(t, p.Y+field(p).Y, poly.Apply(p).Y, 1e-12)
}

func TestFitPolynomialRejectsSmallGrid(t *testing.T) {
	_, err := FitPolynomial(radial, geometry.NewRect(0, 0, 10, 10), 5, 3)
	assert.Error(t, err)
}

func linear(p geometry.Point2D) geometry.Point2D {
	return geometry.Point2D{X: 0.01*p.X - 0.3, Y: -0.005*p.Y + 0.2}
}

func TestExport(t *testing.T) {
	m, _ := mesh.Triangulate(mesh.Domain{Bounds: geometry.NewRect(0, 0, 100, 80)}, 400, 0)
	tiles := []match.Tile{{ID: "left"}, {ID: "right"}}
	layout := solver.Layout{Tiles: 2, Vertices: m.VertexCount()}
	x := make([]float64, layout.Size())
	y := make([]float64, layout.Size())
	copy(x, []float64{1, 0, 0, 1.01, 0.02, 95})
	copy(y, []float64{0, 1, 0, -0.02, 0.99, 3})
	for v, p := range m.Vertices {
		d := linear(p)
		x[layout.VertexColumn(v)] = d.X
		y[layout.VertexColumn(v)] = d.Y
	}

	out, err := Export(tiles, m, layout, x, y, Options{PolynomialDegree: 3, PolynomialGrid: 15})
	require.NoError(t, err)

	require.Len(t, out.Tiles, 2)
	assert.Equal(t, "right", out.Tiles[1].ID)
	assert.Equal(t, geometry.AffineTransform{A: 1.01, B: 0.02, TX: 95, C: -0.02, D: 0.99, TY: 3}, out.Tiles[1].Transform)
	assert.Equal(t, geometry.Identity(), out.Tiles[0].Transform)

	for v, p := range m.Vertices {
		got := out.Lens.Displacement(p)
		assert.InDelta(t, x[layout.VertexColumn(v)], got.X, 1e-9)
		assert.InDelta(t, y[layout.VertexColumn(v)], got.Y, 1e-9)
	}

	require.NotNil(t, out.Polynomial)
	assert.Equal(t, 3, out.Polynomial.Degree)
	assert.Less(t, out.Polynomial.RMSError, 1e-9)
	q := geometry.Point2D{X: 61, Y: 17}
	assert.InDelta(t, linear(q).X, out.Polynomial.Displacement(q).X, 1e-9)

	out, err = Export(tiles, m, layout, x, y, DefaultOptions())
	require.NoError(t, err)
	assert.Nil(t, out.Polynomial)
	assert.False(t, math.IsNaN(out.Lens.Scale))
}
