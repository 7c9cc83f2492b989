package mesh

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meshlens/pkg/geometry"
	"meshlens/pkg/lenserr"
)

func square(size float64) Domain {
	return Domain{Bounds: geometry.NewRect(0, 0, size, size)}
}

func gridCloud(width, height float64, n int) []geometry.Point2D {
	pts := make([]geometry.Point2D, 0, n*n)
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			pts = append(pts, geometry.Point2D{
				X: width * (float64(i) + 0.5) / float64(n),
				Y: height * (float64(j) + 0.5) / float64(n),
			})
		}
	}
	return pts
}

func assertValidMesh(t *testing.T, m *Mesh, wantArea float64) {
	t.Helper()
	bounds := m.Bounds()
	for i, v := range m.Vertices {
		assert.True(t, bounds.ContainsTol(v, 1e-9), "vertex %d %v outside tile", i, v)
		assert.False(t, m.InHole(v), "vertex %d %v inside hole", i, v)
	}
	used := make([]bool, len(m.Vertices))
	for i, tri := range m.Triangles {
		a, b, c := m.Vertices[tri[0]], m.Vertices[tri[1]], m.Vertices[tri[2]]
		assert.Greater(t, geometry.Orient(a, b, c), 0.0, "triangle %d not counter-clockwise", i)
		if m.HasHole() {
			assert.False(t, geometry.PointInPolygon(geometry.TriangleCentroid(a, b, c), m.Hole), "triangle %d in hole", i)
		}
		for _, v := range tri {
			used[v] = true
		}
	}
	for i, u := range used {
		assert.True(t, u, "vertex %d is not part of any triangle", i)
	}
	assert.InDelta(t, wantArea, m.Area(), 1e-6*wantArea)
}

func TestTriangulateBoundaryOnly(t *testing.T) {
	dom := Domain{Bounds: geometry.NewRect(0, 0, 100, 50)}
	m, complete := Triangulate(dom, math.Inf(1), 0)
	require.True(t, complete)
	assert.Equal(t, 4, m.VertexCount())
	assert.Len(t, m.Triangles, 2)
	assertValidMesh(t, m, 5000)
}

func TestTriangulateRespectsMaxArea(t *testing.T) {
	dom := Domain{Bounds: geometry.NewRect(0, 0, 100, 80)}
	m, complete := Triangulate(dom, 100, 0)
	require.True(t, complete)
	assertValidMesh(t, m, 8000)
	for i, tri := range m.Triangles {
		area := geometry.TriangleArea(m.Vertices[tri[0]], m.Vertices[tri[1]], m.Vertices[tri[2]])
		assert.LessOrEqual(t, area, 100.0, "triangle %d", i)
	}
	assert.LessOrEqual(t, m.MaxArea, 100.0)
}

func TestTriangulateMonotone(t *testing.T) {
	dom := square(100)
	prev := 0
	for _, a := range []float64{5000, 2000, 1000, 500, 250, 120, 60, 30} {
		m, _ := Triangulate(dom, a, 0)
		assert.GreaterOrEqual(t, m.VertexCount(), prev, "area %g", a)
		prev = m.VertexCount()
	}
	assert.Greater(t, prev, 100)
}

func TestTriangulateVertexLimit(t *testing.T) {
	m, complete := Triangulate(square(100), 1, 25)
	assert.False(t, complete)
	assert.Equal(t, 25, m.VertexCount())
	assertValidMesh(t, m, 10000)
}

func TestTriangulateWithHole(t *testing.T) {
	dom := Domain{
		Bounds: geometry.NewRect(0, 0, 100, 100),
		Hole:   geometry.NewRect(40, 40, 20, 20).Corners(),
	}
	m, complete := Triangulate(dom, 50, 0)
	require.True(t, complete)
	require.True(t, m.HasHole())
	assertValidMesh(t, m, 9600)
}

func TestTriangulateDeterministic(t *testing.T) {
	dom := Domain{
		Bounds: geometry.NewRect(0, 0, 120, 90),
		Hole:   geometry.NewRect(45, 35, 30, 20).Corners(),
	}
	a, _ := Triangulate(dom, 40, 0)
	b, _ := Triangulate(dom, 40, 0)
	assert.Equal(t, a, b)
}

func TestDelaunayAdjacency(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	d := newDelaunay(geometry.NewRect(0, 0, 100, 100), 8)
	for i := 0; i < 400; i++ {
		d.insert(geometry.Point2D{X: rng.Float64() * 100, Y: rng.Float64() * 100})
	}

	live := 0
	for s, tri := range d.tris {
		if !d.alive[s] {
			continue
		}
		live++
		assert.Greater(t, geometry.Orient(d.pts[tri[0]], d.pts[tri[1]], d.pts[tri[2]]), 0.0, "slot %d", s)
		for k := 0; k < 3; k++ {
			n := d.nbr[s][k]
			if n < 0 {
				continue
			}
			require.True(t, d.alive[n], "slot %d links to dead slot %d", s, n)
			a, b := tri[k], tri[(k+1)%3]
			back := false
			for j := 0; j < 3; j++ {
				if d.tris[n][j] == b && d.tris[n][(j+1)%3] == a && d.nbr[n][j] == s {
					back = true
				}
			}
			assert.True(t, back, "edge %d-%d of slot %d is not linked back", a, b, s)
		}
	}
	// Euler: a triangulated point set inside a triangle has 2n+1 faces.
	assert.Equal(t, 2*d.numVertices()+1, live)

	for s, tri := range d.tris {
		if !d.alive[s] {
			continue
		}
		for v := 3; v < len(d.pts); v++ {
			if v == tri[0] || v == tri[1] || v == tri[2] {
				continue
			}
			assert.False(t, d.inCircumcircle(tri, d.pts[v]), "vertex %d inside circumcircle of slot %d", v, s)
		}
	}

	for v := 0; v < d.numVertices(); v++ {
		assert.False(t, d.hasEdge(v, v), "vertex %d", v)
	}
	d.eachTriangle(func(tri Triangle) {
		assert.True(t, d.hasEdge(tri[0], tri[1]))
		assert.True(t, d.hasEdge(tri[2], tri[1]))
	})
}

func TestTriangulateLargeTile(t *testing.T) {
	dom := Domain{
		Bounds: geometry.NewRect(0, 0, 3840, 3840),
		Hole:   geometry.NewRect(1800, 1800, 240, 240).Corners(),
	}
	m, complete := Triangulate(dom, dom.Area()/6000, 0)
	require.True(t, complete)
	assert.Greater(t, m.VertexCount(), 2500)
	assertValidMesh(t, m, dom.Area())
}

func TestDetectHole(t *testing.T) {
	bounds := geometry.NewRect(0, 0, 100, 100)

	t.Run("ring", func(t *testing.T) {
		ring := geometry.GenerateCirclePoints(50, 50, 40, 200)
		hole := DetectHole(bounds, ring, DefaultHoleOptions())
		require.Len(t, hole, 4)
		assert.InDelta(t, 22, hole[0].X, 1e-9)
		assert.InDelta(t, 22, hole[0].Y, 1e-9)
		assert.InDelta(t, 78, hole[2].X, 1e-9)
		for _, p := range ring {
			assert.False(t, geometry.PointStrictlyInPolygon(p, hole, 0))
		}
	})

	t.Run("covered centre", func(t *testing.T) {
		assert.Nil(t, DetectHole(bounds, gridCloud(100, 100, 21), DefaultHoleOptions()))
	})

	t.Run("disabled", func(t *testing.T) {
		ring := geometry.GenerateCirclePoints(50, 50, 40, 200)
		assert.Nil(t, DetectHole(bounds, ring, HoleOptions{Disabled: true}))
	})
}

func TestFindTargetArea(t *testing.T) {
	for _, target := range []int{10, 37, 80} {
		m, warnings := FindTargetArea(square(100), target, DefaultSearchOptions(), nil)
		assert.Empty(t, warnings, "target %d", target)
		assert.InDelta(t, target, m.VertexCount(), 1, "target %d", target)
		assertValidMesh(t, m, 10000)
	}
}

func TestFindTargetAreaNotBracketed(t *testing.T) {
	m, warnings := FindTargetArea(square(100), 2, DefaultSearchOptions(), nil)
	require.Len(t, warnings, 1)
	assert.Equal(t, lenserr.CodeTargetNotBracketed, warnings[0].Code)
	assert.Equal(t, 4, m.VertexCount())
}

func TestBuildEmptyPoints(t *testing.T) {
	m, warnings, err := Build(100, 100, nil, DefaultBuildOptions())
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, lenserr.CodeDegenerateMesh, warnings[0].Code)
	assert.Equal(t, 4, m.VertexCount())
	assert.Len(t, m.Triangles, 2)
}

func TestBuildSupported(t *testing.T) {
	opts := DefaultBuildOptions()
	opts.NVertex = 30
	m, warnings, err := Build(100, 100, gridCloud(100, 100, 40), opts)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.InDelta(t, 30, m.VertexCount(), 1)
	assert.GreaterOrEqual(t, m.MinSupport(), 3)
	assertValidMesh(t, m, 10000)
}

func TestBuildInsufficientObservations(t *testing.T) {
	opts := DefaultBuildOptions()
	opts.NVertex = 50
	opts.Refine.MaxIterations = 3
	pts := []geometry.Point2D{{X: 90, Y: 10}, {X: 91, Y: 11}, {X: 92, Y: 9}, {X: 89, Y: 12}, {X: 93, Y: 10}}
	m, warnings, err := Build(100, 100, pts, opts)
	require.NoError(t, err)
	require.NotNil(t, m)
	codes := make([]lenserr.Code, 0, len(warnings))
	for _, w := range warnings {
		codes = append(codes, w.Code)
	}
	assert.Contains(t, codes, lenserr.CodeInsufficientObservations)
	assert.Less(t, m.MinSupport(), 3)
}

func TestBuildWarnsWhenCoarsened(t *testing.T) {
	opts := DefaultBuildOptions()
	opts.NVertex = 50
	m, warnings, err := Build(100, 100, gridCloud(100, 100, 5), opts)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, m.MinSupport(), 3)
	assert.Less(t, m.VertexCount(), 49)

	codes := make([]lenserr.Code, 0, len(warnings))
	for _, w := range warnings {
		codes = append(codes, w.Code)
	}
	assert.Contains(t, codes, lenserr.CodeInsufficientObservations)
	assertValidMesh(t, m, 10000)
}

func TestBuildDoughnut(t *testing.T) {
	ring := geometry.GenerateCirclePoints(50, 50, 40, 400)
	ring = append(ring, geometry.GenerateCirclePoints(50, 50, 44, 400)...)
	opts := DefaultBuildOptions()
	opts.NVertex = 40
	m, _, err := Build(100, 100, ring, opts)
	require.NoError(t, err)
	require.True(t, m.HasHole(), "ring of matches must produce a hole")
	for i, v := range m.Vertices {
		assert.False(t, geometry.PointStrictlyInPolygon(v, m.Hole, 1e-9), "vertex %d %v inside hole", i, v)
	}
	assertValidMesh(t, m, 10000-polygonArea(m.Hole))
}

func TestBuildDeterministic(t *testing.T) {
	pts := gridCloud(100, 100, 25)
	opts := DefaultBuildOptions()
	opts.NVertex = 45
	a, _, err := Build(100, 100, pts, opts)
	require.NoError(t, err)
	b, _, err := Build(100, 100, pts, opts)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestBuildRejectsBadArguments(t *testing.T) {
	_, _, err := Build(0, 100, nil, DefaultBuildOptions())
	assert.True(t, lenserr.Is(err, lenserr.CodeInvalidInput))

	opts := DefaultBuildOptions()
	opts.NVertex = 0
	_, _, err = Build(100, 100, nil, opts)
	assert.True(t, lenserr.Is(err, lenserr.CodeInvalidInput))
}

func TestLocatorWeights(t *testing.T) {
	m, _ := Triangulate(square(100), 60, 0)
	require.Greater(t, len(m.Triangles), bruteForceBelow)
	loc, err := NewLocator(m)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 500; i++ {
		p := geometry.Point2D{X: rng.Float64() * 100, Y: rng.Float64() * 100}
		b, err := loc.Locate(p)
		require.NoError(t, err)

		sum := b.Weights[0] + b.Weights[1] + b.Weights[2]
		assert.InDelta(t, 1, sum, 1e-9)
		var rebuilt geometry.Point2D
		for k, v := range b.Vertices(m) {
			assert.GreaterOrEqual(t, b.Weights[k], -1e-7)
			rebuilt = rebuilt.Add(m.Vertices[v].Scale(b.Weights[k]))
		}
		assert.InDelta(t, p.X, rebuilt.X, 1e-9)
		assert.InDelta(t, p.Y, rebuilt.Y, 1e-9)
	}
}

func TestLocatorSmallMesh(t *testing.T) {
	m, _ := Triangulate(square(10), math.Inf(1), 0)
	loc, err := NewLocator(m)
	require.NoError(t, err)

	b, err := loc.Locate(geometry.Point2D{X: 10, Y: 10})
	require.NoError(t, err)
	assert.InDelta(t, 1, b.Weights[0]+b.Weights[1]+b.Weights[2], 1e-12)
}

func TestLocatorRejectsOutsidePoints(t *testing.T) {
	dom := Domain{
		Bounds: geometry.NewRect(0, 0, 100, 100),
		Hole:   geometry.NewRect(40, 40, 20, 20).Corners(),
	}
	m, _ := Triangulate(dom, 80, 0)
	loc, err := NewLocator(m)
	require.NoError(t, err)

	for _, p := range []geometry.Point2D{{X: -1, Y: 50}, {X: 50, Y: 101}, {X: 50, Y: 50}, {X: math.NaN(), Y: 1}} {
		_, err := loc.Locate(p)
		assert.True(t, lenserr.Is(err, lenserr.CodeInvalidInput), "point %v: %v", p, err)
	}
	_, err = loc.Locate(geometry.Point2D{X: 10, Y: 90})
	assert.NoError(t, err)
}

func TestVertexSupport(t *testing.T) {
	m, _ := Triangulate(square(100), math.Inf(1), 0)
	loc, err := NewLocator(m)
	require.NoError(t, err)

	// Every vertex of the two-triangle mesh touches at least one triangle, and
	// the two diagonal vertices touch both.
	support := VertexSupport(m, loc, gridCloud(100, 100, 10))
	total := 0
	for _, s := range support {
		assert.Greater(t, s, 0)
		total += s
	}
	assert.Equal(t, 300, total)
}
