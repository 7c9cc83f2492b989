package mesh

import (
	"gonum.org/v1/gonum/mat"

	"meshlens/pkg/geometry"
	"meshlens/pkg/lenserr"
)

const (
	// bruteForceBelow is the triangle count under which Locate always scans.
	bruteForceBelow = 16
	walkTolerance   = 1e-9
	insideTolerance = 1e-7
)

// Barycentric is a point expressed in one mesh triangle. Weights follow the
// triangle's vertex order and sum to one.
type Barycentric struct {
	Triangle int
	Weights  [3]float64
}

// Vertices returns the mesh vertex indices the weights apply to.
func (b Barycentric) Vertices(m *Mesh) Triangle {
	return m.Triangles[b.Triangle]
}

// Locator maps points to barycentric coordinates in a mesh. It remembers the
// last hit to speed up spatially coherent queries and is not safe for
// concurrent use.
type Locator struct {
	mesh      *Mesh
	inverse   [][9]float64
	neighbors [][3]int // neighbors[t][k] shares the edge opposite vertex k
	last      int
}

// NewLocator caches the inverse vertex matrix of every triangle.
func NewLocator(m *Mesh) (*Locator, error) {
	if len(m.Triangles) == 0 {
		return nil, lenserr.New(lenserr.CodeDegenerateMesh, "mesh has no triangles")
	}
	l := &Locator{
		mesh:      m,
		inverse:   make([][9]float64, len(m.Triangles)),
		neighbors: make([][3]int, len(m.Triangles)),
	}

	var inv mat.Dense
	for i, t := range m.Triangles {
		a, b, c := m.Vertices[t[0]], m.Vertices[t[1]], m.Vertices[t[2]]
		v := mat.NewDense(3, 3, []float64{
			a.X, b.X, c.X,
			a.Y, b.Y, c.Y,
			1, 1, 1,
		})
		if err := inv.Inverse(v); err != nil {
			return nil, lenserr.Wrap(lenserr.CodeDegenerateMesh, err, "triangle %d is degenerate", i)
		}
		for r := 0; r < 3; r++ {
			for c := 0; c < 3; c++ {
				l.inverse[i][3*r+c] = inv.At(r, c)
			}
		}
	}

	type side struct{ tri, k int }
	edges := make(map[[2]int]side, 3*len(m.Triangles)/2)
	for i, t := range m.Triangles {
		for k := 0; k < 3; k++ {
			l.neighbors[i][k] = -1
			key := edgeKey(t[(k+1)%3], t[(k+2)%3])
			if other, ok := edges[key]; ok {
				l.neighbors[i][k] = other.tri
				l.neighbors[other.tri][other.k] = i
				continue
			}
			edges[key] = side{tri: i, k: k}
		}
	}
	return l, nil
}

func (l *Locator) weights(t int, p geometry.Point2D) [3]float64 {
	m := &l.inverse[t]
	return [3]float64{
		m[0]*p.X + m[1]*p.Y + m[2],
		m[3]*p.X + m[4]*p.Y + m[5],
		m[6]*p.X + m[7]*p.Y + m[8],
	}
}

func minIndex(w [3]float64) int {
	k := 0
	if w[1] < w[k] {
		k = 1
	}
	if w[2] < w[k] {
		k = 2
	}
	return k
}

// Locate returns the triangle containing p and its barycentric weights.
// Points outside the mesh, including points inside the hole, are INVALID_INPUT.
func (l *Locator) Locate(p geometry.Point2D) (Barycentric, error) {
	if !p.IsFinite() {
		return Barycentric{}, lenserr.New(lenserr.CodeInvalidInput, "non-finite point %v", p)
	}
	if len(l.mesh.Triangles) >= bruteForceBelow {
		t := l.last
		for step := 0; step < len(l.mesh.Triangles); step++ {
			w := l.weights(t, p)
			k := minIndex(w)
			if w[k] >= -walkTolerance {
				l.last = t
				return Barycentric{Triangle: t, Weights: w}, nil
			}
			next := l.neighbors[t][k]
			if next < 0 {
				break
			}
			t = next
		}
	}

	best, bestMin := -1, 0.0
	var bestW [3]float64
	for t := range l.mesh.Triangles {
		w := l.weights(t, p)
		if lo := w[minIndex(w)]; best < 0 || lo > bestMin {
			best, bestMin, bestW = t, lo, w
		}
	}
	if bestMin < -insideTolerance {
		return Barycentric{}, lenserr.New(lenserr.CodeInvalidInput, "point (%g, %g) is outside the mesh", p.X, p.Y)
	}
	l.last = best
	return Barycentric{Triangle: best, Weights: bestW}, nil
}
