// Package mesh builds the triangulated basis of the lens displacement field and
// maps points into mesh-relative barycentric coordinates.
package mesh

import (
	"meshlens/pkg/geometry"
)

// Triangle holds three vertex indices in counter-clockwise order.
type Triangle [3]int

// Mesh is a triangulation of the tile rectangle, optionally with an interior hole.
type Mesh struct {
	Width     float64            `json:"width"`
	Height    float64            `json:"height"`
	Vertices  []geometry.Point2D `json:"vertices"`
	Triangles []Triangle         `json:"triangles"`
	Hole      []geometry.Point2D `json:"hole,omitempty"` // counter-clockwise polygon, nil when absent
	MaxArea   float64            `json:"max_area"`       // largest triangle area outside the hole
	Support   []int              `json:"support,omitempty"`
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices)
}

// Bounds returns the tile rectangle.
func (m *Mesh) Bounds() geometry.Rect {
	return geometry.NewRect(0, 0, m.Width, m.Height)
}

// HasHole reports whether the mesh has an interior hole.
func (m *Mesh) HasHole() bool {
	return len(m.Hole) >= 3
}

// InHole reports whether p lies strictly inside the hole.
func (m *Mesh) InHole(p geometry.Point2D) bool {
	if !m.HasHole() {
		return false
	}
	return geometry.PointStrictlyInPolygon(p, m.Hole, holeTolerance(m.Width, m.Height))
}

// Area returns the summed triangle area.
func (m *Mesh) Area() float64 {
	var area float64
	for _, t := range m.Triangles {
		area += geometry.TriangleArea(m.Vertices[t[0]], m.Vertices[t[1]], m.Vertices[t[2]])
	}
	return area
}

// MinSupport returns the smallest per-vertex support, or -1 when support is unknown.
func (m *Mesh) MinSupport() int {
	if len(m.Support) == 0 {
		return -1
	}
	lowest := m.Support[0]
	for _, s := range m.Support[1:] {
		if s < lowest {
			lowest = s
		}
	}
	return lowest
}

// VertexTriangles returns, for every vertex, the triangles incident to it.
func (m *Mesh) VertexTriangles() [][]int {
	ring := make([][]int, len(m.Vertices))
	for i, t := range m.Triangles {
		for _, v := range t {
			ring[v] = append(ring[v], i)
		}
	}
	return ring
}

func holeTolerance(width, height float64) float64 {
	return 1e-9 * (width + height)
}
