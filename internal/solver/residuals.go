package solver

import (
	"math"

	"meshlens/pkg/geometry"
)

// Residuals returns, per kept pair, the magnitude of (A·x, A·y): the distance
// between the two mapped points of the pair.
func Residuals(sys *System, x, y []float64) []float64 {
	rx := make([]float64, sys.A.Rows())
	ry := make([]float64, sys.A.Rows())
	sys.A.MulVec(rx, x)
	sys.A.MulVec(ry, y)
	out := make([]float64, len(rx))
	for i := range rx {
		out[i] = math.Hypot(rx[i], ry[i])
	}
	return out
}

// TileAffine reads tile t's transform from the two solution vectors.
func TileAffine(layout Layout, x, y []float64, t int) geometry.AffineTransform {
	c := layout.TileColumn(t)
	return geometry.AffineTransform{
		A: x[c], B: x[c+1], TX: x[c+2],
		C: y[c], D: y[c+1], TY: y[c+2],
	}
}

// LensDisplacements returns the solved per-vertex displacement.
func LensDisplacements(layout Layout, x, y []float64) []geometry.Point2D {
	out := make([]geometry.Point2D, layout.Vertices)
	for v := range out {
		c := layout.VertexColumn(v)
		out[v] = geometry.Point2D{X: x[c], Y: y[c]}
	}
	return out
}
