package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPointInPolygon(t *testing.T) {
	square := NewRect(0, 0, 10, 10).Corners()
	tests := []struct {
		name   string
		p      Point2D
		inside bool
		strict bool
	}{
		{"centre", Point2D{X: 5, Y: 5}, true, true},
		{"near edge", Point2D{X: 0.05, Y: 5}, true, false},
		{"outside", Point2D{X: 11, Y: 5}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.inside, PointInPolygon(tt.p, square))
			assert.Equal(t, tt.strict, PointStrictlyInPolygon(tt.p, square, 0.1))
		})
	}
	assert.False(t, PointInPolygon(Point2D{}, square[:2]))
}

func TestDistanceToSegment(t *testing.T) {
	a, b := Point2D{X: 0, Y: 0}, Point2D{X: 10, Y: 0}
	assert.Equal(t, 3.0, DistanceToSegment(Point2D{X: 5, Y: 3}, a, b))
	assert.Equal(t, 5.0, DistanceToSegment(Point2D{X: 13, Y: 4}, a, b))
	assert.Equal(t, 5.0, DistanceToSegment(Point2D{X: 3, Y: 4}, a, a))
}

func TestTriangles(t *testing.T) {
	a, b, c := Point2D{X: 0, Y: 0}, Point2D{X: 4, Y: 0}, Point2D{X: 0, Y: 3}
	assert.Equal(t, 12.0, Orient(a, b, c))
	assert.Equal(t, -12.0, Orient(a, c, b))
	assert.Equal(t, 6.0, TriangleArea(a, c, b))
	assert.Equal(t, Point2D{X: 4.0 / 3, Y: 1}, TriangleCentroid(a, b, c))

	center, r2, ok := Circumcircle(a, b, c)
	assert.True(t, ok)
	assert.InDelta(t, 2, center.X, 1e-12)
	assert.InDelta(t, 1.5, center.Y, 1e-12)
	assert.InDelta(t, 6.25, r2, 1e-12)

	_, _, ok = Circumcircle(a, b, Point2D{X: 8, Y: 0})
	assert.False(t, ok)
}

func TestAffine(t *testing.T) {
	tr := AffineTransform{A: 2, B: 0, TX: 1, C: 0, D: 0.5, TY: -1}
	assert.Equal(t, Point2D{X: 7, Y: 0}, tr.Apply(Point2D{X: 3, Y: 2}))
	assert.Equal(t, 1.0, tr.Det())
	assert.Equal(t, 1.0, tr.ScaleFactor())
	assert.Equal(t, Point2D{X: 3, Y: 2}, Identity().Apply(Point2D{X: 3, Y: 2}))
}

func TestPointHelpers(t *testing.T) {
	p := Point2D{X: 3, Y: 4}
	assert.Equal(t, 5.0, p.Norm())
	assert.True(t, p.IsFinite())
	assert.False(t, Point2D{X: math.NaN()}.IsFinite())
	assert.False(t, Point2D{Y: math.Inf(-1)}.IsFinite())

	r := BoundingBox([]Point2D{{X: 1, Y: 5}, {X: -2, Y: 3}, {X: 4, Y: 4}})
	assert.Equal(t, NewRect(-2, 3, 6, 2), r)
	assert.True(t, r.ContainsTol(Point2D{X: 4.05, Y: 3}, 0.1))
	assert.False(t, r.Contains(Point2D{X: 4.05, Y: 3}))
	assert.Equal(t, Point2D{X: 1, Y: 4}, r.Center())
	assert.Equal(t, 12.0, r.Area())
}
