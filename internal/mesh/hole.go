package mesh

import (
	"math"

	"gonum.org/v1/gonum/spatial/kdtree"

	"meshlens/pkg/geometry"
)

// HoleOptions controls detection of an empty region at the tile centre.
type HoleOptions struct {
	Disabled bool
	// RadiusFraction of half the tile diagonal that the nearest point must
	// exceed before a hole is considered.
	RadiusFraction float64
	// StepFraction of the tile width and height by which the hole box grows.
	StepFraction float64
}

// DefaultHoleOptions returns the standard thresholds.
func DefaultHoleOptions() HoleOptions {
	return HoleOptions{RadiusFraction: 0.05, StepFraction: 0.02}
}

// DetectHole returns a counter-clockwise box around the tile centre that
// contains none of the points, or nil when the centre is covered.
//
// The box grows from the centre in StepFraction increments until it would
// contain a point or reach the tile edge; the last empty box is the hole.
func DetectHole(bounds geometry.Rect, points []geometry.Point2D, opts HoleOptions) []geometry.Point2D {
	if opts.Disabled || len(points) == 0 || opts.StepFraction <= 0 {
		return nil
	}
	center := bounds.Center()

	data := make(kdtree.Points, len(points))
	for i, p := range points {
		data[i] = kdtree.Point{p.X, p.Y}
	}
	tree := kdtree.New(data, false)
	_, distSq := tree.Nearest(kdtree.Point{center.X, center.Y})
	radius := opts.RadiusFraction * 0.5 * math.Hypot(bounds.Width, bounds.Height)
	if math.Sqrt(distSq) <= radius {
		return nil
	}

	stepX := opts.StepFraction * bounds.Width
	stepY := opts.StepFraction * bounds.Height
	k := 1
	for ; float64(k)*stepX < bounds.Width/2 && float64(k)*stepY < bounds.Height/2; k++ {
		if boxOccupied(points, center, float64(k)*stepX, float64(k)*stepY) {
			break
		}
	}
	k--
	if k <= 0 {
		return nil
	}
	hx, hy := float64(k)*stepX, float64(k)*stepY
	return geometry.NewRect(center.X-hx, center.Y-hy, 2*hx, 2*hy).Corners()
}

func boxOccupied(points []geometry.Point2D, c geometry.Point2D, hx, hy float64) bool {
	for _, p := range points {
		if math.Abs(p.X-c.X) <= hx && math.Abs(p.Y-c.Y) <= hy {
			return true
		}
	}
	return false
}
