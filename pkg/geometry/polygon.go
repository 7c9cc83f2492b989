package geometry

import "math"

// PointInPolygon tests if a point is inside a polygon using ray casting.
func PointInPolygon(p Point2D, polygon []Point2D) bool {
	if len(polygon) < 3 {
		return false
	}

	inside := false
	n := len(polygon)

	for i := 0; i < n; i++ {
		j := (i + 1) % n
		pi, pj := polygon[i], polygon[j]

		// Check if ray from p going right intersects edge pi-pj
		if ((pi.Y > p.Y) != (pj.Y > p.Y)) &&
			(p.X < (pj.X-pi.X)*(p.Y-pi.Y)/(pj.Y-pi.Y)+pi.X) {
			inside = !inside
		}
	}

	return inside
}

// PointStrictlyInPolygon is PointInPolygon excluding points within tol of an edge.
func PointStrictlyInPolygon(p Point2D, polygon []Point2D, tol float64) bool {
	if !PointInPolygon(p, polygon) {
		return false
	}
	n := len(polygon)
	for i := 0; i < n; i++ {
		if DistanceToSegment(p, polygon[i], polygon[(i+1)%n]) <= tol {
			return false
		}
	}
	return true
}

// DistanceToSegment returns the distance from p to the segment a-b.
func DistanceToSegment(p, a, b Point2D) float64 {
	lenSq := distSq(a, b)
	if lenSq == 0 {
		return p.Distance(a)
	}
	t := ((p.X-a.X)*(b.X-a.X) + (p.Y-a.Y)*(b.Y-a.Y)) / lenSq
	t = math.Max(0, math.Min(1, t))
	return p.Distance(Point2D{X: a.X + t*(b.X-a.X), Y: a.Y + t*(b.Y-a.Y)})
}

// Orient returns twice the signed area of triangle o-a-b.
// Positive means counter-clockwise.
func Orient(o, a, b Point2D) float64 {
	return crossProduct(o, a, b)
}

// TriangleArea returns the unsigned area of triangle a-b-c.
func TriangleArea(a, b, c Point2D) float64 {
	return math.Abs(crossProduct(a, b, c)) / 2
}

// TriangleCentroid returns the centroid of triangle a-b-c.
func TriangleCentroid(a, b, c Point2D) Point2D {
	return Point2D{X: (a.X + b.X + c.X) / 3, Y: (a.Y + b.Y + c.Y) / 3}
}

// Circumcircle returns the center and squared radius of the circle through a, b and c.
// ok is false for collinear points.
func Circumcircle(a, b, c Point2D) (center Point2D, radiusSq float64, ok bool) {
	bx, by := b.X-a.X, b.Y-a.Y
	cx, cy := c.X-a.X, c.Y-a.Y
	d := 2 * (bx*cy - by*cx)
	if d == 0 {
		return Point2D{}, 0, false
	}
	b2 := bx*bx + by*by
	c2 := cx*cx + cy*cy
	ux := (cy*b2 - by*c2) / d
	uy := (bx*c2 - cx*b2) / d
	return Point2D{X: a.X + ux, Y: a.Y + uy}, ux*ux + uy*uy, true
}

// crossProduct computes the cross product of vectors OA and OB.
func crossProduct(o, a, b Point2D) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

// distSq computes the squared distance between two points.
func distSq(a, b Point2D) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	return dx*dx + dy*dy
}
