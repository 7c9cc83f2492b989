package mesh

import (
	"container/heap"
	"math"

	"meshlens/pkg/geometry"
)

// DefaultMaxVertices caps a single triangulation.
const DefaultMaxVertices = 20000

// Domain is the region to triangulate: the tile rectangle minus an optional hole.
type Domain struct {
	Bounds geometry.Rect
	Hole   []geometry.Point2D
}

// Area returns the rectangle area minus the hole area.
func (d Domain) Area() float64 {
	area := d.Bounds.Area()
	if len(d.Hole) >= 3 {
		area -= polygonArea(d.Hole)
	}
	return area
}

func polygonArea(poly []geometry.Point2D) float64 {
	var s float64
	for i := range poly {
		j := (i + 1) % len(poly)
		s += poly[i].X*poly[j].Y - poly[j].X*poly[i].Y
	}
	return math.Abs(s) / 2
}

type segment struct {
	a, b int
	hole bool
}

func edgeKey(a, b int) [2]int {
	if a > b {
		a, b = b, a
	}
	return [2]int{a, b}
}

type refiner struct {
	dom   Domain
	tol   float64
	d     *delaunay
	segs  []segment
	index map[[2]int]int

	queue areaQueue
	gen   []int // bumped whenever a triangle slot is reused
	seq   int
}

func newRefiner(dom Domain, capacity int) *refiner {
	r := &refiner{
		dom:   dom,
		tol:   holeTolerance(dom.Bounds.Width, dom.Bounds.Height),
		d:     newDelaunay(dom.Bounds, capacity),
		index: make(map[[2]int]int),
	}
	r.addLoop(dom.Bounds.Corners(), false)
	if len(dom.Hole) >= 3 {
		r.addLoop(dom.Hole, true)
	}
	return r
}

// insert adds p to the triangulation and queues the new triangles that lie
// outside the hole.
func (r *refiner) insert(p geometry.Point2D) int {
	v := r.d.insert(p)
	for _, s := range r.d.created {
		for len(r.gen) <= s {
			r.gen = append(r.gen, 0)
		}
		r.gen[s]++
		if !r.d.isReal(s) {
			continue
		}
		t := r.d.tris[s]
		a, b, c := r.d.pts[t[0]], r.d.pts[t[1]], r.d.pts[t[2]]
		if r.inHole(geometry.TriangleCentroid(a, b, c)) {
			continue
		}
		r.seq++
		heap.Push(&r.queue, queued{slot: s, gen: r.gen[s], area: geometry.TriangleArea(a, b, c), seq: r.seq})
	}
	return v
}

func (r *refiner) addLoop(poly []geometry.Point2D, hole bool) {
	first := r.d.numVertices()
	for _, p := range poly {
		r.insert(p)
	}
	for i := range poly {
		a, b := first+i, first+(i+1)%len(poly)
		r.index[edgeKey(a, b)] = len(r.segs)
		r.segs = append(r.segs, segment{a: a, b: b, hole: hole})
	}
}

// splitSegment inserts the midpoint of segment s and replaces it by its halves.
func (r *refiner) splitSegment(s int) {
	seg := r.segs[s]
	mid := r.d.vertex(seg.a).Add(r.d.vertex(seg.b)).Scale(0.5)
	m := r.insert(mid)
	delete(r.index, edgeKey(seg.a, seg.b))
	r.segs[s] = segment{a: seg.a, b: m, hole: seg.hole}
	r.index[edgeKey(seg.a, m)] = s
	r.index[edgeKey(m, seg.b)] = len(r.segs)
	r.segs = append(r.segs, segment{a: m, b: seg.b, hole: seg.hole})
}

// splitMissingSegment splits the first segment that is not a triangulation edge.
func (r *refiner) splitMissingSegment() bool {
	for s, seg := range r.segs {
		if !r.d.hasEdge(seg.a, seg.b) {
			r.splitSegment(s)
			return true
		}
	}
	return false
}

func (r *refiner) inHole(p geometry.Point2D) bool {
	return len(r.dom.Hole) >= 3 && geometry.PointStrictlyInPolygon(p, r.dom.Hole, r.tol)
}

// largest returns the largest live triangle outside the hole and its area,
// or an area of -1 when there is none. Stale queue entries are dropped.
func (r *refiner) largest() (Triangle, float64) {
	for r.queue.Len() > 0 {
		q := r.queue[0]
		if r.d.alive[q.slot] && r.gen[q.slot] == q.gen {
			t := r.d.tris[q.slot]
			return Triangle{t[0] - 3, t[1] - 3, t[2] - 3}, q.area
		}
		heap.Pop(&r.queue)
	}
	return Triangle{}, -1
}

// insertable reports whether p is strictly inside the domain, away from every segment.
func (r *refiner) insertable(p geometry.Point2D) bool {
	b := r.dom.Bounds
	if p.X <= b.X+r.tol || p.X >= b.X+b.Width-r.tol || p.Y <= b.Y+r.tol || p.Y >= b.Y+b.Height-r.tol {
		return false
	}
	if len(r.dom.Hole) < 3 {
		return true
	}
	if geometry.PointInPolygon(p, r.dom.Hole) {
		return false
	}
	for i := range r.dom.Hole {
		if geometry.DistanceToSegment(p, r.dom.Hole[i], r.dom.Hole[(i+1)%len(r.dom.Hole)]) <= r.tol {
			return false
		}
	}
	return true
}

// refine inserts one point that destroys triangle t: its circumcenter when
// that lies inside the domain, else the midpoint of its longest edge when
// that edge is a segment, else its centroid.
func (r *refiner) refine(t Triangle) {
	a, b, c := r.d.vertex(t[0]), r.d.vertex(t[1]), r.d.vertex(t[2])
	if center, _, ok := geometry.Circumcircle(a, b, c); ok && r.insertable(center) {
		r.insert(center)
		return
	}

	longest, k := -1.0, 0
	for i := 0; i < 3; i++ {
		if l := r.d.vertex(t[i]).Distance(r.d.vertex(t[(i+1)%3])); l > longest {
			longest, k = l, i
		}
	}
	if s, ok := r.index[edgeKey(t[k], t[(k+1)%3])]; ok {
		r.splitSegment(s)
		return
	}
	r.insert(geometry.TriangleCentroid(a, b, c))
}

// Triangulate refines the domain until no triangle outside the hole is larger
// than maxArea, or until maxVertices is reached. The insertion sequence does
// not depend on either limit, so the vertex count is monotone non-increasing
// in maxArea. The second return is false when maxVertices stopped refinement.
// Missing hole segments are always split, even past maxVertices.
func Triangulate(dom Domain, maxArea float64, maxVertices int) (*Mesh, bool) {
	if maxVertices <= 0 {
		maxVertices = DefaultMaxVertices
	}
	r := newRefiner(dom, 64)
	for {
		if r.d.numVertices() < 2*maxVertices && r.splitMissingSegment() {
			continue
		}
		t, area := r.largest()
		if area <= maxArea {
			return r.mesh(area), true
		}
		if r.d.numVertices() >= maxVertices {
			return r.mesh(area), false
		}
		r.refine(t)
	}
}

func (r *refiner) mesh(largest float64) *Mesh {
	m := &Mesh{
		Width:    r.dom.Bounds.Width,
		Height:   r.dom.Bounds.Height,
		Vertices: r.d.vertices(),
		MaxArea:  largest,
	}
	if len(r.dom.Hole) >= 3 {
		m.Hole = append([]geometry.Point2D(nil), r.dom.Hole...)
	}
	r.d.eachTriangle(func(t Triangle) {
		if r.inHole(geometry.TriangleCentroid(r.d.vertex(t[0]), r.d.vertex(t[1]), r.d.vertex(t[2]))) {
			return
		}
		m.Triangles = append(m.Triangles, t)
	})
	return m
}

type queued struct {
	slot, gen int
	area      float64
	seq       int
}

// areaQueue is a max-heap on triangle area; older triangles win ties.
type areaQueue []queued

func (q areaQueue) Len() int { return len(q) }
func (q areaQueue) Less(i, j int) bool {
	if q[i].area != q[j].area {
		return q[i].area > q[j].area
	}
	return q[i].seq < q[j].seq
}
func (q areaQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *areaQueue) Push(x any) { *q = append(*q, x.(queued)) }
func (q *areaQueue) Pop() any {
	old := *q
	x := old[len(old)-1]
	*q = old[:len(old)-1]
	return x
}
