package mesh

import (
	"math"

	"meshlens/pkg/geometry"
)

// superScale sizes the enclosing super triangle relative to the point bounds.
const superScale = 100

// delaunay is an incremental Bowyer-Watson triangulation with triangle
// adjacency. Vertices 0..2 are the super triangle and are skipped by
// eachTriangle. Dead triangle slots are reused, so slot indices stay valid
// for the neighbour links.
type delaunay struct {
	pts   []geometry.Point2D
	tris  []Triangle
	nbr   [][3]int // nbr[t][k] shares edge tris[t][k] -> tris[t][k+1], -1 on the hull
	alive []bool
	free  []int
	vtri  []int // one live triangle incident to each vertex, -1 when isolated
	last  int

	// created lists the slots made by the latest insert.
	created []int

	cavity []int
	mark   []bool
	stack  []int
	rim    []rimEdge
}

type rimEdge struct {
	a, b  int
	outer int
}

func newDelaunay(bounds geometry.Rect, capacity int) *delaunay {
	c := bounds.Center()
	m := math.Max(bounds.Width, bounds.Height) * superScale
	d := &delaunay{
		pts:   make([]geometry.Point2D, 0, capacity+3),
		tris:  make([]Triangle, 0, 2*capacity+1),
		nbr:   make([][3]int, 0, 2*capacity+1),
		alive: make([]bool, 0, 2*capacity+1),
		mark:  make([]bool, 0, 2*capacity+1),
	}
	d.pts = append(d.pts,
		geometry.Point2D{X: c.X - 2*m, Y: c.Y - m},
		geometry.Point2D{X: c.X + 2*m, Y: c.Y - m},
		geometry.Point2D{X: c.X, Y: c.Y + 2*m},
	)
	d.tris = append(d.tris, Triangle{0, 1, 2})
	d.nbr = append(d.nbr, [3]int{-1, -1, -1})
	d.alive = append(d.alive, true)
	d.mark = append(d.mark, false)
	d.vtri = []int{0, 0, 0}
	return d
}

// numVertices returns the count of real (non-super) vertices.
func (d *delaunay) numVertices() int {
	return len(d.pts) - 3
}

// locate walks from the last touched triangle towards p and returns a live
// triangle containing it.
func (d *delaunay) locate(p geometry.Point2D) int {
	t := d.last
	if t < 0 || t >= len(d.tris) || !d.alive[t] {
		t = d.anyAlive()
	}
	for step := 0; step < len(d.tris); step++ {
		tri := d.tris[t]
		next := -1
		for k := 0; k < 3; k++ {
			if geometry.Orient(d.pts[tri[k]], d.pts[tri[(k+1)%3]], p) < 0 {
				next = d.nbr[t][k]
				break
			}
		}
		if next < 0 {
			return t
		}
		t = next
	}
	// The walk only cycles on inconsistent orientation tests; scan instead.
	for i, tri := range d.tris {
		if d.alive[i] && d.contains(tri, p) {
			return i
		}
	}
	return t
}

func (d *delaunay) anyAlive() int {
	for i := len(d.alive) - 1; i >= 0; i-- {
		if d.alive[i] {
			return i
		}
	}
	return 0
}

func (d *delaunay) contains(t Triangle, p geometry.Point2D) bool {
	for k := 0; k < 3; k++ {
		if geometry.Orient(d.pts[t[k]], d.pts[t[(k+1)%3]], p) < 0 {
			return false
		}
	}
	return true
}

// insert adds p and restores the Delaunay property. It returns the real vertex index.
func (d *delaunay) insert(p geometry.Point2D) int {
	idx := len(d.pts)
	d.pts = append(d.pts, p)
	d.vtri = append(d.vtri, -1)
	d.created = d.created[:0]

	start := d.locate(p)
	for _, v := range d.tris[start] {
		if d.pts[v] == p {
			return idx - 3
		}
	}

	// The triangles whose circumcircle holds p form a connected cavity
	// around the containing triangle.
	d.cavity = append(d.cavity[:0], start)
	d.mark[start] = true
	d.stack = append(d.stack[:0], start)
	for len(d.stack) > 0 {
		t := d.stack[len(d.stack)-1]
		d.stack = d.stack[:len(d.stack)-1]
		for _, n := range d.nbr[t] {
			if n < 0 || d.mark[n] || !d.inCircumcircle(d.tris[n], p) {
				continue
			}
			d.mark[n] = true
			d.cavity = append(d.cavity, n)
			d.stack = append(d.stack, n)
		}
	}

	d.rim = d.rim[:0]
	for _, t := range d.cavity {
		for k := 0; k < 3; k++ {
			n := d.nbr[t][k]
			if n >= 0 && d.mark[n] {
				continue
			}
			d.rim = append(d.rim, rimEdge{a: d.tris[t][k], b: d.tris[t][(k+1)%3], outer: n})
		}
	}
	for _, t := range d.cavity {
		d.mark[t] = false
		d.alive[t] = false
		d.free = append(d.free, t)
	}

	for _, e := range d.rim {
		s := d.alloc(Triangle{e.a, e.b, idx})
		d.nbr[s][0] = e.outer
		if e.outer >= 0 {
			o := d.tris[e.outer]
			for k := 0; k < 3; k++ {
				if o[k] == e.b && o[(k+1)%3] == e.a {
					d.nbr[e.outer][k] = s
					break
				}
			}
		}
		d.vtri[e.a], d.vtri[e.b] = s, s
		d.created = append(d.created, s)
	}

	// Fan links: edge b->p of (a,b,p) borders the new triangle starting at b,
	// edge p->a borders the one ending at a.
	for _, s := range d.created {
		a, b := d.tris[s][0], d.tris[s][1]
		for _, o := range d.created {
			switch {
			case d.tris[o][0] == b:
				d.nbr[s][1] = o
			case d.tris[o][1] == a:
				d.nbr[s][2] = o
			}
		}
	}
	if len(d.created) > 0 {
		d.vtri[idx] = d.created[0]
		d.last = d.created[0]
	}
	return idx - 3
}

func (d *delaunay) alloc(t Triangle) int {
	if n := len(d.free); n > 0 {
		s := d.free[n-1]
		d.free = d.free[:n-1]
		d.tris[s] = t
		d.nbr[s] = [3]int{-1, -1, -1}
		d.alive[s] = true
		return s
	}
	d.tris = append(d.tris, t)
	d.nbr = append(d.nbr, [3]int{-1, -1, -1})
	d.alive = append(d.alive, true)
	d.mark = append(d.mark, false)
	return len(d.tris) - 1
}

// hasEdge reports whether real vertices a and b are joined by a triangle edge.
// It turns around a's fan, which is closed because the super triangle
// encloses every real vertex.
func (d *delaunay) hasEdge(a, b int) bool {
	a, b = a+3, b+3
	start := d.vtri[a]
	if start < 0 || !d.alive[start] {
		return false
	}
	t := start
	for step := 0; step <= len(d.tris); step++ {
		tri := d.tris[t]
		k := 0
		for tri[k] != a {
			k++
		}
		if tri[(k+1)%3] == b || tri[(k+2)%3] == b {
			return true
		}
		t = d.nbr[t][k]
		if t < 0 || t == start {
			return false
		}
	}
	return false
}

// inCircumcircle is the incircle determinant test for a counter-clockwise triangle.
func (d *delaunay) inCircumcircle(t Triangle, p geometry.Point2D) bool {
	a, b, c := d.pts[t[0]], d.pts[t[1]], d.pts[t[2]]
	adx, ady := a.X-p.X, a.Y-p.Y
	bdx, bdy := b.X-p.X, b.Y-p.Y
	cdx, cdy := c.X-p.X, c.Y-p.Y
	ad := adx*adx + ady*ady
	bd := bdx*bdx + bdy*bdy
	cd := cdx*cdx + cdy*cdy
	det := adx*(bdy*cd-bd*cdy) - ady*(bdx*cd-bd*cdx) + ad*(bdx*cdy-bdy*cdx)
	return det > 0
}

// isReal reports whether triangle slot s is live and free of super vertices.
func (d *delaunay) isReal(s int) bool {
	t := d.tris[s]
	return d.alive[s] && t[0] >= 3 && t[1] >= 3 && t[2] >= 3
}

// vertex returns real vertex i.
func (d *delaunay) vertex(i int) geometry.Point2D {
	return d.pts[i+3]
}

// eachTriangle calls fn for every live triangle without super vertices, with
// real vertex indices.
func (d *delaunay) eachTriangle(fn func(t Triangle)) {
	for s, t := range d.tris {
		if !d.isReal(s) {
			continue
		}
		fn(Triangle{t[0] - 3, t[1] - 3, t[2] - 3})
	}
}

// vertices returns a copy of the real vertices.
func (d *delaunay) vertices() []geometry.Point2D {
	out := make([]geometry.Point2D, len(d.pts)-3)
	copy(out, d.pts[3:])
	return out
}
