package mesh

import (
	"math"

	"github.com/charmbracelet/log"

	"meshlens/pkg/lenserr"
)

// SearchOptions bounds the search for the triangle area that yields a target
// vertex count.
type SearchOptions struct {
	MaxBracketSteps  int
	MaxBisections    int
	MaxTargetRetries int
	MaxVertices      int
}

// DefaultSearchOptions returns the standard search budget.
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{
		MaxBracketSteps:  12,
		MaxBisections:    60,
		MaxTargetRetries: 5,
		MaxVertices:      DefaultMaxVertices,
	}
}

type areaSearch struct {
	dom    Domain
	opts   SearchOptions
	logger *log.Logger
	cache  map[float64]*Mesh
}

func (s *areaSearch) mesh(a float64) *Mesh {
	if m, ok := s.cache[a]; ok {
		return m
	}
	m, _ := Triangulate(s.dom, a, s.opts.MaxVertices)
	s.cache[a] = m
	s.logger.Debug("mesh trial", "area", a, "vertices", m.VertexCount())
	return m
}

// better reports whether count c is a better answer for target than count best:
// the largest count not above target wins, otherwise the smallest count.
func better(c, best, target int) bool {
	switch {
	case c <= target && best <= target:
		return c > best
	case c <= target:
		return true
	case best <= target:
		return false
	default:
		return c < best
	}
}

// FindTargetArea searches for the largest triangle area whose triangulation
// has target vertices. It brackets count(a) = target by powers of ten starting
// from the mean area per vertex, then bisects in log space. When the best mesh
// still exceeds the target, the target is lowered and the search repeated.
// An unbracketed search returns the closest mesh with a
// MESH_TARGET_NOT_BRACKETED warning.
func FindTargetArea(dom Domain, target int, opts SearchOptions, logger *log.Logger) (*Mesh, []*lenserr.Error) {
	if logger == nil {
		logger = log.Default()
	}
	if target < 1 {
		target = 1
	}
	s := &areaSearch{dom: dom, opts: opts, logger: logger, cache: make(map[float64]*Mesh)}

	var best *Mesh
	var warnings []*lenserr.Error
	goal := target
	for retry := 0; retry <= opts.MaxTargetRetries && goal >= 1; retry++ {
		m, lo, bracketed := s.search(goal)
		if bracketed && m.VertexCount() != goal {
			// count(a) skips values where equal-area triangles refine together;
			// cut the finer refinement off at the goal instead.
			limit := goal
			if s.opts.MaxVertices > 0 && limit > s.opts.MaxVertices {
				limit = s.opts.MaxVertices
			}
			if cut, _ := Triangulate(s.dom, lo, limit); better(cut.VertexCount(), m.VertexCount(), goal) {
				m = cut
			}
		}
		if best == nil || better(m.VertexCount(), best.VertexCount(), target) {
			best = m
		}
		if !bracketed {
			warnings = append(warnings, lenserr.New(lenserr.CodeTargetNotBracketed,
				"no triangle area brackets %d vertices, using %d", goal, m.VertexCount()))
			break
		}
		if best.VertexCount() <= target {
			break
		}
		goal--
	}
	logger.Debug("mesh search done", "target", target, "vertices", best.VertexCount(), "area", best.MaxArea)
	return best, warnings
}

// search returns the best mesh for goal, the largest area known to give more
// than goal vertices, and whether a bracket was found.
func (s *areaSearch) search(goal int) (*Mesh, float64, bool) {
	a0 := s.dom.Area() / float64(goal)
	m0 := s.mesh(a0)
	best := m0
	if m0.VertexCount() == goal {
		return m0, a0, true
	}

	// lo has too many vertices (or exactly goal), hi too few.
	var lo, hi float64
	bracketed := false
	if m0.VertexCount() > goal {
		lo = a0
		for step := 0; step < s.opts.MaxBracketSteps; step++ {
			a := lo * 10
			m := s.mesh(a)
			if better(m.VertexCount(), best.VertexCount(), goal) {
				best = m
			}
			if m.VertexCount() <= goal {
				hi, bracketed = a, true
				break
			}
			lo = a
		}
	} else {
		hi = a0
		for step := 0; step < s.opts.MaxBracketSteps; step++ {
			a := hi / 10
			m := s.mesh(a)
			if better(m.VertexCount(), best.VertexCount(), goal) {
				best = m
			}
			if m.VertexCount() >= goal {
				lo, bracketed = a, true
				break
			}
			hi = a
		}
	}
	if !bracketed {
		return best, 0, false
	}

	for i := 0; i < s.opts.MaxBisections && best.VertexCount() != goal; i++ {
		if hi/lo < 1+1e-12 {
			break
		}
		mid := math.Sqrt(lo * hi)
		m := s.mesh(mid)
		if better(m.VertexCount(), best.VertexCount(), goal) {
			best = m
		}
		if m.VertexCount() > goal {
			lo = mid
		} else {
			hi = mid
		}
	}
	return best, lo, true
}
