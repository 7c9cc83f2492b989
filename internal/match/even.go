package match

import (
	"math/rand"

	"meshlens/pkg/geometry"
)

// EvenOptions configures spatial evening of matched points.
type EvenOptions struct {
	GridSize int   // cells per side
	Seed     int64 // subsampling seed
}

// DefaultEvenOptions returns the standard 10x10 grid with seed 0.
func DefaultEvenOptions() EvenOptions {
	return EvenOptions{GridSize: 10, Seed: 0}
}

// EvenStats describes what Even did.
type EvenStats struct {
	Input      int
	Output     int
	MinCount   int  // per-cell target count
	EmptyCells int  // cells without any point
	Fallback   bool // empty cells were excluded from the minimum
}

// Even rebalances point density over a GridSize x GridSize grid covering the
// tile, subsampling every cell down to the smallest per-cell count.
//
// Empty cells would force that count to zero, so the minimum is taken over
// occupied cells only and the stats report Fallback. Output order is cell-major
// and deterministic for a fixed seed.
func Even(points []geometry.Point2D, width, height float64, opts EvenOptions) ([]geometry.Point2D, EvenStats) {
	stats := EvenStats{Input: len(points)}
	n := opts.GridSize
	if n < 1 {
		n = 1
	}
	if len(points) == 0 {
		stats.EmptyCells = n * n
		stats.Fallback = true
		return nil, stats
	}

	cells := make([][]int, n*n)
	for i, p := range points {
		cx := cellIndex(p.X, width, n)
		cy := cellIndex(p.Y, height, n)
		cells[cy*n+cx] = append(cells[cy*n+cx], i)
	}

	minCount := -1
	for _, c := range cells {
		if len(c) == 0 {
			stats.EmptyCells++
			continue
		}
		if minCount < 0 || len(c) < minCount {
			minCount = len(c)
		}
	}
	stats.MinCount = minCount
	stats.Fallback = stats.EmptyCells > 0

	rng := rand.New(rand.NewSource(opts.Seed))
	out := make([]geometry.Point2D, 0, minCount*(n*n-stats.EmptyCells))
	for _, c := range cells {
		if len(c) == 0 {
			continue
		}
		if len(c) == minCount {
			for _, idx := range c {
				out = append(out, points[idx])
			}
			continue
		}
		for _, k := range rng.Perm(len(c))[:minCount] {
			out = append(out, points[c[k]])
		}
	}
	stats.Output = len(out)
	return out, stats
}

func cellIndex(v, extent float64, n int) int {
	i := int(v / extent * float64(n))
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
