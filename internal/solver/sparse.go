package solver

import (
	"fmt"
	"sort"

	"github.com/james-bowman/sparse"
)

// CSR is a compressed sparse row matrix whose storage is allocated once for a
// known per-row upper bound. Rows are filled in order with SetRow; duplicate
// columns within a row are summed, so a row may use fewer than its slots.
// Matrix exposes the filled rows as a sparse.CSR sharing the same arrays.
type CSR struct {
	rows, cols int
	rowPtr     []int
	colInd     []int
	values     []float64
	filled     int

	view *sparse.CSR
}

// NewCSR allocates a rows x cols matrix with room for slots entries per row.
func NewCSR(rows, cols, slots int) *CSR {
	return &CSR{
		rows:   rows,
		cols:   cols,
		rowPtr: make([]int, rows+1),
		colInd: make([]int, 0, rows*slots),
		values: make([]float64, 0, rows*slots),
	}
}

// Rows returns the number of rows.
func (m *CSR) Rows() int { return m.rows }

// Cols returns the number of columns.
func (m *CSR) Cols() int { return m.cols }

// NNZ returns the number of stored entries.
func (m *CSR) NNZ() int { return len(m.values) }

// SetRow writes the next row. cols and vals are reordered in place.
func (m *CSR) SetRow(row int, cols []int, vals []float64) {
	if row != m.filled {
		panic(fmt.Sprintf("solver: CSR rows must be set in order, got %d want %d", row, m.filled))
	}
	sort.Stable(entries{cols, vals})
	for i, c := range cols {
		if c < 0 || c >= m.cols {
			panic(fmt.Sprintf("solver: column %d out of range [0,%d)", c, m.cols))
		}
		if i > 0 && c == cols[i-1] {
			m.values[len(m.values)-1] += vals[i]
			continue
		}
		if len(m.colInd) == cap(m.colInd) {
			panic("solver: CSR row exceeds its preallocated slots")
		}
		m.colInd = append(m.colInd, c)
		m.values = append(m.values, vals[i])
	}
	m.filled++
	m.rowPtr[m.filled] = len(m.values)
	m.view = nil
}

// Row returns the column indices and values of row i. The slices alias the matrix.
func (m *CSR) Row(i int) ([]int, []float64) {
	if i >= m.filled {
		return nil, nil
	}
	lo, hi := m.rowPtr[i], m.rowPtr[i+1]
	return m.colInd[lo:hi], m.values[lo:hi]
}

// Matrix returns the matrix as a sparse.CSR, which also satisfies mat.Matrix.
// Rows not yet set are empty.
func (m *CSR) Matrix() *sparse.CSR {
	if m.view == nil {
		for k := m.filled + 1; k <= m.rows; k++ {
			m.rowPtr[k] = len(m.values)
		}
		m.view = sparse.NewCSR(m.rows, m.cols, m.rowPtr, m.colInd, m.values)
	}
	return m.view
}

// At returns element (i, j).
func (m *CSR) At(i, j int) float64 {
	return m.Matrix().At(i, j)
}

// MulVec writes m·x into dst, which must have Rows elements.
func (m *CSR) MulVec(dst, x []float64) {
	for i := range dst {
		dst[i] = 0
	}
	m.Matrix().MulVecTo(dst, false, x)
}

type entries struct {
	cols []int
	vals []float64
}

func (e entries) Len() int           { return len(e.cols) }
func (e entries) Less(i, j int) bool { return e.cols[i] < e.cols[j] }
func (e entries) Swap(i, j int) {
	e.cols[i], e.cols[j] = e.cols[j], e.cols[i]
	e.vals[i], e.vals[j] = e.vals[j], e.vals[i]
}
