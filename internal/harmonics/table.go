// Package harmonics holds mixer spur attenuation tables.
//
// A Table maps a harmonic order pair (|m|, |n|) to the level of the
// m·RF + n·LO product in dB below the carrier. Rows are RF harmonic orders
// and columns are LO harmonic orders, both starting at 0. Row 0 holds the
// LO-only terms and column 0 the RF-only terms.
//
// Tables are immutable once built. A Store owns the single active table and
// replaces it wholesale.
package harmonics

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedTable is wrapped by every error that rejects table content.
var ErrMalformedTable = errors.New("malformed harmonics table")

// DefaultSource names the built-in table.
const DefaultSource = "Default (MCL ASK-1+)"

// defaultRows are the published spur levels of a Mini-Circuits ASK-1+ with
// RF at -14 dBm and LO at +7 dBm. Levels are -dBc.
var defaultRows = [][]float64{
	{99, 17, 9, 14, 34, 19, 29, 27, 36, 34, 45},
	{19, 0, 30, 11, 29, 25, 38, 36, 43, 43, 51},
	{57, 60, 59, 64, 55, 56, 61, 59, 68, 62, 60},
	{62, 69, 65, 62, 69, 59, 70, 70, 70, 70, 70},
	{70, 70, 70, 70, 70, 70, 70, 70, 70, 70, 70},
	{70, 70, 70, 70, 70, 70, 70, 70, 70, 70, 70},
	{70, 70, 70, 70, 70, 70, 70, 70, 70, 70, 70},
	{70, 70, 70, 70, 70, 70, 70, 70, 70, 70, 70},
	{70, 70, 70, 70, 70, 70, 70, 70, 70, 70, 70},
	{70, 70, 70, 70, 70, 70, 70, 70, 70, 70, 70},
	{70, 70, 70, 70, 70, 70, 70, 70, 70, 70, 70},
}

// Table is a square matrix of attenuation levels indexed by harmonic order.
type Table struct {
	rows [][]float64
}

// New copies rows into a Table. The rows must form a non-empty square
// matrix of non-negative values.
func New(rows [][]float64) (*Table, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no rows", ErrMalformedTable)
	}
	size := len(rows)
	cp := make([][]float64, size)
	for r, row := range rows {
		if len(row) != size {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrMalformedTable, r, len(row), size)
		}
		for c, v := range row {
			if v < 0 {
				return nil, fmt.Errorf("%w: negative level %g at row %d column %d", ErrMalformedTable, v, r, c)
			}
		}
		cp[r] = append([]float64(nil), row...)
	}
	return &Table{rows: cp}, nil
}

// Default returns the built-in ASK-1+ table.
func Default() *Table {
	t, err := New(defaultRows)
	if err != nil {
		panic(err)
	}
	return t
}

// Get returns the attenuation of the |m|·RF x |n|·LO product.
// Indexing outside the table is a programming error and panics; callers
// bound their orders with MaxOrder first.
func (t *Table) Get(orderRF, orderLO int) float64 {
	if orderRF < 0 || orderLO < 0 || orderRF >= len(t.rows) || orderLO >= len(t.rows) {
		panic(fmt.Sprintf("harmonics: order (%d, %d) outside %dx%d table", orderRF, orderLO, len(t.rows), len(t.rows)))
	}
	return t.rows[orderRF][orderLO]
}

// Size returns the number of rows (and columns).
func (t *Table) Size() int {
	return len(t.rows)
}

// MaxOrder is the highest harmonic order the table covers on each axis.
func (t *Table) MaxOrder() int {
	return len(t.rows) - 1
}

// Covers reports whether every pair with |m|+|n| <= maxHarm can be looked up.
func (t *Table) Covers(maxHarm int) bool {
	return maxHarm <= t.MaxOrder()
}

// Rows returns a copy of the table contents.
func (t *Table) Rows() [][]float64 {
	out := make([][]float64, len(t.rows))
	for i, row := range t.rows {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

// Equal reports whether two tables hold the same levels.
func (t *Table) Equal(o *Table) bool {
	if t == nil || o == nil {
		return t == o
	}
	if len(t.rows) != len(o.rows) {
		return false
	}
	for r := range t.rows {
		for c := range t.rows[r] {
			if t.rows[r][c] != o.rows[r][c] {
				return false
			}
		}
	}
	return true
}

// CSV renders the table in the same comma-separated form Parse accepts.
func (t *Table) CSV() string {
	var b strings.Builder
	for _, row := range t.rows {
		for c, v := range row {
			if c > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
		}
		b.WriteByte('\n')
	}
	return b.String()
}
