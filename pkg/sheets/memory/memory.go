package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/bcaldwell/ynabsheets/pkg/sheets"
)

type cell struct {
	value   string
	formula string
}

// Sheet is an in-memory worksheet. Values starting with "=" are kept as
// formulas and display as blank, since nothing here evaluates them.
type Sheet struct {
	mu   sync.Mutex
	grid [][]cell

	// Deleted records every row passed to DeleteRow, in call order.
	Deleted []int
	// Calls counts calls per Worksheet method.
	Calls map[string]int
}

var _ sheets.Worksheet = (*Sheet)(nil)

// New builds a sheet from rows of typed-in values.
func New(rows [][]string) *Sheet {
	s := &Sheet{Calls: map[string]int{}}
	for r, row := range rows {
		for c, v := range row {
			s.set(sheets.CellRef{Row: r + 1, Col: c + 1}, v)
		}
	}
	return s
}

func (s *Sheet) FindAll(_ context.Context, text string) ([]sheets.Cell, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls["FindAll"]++

	var out []sheets.Cell
	for r, row := range s.grid {
		for c, cl := range row {
			if cl.formula == "" && cl.value == text {
				out = append(out, sheets.Cell{CellRef: sheets.CellRef{Row: r + 1, Col: c + 1}, Value: cl.value})
			}
		}
	}
	return out, nil
}

func (s *Sheet) DeleteRow(_ context.Context, row int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls["DeleteRow"]++

	if row < 1 {
		return fmt.Errorf("invalid row %d", row)
	}
	s.Deleted = append(s.Deleted, row)
	if row > len(s.grid) {
		return nil
	}
	s.grid = append(s.grid[:row-1], s.grid[row:]...)
	return nil
}

func (s *Sheet) ColValues(_ context.Context, col int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls["ColValues"]++

	var values []string
	last := 0
	for r, row := range s.grid {
		v := ""
		if col-1 < len(row) {
			v = row[col-1].value
		}
		values = append(values, v)
		if v != "" {
			last = r + 1
		}
	}
	return values[:last], nil
}

func (s *Sheet) UpdateValues(_ context.Context, start sheets.CellRef, values [][]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls["UpdateValues"]++

	for i, row := range values {
		for j, v := range row {
			s.set(sheets.CellRef{Row: start.Row + i, Col: start.Col + j}, fmt.Sprint(v))
		}
	}
	return nil
}

func (s *Sheet) Formula(_ context.Context, ref sheets.CellRef) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls["Formula"]++

	cl := s.get(ref)
	if cl.formula != "" {
		return cl.formula, nil
	}
	return cl.value, nil
}

func (s *Sheet) UpdateCells(_ context.Context, cells []sheets.Cell) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls["UpdateCells"]++

	for _, c := range cells {
		s.set(c.CellRef, c.Value)
	}
	return nil
}

// Rows returns the displayed values of every row.
func (s *Sheet) Rows() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([][]string, len(s.grid))
	for r, row := range s.grid {
		out[r] = make([]string, len(row))
		for c, cl := range row {
			out[r][c] = cl.value
		}
	}
	return out
}

// CellFormula returns the formula stored at ref, or "".
func (s *Sheet) CellFormula(ref sheets.CellRef) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(ref).formula
}

func (s *Sheet) get(ref sheets.CellRef) cell {
	if ref.Row < 1 || ref.Row > len(s.grid) {
		return cell{}
	}
	row := s.grid[ref.Row-1]
	if ref.Col < 1 || ref.Col > len(row) {
		return cell{}
	}
	return row[ref.Col-1]
}

func (s *Sheet) set(ref sheets.CellRef, v string) {
	for len(s.grid) < ref.Row {
		s.grid = append(s.grid, nil)
	}
	row := s.grid[ref.Row-1]
	for len(row) < ref.Col {
		row = append(row, cell{})
	}

	if strings.HasPrefix(v, "=") {
		row[ref.Col-1] = cell{formula: v}
	} else {
		row[ref.Col-1] = cell{value: v}
	}
	s.grid[ref.Row-1] = row
}
