package sheets

import "context"

// Worksheet is a single tab of a spreadsheet. Rows and columns are 1-based.
type Worksheet interface {
	// FindAll returns every cell whose displayed text equals text, in
	// row-major order. The result is a snapshot; later mutations do not
	// update it.
	FindAll(ctx context.Context, text string) ([]Cell, error)

	// DeleteRow removes a row, shifting the rows below it up by one.
	DeleteRow(ctx context.Context, row int) error

	// ColValues returns the displayed values of a column from row 1 down to
	// the last non-empty cell. Blank cells above that are returned as "".
	ColValues(ctx context.Context, col int) ([]string, error)

	// UpdateValues writes a block of rows starting at start, parsing each
	// value as if typed by a user.
	UpdateValues(ctx context.Context, start CellRef, values [][]interface{}) error

	// Formula returns the formula text of a cell rather than its value.
	Formula(ctx context.Context, ref CellRef) (string, error)

	// UpdateCells writes all cells in a single call, parsing each value as
	// if typed by a user.
	UpdateCells(ctx context.Context, cells []Cell) error
}

// Cell is a snapshot of one cell's position and text.
type Cell struct {
	CellRef
	Value string
}
