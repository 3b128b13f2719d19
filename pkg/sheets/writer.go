package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"k8s.io/klog"
)

// FormulaTemplate locates the formula copied into every new month row and the
// lookup column its reference points at.
type FormulaTemplate struct {
	Cell         CellRef
	LookupColumn int
}

// DefaultFormulaTemplate copies D2, whose formula looks up B2.
var DefaultFormulaTemplate = FormulaTemplate{
	Cell:         CellRef{Row: 2, Col: 4},
	LookupColumn: 2,
}

// lookupCell is the reference the template formula uses on its own row.
func (t FormulaTemplate) lookupCell() CellRef {
	return CellRef{Row: t.Cell.Row, Col: t.LookupColumn}
}

// ForRow returns the template formula rewritten for row.
func (t FormulaTemplate) ForRow(formula string, row int) Cell {
	return Cell{
		CellRef: CellRef{Row: row, Col: t.Cell.Col},
		Value:   RewriteReference(formula, t.lookupCell(), CellRef{Row: row, Col: t.LookupColumn}),
	}
}

// Steps of ReplaceMonth, in the order they complete.
const (
	StepNone    = ""
	StepDelete  = "delete"
	StepInsert  = "insert"
	StepFormula = "formula"
)

type ReplaceResult struct {
	RowsDeleted     int
	RowsWritten     int
	FormulasWritten int
	FirstRow        int
	// LastStep is the last step that finished, also set when a later one failed.
	LastStep string
}

// Writer replaces a month's rows in a worksheet.
type Writer struct {
	ws       Worksheet
	template FormulaTemplate
}

func NewWriter(ws Worksheet, template FormulaTemplate) *Writer {
	return &Writer{ws: ws, template: template}
}

// ReplaceMonth deletes the month's existing rows, appends rows at the first
// free row and copies the template formula into every month row. Any error
// stops the sequence; rows already deleted are not restored.
func (w *Writer) ReplaceMonth(ctx context.Context, month string, rows [][]interface{}) (ReplaceResult, error) {
	result := ReplaceResult{LastStep: StepNone}

	deleted, err := w.DeleteMonth(ctx, month)
	if err != nil {
		return result, err
	}
	result.RowsDeleted = deleted
	result.LastStep = StepDelete

	start, err := w.InsertRows(ctx, rows)
	if err != nil {
		return result, err
	}
	result.RowsWritten = len(rows)
	result.FirstRow = start.Row
	result.LastStep = StepInsert

	formulas, err := w.CopyFormula(ctx, month)
	if err != nil {
		return result, err
	}
	result.FormulasWritten = formulas
	result.LastStep = StepFormula

	return result, nil
}

// DeleteMonth deletes every row holding a cell equal to month. Rows are
// deleted bottom up so pending row numbers stay valid.
func (w *Writer) DeleteMonth(ctx context.Context, month string) (int, error) {
	cells, err := w.ws.FindAll(ctx, month)
	if err != nil {
		return 0, fmt.Errorf("failed to find rows for %s: %w", month, err)
	}

	rows := distinctRows(cells)
	slices.Reverse(rows)

	for i, row := range rows {
		if err := w.ws.DeleteRow(ctx, row); err != nil {
			return i, fmt.Errorf("failed to delete row %d for %s: %w", row, month, err)
		}
	}

	klog.Infof("Deleted %d existing rows for %s\n", len(rows), month)
	return len(rows), nil
}

// NextAvailableRow is the number of non-blank cells in column A plus one.
// A blank cell between data rows makes this point inside the data; that is
// logged but not corrected.
func (w *Writer) NextAvailableRow(ctx context.Context) (int, error) {
	values, err := w.ws.ColValues(ctx, 1)
	if err != nil {
		return 0, fmt.Errorf("failed to read first column: %w", err)
	}

	filled := 0
	firstBlank := 0
	for i, v := range values {
		if v == "" {
			if firstBlank == 0 {
				firstBlank = i + 1
			}
			continue
		}
		filled++
	}

	if firstBlank != 0 {
		slog.Warn("blank row above data in first column, next row may overwrite existing data", "blankRow", firstBlank, "nextRow", filled+1)
	}

	return filled + 1, nil
}

// InsertRows writes rows as one block starting at the next available row.
func (w *Writer) InsertRows(ctx context.Context, rows [][]interface{}) (CellRef, error) {
	if len(rows) == 0 {
		klog.Infof("No rows to insert\n")
		return CellRef{}, nil
	}

	next, err := w.NextAvailableRow(ctx)
	if err != nil {
		return CellRef{}, err
	}

	start := CellRef{Row: next, Col: 1}
	if err := w.ws.UpdateValues(ctx, start, rows); err != nil {
		return CellRef{}, fmt.Errorf("failed to write %d rows at %s: %w", len(rows), start, err)
	}

	klog.Infof("Wrote %d rows starting at %s\n", len(rows), start)
	return start, nil
}

// CopyFormula writes the template formula, relativised per row, into every
// row that now holds month. All formulas go out in one update.
func (w *Writer) CopyFormula(ctx context.Context, month string) (int, error) {
	formula, err := w.ws.Formula(ctx, w.template.Cell)
	if err != nil {
		return 0, fmt.Errorf("failed to read template formula %s: %w", w.template.Cell, err)
	}
	if formula == "" {
		slog.Warn("template formula cell is empty, skipping formula copy", "cell", w.template.Cell.String())
		return 0, nil
	}

	cells, err := w.ws.FindAll(ctx, month)
	if err != nil {
		return 0, fmt.Errorf("failed to find rows for %s: %w", month, err)
	}

	rows := distinctRows(cells)
	if len(rows) == 0 {
		return 0, nil
	}

	formulas := make([]Cell, 0, len(rows))
	for _, row := range rows {
		formulas = append(formulas, w.template.ForRow(formula, row))
	}

	if err := w.ws.UpdateCells(ctx, formulas); err != nil {
		return 0, fmt.Errorf("failed to write %d formulas: %w", len(formulas), err)
	}

	klog.Infof("Copied formula from %s into %d rows\n", w.template.Cell, len(formulas))
	return len(formulas), nil
}

// distinctRows returns the rows of cells, ascending and without duplicates.
func distinctRows(cells []Cell) []int {
	rows := make([]int, 0, len(cells))
	for _, c := range cells {
		rows = append(rows, c.Row)
	}
	slices.Sort(rows)
	return slices.Compact(rows)
}
