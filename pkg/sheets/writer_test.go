package sheets_test

import (
	"context"
	"errors"
	"testing"

	"github.com/bcaldwell/ynabsheets/pkg/sheets"
	"github.com/bcaldwell/ynabsheets/pkg/sheets/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lookupFormula = "=VLOOKUP(B2,Buckets!A:B,2,FALSE)"

func newSheet() *memory.Sheet {
	return memory.New([][]string{
		{"Month", "Category", "Budgeted", "Bucket"},
		{"2018-11-01", "Groceries", "100", lookupFormula},
		{"2018-11-01", "Rent", "2000"},
		{"2018-12-01", "Groceries", "90"},
		{"2018-11-01", "Fun", "50"},
		{"2018-12-01", "Rent", "1900"},
	})
}

func newRows() [][]interface{} {
	return [][]interface{}{
		{"2018-12-01", "Groceries", 150.0},
		{"2018-12-01", "Rent", 2000.0},
	}
}

func countMonth(rows [][]string, month string) int {
	n := 0
	for _, row := range rows {
		if len(row) > 0 && row[0] == month {
			n++
		}
	}
	return n
}

func TestDeleteMonthDescendingOrder(t *testing.T) {
	sheet := newSheet()
	w := sheets.NewWriter(sheet, sheets.DefaultFormulaTemplate)

	deleted, err := w.DeleteMonth(context.Background(), "2018-12-01")
	require.NoError(t, err)

	assert.Equal(t, 2, deleted)
	assert.Equal(t, []int{6, 4}, sheet.Deleted)
	assert.Equal(t, [][]string{
		{"Month", "Category", "Budgeted", "Bucket"},
		{"2018-11-01", "Groceries", "100", ""},
		{"2018-11-01", "Rent", "2000"},
		{"2018-11-01", "Fun", "50"},
	}, sheet.Rows())
	assert.Equal(t, lookupFormula, sheet.CellFormula(sheets.CellRef{Row: 2, Col: 4}))
}

func TestDeleteMonthSameRowMatchedTwice(t *testing.T) {
	sheet := memory.New([][]string{
		{"Month"},
		{"2018-12-01", "2018-12-01"},
		{"2018-11-01"},
	})
	w := sheets.NewWriter(sheet, sheets.DefaultFormulaTemplate)

	deleted, err := w.DeleteMonth(context.Background(), "2018-12-01")
	require.NoError(t, err)

	assert.Equal(t, 1, deleted)
	assert.Equal(t, [][]string{{"Month"}, {"2018-11-01"}}, sheet.Rows())
}

func TestDeleteMonthNoMatches(t *testing.T) {
	sheet := newSheet()
	w := sheets.NewWriter(sheet, sheets.DefaultFormulaTemplate)

	deleted, err := w.DeleteMonth(context.Background(), "2019-01-01")
	require.NoError(t, err)
	assert.Equal(t, 0, deleted)
	assert.Equal(t, 0, sheet.Calls["DeleteRow"])
}

func TestNextAvailableRow(t *testing.T) {
	sheet := memory.New([][]string{{"Month"}, {"2018-11-01"}, {"2018-11-01"}})
	w := sheets.NewWriter(sheet, sheets.DefaultFormulaTemplate)

	row, err := w.NextAvailableRow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, row)
}

func TestNextAvailableRowCountsNonBlank(t *testing.T) {
	// a blank row above data makes the count land inside the data
	sheet := memory.New([][]string{{"Month"}, {""}, {"2018-11-01"}})
	w := sheets.NewWriter(sheet, sheets.DefaultFormulaTemplate)

	row, err := w.NextAvailableRow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, row)
}

func TestInsertRows(t *testing.T) {
	sheet := memory.New([][]string{{"Month"}, {"2018-11-01", "Rent", "2000"}})
	w := sheets.NewWriter(sheet, sheets.DefaultFormulaTemplate)

	start, err := w.InsertRows(context.Background(), newRows())
	require.NoError(t, err)

	assert.Equal(t, sheets.CellRef{Row: 3, Col: 1}, start)
	assert.Equal(t, 1, sheet.Calls["UpdateValues"])
	assert.Equal(t, []string{"2018-12-01", "Groceries", "150"}, sheet.Rows()[2])
	assert.Equal(t, []string{"2018-12-01", "Rent", "2000"}, sheet.Rows()[3])
}

func TestInsertRowsEmpty(t *testing.T) {
	sheet := newSheet()
	w := sheets.NewWriter(sheet, sheets.DefaultFormulaTemplate)

	_, err := w.InsertRows(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, sheet.Calls["UpdateValues"])
}

func TestCopyFormula(t *testing.T) {
	sheet := memory.New([][]string{
		{"Month", "Category", "Budgeted", "Bucket"},
		{"2018-11-01", "Groceries", "100", lookupFormula},
		{"2018-11-01", "Rent", "2000"},
		{"2018-11-01", "Fun", "50"},
		{"2018-11-01", "Gas", "60"},
		{"2018-11-01", "Gifts", "10"},
		{"2018-12-01", "Groceries", "150"},
	})
	w := sheets.NewWriter(sheet, sheets.DefaultFormulaTemplate)

	n, err := w.CopyFormula(context.Background(), "2018-12-01")
	require.NoError(t, err)

	assert.Equal(t, 1, n)
	assert.Equal(t, "=VLOOKUP(B7,Buckets!A:B,2,FALSE)", sheet.CellFormula(sheets.CellRef{Row: 7, Col: 4}))
	assert.Equal(t, lookupFormula, sheet.CellFormula(sheets.CellRef{Row: 2, Col: 4}))
}

func TestCopyFormulaBatched(t *testing.T) {
	sheet := newSheet()
	w := sheets.NewWriter(sheet, sheets.DefaultFormulaTemplate)

	n, err := w.CopyFormula(context.Background(), "2018-11-01")
	require.NoError(t, err)

	assert.Equal(t, 3, n)
	assert.Equal(t, 1, sheet.Calls["UpdateCells"])
	assert.Equal(t, "=VLOOKUP(B3,Buckets!A:B,2,FALSE)", sheet.CellFormula(sheets.CellRef{Row: 3, Col: 4}))
	assert.Equal(t, "=VLOOKUP(B5,Buckets!A:B,2,FALSE)", sheet.CellFormula(sheets.CellRef{Row: 5, Col: 4}))
}

func TestCopyFormulaEmptyTemplate(t *testing.T) {
	sheet := memory.New([][]string{{"Month"}, {"2018-12-01"}})
	w := sheets.NewWriter(sheet, sheets.DefaultFormulaTemplate)

	n, err := w.CopyFormula(context.Background(), "2018-12-01")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 0, sheet.Calls["UpdateCells"])
}

func TestReplaceMonthIsIdempotent(t *testing.T) {
	sheet := newSheet()
	w := sheets.NewWriter(sheet, sheets.DefaultFormulaTemplate)
	ctx := context.Background()

	first, err := w.ReplaceMonth(ctx, "2018-12-01", newRows())
	require.NoError(t, err)
	assert.Equal(t, 2, first.RowsDeleted)
	assert.Equal(t, 2, first.RowsWritten)
	assert.Equal(t, 2, first.FormulasWritten)
	assert.Equal(t, 5, first.FirstRow)
	assert.Equal(t, sheets.StepFormula, first.LastStep)

	afterFirst := sheet.Rows()

	second, err := w.ReplaceMonth(ctx, "2018-12-01", newRows())
	require.NoError(t, err)
	assert.Equal(t, 2, second.RowsDeleted)
	assert.Equal(t, 5, second.FirstRow)

	assert.Equal(t, afterFirst, sheet.Rows())
	assert.Equal(t, 2, countMonth(sheet.Rows(), "2018-12-01"))
	assert.Equal(t, 3, countMonth(sheet.Rows(), "2018-11-01"))
	assert.Equal(t, "=VLOOKUP(B5,Buckets!A:B,2,FALSE)", sheet.CellFormula(sheets.CellRef{Row: 5, Col: 4}))
	assert.Equal(t, "=VLOOKUP(B6,Buckets!A:B,2,FALSE)", sheet.CellFormula(sheets.CellRef{Row: 6, Col: 4}))
}

type failingValues struct {
	*memory.Sheet
}

func (f failingValues) UpdateValues(context.Context, sheets.CellRef, [][]interface{}) error {
	return errors.New("quota exceeded")
}

func TestReplaceMonthStopsOnError(t *testing.T) {
	sheet := newSheet()
	w := sheets.NewWriter(failingValues{sheet}, sheets.DefaultFormulaTemplate)

	result, err := w.ReplaceMonth(context.Background(), "2018-12-01", newRows())
	require.Error(t, err)
	assert.ErrorContains(t, err, "quota exceeded")

	assert.Equal(t, sheets.StepDelete, result.LastStep)
	assert.Equal(t, 2, result.RowsDeleted)
	assert.Equal(t, 0, countMonth(sheet.Rows(), "2018-12-01"))
	assert.Equal(t, 0, sheet.Calls["UpdateCells"])
}
