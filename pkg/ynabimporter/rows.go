package ynabimporter

import (
	"github.com/davidsteinsland/ynab-go/ynab"
)

// ynab stores money in milliunits
const budgetedMultiplier = 1000.0

// CategoryRow is one line written to the sheet: month, category, budgeted amount.
type CategoryRow struct {
	Month    string
	Category string
	Budgeted float64
}

// Values renders the row in sheet column order.
func (r CategoryRow) Values() []interface{} {
	return []interface{}{r.Month, r.Category, r.Budgeted}
}

// ExtractCategoryRows flattens a month detail into one row per category, in
// the order the API returned them. Hidden and zero budgeted categories are kept.
func ExtractCategoryRows(month string, detail ynab.MonthDetail) []CategoryRow {
	rows := make([]CategoryRow, 0, len(detail.Categories))

	for _, category := range detail.Categories {
		rows = append(rows, CategoryRow{
			Month:    month,
			Category: category.Name,
			Budgeted: float64(category.Budgeted) / budgetedMultiplier,
		})
	}

	return rows
}

// SheetValues converts rows into the shape the sheets API expects.
func SheetValues(rows []CategoryRow) [][]interface{} {
	values := make([][]interface{}, 0, len(rows))
	for _, row := range rows {
		values = append(values, row.Values())
	}
	return values
}
