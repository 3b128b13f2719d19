package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/bcaldwell/ynabsheets/pkg/apierr"
	"github.com/bcaldwell/ynabsheets/pkg/sheets"

	goauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const valueInputOption = "USER_ENTERED"

// Worksheet is one tab of a Google spreadsheet.
type Worksheet struct {
	svc           *gsheet.Service
	spreadsheetID string
	title         string
	sheetID       int64
}

// Ensure interface conformance
var _ sheets.Worksheet = (*Worksheet)(nil)

// NewService creates a Sheets service authorised with the service account
// key in credentialsFile.
func NewService(ctx context.Context, credentialsFile string) (*gsheet.Service, error) {
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil, apierr.WithKind(fmt.Errorf("read service account file: %w", err), apierr.ErrConfigMissing)
	}
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}

	jwtConfig, err := goauth.JWTConfigFromJSON(credentialsJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, apierr.WithKind(fmt.Errorf("parse service account file %s: %w", credentialsFile, err), apierr.ErrAuth)
	}

	slog.DebugContext(ctx, "creating sheets service", "client_email", jwtConfig.Email, "scope", gsheet.SpreadsheetsScope)

	svc, err := gsheet.NewService(ctx, goption.WithHTTPClient(jwtConfig.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return svc, nil
}

// Open selects the tab named title in the spreadsheet.
func Open(ctx context.Context, svc *gsheet.Service, spreadsheetID, title string) (*Worksheet, error) {
	if svc == nil {
		return nil, errors.New("sheets service not initialized")
	}

	spreadsheet, err := svc.Spreadsheets.Get(spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return nil, apierr.Classify(fmt.Errorf("open spreadsheet %s: %w", spreadsheetID, err))
	}

	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties != nil && sheet.Properties.Title == title {
			return &Worksheet{
				svc:           svc,
				spreadsheetID: spreadsheetID,
				title:         title,
				sheetID:       sheet.Properties.SheetId,
			}, nil
		}
	}

	return nil, fmt.Errorf("worksheet %q in spreadsheet %s: %w", title, spreadsheetID, apierr.ErrNotFound)
}

func (w *Worksheet) FindAll(ctx context.Context, text string) ([]sheets.Cell, error) {
	rng := quoteTitle(w.title)
	resp, err := w.svc.Spreadsheets.Values.Get(w.spreadsheetID, rng).
		ValueRenderOption("FORMATTED_VALUE").Context(ctx).Do()
	if err != nil {
		return nil, apierr.Classify(fmt.Errorf("read %s: %w", rng, err))
	}

	var cells []sheets.Cell
	for r, row := range resp.Values {
		for c, v := range row {
			if fmt.Sprint(v) == text {
				cells = append(cells, sheets.Cell{
					CellRef: sheets.CellRef{Row: r + 1, Col: c + 1},
					Value:   text,
				})
			}
		}
	}

	return cells, nil
}

func (w *Worksheet) DeleteRow(ctx context.Context, row int) error {
	if row < 1 {
		return fmt.Errorf("invalid row %d", row)
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:    w.sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(row - 1),
					EndIndex:   int64(row),
					// the first tab has id 0 and the first row index 0
					ForceSendFields: []string{"SheetId", "StartIndex"},
				},
			},
		}},
	}

	_, err := w.svc.Spreadsheets.BatchUpdate(w.spreadsheetID, req).Context(ctx).Do()
	if err != nil {
		return apierr.Classify(fmt.Errorf("delete row %d of %s: %w", row, w.title, err))
	}
	return nil
}

func (w *Worksheet) ColValues(ctx context.Context, col int) ([]string, error) {
	letter := sheets.ColumnLetter(col)
	rng := fmt.Sprintf("%s!%s:%s", quoteTitle(w.title), letter, letter)

	resp, err := w.svc.Spreadsheets.Values.Get(w.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, apierr.Classify(fmt.Errorf("read %s: %w", rng, err))
	}

	values := make([]string, 0, len(resp.Values))
	for _, row := range resp.Values {
		if len(row) == 0 {
			values = append(values, "")
			continue
		}
		values = append(values, fmt.Sprint(row[0]))
	}
	return values, nil
}

func (w *Worksheet) UpdateValues(ctx context.Context, start sheets.CellRef, values [][]interface{}) error {
	rng := w.a1(start)
	vr := &gsheet.ValueRange{Values: values}

	_, err := w.svc.Spreadsheets.Values.Update(w.spreadsheetID, rng, vr).
		ValueInputOption(valueInputOption).Context(ctx).Do()
	if err != nil {
		return apierr.Classify(fmt.Errorf("update %s: %w", rng, err))
	}
	return nil
}

func (w *Worksheet) Formula(ctx context.Context, ref sheets.CellRef) (string, error) {
	rng := w.a1(ref)
	resp, err := w.svc.Spreadsheets.Values.Get(w.spreadsheetID, rng).
		ValueRenderOption("FORMULA").Context(ctx).Do()
	if err != nil {
		return "", apierr.Classify(fmt.Errorf("read %s: %w", rng, err))
	}

	if len(resp.Values) == 0 || len(resp.Values[0]) == 0 {
		return "", nil
	}
	return fmt.Sprint(resp.Values[0][0]), nil
}

func (w *Worksheet) UpdateCells(ctx context.Context, cells []sheets.Cell) error {
	if len(cells) == 0 {
		return nil
	}

	data := make([]*gsheet.ValueRange, 0, len(cells))
	for _, c := range cells {
		data = append(data, &gsheet.ValueRange{
			Range:  w.a1(c.CellRef),
			Values: [][]interface{}{{c.Value}},
		})
	}

	req := &gsheet.BatchUpdateValuesRequest{
		ValueInputOption: valueInputOption,
		Data:             data,
	}

	_, err := w.svc.Spreadsheets.Values.BatchUpdate(w.spreadsheetID, req).Context(ctx).Do()
	if err != nil {
		return apierr.Classify(fmt.Errorf("batch update %d cells in %s: %w", len(cells), w.title, err))
	}
	return nil
}

func (w *Worksheet) a1(ref sheets.CellRef) string {
	return fmt.Sprintf("%s!%s", quoteTitle(w.title), ref)
}

// quoteTitle quotes a sheet title for use in A1 notation.
func quoteTitle(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}
