package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/bcaldwell/ynabsheets/pkg/apierr"
	"github.com/bcaldwell/ynabsheets/pkg/sheets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  map[string][]string
	Body   string
}

type fakeAPI struct {
	mu       sync.Mutex
	requests []recordedRequest
	respond  func(w http.ResponseWriter, r *http.Request)
}

func (f *fakeAPI) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)

		f.mu.Lock()
		f.requests = append(f.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Body:   string(body),
		})
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if f.respond != nil {
			f.respond(w, r)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}
}

func setup(t *testing.T, respond func(w http.ResponseWriter, r *http.Request)) (*gsheet.Service, *fakeAPI) {
	t.Helper()

	api := &fakeAPI{respond: respond}
	server := httptest.NewServer(api.handler(t))
	t.Cleanup(server.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(server.URL+"/"),
		goption.WithHTTPClient(server.Client()),
	)
	require.NoError(t, err)

	return svc, api
}

func newWorksheet(svc *gsheet.Service) *Worksheet {
	return &Worksheet{svc: svc, spreadsheetID: "sheet1", title: "Data", sheetID: 0}
}

func writeJSON(t *testing.T, w http.ResponseWriter, v interface{}) {
	t.Helper()
	assert.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestOpen(t *testing.T) {
	svc, api := setup(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]interface{}{
			"sheets": []map[string]interface{}{
				{"properties": map[string]interface{}{"sheetId": 0, "title": "Summary"}},
				{"properties": map[string]interface{}{"sheetId": 42, "title": "Data"}},
			},
		})
	})

	ws, err := Open(context.Background(), svc, "sheet1", "Data")
	require.NoError(t, err)
	assert.Equal(t, int64(42), ws.sheetID)

	require.Len(t, api.requests, 1)
	assert.Equal(t, http.MethodGet, api.requests[0].Method)
	assert.Equal(t, "/v4/spreadsheets/sheet1", api.requests[0].Path)
}

func TestOpenMissingTab(t *testing.T) {
	svc, _ := setup(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]interface{}{"sheets": []interface{}{}})
	})

	_, err := Open(context.Background(), svc, "sheet1", "Data")
	assert.ErrorIs(t, err, apierr.ErrNotFound)
}

func TestOpenClassifiesErrors(t *testing.T) {
	svc, _ := setup(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"The caller does not have permission"}}`))
	})

	_, err := Open(context.Background(), svc, "sheet1", "Data")
	assert.ErrorIs(t, err, apierr.ErrAuth)
}

func TestFindAll(t *testing.T) {
	svc, api := setup(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]interface{}{
			"values": [][]interface{}{
				{"Month", "Category"},
				{"2018-11-01", "Rent"},
				{},
				{"2018-12-01", "Groceries", "2018-12-01"},
			},
		})
	})

	cells, err := newWorksheet(svc).FindAll(context.Background(), "2018-12-01")
	require.NoError(t, err)

	assert.Equal(t, []sheets.Cell{
		{CellRef: sheets.CellRef{Row: 4, Col: 1}, Value: "2018-12-01"},
		{CellRef: sheets.CellRef{Row: 4, Col: 3}, Value: "2018-12-01"},
	}, cells)
	assert.Equal(t, "/v4/spreadsheets/sheet1/values/'Data'", api.requests[0].Path)
	assert.Equal(t, "FORMATTED_VALUE", api.requests[0].Query["valueRenderOption"][0])
}

func TestDeleteRow(t *testing.T) {
	svc, api := setup(t, nil)

	require.NoError(t, newWorksheet(svc).DeleteRow(context.Background(), 7))

	require.Len(t, api.requests, 1)
	assert.Equal(t, http.MethodPost, api.requests[0].Method)
	assert.Equal(t, "/v4/spreadsheets/sheet1:batchUpdate", api.requests[0].Path)

	var body gsheet.BatchUpdateSpreadsheetRequest
	require.NoError(t, json.Unmarshal([]byte(api.requests[0].Body), &body))
	require.Len(t, body.Requests, 1)
	dimension := body.Requests[0].DeleteDimension.Range
	assert.Equal(t, "ROWS", dimension.Dimension)
	assert.Equal(t, int64(6), dimension.StartIndex)
	assert.Equal(t, int64(7), dimension.EndIndex)
	assert.Contains(t, api.requests[0].Body, `"sheetId":0`)
}

func TestColValues(t *testing.T) {
	svc, api := setup(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]interface{}{
			"values": [][]interface{}{{"Month"}, {}, {"2018-11-01"}},
		})
	})

	values, err := newWorksheet(svc).ColValues(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"Month", "", "2018-11-01"}, values)
	assert.Equal(t, "/v4/spreadsheets/sheet1/values/'Data'!A:A", api.requests[0].Path)
}

func TestUpdateValues(t *testing.T) {
	svc, api := setup(t, nil)

	err := newWorksheet(svc).UpdateValues(context.Background(), sheets.CellRef{Row: 4, Col: 1}, [][]interface{}{
		{"2018-12-01", "Groceries", 150.0},
	})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, api.requests[0].Method)
	assert.Equal(t, "/v4/spreadsheets/sheet1/values/'Data'!A4", api.requests[0].Path)
	assert.Equal(t, "USER_ENTERED", api.requests[0].Query["valueInputOption"][0])
	assert.Contains(t, api.requests[0].Body, `["2018-12-01","Groceries",150]`)
}

func TestFormula(t *testing.T) {
	svc, api := setup(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]interface{}{
			"values": [][]interface{}{{"=VLOOKUP(B2,Buckets!A:B,2,FALSE)"}},
		})
	})

	formula, err := newWorksheet(svc).Formula(context.Background(), sheets.CellRef{Row: 2, Col: 4})
	require.NoError(t, err)
	assert.Equal(t, "=VLOOKUP(B2,Buckets!A:B,2,FALSE)", formula)
	assert.Equal(t, "/v4/spreadsheets/sheet1/values/'Data'!D2", api.requests[0].Path)
	assert.Equal(t, "FORMULA", api.requests[0].Query["valueRenderOption"][0])
}

func TestFormulaEmptyCell(t *testing.T) {
	svc, _ := setup(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]interface{}{"range": "Data!D2"})
	})

	formula, err := newWorksheet(svc).Formula(context.Background(), sheets.CellRef{Row: 2, Col: 4})
	require.NoError(t, err)
	assert.Equal(t, "", formula)
}

func TestUpdateCellsSingleCall(t *testing.T) {
	svc, api := setup(t, nil)

	err := newWorksheet(svc).UpdateCells(context.Background(), []sheets.Cell{
		{CellRef: sheets.CellRef{Row: 7, Col: 4}, Value: "=VLOOKUP(B7,Buckets!A:B,2,FALSE)"},
		{CellRef: sheets.CellRef{Row: 8, Col: 4}, Value: "=VLOOKUP(B8,Buckets!A:B,2,FALSE)"},
	})
	require.NoError(t, err)

	require.Len(t, api.requests, 1)
	assert.Equal(t, "/v4/spreadsheets/sheet1/values:batchUpdate", api.requests[0].Path)

	var body gsheet.BatchUpdateValuesRequest
	require.NoError(t, json.Unmarshal([]byte(api.requests[0].Body), &body))
	assert.Equal(t, "USER_ENTERED", body.ValueInputOption)
	require.Len(t, body.Data, 2)
	assert.Equal(t, "'Data'!D7", body.Data[0].Range)
	assert.Equal(t, "'Data'!D8", body.Data[1].Range)
}

func TestUpdateCellsEmpty(t *testing.T) {
	svc, api := setup(t, nil)

	require.NoError(t, newWorksheet(svc).UpdateCells(context.Background(), nil))
	assert.Empty(t, api.requests)
}

func TestNewServiceMissingCredentials(t *testing.T) {
	_, err := NewService(context.Background(), filepath.Join(t.TempDir(), "credentials.json"))
	assert.ErrorIs(t, err, apierr.ErrConfigMissing)
}

func TestNewServiceInvalidCredentials(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"authorized_user"}`), 0o600))

	_, err := NewService(context.Background(), path)
	assert.ErrorIs(t, err, apierr.ErrAuth)
}

func TestQuoteTitle(t *testing.T) {
	assert.Equal(t, "'Data'", quoteTitle("Data"))
	assert.Equal(t, "'Kyle''s Budget'", quoteTitle("Kyle's Budget"))
}
