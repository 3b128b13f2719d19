package config

import (
	"encoding/json"
	"fmt"
	"time"
)

type Config struct {
	// Month to sync as YYYY-MM-DD. Empty means the first day of the current month.
	Month           string   `json:"month"`
	SheetName       string   `json:"sheetName"`
	CredentialsFile string   `json:"credentialsFile"`
	UpdateFrequency string   `json:"updateFrequency"`
	RunTimeout      Duration `json:"runTimeout"`
	Retries         int      `json:"retries"`
	RetryDelay      Duration `json:"retryDelay"`

	Formula FormulaConfig `json:"formula"`
	SQL     SQLConfig     `json:"sql"`
	Influx  InfluxConfig  `json:"influx"`
}

// FormulaConfig locates the template formula cell and the lookup cell it references.
type FormulaConfig struct {
	Column       int    `json:"column"`
	Row          int    `json:"row"`
	LookupColumn string `json:"lookupColumn"`
}

type SQLConfig struct {
	Database  string `json:"database"`
	RunsTable string `json:"runsTable"`
}

type InfluxConfig struct {
	Database    string `json:"database"`
	Measurement string `json:"measurement"`
}

type Secrets struct {
	Ynab   YnabSecrets
	Sheets SheetsSecrets
	Influx InfluxSecrets
	SQL    SqlSecrets

	// Alternative to the SQL struct, designed to be used with heroku env variable
	DatabaseURL string `json:"databaseUrl" env:"DATABASE_URL"`
}

///////////////////////////////////////////////////////////////////////////////////////
// YNAB
///////////////////////////////////////////////////////////////////////////////////////

type YnabSecrets struct {
	APIKey   string `json:"ynabApiKey" env:"YNAB_API_KEY"`
	BudgetID string `json:"ynabBudgetId" env:"YNAB_BUDGET_ID"`
}

///////////////////////////////////////////////////////////////////////////////////////
// Sheets
///////////////////////////////////////////////////////////////////////////////////////

type SheetsSecrets struct {
	SheetID string `json:"sheetId" env:"SHEET_ID"`
}

type InfluxSecrets struct {
	InfluxEndpoint string `json:"influxEndpoint" env:"INFLUX_ENDPOINT"`
	InfluxUsername string `json:"influxUsername" env:"INFLUX_USERNAME"`
	InfluxPassword string `json:"influxPassword" env:"INFLUX_PASSWORD"`
}

type SqlSecrets struct {
	SqlHost     string `json:"sqlHost" env:"SQL_HOST"`
	SqlUsername string `json:"sqlUsername" env:"SQL_USERNAME"`
	SqlPassword string `json:"sqlPassword" env:"SQL_PASSWORD"`
}

// SQLEnabled reports whether any postgres connection details were provided.
func (s *Secrets) SQLEnabled() bool {
	return s.DatabaseURL != "" || s.SQL.SqlHost != ""
}

// InfluxEnabled reports whether an influx endpoint was provided.
func (s *Secrets) InfluxEnabled() bool {
	return s.Influx.InfluxEndpoint != ""
}

// Duration accepts either a Go duration string ("5m") or a number of seconds.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value * float64(time.Second))
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}
		d.Duration = parsed
	default:
		return fmt.Errorf("invalid duration %v", v)
	}

	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}
