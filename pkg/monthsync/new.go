package monthsync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bcaldwell/ynabsheets/pkg/config"
	"github.com/bcaldwell/ynabsheets/pkg/influxhelper"
	"github.com/bcaldwell/ynabsheets/pkg/postgresutils"
	"github.com/bcaldwell/ynabsheets/pkg/sheets"
	"github.com/bcaldwell/ynabsheets/pkg/sheets/google"
	"github.com/bcaldwell/ynabsheets/pkg/ynabimporter"
)

// New builds a Runner against the real YNAB and Google Sheets APIs. The
// ledger and metrics are only wired when their secrets are present, and a
// failure to set either up is logged rather than returned.
func New(ctx context.Context, cfg *config.Config, secrets *config.Secrets) (*Runner, error) {
	template, err := FormulaTemplate(cfg.Formula)
	if err != nil {
		return nil, err
	}

	svc, err := google.NewService(ctx, cfg.CredentialsFile)
	if err != nil {
		return nil, err
	}

	worksheet, err := google.Open(ctx, svc, secrets.Sheets.SheetID, cfg.SheetName)
	if err != nil {
		return nil, err
	}

	r := &Runner{
		Fetcher:   ynabimporter.NewFetcher(secrets.Ynab.APIKey, secrets.Ynab.BudgetID),
		Worksheet: worksheet,
		Template:  template,
		Month:     cfg.Month,
	}

	if secrets.SQLEnabled() {
		db, err := postgresutils.CreatePostgresClient(ctx, secrets, cfg.SQL.Database)
		if err != nil {
			slog.Warn("run ledger disabled", "error", err)
		} else {
			r.closers = append(r.closers, db)

			ledger, err := postgresutils.NewLedger(ctx, db, cfg.SQL.RunsTable)
			if err != nil {
				slog.Warn("run ledger disabled", "error", err)
			} else {
				r.Ledger = ledger
			}
		}
	}

	if secrets.InfluxEnabled() {
		influxClient, err := influxhelper.CreateInfluxClient(secrets.Influx)
		if err != nil {
			slog.Warn("run metrics disabled", "error", err)
		} else {
			r.closers = append(r.closers, influxClient)

			if err := influxhelper.CreateDatabase(influxClient, cfg.Influx.Database); err != nil {
				slog.Warn("failed to create influx database", "database", cfg.Influx.Database, "error", err)
			}
			r.Metrics = influxhelper.NewReporter(influxClient, cfg.Influx.Database, cfg.Influx.Measurement)
		}
	}

	return r, nil
}

// FormulaTemplate converts the formula config into sheet coordinates.
func FormulaTemplate(f config.FormulaConfig) (sheets.FormulaTemplate, error) {
	lookup, err := sheets.ColumnNumber(f.LookupColumn)
	if err != nil {
		return sheets.FormulaTemplate{}, fmt.Errorf("invalid formula lookup column: %w", err)
	}

	return sheets.FormulaTemplate{
		Cell:         sheets.CellRef{Row: f.Row, Col: f.Column},
		LookupColumn: lookup,
	}, nil
}
