package monthsync

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/davidsteinsland/ynab-go/ynab"
	"k8s.io/klog"

	"github.com/bcaldwell/ynabsheets/pkg/apierr"
	"github.com/bcaldwell/ynabsheets/pkg/postgresutils"
	"github.com/bcaldwell/ynabsheets/pkg/sheets"
	"github.com/bcaldwell/ynabsheets/pkg/ynabimporter"
)

// Stages a sync completes, in order. The sheet stages are those of
// sheets.Writer.ReplaceMonth.
const (
	StageNone    = ""
	StageFetch   = "fetch"
	StageExtract = "extract"
	StageDelete  = sheets.StepDelete
	StageInsert  = sheets.StepInsert
	StageFormula = sheets.StepFormula
)

type Fetcher interface {
	FetchMonth(ctx context.Context, month string) (ynab.MonthDetail, error)
}

// Ledger records runs. *postgresutils.Ledger implements it.
type Ledger interface {
	Start(ctx context.Context, month string) (*postgresutils.SQLRun, error)
	Stage(ctx context.Context, run *postgresutils.SQLRun, stage string) error
	Finish(ctx context.Context, run *postgresutils.SQLRun, stage string, result sheets.ReplaceResult, runErr error) error
}

// Metrics reports run outcomes. *influxhelper.Reporter implements it.
type Metrics interface {
	Report(month string, result sheets.ReplaceResult, duration time.Duration, runErr error) error
}

// Result summarises one sync.
type Result struct {
	Month           string
	RowsDeleted     int
	RowsWritten     int
	FormulasWritten int
	FirstRow        int
	// Stage is the last stage that completed.
	Stage string
}

func (r Result) replaceResult() sheets.ReplaceResult {
	return sheets.ReplaceResult{
		RowsDeleted:     r.RowsDeleted,
		RowsWritten:     r.RowsWritten,
		FormulasWritten: r.FormulasWritten,
		FirstRow:        r.FirstRow,
		LastStep:        r.Stage,
	}
}

// Runner copies one YNAB month into a worksheet. Ledger and Metrics are
// optional.
type Runner struct {
	Fetcher   Fetcher
	Worksheet sheets.Worksheet
	Template  sheets.FormulaTemplate
	Ledger    Ledger
	Metrics   Metrics
	// Month as YYYY-MM-DD. Empty syncs the current month.
	Month string

	closers []io.Closer
}

// Run syncs the configured month.
func (r *Runner) Run(ctx context.Context) error {
	month := r.Month
	if month == "" {
		month = CurrentMonth(time.Now())
	}

	_, err := r.Sync(ctx, month)
	return err
}

// CurrentMonth is the first day of now's month as YYYY-MM-DD.
func CurrentMonth(now time.Time) string {
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).Format("2006-01-02")
}

// Sync fetches month from YNAB and replaces its rows in the worksheet. The
// first error stops the sync; the returned Result says how far it got.
func (r *Runner) Sync(ctx context.Context, month string) (result Result, err error) {
	started := time.Now()
	result = Result{Month: month, Stage: StageNone}

	run := r.startRun(ctx, month)
	defer func() {
		r.finishRun(ctx, run, result, time.Since(started), err)
	}()

	detail, err := r.Fetcher.FetchMonth(ctx, month)
	if err != nil {
		return result, err
	}
	result.Stage = StageFetch
	r.recordStage(ctx, run, result.Stage)

	rows := ynabimporter.ExtractCategoryRows(month, detail)
	result.Stage = StageExtract
	r.recordStage(ctx, run, result.Stage)

	klog.Infof("Found %d categories for %s\n", len(rows), month)

	replaced, err := sheets.NewWriter(r.Worksheet, r.Template).ReplaceMonth(ctx, month, ynabimporter.SheetValues(rows))
	result.RowsDeleted = replaced.RowsDeleted
	result.RowsWritten = replaced.RowsWritten
	result.FormulasWritten = replaced.FormulasWritten
	result.FirstRow = replaced.FirstRow
	if replaced.LastStep != sheets.StepNone {
		result.Stage = replaced.LastStep
	}
	if err != nil {
		return result, fmt.Errorf("failed to write %s to sheet: %w", month, err)
	}

	return result, nil
}

// Close releases the clients New opened.
func (r *Runner) Close() error {
	var firstErr error
	for _, c := range r.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	r.closers = nil
	return firstErr
}

func (r *Runner) startRun(ctx context.Context, month string) *postgresutils.SQLRun {
	if r.Ledger == nil {
		return nil
	}

	run, err := r.Ledger.Start(ctx, month)
	if err != nil {
		slog.Warn("failed to record run start", "month", month, "error", err)
		return nil
	}
	return run
}

func (r *Runner) recordStage(ctx context.Context, run *postgresutils.SQLRun, stage string) {
	if r.Ledger == nil || run == nil {
		return
	}

	if err := r.Ledger.Stage(ctx, run, stage); err != nil {
		slog.Warn("failed to record run stage", "stage", stage, "error", err)
	}
}

func (r *Runner) finishRun(ctx context.Context, run *postgresutils.SQLRun, result Result, duration time.Duration, runErr error) {
	if runErr != nil {
		slog.Error("sync failed", "month", result.Month, "stage", result.Stage, "kind", apierr.Name(runErr), "error", runErr)
	} else {
		klog.Infof("Synced %s: deleted %d rows, wrote %d rows from row %d, copied %d formulas in %s\n",
			result.Month, result.RowsDeleted, result.RowsWritten, result.FirstRow, result.FormulasWritten, duration.Round(time.Millisecond))
	}

	// the run context may already be done, the bookkeeping should still land
	ctx = context.WithoutCancel(ctx)

	if r.Ledger != nil && run != nil {
		if err := r.Ledger.Finish(ctx, run, result.Stage, result.replaceResult(), runErr); err != nil {
			slog.Warn("failed to record run result", "month", result.Month, "error", err)
		}
	}

	if r.Metrics != nil {
		if err := r.Metrics.Report(result.Month, result.replaceResult(), duration, runErr); err != nil {
			slog.Warn("failed to report run metrics", "month", result.Month, "error", err)
		}
	}
}
