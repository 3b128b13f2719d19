package postgresutils

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"k8s.io/klog"

	"github.com/bcaldwell/ynabsheets/pkg/apierr"
	"github.com/bcaldwell/ynabsheets/pkg/sheets"
)

const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// SQLRun is one sync run and how far it got.
type SQLRun struct {
	bun.BaseModel   `bun:"table:sheet_sync_runs"`
	ID              int64 `bun:",pk,autoincrement"`
	Month           string
	Status          string
	Stage           string
	RowsDeleted     int
	RowsWritten     int
	FormulasWritten int
	FirstRow        int
	ErrorKind       string
	Error           string
	StartedAt       time.Time
	FinishedAt      bun.NullTime
}

// Ledger records sync runs in postgres.
type Ledger struct {
	db        *bun.DB
	tableName string
}

// NewLedger creates the runs table if needed.
func NewLedger(ctx context.Context, db *bun.DB, tableName string) (*Ledger, error) {
	l := &Ledger{db: db, tableName: tableName}

	_, err := db.NewCreateTable().Model((*SQLRun)(nil)).ModelTableExpr(tableName).IfNotExists().Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create table %s: %w", tableName, err)
	}

	return l, nil
}

func (l *Ledger) Start(ctx context.Context, month string) (*SQLRun, error) {
	run := &SQLRun{
		Month:     month,
		Status:    StatusRunning,
		StartedAt: time.Now().UTC(),
	}

	_, err := l.db.NewInsert().Model(run).ModelTableExpr(l.tableName).Returning("id").Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to record run start for %s: %w", month, err)
	}

	return run, nil
}

// Stage records the last stage the run completed.
func (l *Ledger) Stage(ctx context.Context, run *SQLRun, stage string) error {
	run.Stage = stage
	return l.save(ctx, run)
}

// Finish stores the final counts and status of run.
func (l *Ledger) Finish(ctx context.Context, run *SQLRun, stage string, result sheets.ReplaceResult, runErr error) error {
	run.Stage = stage
	run.RowsDeleted = result.RowsDeleted
	run.RowsWritten = result.RowsWritten
	run.FormulasWritten = result.FormulasWritten
	run.FirstRow = result.FirstRow
	run.FinishedAt = bun.NullTime{Time: time.Now().UTC()}
	run.Status = StatusSuccess

	if runErr != nil {
		run.Status = StatusFailed
		run.ErrorKind = apierr.Name(runErr)
		run.Error = runErr.Error()
	}

	if err := l.save(ctx, run); err != nil {
		return err
	}

	klog.Infof("Recorded %s run %d for %s in %s\n", run.Status, run.ID, run.Month, l.tableName)
	return nil
}

func (l *Ledger) save(ctx context.Context, run *SQLRun) error {
	_, err := l.upsertQuery(run).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update run %d: %w", run.ID, err)
	}
	return nil
}

func (l *Ledger) upsertQuery(run *SQLRun) *bun.InsertQuery {
	return l.db.NewInsert().
		Model(run).
		ModelTableExpr(l.tableName).
		On("CONFLICT (id) DO UPDATE").
		Set(TableSetString(l.db, run, "id"))
}
