package postgresutils

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"k8s.io/klog"

	"github.com/bcaldwell/ynabsheets/pkg/config"
)

// CreatePostgresClient connects to dbname, creating it first unless a
// DATABASE_URL is set.
func CreatePostgresClient(ctx context.Context, secrets *config.Secrets, dbname string) (*bun.DB, error) {
	var pgconn *pgdriver.Connector

	// bypass creating of db if database_url is set because we are likely running in heroku then
	if secrets.DatabaseURL == "" {
		sqlHost := withDefaultPort(secrets.SQL.SqlHost)

		err := ensureDBExistsInPostgres(ctx, secrets.SQL, sqlHost, dbname)
		if err != nil {
			return nil, err
		}

		pgconn = pgdriver.NewConnector(
			pgdriver.WithAddr(sqlHost),
			pgdriver.WithInsecure(true),
			pgdriver.WithUser(secrets.SQL.SqlUsername),
			pgdriver.WithPassword(secrets.SQL.SqlPassword),
			pgdriver.WithDatabase(dbname),
		)
	} else {
		var err error
		pgconn, err = connectorFromDSN(secrets.DatabaseURL)
		if err != nil {
			return nil, err
		}
	}

	db := sql.OpenDB(pgconn)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to postgres database %s: %w", dbname, err)
	}

	return bun.NewDB(db, pgdialect.New()), nil
}

// connectorFromDSN turns the panic pgdriver.WithDSN raises on a malformed
// DSN into an error.
func connectorFromDSN(dsn string) (pgconn *pgdriver.Connector, err error) {
	defer func() {
		if r := recover(); r != nil {
			pgconn = nil
			err = fmt.Errorf("invalid DATABASE_URL: %v", r)
		}
	}()

	return pgdriver.NewConnector(pgdriver.WithDSN(dsn)), nil
}

// slightly silly logic to add port if missing
func withDefaultPort(host string) string {
	if !strings.Contains(host, ":") {
		return host + ":5432"
	}
	return host
}

func ensureDBExistsInPostgres(ctx context.Context, sqlSecrets config.SqlSecrets, sqlHost, dbname string) error {
	pgconn := pgdriver.NewConnector(
		pgdriver.WithAddr(sqlHost),
		pgdriver.WithInsecure(true),
		pgdriver.WithUser(sqlSecrets.SqlUsername),
		pgdriver.WithPassword(sqlSecrets.SqlPassword),
		pgdriver.WithDatabase("postgres"),
	)

	db := bun.NewDB(sql.OpenDB(pgconn), pgdialect.New())
	defer db.Close()

	var names []string
	err := db.NewRaw("SELECT datname FROM pg_database WHERE datname = ?", dbname).Scan(ctx, &names)
	if err != nil {
		return fmt.Errorf("failed to get list of databases: %w", err)
	}

	if len(names) == 0 {
		klog.Infof("Creating database %s in postgres database\n", dbname)
		_, err := db.ExecContext(ctx, "CREATE DATABASE ?", bun.Ident(dbname))
		if err != nil {
			return fmt.Errorf("failed to create database %s: %w", dbname, err)
		}
	}

	return nil
}

// TableSetString builds the SET clause of an upsert that overwrites every
// column of model except exclude.
func TableSetString(db *bun.DB, model interface{}, exclude ...string) string {
	t := db.Dialect().Tables().Get(reflect.TypeOf(model).Elem())
	if t == nil {
		return ""
	}

	parts := []string{}

	for _, f := range t.Fields {
		if isInArray(exclude, f.Name) {
			continue
		}

		parts = append(parts, fmt.Sprintf("%s = EXCLUDED.%s", f.Name, f.Name))
	}

	return strings.Join(parts, ", ")
}

func isInArray(arr []string, s string) bool {
	for _, i := range arr {
		if i == s {
			return true
		}
	}

	return false
}
