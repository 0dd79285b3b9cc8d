// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package accesslog

import (
	"context"
	"database/sql"

	"github.com/rubenv/sql-migrate"
)

// Migration creates the access_log table.  Pass it to
// record/postgres.Upgrade to keep it in the record store's migration
// history.
func Migration() *migrate.Migration {
	return &migrate.Migration{
		Id: "accesslog-1",
		Up: []string{
			`CREATE TABLE IF NOT EXISTS access_log(
				id BIGSERIAL PRIMARY KEY,
				created TIMESTAMP WITH TIME ZONE NOT NULL,
				method VARCHAR(16) NOT NULL,
				uri TEXT NOT NULL,
				version VARCHAR(16) NOT NULL,
				status INTEGER NOT NULL,
				request TEXT NOT NULL,
				response TEXT NOT NULL,
				identifier TEXT NOT NULL,
				resource TEXT NOT NULL,
				duration DOUBLE PRECISION NOT NULL
			)`,
			`CREATE INDEX access_log_created ON access_log(created)`,
		},
		Down: []string{
			`DROP TABLE IF EXISTS access_log`,
		},
	}
}

const insertEntry = `INSERT INTO access_log(created, method, uri, version, status, request, response, identifier, resource, duration) VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

// PostgresWriter stores entries in the access_log table.
type PostgresWriter struct {
	DB *sql.DB
}

// Write inserts one row.  Durations are stored in seconds.
func (w PostgresWriter) Write(ctx context.Context, e Entry) error {
	_, err := w.DB.ExecContext(ctx, insertEntry,
		e.Time, e.Method, e.URI, e.Version, e.Status,
		Truncate(e.Request), Truncate(e.Response),
		e.Identifier, e.Resource, e.Duration.Seconds())
	return err
}
