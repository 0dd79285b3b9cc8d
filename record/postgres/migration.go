// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package postgres

import (
	"database/sql"
	"strings"

	"github.com/diffeo/go-restkit/record"
	"github.com/lib/pq"
	"github.com/rubenv/sql-migrate"
)

// This file maintains the database migration code.  See
// https://github.com/rubenv/sql-migrate for details of what goes in
// here.  Each schema gets one migration creating its table; other
// packages that keep tables in the same database (the access log)
// pass their migrations in as extras so there is one migration
// history.

var columnTypes = map[record.FieldType]string{
	record.String:   "TEXT",
	record.Integer:  "BIGINT",
	record.Float:    "DOUBLE PRECISION",
	record.Decimal:  "NUMERIC",
	record.Boolean:  "BOOLEAN",
	record.DateTime: "TIMESTAMP WITH TIME ZONE",
}

// TableName returns the SQL table name for a schema.
func TableName(schema *record.Schema) string {
	if schema.Namespace == "" {
		return schema.Name
	}
	return schema.Namespace + "_" + schema.Name
}

// SchemaMigration returns the migration that creates a schema's
// table.
func SchemaMigration(schema *record.Schema) *migrate.Migration {
	table := pq.QuoteIdentifier(TableName(schema))
	columns := []string{"id BIGSERIAL PRIMARY KEY"}
	for _, f := range schema.Fields {
		column := pq.QuoteIdentifier(f.Name) + " " + columnTypes[f.Type]
		if f.Required {
			column += " NOT NULL"
		}
		columns = append(columns, column)
	}
	return &migrate.Migration{
		Id: "record-" + TableName(schema),
		Up: []string{
			"CREATE TABLE IF NOT EXISTS " + table + "(" +
				strings.Join(columns, ", ") + ")",
		},
		Down: []string{"DROP TABLE IF EXISTS " + table},
	}
}

func migrationSource(schemas []*record.Schema, extra []*migrate.Migration) migrate.MigrationSource {
	source := &migrate.MemoryMigrationSource{}
	for _, schema := range schemas {
		source.Migrations = append(source.Migrations, SchemaMigration(schema))
	}
	source.Migrations = append(source.Migrations, extra...)
	return source
}

// Upgrade creates any missing tables for schemas and applies extra
// migrations.
func Upgrade(db *sql.DB, schemas []*record.Schema, extra ...*migrate.Migration) error {
	_, err := migrate.Exec(db, "postgres", migrationSource(schemas, extra), migrate.Up)
	return err
}

// Drop runs all of the migrations in reverse, dropping the tables.
func Drop(db *sql.DB, schemas []*record.Schema, extra ...*migrate.Migration) error {
	_, err := migrate.Exec(db, "postgres", migrationSource(schemas, extra), migrate.Down)
	return err
}
