// Copyright 2015-2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package postgres

// Generic database/sql support code:
//
// (1) withTx() to do work in a transaction that can be retried, and
//     scanRows() to loop over the results of a multi-row SELECT
//
// (2) Helpers to build SQL SELECT, UPDATE and DELETE statements (dealing
//     entirely in strings)
//
// (3) queryParams, a parameter list that produces $1, $2, ..., and
//     fieldList, an INSERT/UPDATE key=value list

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// withTx calls f with a database/sql transaction object.  If f panics
// or returns a non-nil error, rolls the transaction back; otherwise
// commits it before returning.  Serialization failures (SQLSTATE
// 40001) rerun f in a new transaction.
func withTx(s storable, readOnly bool, f func(*sql.Tx) error) (err error) {
	var (
		tx   *sql.Tx
		done bool
	)

	defer func() {
		if tx != nil && !done {
			err2 := tx.Rollback()
			if err == nil {
				err = err2
			}
		}
	}()

	for {
		tx, err = s.Store().db.Begin()
		if err != nil {
			return
		}

		level := "REPEATABLE READ"
		if readOnly {
			level += " READ ONLY"
		}
		_, err = tx.Exec("SET TRANSACTION ISOLATION LEVEL " + level)
		if err != nil {
			return
		}

		err = f(tx)
		if err == nil {
			err = tx.Commit()
			done = true
		}

		if pqerr, ok := err.(*pq.Error); ok && pqerr.Code == "40001" {
			err = tx.Rollback()
			if err == sql.ErrTxDone {
				// already rolled back by the failed commit
				err = nil
			} else if err != nil {
				return
			}
			tx = nil
			done = false
			continue
		}

		break
	}
	return
}

// scanRows calls f for each row in rows, then closes it.  f should
// only call rows.Scan().
func scanRows(rows *sql.Rows, f func() error) (err error) {
	var done bool
	defer func() {
		if !done {
			err2 := rows.Close()
			if err == nil {
				err = err2
			}
		}
	}()

	for rows.Next() {
		err = f()
		if err != nil {
			return
		}
	}
	done = true
	err = rows.Err()
	return
}

// queryAndScan runs query in a read-only transaction and calls f for
// each resulting row.
func queryAndScan(s storable, query string, params queryParams, f func(*sql.Rows) error) error {
	return withTx(s, true, func(tx *sql.Tx) error {
		rows, err := tx.Query(query, params...)
		if err != nil {
			return err
		}
		return scanRows(rows, func() error {
			return f(rows)
		})
	})
}

// buildSelect constructs a simple SQL SELECT statement by string
// concatenation.  All of the conditions are ANDed together.
func buildSelect(outputs []string, table string, conditions, order []string) string {
	query := "SELECT " + strings.Join(outputs, ", ") + " FROM " + table
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	if len(order) > 0 {
		query += " ORDER BY " + strings.Join(order, ", ")
	}
	return query
}

// buildDelete constructs a DELETE statement.
func buildDelete(table string, conditions []string) string {
	query := "DELETE FROM " + table
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	return query
}

// queryParams wraps a list of query parameters.
type queryParams []interface{}

// Param adds a parameter to the query parameter list, returning its
// position as $1, $2, ...
func (qp *queryParams) Param(param interface{}) string {
	*qp = append(*qp, param)
	return fmt.Sprintf("$%v", len(*qp))
}

// fieldPair is a pair of values in a fieldList.
type fieldPair struct {
	Field string
	Value string
}

// fieldList is a list of "field=value" pairs as appears in SQL INSERT
// and UPDATE statements.
type fieldList struct {
	Fields []fieldPair
}

// Add adds a name and dynamic value to the field list.
func (f *fieldList) Add(qp *queryParams, field string, value interface{}) {
	f.Fields = append(f.Fields, fieldPair{Field: field, Value: qp.Param(value)})
}

func (f fieldList) mapFields(mf func(fp fieldPair) string) []string {
	result := make([]string, len(f.Fields))
	for i, field := range f.Fields {
		result[i] = mf(field)
	}
	return result
}

// InsertStatement produces a syntactically complete SQL INSERT
// statement.
func (f fieldList) InsertStatement(table string) string {
	names := f.mapFields(func(fp fieldPair) string { return fp.Field })
	values := f.mapFields(func(fp fieldPair) string { return fp.Value })
	return "INSERT INTO " + table + "(" + strings.Join(names, ", ") +
		") VALUES(" + strings.Join(values, ", ") + ")"
}

// UpsertStatement produces an INSERT that overwrites the row with the
// same conflict column.
func (f fieldList) UpsertStatement(table, conflict string) string {
	changes := make([]string, 0, len(f.Fields))
	for _, fp := range f.Fields {
		if fp.Field != conflict {
			changes = append(changes, fp.Field+"=EXCLUDED."+fp.Field)
		}
	}
	query := f.InsertStatement(table) + " ON CONFLICT (" + conflict + ") DO "
	if len(changes) == 0 {
		return query + "NOTHING"
	}
	return query + "UPDATE SET " + strings.Join(changes, ", ")
}
