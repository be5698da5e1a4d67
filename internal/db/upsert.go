package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// TableSpec describes one upsert destination.
type TableSpec struct {
	Table   string   // destination table name
	Headers []string // sanitized column names, in upload order
	Keys    []string // key columns forming the upsert identity
}

// UpsertStats reports what one upsert batch did.
type UpsertStats struct {
	Inserted       int
	Updated        int
	SkippedColumns int // headers that could not be added to the schema
}

// EnsureSchema makes the destination table cover the given headers. The
// table is created on first use with every header as a wide nullable text
// column; afterwards missing headers are added one by one. A column that
// cannot be added is logged and skipped, not fatal: the write proceeds on
// the columns that exist. Returns the headers that survived, in input order.
//
// Schema changes run outside the row transaction so a failed ALTER cannot
// poison the batch.
func EnsureSchema(ctx context.Context, pool Pool, table string, headers []string) ([]string, error) {
	log := zap.L().With(zap.String("component", "upsert"), zap.String("table", table))

	if len(headers) == 0 {
		return nil, eris.Errorf("db: ensure schema for %s: no headers", table)
	}

	cols := make([]string, len(headers))
	for i, h := range headers {
		cols[i] = fmt.Sprintf("%s TEXT", pgx.Identifier{h}.Sanitize())
	}
	createSQL := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		pgx.Identifier{table}.Sanitize(), strings.Join(cols, ", "))
	if _, err := pool.Exec(ctx, createSQL); err != nil {
		return nil, eris.Wrapf(err, "db: create table %s", table)
	}

	existing, err := TableColumns(ctx, pool, table)
	if err != nil {
		return nil, err
	}

	for _, h := range headers {
		if existing[h] {
			continue
		}
		alterSQL := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s TEXT",
			pgx.Identifier{table}.Sanitize(), pgx.Identifier{h}.Sanitize())
		if _, err := pool.Exec(ctx, alterSQL); err != nil {
			log.Warn("could not add column", zap.String("column", h), zap.Error(err))
			continue
		}
		existing[h] = true
		log.Info("added column", zap.String("column", h))
	}

	var valid []string
	for _, h := range headers {
		if existing[h] {
			valid = append(valid, h)
		}
	}
	if len(valid) == 0 {
		return nil, eris.Errorf("db: no usable columns for %s", table)
	}
	return valid, nil
}

// TableColumns returns the set of columns currently on the table.
func TableColumns(ctx context.Context, pool Pool, table string) (map[string]bool, error) {
	rows, err := pool.Query(ctx,
		"SELECT column_name FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = $1",
		table,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "db: list columns of %s", table)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrapf(err, "db: scan column of %s", table)
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

// UpsertRows writes one report's rows inside a single transaction. Each row
// is checked for existence on the key columns with null-safe equality and
// then updated in place or inserted. Any error rolls the whole report back;
// the sibling report type is unaffected.
//
// Rows shorter than the header set are padded with empty cells; longer rows
// are truncated. The run label is a plain data column here, not part of the
// key: a later run for the same report date overwrites the earlier row.
func UpsertRows(ctx context.Context, pool Pool, spec TableSpec, valid []string, rows [][]string) (UpsertStats, error) {
	stats := UpsertStats{SkippedColumns: len(spec.Headers) - len(valid)}
	if len(rows) == 0 {
		return stats, nil
	}

	validSet := make(map[string]bool, len(valid))
	for _, h := range valid {
		validSet[h] = true
	}
	for _, k := range spec.Keys {
		if !validSet[k] {
			return stats, eris.Errorf("db: upsert into %s: key column %s is not available", spec.Table, k)
		}
	}

	existsSQL, updateSQL, insertSQL := buildStatements(spec, valid)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return stats, eris.Wrapf(err, "db: upsert into %s: begin", spec.Table)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, src := range rows {
		values := rowValues(spec.Headers, src)

		keyArgs := make([]any, len(spec.Keys))
		for i, k := range spec.Keys {
			keyArgs[i] = values[k]
		}

		var count int
		if err := tx.QueryRow(ctx, existsSQL, keyArgs...).Scan(&count); err != nil {
			return stats, eris.Wrapf(err, "db: upsert into %s: existence check", spec.Table)
		}

		if count > 0 {
			args := make([]any, 0, len(valid)+len(spec.Keys))
			for _, h := range valid {
				if !isKey(spec.Keys, h) {
					args = append(args, values[h])
				}
			}
			if len(args) > 0 { // at least one non-key column to set
				args = append(args, keyArgs...)
				if _, err := tx.Exec(ctx, updateSQL, args...); err != nil {
					return stats, eris.Wrapf(err, "db: upsert into %s: update", spec.Table)
				}
			}
			stats.Updated++
			continue
		}

		args := make([]any, len(valid))
		for i, h := range valid {
			args[i] = values[h]
		}
		if _, err := tx.Exec(ctx, insertSQL, args...); err != nil {
			return stats, eris.Wrapf(err, "db: upsert into %s: insert", spec.Table)
		}
		stats.Inserted++
	}

	if err := tx.Commit(ctx); err != nil {
		return stats, eris.Wrapf(err, "db: upsert into %s: commit", spec.Table)
	}
	return stats, nil
}

// buildStatements prepares the three per-row statements once per batch.
func buildStatements(spec TableSpec, valid []string) (existsSQL, updateSQL, insertSQL string) {
	table := pgx.Identifier{spec.Table}.Sanitize()

	// Null-safe key predicate: a null key cell matches another null.
	preds := make([]string, len(spec.Keys))
	for i, k := range spec.Keys {
		preds[i] = fmt.Sprintf("%s IS NOT DISTINCT FROM $%d", pgx.Identifier{k}.Sanitize(), i+1)
	}
	existsSQL = fmt.Sprintf("SELECT count(*) FROM %s WHERE %s", table, strings.Join(preds, " AND "))

	var sets []string
	n := 1
	for _, h := range valid {
		if !isKey(spec.Keys, h) {
			sets = append(sets, fmt.Sprintf("%s = $%d", pgx.Identifier{h}.Sanitize(), n))
			n++
		}
	}
	wherePreds := make([]string, len(spec.Keys))
	for i, k := range spec.Keys {
		wherePreds[i] = fmt.Sprintf("%s IS NOT DISTINCT FROM $%d", pgx.Identifier{k}.Sanitize(), n+i)
	}
	updateSQL = fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		table, strings.Join(sets, ", "), strings.Join(wherePreds, " AND "))

	quoted := make([]string, len(valid))
	params := make([]string, len(valid))
	for i, h := range valid {
		quoted[i] = pgx.Identifier{h}.Sanitize()
		params[i] = fmt.Sprintf("$%d", i+1)
	}
	insertSQL = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(quoted, ", "), strings.Join(params, ", "))

	return existsSQL, updateSQL, insertSQL
}

// rowValues maps headers to cell values, padding short rows with empty
// strings and dropping cells beyond the header set.
func rowValues(headers []string, row []string) map[string]string {
	values := make(map[string]string, len(headers))
	for i, h := range headers {
		if i < len(row) {
			values[h] = row[i]
		} else {
			values[h] = ""
		}
	}
	return values
}

func isKey(keys []string, h string) bool {
	for _, k := range keys {
		if k == h {
			return true
		}
	}
	return false
}
