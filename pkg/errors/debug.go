package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// LogFields flattens err for structured logging. Besides the message it adds the
// typed code, the wrap chain when err wraps anything, and the SQLSTATE and
// schema names of a Postgres error found in the chain. Empty values are left out.
func LogFields(err error) map[string]any {
	if err == nil {
		return nil
	}
	fields := map[string]any{"error": err.Error()}
	if typed := As(err); typed != nil {
		fields["error_code"] = string(typed.Code())
	}

	var chain []string
	for e := err; e != nil; e = stdErrors.Unwrap(e) {
		chain = append(chain, fmt.Sprintf("%T: %v", e, e))
	}
	if len(chain) > 1 {
		fields["error_chain"] = chain
	}

	if pg, ok := postgresDetail(err); ok {
		for key, value := range map[string]string{
			"pg_code":       pg.code,
			"pg_message":    pg.message,
			"pg_detail":     pg.detail,
			"pg_table":      pg.table,
			"pg_column":     pg.column,
			"pg_constraint": pg.constraint,
		} {
			if value != "" {
				fields[key] = value
			}
		}
	}
	return fields
}

type pgDetail struct {
	code, message, detail     string
	table, column, constraint string
}

// postgresDetail reads the server error from either driver we link.
func postgresDetail(err error) (pgDetail, bool) {
	var pgxErr *pgconn.PgError
	if stdErrors.As(err, &pgxErr) {
		return pgDetail{
			code:       pgxErr.Code,
			message:    pgxErr.Message,
			detail:     pgxErr.Detail,
			table:      pgxErr.TableName,
			column:     pgxErr.ColumnName,
			constraint: pgxErr.ConstraintName,
		}, true
	}
	var pqErr *pq.Error
	if stdErrors.As(err, &pqErr) {
		return pgDetail{
			code:       string(pqErr.Code),
			message:    pqErr.Message,
			detail:     pqErr.Detail,
			table:      pqErr.Table,
			column:     pqErr.Column,
			constraint: pqErr.Constraint,
		}, true
	}
	return pgDetail{}, false
}
