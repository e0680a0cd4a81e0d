package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Report flattens an error chain for structured logs. Postgres fields are
// filled from whichever driver produced the failure.
type Report struct {
	Message string
	Code    Code
	Chain   []string
	PG      PGFields
}

type PGFields struct {
	Code       string
	Constraint string
	Table      string
	Column     string
	Detail     string
	Message    string
}

func Inspect(err error) Report {
	if err == nil {
		return Report{}
	}
	r := Report{Message: err.Error()}
	if typed := As(err); typed != nil {
		r.Code = typed.Code()
	}
	for e := err; e != nil; e = stdErrors.Unwrap(e) {
		r.Chain = append(r.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	var pgxErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case stdErrors.As(err, &pgxErr):
		r.PG = PGFields{pgxErr.Code, pgxErr.ConstraintName, pgxErr.TableName, pgxErr.ColumnName, pgxErr.Detail, pgxErr.Message}
	case stdErrors.As(err, &pqErr):
		r.PG = PGFields{string(pqErr.Code), pqErr.Constraint, pqErr.Table, pqErr.Column, pqErr.Detail, pqErr.Message}
	}
	return r
}

// Fields renders the report as log fields, leaving out empty Postgres values.
func (r Report) Fields() map[string]any {
	fields := map[string]any{
		"error":       r.Message,
		"error_chain": r.Chain,
	}
	if r.Code != "" {
		fields["error_code"] = r.Code
	}
	for key, value := range map[string]string{
		"pg_code":       r.PG.Code,
		"pg_constraint": r.PG.Constraint,
		"pg_table":      r.PG.Table,
		"pg_column":     r.PG.Column,
		"pg_detail":     r.PG.Detail,
		"pg_message":    r.PG.Message,
	} {
		if value != "" {
			fields[key] = value
		}
	}
	return fields
}
