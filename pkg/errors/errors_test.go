package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog(t *testing.T) {
	cases := []struct {
		code    Code
		status  int
		public  string
		retry   bool
		details bool
		message bool
	}{
		{CodeValidation, http.StatusBadRequest, "validation failed", false, true, true},
		{CodeUnauthorized, http.StatusUnauthorized, "authentication required", false, false, true},
		{CodeForbidden, http.StatusForbidden, "access denied", false, false, true},
		{CodeNotFound, http.StatusNotFound, "resource not found", false, false, true},
		{CodeConflict, http.StatusConflict, "conflict detected", false, false, true},
		{CodeIdempotency, http.StatusConflict, "idempotency key reused", false, true, true},
		{CodeRateLimit, http.StatusTooManyRequests, "rate limit exceeded", false, false, true},
		{CodeEmptyCart, http.StatusBadRequest, "cart is empty", false, false, true},
		{CodeInsufficientStock, http.StatusBadRequest, "insufficient stock", false, true, true},
		{CodeOrderItemsFailed, http.StatusInternalServerError, "failed to create order items", true, false, false},
		{CodeStockSyncFailed, http.StatusInternalServerError, "failed to update product stock", false, false, false},
		{CodeInternal, http.StatusInternalServerError, "internal server error", true, false, false},
		{CodeDependency, http.StatusServiceUnavailable, "dependency unavailable", true, true, false},
	}
	for _, tc := range cases {
		meta := MetadataFor(tc.code)
		assert.Equal(t, tc.status, meta.HTTPStatus, tc.code)
		assert.Equal(t, tc.public, meta.PublicMessage, tc.code)
		assert.Equal(t, tc.retry, meta.Retryable(), tc.code)
		assert.Equal(t, tc.details, meta.DetailsAllowed(), tc.code)
		assert.Equal(t, tc.message, meta.MessageAllowed(), tc.code)
	}

	assert.Equal(t, http.StatusInternalServerError, MetadataFor("SOMETHING_UNKNOWN").HTTPStatus)
}

func TestPublicMessage(t *testing.T) {
	assert.Equal(t, "Widget: insufficient stock", New(CodeInsufficientStock, "Widget: insufficient stock").PublicMessage())
	assert.Equal(t, "failed to update product stock", New(CodeStockSyncFailed, "update products set ...").PublicMessage())
	assert.Equal(t, "resource not found", New(CodeNotFound, "").PublicMessage())
	assert.Equal(t, "internal server error", New("BOGUS", "secret").PublicMessage())
}

func TestConstructors(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	assert.Equal(t, CodeValidation, base.Code())
	assert.Equal(t, "missing foo", base.Message())
	assert.Nil(t, base.Details())
	assert.Equal(t, "VALIDATION_ERROR: missing foo", base.Error())

	base.WithDetails(map[string]string{"field": "foo"})
	assert.NotNil(t, base.Details())

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, "CONFLICT: ctx: boom", wrapped.Error())

	formatted := Newf(CodeNotFound, "product %d missing", 7)
	assert.Equal(t, "product 7 missing", formatted.Message())

	var nilErr *Error
	assert.Equal(t, CodeInternal, nilErr.Code())
	assert.Nil(t, nilErr.WithDetails("x"))
}

func TestAsAndIs(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeEmptyCart, "cart is empty"))
	require.NotNil(t, As(err))
	assert.True(t, Is(err, CodeEmptyCart))
	assert.False(t, Is(err, CodeNotFound))
	assert.False(t, Is(stdErrors.New("plain"), CodeInternal))
	assert.Nil(t, As(nil))
}

func TestInspect(t *testing.T) {
	assert.Equal(t, Report{}, Inspect(nil))

	report := Inspect(Wrap(CodeInternal, stdErrors.New("disk full"), "persist order"))
	assert.Equal(t, CodeInternal, report.Code)
	assert.Len(t, report.Chain, 2)
	fields := report.Fields()
	assert.Equal(t, CodeInternal, fields["error_code"])
	assert.NotContains(t, fields, "pg_code")

	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "profiles_email_key", TableName: "profiles"}
	report = Inspect(Wrap(CodeConflict, fmt.Errorf("insert: %w", pgErr), "create user"))
	assert.Equal(t, "23505", report.PG.Code)
	assert.Equal(t, "profiles_email_key", report.PG.Constraint)
	fields = report.Fields()
	assert.Equal(t, "profiles", fields["pg_table"])
	assert.NotContains(t, fields, "pg_column")
}
