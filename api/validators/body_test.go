package validators

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/0111v/projeto-faculdade/pkg/errors"
)

type sampleBody struct {
	Name     string `json:"name" validate:"required,notblank,max=5"`
	Quantity int    `json:"quantity" validate:"gt=0"`
	Email    string `json:"email,omitempty" validate:"omitempty,email"`
}

func decode(body string) (sampleBody, *pkgerrors.Error) {
	var dest sampleBody
	err := DecodeJSONBody(httptest.NewRequest("POST", "/", strings.NewReader(body)), &dest)
	return dest, pkgerrors.As(err)
}

func details(t *testing.T, err *pkgerrors.Error) map[string]string {
	t.Helper()
	require.NotNil(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, err.Code())
	d, ok := err.Details().(map[string]string)
	require.True(t, ok, "details %T", err.Details())
	return d
}

func TestDecodeJSONBodyValid(t *testing.T) {
	body, err := decode(`{"name":"mouse","quantity":2}`)
	require.Nil(t, err)
	assert.Equal(t, sampleBody{Name: "mouse", Quantity: 2}, body)
}

func TestDecodeJSONBodyFieldErrors(t *testing.T) {
	_, err := decode(`{"name":"   ","quantity":0,"email":"nope"}`)
	assert.Equal(t, map[string]string{
		"name":     "is required",
		"quantity": "must be greater than 0",
		"email":    "must be a valid email",
	}, details(t, err))

	_, err = decode(`{"name":"keyboard","quantity":1}`)
	assert.Equal(t, "must be at most 5 characters", details(t, err)["name"])
}

func TestDecodeJSONBodyRejectsMalformedInput(t *testing.T) {
	cases := map[string]string{
		"":                                    "request body is required",
		`{"name":`:                            "request body is not valid JSON",
		`{"name":"a"}{"name":"b"}`:            "request body must contain a single JSON object",
		`{"name":"a","quantity":1}  trailing`: "request body must contain a single JSON object",
	}
	for input, want := range cases {
		_, err := decode(input)
		require.NotNil(t, err, input)
		assert.Equal(t, pkgerrors.CodeValidation, err.Code(), input)
		assert.Equal(t, want, err.Message(), input)
	}
}

func TestDecodeJSONBodyNamesBadFields(t *testing.T) {
	_, err := decode(`{"name":"mouse","quantity":1,"extra":true}`)
	assert.Equal(t, "is not allowed", details(t, err)["extra"])

	_, err = decode(`{"name":"mouse","quantity":"two"}`)
	assert.Equal(t, "must be of type int", details(t, err)["quantity"])
}

func TestDecodeJSONBodyTooLarge(t *testing.T) {
	huge := `{"name":"` + strings.Repeat("a", MaxBodyBytes) + `"}`
	_, err := decode(huge)
	require.NotNil(t, err)
	assert.Equal(t, "request body too large", err.Message())
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "hello", SanitizeString("  hello  ", 0))
	assert.Equal(t, "abc", SanitizeString("abcdef", 3))
	assert.Equal(t, "Rua A", SanitizeString("Rua\x00 A\x07", 0))
	assert.Equal(t, "line\nbreak", SanitizeString("line\nbreak", 0))
	// "ã" is two bytes; a cut at byte 2 must not split it
	assert.Equal(t, "S", SanitizeString("São", 2))
	assert.Equal(t, "", SanitizeString(" \t ", 10))
}
