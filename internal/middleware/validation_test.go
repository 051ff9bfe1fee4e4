package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type addLineBody struct {
	Code string          `json:"code" validate:"required"`
	Qty  decimal.Decimal `json:"qty" validate:"gt=0"`
}

type tenderBody struct {
	Method string          `json:"method" validate:"required,oneof=cash card"`
	Amount decimal.Decimal `json:"amount" validate:"gt=0"`
}

func jsonRequest(t *testing.T, body interface{}) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	return httptest.NewRequest(http.MethodPost, "/test", bytes.NewReader(raw))
}

// Feature: pos-checkout, Property 16: Required fields are enforced
func TestProperty_RequiredFieldValidationWorks(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("bodies missing code or qty are rejected", prop.ForAll(
		func(includeCode bool, includeQty bool) bool {
			body := map[string]interface{}{}
			if includeCode {
				body["code"] = "1234567890123"
			}
			if includeQty {
				body["qty"] = "2"
			}

			var req addLineBody
			err := DecodeAndValidate(jsonRequest(t, body), &req)

			if includeCode && includeQty {
				return err == nil
			}
			return err != nil
		},
		gen.Bool(),
		gen.Bool(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Feature: pos-checkout, Property 17: Decimal amounts are compared numerically
func TestProperty_DecimalBoundsAreEnforced(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("gt=0 accepts positive amounts only", prop.ForAll(
		func(cents int64) bool {
			body := map[string]interface{}{"method": "cash", "amount": decimal.New(cents, -2).String()}

			var req tenderBody
			err := DecodeAndValidate(jsonRequest(t, body), &req)

			if cents > 0 {
				return err == nil
			}
			return err != nil
		},
		gen.Int64Range(-1000, 1000),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestFormatValidationErrors_UsesJSONNames(t *testing.T) {
	var req tenderBody
	err := DecodeAndValidate(jsonRequest(t, map[string]interface{}{"method": "voucher", "amount": "0"}), &req)
	require.Error(t, err)

	formatted := FormatValidationErrors(err)
	fields := map[string]string{}
	for _, fe := range formatted {
		fields[fe.Field] = fe.Message
	}

	assert.Equal(t, "Value must be one of: cash card", fields["method"])
	assert.Equal(t, "Value must be greater than 0", fields["amount"])
}

func TestDecodeAndValidate_MalformedBody(t *testing.T) {
	var req addLineBody
	err := DecodeAndValidate(httptest.NewRequest(http.MethodPost, "/test", strings.NewReader("{not json")), &req)
	require.ErrorIs(t, err, ErrMalformedBody)

	w := httptest.NewRecorder()
	RespondWithDecodeError(w, err)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "MALFORMED_BODY", decodeError(t, w).Code)
}

func TestDecodeAndValidate_RejectsUnknownFields(t *testing.T) {
	var req addLineBody
	err := DecodeAndValidate(jsonRequest(t, map[string]interface{}{"code": "x", "qty": "1", "price": "0.01"}), &req)
	assert.ErrorIs(t, err, ErrMalformedBody)
}

func TestRespondWithDecodeError_ValidationFailures(t *testing.T) {
	var req addLineBody
	err := DecodeAndValidate(jsonRequest(t, map[string]interface{}{"qty": "1"}), &req)

	w := httptest.NewRecorder()
	RespondWithDecodeError(w, err)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_FAILED", decodeError(t, w).Code)
}
