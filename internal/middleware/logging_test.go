package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"pos-core/internal/domain"
)

func TestLoggingMiddleware_RecordsOperatorAndStatus(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	token := signToken(t, testSecret, operatorClaims(uuid.New(), "alice", domain.RoleCashier, time.Hour))

	chain := LoggingMiddleware(zap.New(core))(AuthMiddleware(testValidator(), zap.NewNop())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
		}),
	))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sales", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	chain.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.FilterMessage("Request completed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "alice", fields["operator"])
	assert.EqualValues(t, http.StatusCreated, fields["status"])
}

func TestLoggingMiddleware_ClientErrorsAreWarnings(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	chain := LoggingMiddleware(zap.New(core))(AuthMiddleware(testValidator(), zap.NewNop())(okHandler()))

	chain.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/sales", nil))

	entries := logs.FilterMessage("Request completed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.NotContains(t, entries[0].ContextMap(), "operator")
}
