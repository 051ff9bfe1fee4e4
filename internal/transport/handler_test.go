package transport

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pos-core/internal/middleware"
	"pos-core/internal/service"
)

const testSecret = "transport-test-secret"

type registrar interface {
	RegisterRoutes(r chi.Router, rt Routes)
}

func testRoutes() Routes {
	validator := service.NewAuthService(nil, nil, nil, service.AuthOptions{JWTSecret: testSecret}, zap.NewNop())
	return Routes{Auth: middleware.AuthMiddleware(validator, zap.NewNop()), Logger: zap.NewNop()}
}

func newRouter(handlers ...registrar) http.Handler {
	r := chi.NewRouter()
	rt := testRoutes()
	for _, h := range handlers {
		h.RegisterRoutes(r, rt)
	}
	return r
}

type operator struct {
	ID   uuid.UUID
	Role string
}

func (o operator) token(t *testing.T) string {
	t.Helper()
	now := time.Now()
	claims := service.Claims{
		UserID:   o.ID,
		Username: "op-" + o.Role,
		Role:     o.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func do(t *testing.T, h http.Handler, method, path string, as *operator, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		req = httptest.NewRequest(method, path, bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if as != nil {
		req.Header.Set("Authorization", "Bearer "+as.token(t))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[middleware.ErrorResponse](t, w).Error.Code
}
