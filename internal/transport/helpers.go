package transport

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"pos-core/internal/apperr"
	"pos-core/internal/middleware"
	"pos-core/internal/service"
)

var ErrInvalidID = apperr.Validation("INVALID_ID", "identifier must be a UUID")

// Routes carries the middleware handlers use to guard their endpoints.
type Routes struct {
	Auth   func(http.Handler) http.Handler
	Logger *zap.Logger
}

// Protect authenticates the request and then checks op against the
// operator's role.
func (rt Routes) Protect(op service.Operation) func(http.Handler) http.Handler {
	perm := middleware.RequirePermission(op, rt.Logger)
	return func(next http.Handler) http.Handler {
		return rt.Auth(perm(next))
	}
}

func urlUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, ErrInvalidID.Wrap(err)
	}
	return id, nil
}

func queryUUID(r *http.Request, name string) (*uuid.UUID, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, ErrInvalidID.Wrap(err)
	}
	return &id, nil
}

func queryInt(r *http.Request, name string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return fallback
	}
	return v
}

// actor returns the operator making the request, for audit entries.
func actor(r *http.Request) *uuid.UUID {
	p, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		return nil
	}
	id := p.UserID
	return &id
}

func optionalUUID(raw *string) (*uuid.UUID, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(*raw)
	if err != nil {
		return nil, ErrInvalidID.Wrap(err)
	}
	return &id, nil
}
