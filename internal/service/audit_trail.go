package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pos-core/internal/database"
	"pos-core/internal/domain"
	"pos-core/internal/repository"
)

// AuditRecord is one change to append. Before and After are marshalled to
// JSON; nil means no snapshot.
type AuditRecord struct {
	ActorID    *uuid.UUID
	Action     string
	EntityType string
	EntityID   string
	Before     any
	After      any
}

// AuditTrail appends audit entries. Record runs on q when it is non-nil so
// the entry commits or rolls back with the caller's transaction.
type AuditTrail interface {
	Record(ctx context.Context, q database.DBTX, rec AuditRecord) error
	List(ctx context.Context, filter repository.AuditFilter) ([]*domain.AuditEntry, error)
}

type auditTrail struct {
	repo repository.AuditRepository
	now  func() time.Time
}

func NewAuditTrail(repo repository.AuditRepository) AuditTrail {
	return &auditTrail{repo: repo, now: time.Now}
}

func (a *auditTrail) Record(ctx context.Context, q database.DBTX, rec AuditRecord) error {
	if rec.Action == "" || rec.EntityType == "" || rec.EntityID == "" {
		return ErrInvalidAudit
	}

	before, err := marshalSnapshot(rec.Before)
	if err != nil {
		return fmt.Errorf("failed to encode audit before: %w", err)
	}
	after, err := marshalSnapshot(rec.After)
	if err != nil {
		return fmt.Errorf("failed to encode audit after: %w", err)
	}

	repo := a.repo
	if q != nil {
		repo = repo.WithDB(q)
	}

	entry := &domain.AuditEntry{
		ID:         uuid.New(),
		ActorID:    rec.ActorID,
		Action:     rec.Action,
		EntityType: rec.EntityType,
		EntityID:   rec.EntityID,
		Before:     before,
		After:      after,
		CreatedAt:  a.now().UTC(),
	}
	if err := repo.Insert(ctx, entry); err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}
	return nil
}

func (a *auditTrail) List(ctx context.Context, filter repository.AuditFilter) ([]*domain.AuditEntry, error) {
	entries, err := a.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	return entries, nil
}

func marshalSnapshot(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(v)
}
