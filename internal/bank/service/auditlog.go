package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MuadBenMusa/sparkcore-backend/internal/bank/audit"
	"github.com/MuadBenMusa/sparkcore-backend/internal/bank/domain"
	"github.com/MuadBenMusa/sparkcore-backend/internal/bank/store"
	"github.com/MuadBenMusa/sparkcore-backend/pkg/idx"
	"github.com/MuadBenMusa/sparkcore-backend/pkg/slogx"
)

const (
	DefaultAuditPageSize = 100
	MaxAuditPageSize     = 1000
)

// AuditLogService is the write side of the audit pipeline and the read side
// for administrators.
type AuditLogService struct {
	Store store.Store
}

var _ audit.Sink = (*AuditLogService)(nil)

// Append stores ev. A redelivered event is ignored.
func (s *AuditLogService) Append(ctx context.Context, ev audit.Event) error {
	rec := domain.AuditRecord{
		ID:        idx.NewAt(ev.OccurredAt).String(),
		EventID:   ev.ID,
		Username:  ev.ActorUsername,
		Action:    string(ev.Action),
		Details:   ev.Details(),
		ClientIP:  ev.ClientAddress,
		Status:    string(ev.Status),
		CreatedAt: ev.OccurredAt,
	}

	written, err := s.Store.AuditLogs().AppendAuditLog(ctx, rec)
	if err != nil {
		return fmt.Errorf("append audit log: %w", err)
	}
	if !written {
		slogx.FromContext(ctx).Debug("duplicate audit event ignored", slog.String("event_id", ev.ID))
	}
	return nil
}

// List returns the newest audit records. limit is clamped to
// [1, MaxAuditPageSize]; zero means DefaultAuditPageSize.
func (s *AuditLogService) List(ctx context.Context, limit int) ([]domain.AuditRecord, error) {
	switch {
	case limit <= 0:
		limit = DefaultAuditPageSize
	case limit > MaxAuditPageSize:
		limit = MaxAuditPageSize
	}
	return s.Store.AuditLogs().ListAuditLogs(ctx, limit)
}
