package sqldb

import (
	"context"

	"github.com/MuadBenMusa/sparkcore-backend/internal/bank/domain"
	"github.com/MuadBenMusa/sparkcore-backend/internal/bank/store"
)

type auditLogsRepo struct {
	conn
}

func (r *auditLogsRepo) AppendAuditLog(ctx context.Context, rec domain.AuditRecord) (bool, error) {
	res, err := r.exec(ctx,
		`INSERT INTO audit_logs (id, event_id, username, action, details, client_ip, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (event_id) DO NOTHING`,
		rec.ID, rec.EventID, rec.Username, rec.Action, rec.Details, rec.ClientIP, rec.Status, rec.CreatedAt.UTC(),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *auditLogsRepo) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditRecord, error) {
	rows, err := r.query(ctx,
		`SELECT id, event_id, username, action, details, client_ip, status, created_at
		 FROM audit_logs ORDER BY created_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(s scanner) (domain.AuditRecord, error) {
		var a domain.AuditRecord
		err := s.Scan(&a.ID, &a.EventID, &a.Username, &a.Action, &a.Details, &a.ClientIP, &a.Status, &a.CreatedAt)
		return a, err
	})
}

var _ store.AuditLogs = (*auditLogsRepo)(nil)
