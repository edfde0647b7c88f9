package domain

import "time"

// AuditRecord is one row of the append-only audit log.
type AuditRecord struct {
	ID        string
	EventID   string // idempotency key carried by the audit event
	Username  string
	Action    string
	Details   string
	ClientIP  string
	Status    string
	CreatedAt time.Time
}
