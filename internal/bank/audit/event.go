// Package audit carries audit events from the services that produce them to
// the append-only audit log. Producers hand events to a Publisher which
// delivers them asynchronously over a Redis stream; a Consumer reads the
// stream in a consumer group and appends each event through a Sink.
package audit

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MuadBenMusa/sparkcore-backend/pkg/httpx"
)

type Action string

const (
	ActionLoginSuccess  Action = "LOGIN_SUCCESS"
	ActionLoginFailed   Action = "LOGIN_FAILED"
	ActionLogout        Action = "LOGOUT"
	ActionCreateAccount Action = "CREATE_ACCOUNT"
	ActionTransfer      Action = "TRANSFER"
)

type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
)

// SystemActor is recorded when an event has no authenticated user behind it.
const SystemActor = "SYSTEM"

// Event is the contract carried by the transport. ID is unique per event and
// lets the consumer drop redelivered copies.
type Event struct {
	ID            string           `json:"id"`
	Action        Action           `json:"action"`
	FromIBAN      string           `json:"fromIban,omitempty"`
	ToIBAN        string           `json:"toIban,omitempty"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	Status        Status           `json:"status"`
	ActorUsername string           `json:"actorUsername"`
	ClientAddress string           `json:"clientAddress,omitempty"`
	OccurredAt    time.Time        `json:"occurredAt"`
}

// NewEvent stamps a fresh event. The client address is taken from ctx when
// the request went through httpx.ClientIPMiddleware.
func NewEvent(ctx context.Context, action Action, status Status, actor string) Event {
	if actor == "" {
		actor = SystemActor
	}
	return Event{
		ID:            uuid.NewString(),
		Action:        action,
		Status:        status,
		ActorUsername: actor,
		ClientAddress: httpx.ClientIPFromContext(ctx),
		OccurredAt:    time.Now().UTC(),
	}
}

// WithAmount returns e with the money movement fields set. Empty IBANs are
// left out.
func (e Event) WithAmount(from, to string, amount decimal.Decimal) Event {
	e.FromIBAN = from
	e.ToIBAN = to
	e.Amount = &amount
	return e
}

// Details renders the human-readable summary stored with the audit record.
func (e Event) Details() string {
	var b strings.Builder
	b.WriteString("action=")
	b.WriteString(string(e.Action))
	if e.Amount != nil {
		b.WriteString(" amount=")
		b.WriteString(e.Amount.StringFixed(2))
	}
	if e.FromIBAN != "" {
		b.WriteString(" from=")
		b.WriteString(e.FromIBAN)
	}
	if e.ToIBAN != "" {
		b.WriteString(" to=")
		b.WriteString(e.ToIBAN)
	}
	return b.String()
}
