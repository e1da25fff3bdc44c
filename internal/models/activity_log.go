package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Activity log outcomes.
const (
	OutcomeSuccess = "exitoso"
	OutcomeFailure = "fallido"
)

// ActivityLog is an append-only audit record.
type ActivityLog struct {
	ID           string          `db:"id" json:"id"`
	UserID       *string         `db:"user_id" json:"user_id,omitempty"`
	Username     *string         `db:"username" json:"username,omitempty"`
	Action       string          `db:"action" json:"action"`
	Module       string          `db:"module" json:"module"`
	EntityID     *string         `db:"entity_id" json:"entity_id,omitempty"`
	Description  string          `db:"description" json:"description"`
	OldData      *types.JSONText `db:"old_data" json:"old_data,omitempty"`
	NewData      *types.JSONText `db:"new_data" json:"new_data,omitempty"`
	IPAddress    string          `db:"ip_address" json:"ip_address"`
	UserAgent    string          `db:"user_agent" json:"user_agent"`
	Outcome      string          `db:"outcome" json:"outcome"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

// ActivityLogFilter captures listing criteria.
type ActivityLogFilter struct {
	UserID   string
	Module   string
	Action   string
	Outcome  string
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// AuditEntry is what services hand to the activity logger.
type AuditEntry struct {
	Actor        *Principal
	Action       string
	Module       string
	EntityID     string
	Description  string
	Old          interface{}
	New          interface{}
	IP           string
	UserAgent    string
	Outcome      string
	ErrorMessage string
}
