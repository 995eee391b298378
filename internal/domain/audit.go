package domain

import (
	"encoding/json"
	"time"
)

// AuditLog is an immutable record of a significant action. Like journal
// entries, audit records are append-only and never updated or deleted.
type AuditLog struct {
	ID           string
	Actor        string // caller identifier, "system" when unattributed
	Action       string
	ResourceType string // account, transaction
	ResourceID   string
	RequestID    string
	BeforeState  JSON
	AfterState   JSON
	Status       string
	ErrorMessage string
	CreatedAt    time.Time
}

// JSON is a type alias for JSON data
type JSON map[string]any

// AuditAction represents different types of auditable actions
type AuditAction string

const (
	AuditActionAccountOpen     AuditAction = "account.open"
	AuditActionAccountFreeze   AuditAction = "account.freeze"
	AuditActionAccountUnfreeze AuditAction = "account.unfreeze"
	AuditActionAccountClose    AuditAction = "account.close"

	AuditActionTransactionPost    AuditAction = "transaction.post"
	AuditActionTransactionReverse AuditAction = "transaction.reverse"
)

// AuditStatus represents the status of an audited action
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusFailure AuditStatus = "failure"
)

// MarshalState converts a domain object to JSON for audit logging
func MarshalState(v any) JSON {
	if v == nil {
		return nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return JSON{"error": "failed to marshal state"}
	}

	var result JSON
	if err := json.Unmarshal(data, &result); err != nil {
		return JSON{"error": "failed to unmarshal state"}
	}

	return result
}

// AuditFilter defines filters for querying audit logs
type AuditFilter struct {
	Actor        string
	Action       string
	ResourceType string
	ResourceID   string
	StartDate    *time.Time
	EndDate      *time.Time
	Limit        int
	Offset       int
}
