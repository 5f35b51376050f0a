package models

import "time"

// Account lifecycle event types published to the event stream.
const (
	EventAccountRegistered = "account.registered"
	EventAccountDeleted    = "account.deleted"
	EventAccountLogin      = "account.login"
	EventAccountLogout     = "account.logout"
	EventPasswordChanged   = "account.password_changed"
)

// AccountEvent describes something that happened to an account.
type AccountEvent struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	AccountID  string            `json:"account_id"`
	Username   string            `json:"username,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}
