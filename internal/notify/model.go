// Package notify delivers RSVP confirmation emails and keeps an audit trail of every attempt.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Status records the outcome of one delivery attempt.
type Status string

const (
	StatusDelivered Status = "delivered"
	StatusFailed    Status = "failed"
)

// Kind names the email template that was sent.
type Kind string

const (
	KindRSVPConfirmation Kind = "rsvp_confirmation"
	KindPasswordReset    Kind = "password_reset"
)

// EmailLog is the audit record written for every attempt.
type EmailLog struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Recipient   string    `db:"recipient" json:"to"`
	EventID     string    `db:"event_id" json:"eventId,omitempty"`
	EventName   string    `db:"event_name" json:"eventName,omitempty"`
	Kind        Kind      `db:"kind" json:"kind"`
	Status      Status    `db:"status" json:"status"`
	Error       string    `db:"error" json:"error,omitempty"`
	RequestedBy string    `db:"requested_by" json:"requestedBy,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// LogFilter narrows audit log listings.
type LogFilter struct {
	Status    *Status
	EventID   string
	Recipient string
	Limit     int
}

// LogRepository stores email audit records. Records are append-only.
type LogRepository interface {
	Append(ctx context.Context, entry EmailLog) error
	List(ctx context.Context, filter LogFilter) ([]EmailLog, error)
}

// Request is the payload of the RSVP confirmation endpoint.
type Request struct {
	To            string `json:"to"`
	EventID       string `json:"eventId"`
	EventName     string `json:"eventName"`
	EventDate     string `json:"eventDate,omitempty"`
	EventTime     string `json:"eventTime,omitempty"`
	EventLocation string `json:"eventLocation,omitempty"`
}

// Message is a rendered email ready for a Mailer.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}
