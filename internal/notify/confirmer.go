package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"alumni/internal/identity"
	"alumni/internal/platform/metrics"
)

// Result is what the caller learns about a confirmation attempt.
type Result struct {
	Delivered bool   `json:"delivered"`
	Error     string `json:"error,omitempty"`
}

// Confirmer sends RSVP confirmations after the RSVP has been written. It never fails the
// caller and never retries; a failed Result is the cue to offer a resend.
type Confirmer struct {
	callable Callable
	logs     LogRepository
	logger   *slog.Logger
	recorder metrics.Recorder
	now      func() time.Time
}

// NewConfirmer wires the caller side of the confirmation endpoint.
func NewConfirmer(callable Callable, logs LogRepository, logger *slog.Logger, recorder metrics.Recorder) *Confirmer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Confirmer{
		callable: callable,
		logs:     logs,
		logger:   logger,
		recorder: recorder,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Confirm calls the endpoint on behalf of token's principal.
func (c *Confirmer) Confirm(ctx context.Context, token identity.Token, req Request) Result {
	err := c.callable.Call(ctx, token.Raw, req)
	if err == nil {
		return Result{Delivered: true}
	}

	var remote *RemoteError
	if errors.As(err, &remote) {
		return Result{Error: remote.Message}
	}

	// The endpoint was never reached, so nothing audited the attempt yet.
	c.recorder.RecordEmail(string(StatusFailed))
	entry := EmailLog{
		ID:          uuid.New(),
		Recipient:   req.To,
		EventID:     req.EventID,
		EventName:   req.EventName,
		Kind:        KindRSVPConfirmation,
		Status:      StatusFailed,
		Error:       err.Error(),
		RequestedBy: token.Principal.ID.String(),
		CreatedAt:   c.now(),
	}
	if logErr := c.logs.Append(ctx, entry); logErr != nil {
		c.logger.Error("append email log", "event_id", req.EventID, "error", logErr)
	}
	c.logger.Warn("email endpoint unreachable", "event_id", req.EventID, "error", err)
	return Result{Error: "confirmation email could not be sent"}
}

// PasswordResetMailer delivers reset codes for the identity provider.
type PasswordResetMailer struct {
	renderer *Renderer
	mailer   Mailer
	logs     LogRepository
	logger   *slog.Logger
	now      func() time.Time
}

// NewPasswordResetMailer wires reset-code delivery.
func NewPasswordResetMailer(renderer *Renderer, mailer Mailer, logs LogRepository, logger *slog.Logger) *PasswordResetMailer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &PasswordResetMailer{
		renderer: renderer,
		mailer:   mailer,
		logs:     logs,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SendPasswordReset renders and sends the reset code, auditing the outcome.
func (m *PasswordResetMailer) SendPasswordReset(ctx context.Context, email, code string) error {
	msg, err := m.renderer.PasswordReset(email, code)
	if err == nil {
		err = m.mailer.Send(ctx, msg)
	}

	entry := EmailLog{
		ID:        uuid.New(),
		Recipient: email,
		Kind:      KindPasswordReset,
		Status:    StatusDelivered,
		CreatedAt: m.now(),
	}
	if err != nil {
		entry.Status = StatusFailed
		entry.Error = err.Error()
	}
	if logErr := m.logs.Append(ctx, entry); logErr != nil {
		m.logger.Error("append email log", "kind", KindPasswordReset, "error", logErr)
	}
	return err
}

var _ identity.ResetMailer = (*PasswordResetMailer)(nil)
