package notify

import (
	"context"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"

	"alumni/internal/apperr"
	"alumni/internal/identity"
	"alumni/internal/platform/metrics"
)

// TokenVerifier re-validates a caller's identity token server side.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (identity.Token, error)
}

var errForeignRecipient = apperr.New(apperr.ErrAuthorization, "confirmations can only be sent to your own address")

// Dispatcher is the RSVP confirmation endpoint. Every attempt, failed or not, leaves an EmailLog.
type Dispatcher struct {
	verifier TokenVerifier
	renderer *Renderer
	mailer   Mailer
	logs     LogRepository
	logger   *slog.Logger
	recorder metrics.Recorder
	now      func() time.Time
}

// NewDispatcher wires the endpoint.
func NewDispatcher(verifier TokenVerifier, renderer *Renderer, mailer Mailer, logs LogRepository, logger *slog.Logger, recorder metrics.Recorder) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Dispatcher{
		verifier: verifier,
		renderer: renderer,
		mailer:   mailer,
		logs:     logs,
		logger:   logger,
		recorder: recorder,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SendRSVPConfirmation authenticates the caller by bearer token and sends the confirmation.
// The role claims of the caller are never trusted; only the verified token is.
func (d *Dispatcher) SendRSVPConfirmation(ctx context.Context, bearer string, req Request) error {
	req = normalizeRequest(req)

	token, err := d.verifier.Verify(ctx, bearer)
	if err != nil {
		d.audit(ctx, req, "", StatusFailed, "unauthenticated caller")
		return apperr.Wrap(apperr.ErrAuthorization, "sign in required", err)
	}
	requestedBy := token.Principal.ID.String()

	if err := validateRequest(req); err != nil {
		d.audit(ctx, req, requestedBy, StatusFailed, err.Error())
		return err
	}
	if !strings.EqualFold(req.To, token.Principal.Email) {
		d.audit(ctx, req, requestedBy, StatusFailed, "recipient is not the caller")
		return errForeignRecipient
	}

	msg, err := d.renderer.RSVPConfirmation(req)
	if err != nil {
		d.audit(ctx, req, requestedBy, StatusFailed, err.Error())
		return apperr.Wrap(apperr.ErrEmailDelivery, "could not render confirmation email", err)
	}

	if err := d.mailer.Send(ctx, msg); err != nil {
		d.audit(ctx, req, requestedBy, StatusFailed, err.Error())
		return apperr.Wrap(apperr.ErrEmailDelivery, "confirmation email could not be sent", err)
	}

	d.audit(ctx, req, requestedBy, StatusDelivered, "")
	return nil
}

// RejectMalformed audits a request whose body could not be decoded. An unauthenticated caller
// still gets the authorization error first.
func (d *Dispatcher) RejectMalformed(ctx context.Context, bearer string, cause error) error {
	token, err := d.verifier.Verify(ctx, bearer)
	if err != nil {
		d.audit(ctx, Request{}, "", StatusFailed, "unauthenticated caller")
		return apperr.Wrap(apperr.ErrAuthorization, "sign in required", err)
	}
	d.audit(ctx, Request{}, token.Principal.ID.String(), StatusFailed, "malformed request body")
	return apperr.Wrap(apperr.ErrValidation, "invalid request body", cause)
}

func (d *Dispatcher) audit(ctx context.Context, req Request, requestedBy string, status Status, reason string) {
	d.recorder.RecordEmail(string(status))
	entry := EmailLog{
		ID:          uuid.New(),
		Recipient:   req.To,
		EventID:     req.EventID,
		EventName:   req.EventName,
		Kind:        KindRSVPConfirmation,
		Status:      status,
		Error:       reason,
		RequestedBy: requestedBy,
		CreatedAt:   d.now(),
	}
	if err := d.logs.Append(ctx, entry); err != nil {
		d.logger.Error("append email log", "status", status, "event_id", req.EventID, "error", err)
	}
	if status == StatusFailed {
		d.logger.Warn("rsvp confirmation failed", "event_id", req.EventID, "reason", reason)
	}
}

func normalizeRequest(req Request) Request {
	req.To = strings.TrimSpace(req.To)
	req.EventID = strings.TrimSpace(req.EventID)
	req.EventName = strings.TrimSpace(req.EventName)
	req.EventDate = strings.TrimSpace(req.EventDate)
	req.EventTime = strings.TrimSpace(req.EventTime)
	req.EventLocation = strings.TrimSpace(req.EventLocation)
	return req
}

func validateRequest(req Request) error {
	err := validation.ValidateStruct(&req,
		validation.Field(&req.To, validation.Required, is.EmailFormat),
		validation.Field(&req.EventID, validation.Required),
		validation.Field(&req.EventName, validation.Required, validation.RuneLength(1, 200)),
		validation.Field(&req.EventTime, validation.RuneLength(0, 40)),
		validation.Field(&req.EventLocation, validation.RuneLength(0, 300)),
	)
	return apperr.Validation(err)
}
