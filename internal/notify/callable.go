package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"alumni/internal/apperr"
)

// RemoteError is a structured rejection from the confirmation endpoint. The endpoint has
// already written an audit record when one of these is returned.
type RemoteError struct {
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("email endpoint returned %d: %s", e.Status, e.Message)
}

// Callable invokes the confirmation endpoint with the caller's identity token.
type Callable interface {
	Call(ctx context.Context, token string, req Request) error
}

// HTTPCallable calls a remote confirmation endpoint.
type HTTPCallable struct {
	endpoint string
	client   *http.Client
}

// NewHTTPCallable targets endpoint. A nil client gets a 10 second timeout.
func NewHTTPCallable(endpoint string, client *http.Client) *HTTPCallable {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPCallable{endpoint: endpoint, client: client}
}

// Call posts req. Non-2xx responses come back as *RemoteError, transport failures as plain errors.
func (c *HTTPCallable) Call(ctx context.Context, token string, req Request) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode email request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build email request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("call email endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var payload struct {
		Error string `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(raw, &payload); err != nil || payload.Error == "" {
		payload.Error = http.StatusText(resp.StatusCode)
	}
	return &RemoteError{Status: resp.StatusCode, Message: payload.Error}
}

// LocalCallable calls an in-process Dispatcher with the same error contract as HTTPCallable.
type LocalCallable struct {
	dispatcher *Dispatcher
}

// NewLocalCallable wraps dispatcher.
func NewLocalCallable(dispatcher *Dispatcher) *LocalCallable {
	return &LocalCallable{dispatcher: dispatcher}
}

// Call runs the dispatcher and converts its failures into *RemoteError.
func (c *LocalCallable) Call(ctx context.Context, token string, req Request) error {
	err := c.dispatcher.SendRSVPConfirmation(ctx, token, req)
	if err == nil {
		return nil
	}
	return &RemoteError{Status: apperr.Status(err), Message: apperr.Message(err)}
}
