package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"alumni/internal/config"
	"alumni/internal/content"
	"alumni/internal/dashboard"
	"alumni/internal/events"
	"alumni/internal/identity"
	"alumni/internal/members"
	"alumni/internal/notify"
	"alumni/internal/platform/cache"
	"alumni/internal/platform/logging"
	"alumni/internal/session"
)

type mailerStub struct {
	mu     sync.Mutex
	sendFn func(ctx context.Context, msg notify.Message) error
	sent   []notify.Message
}

func (m *mailerStub) Send(ctx context.Context, msg notify.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendFn != nil {
		if err := m.sendFn(ctx, msg); err != nil {
			return err
		}
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *mailerStub) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type testApp struct {
	handler   http.Handler
	provider  *identity.LocalProvider
	members   *members.Service
	resolver  *session.Resolver
	events    *events.Service
	emailLogs notify.LogRepository
	mailer    *mailerStub
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	emailLogs := notify.NewInMemoryLogRepository()
	mailer := &mailerStub{}
	renderer, err := notify.NewRenderer("Test Alumni Association")
	require.NoError(t, err)

	provider := identity.NewLocalProvider(
		identity.NewInMemoryRepository(),
		identity.NewTokenIssuer([]byte("http-test-secret"), time.Hour),
		cache.NewMemory(),
		notify.NewPasswordResetMailer(renderer, mailer, emailLogs, nil),
		identity.LocalConfig{MaxFailedAttempts: 3, LockoutWindow: time.Minute, ResetTTL: time.Hour, BcryptCost: bcrypt.MinCost},
		nil, nil,
	)
	memberSvc := members.NewService(members.NewInMemoryRepository(), members.NewInMemoryAuditRepository(), nil)
	resolver := session.NewResolver(provider, memberSvc, session.NewPublisher(nil), nil, nil)
	memberSvc.OnChange(resolver.Refresh)

	eventSvc := events.NewService(events.NewInMemoryRepository(), nil)
	dispatcher := notify.NewDispatcher(provider, renderer, mailer, emailLogs, nil, nil)
	confirmer := notify.NewConfirmer(notify.NewLocalCallable(dispatcher), emailLogs, nil, nil)

	cfg := config.Config{Environment: "development", AllowedOrigins: []string{"http://localhost:5173"}}
	handler := NewRouter(cfg, Services{
		Resolver:   resolver,
		Members:    memberSvc,
		Content:    content.NewService(content.NewInMemoryRepository(), nil),
		Events:     eventSvc,
		Dashboard:  dashboard.NewService(memberSvc, eventSvc, emailLogs),
		EmailLogs:  emailLogs,
		Dispatcher: dispatcher,
		Confirmer:  confirmer,
	}, discardLogger())

	return &testApp{
		handler:   handler,
		provider:  provider,
		members:   memberSvc,
		resolver:  resolver,
		events:    eventSvc,
		emailLogs: emailLogs,
		mailer:    mailer,
	}
}

func (a *testApp) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

// register signs up through the API and returns the identity token.
func (a *testApp) register(t *testing.T, email string) string {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/auth/register", map[string]any{
		"email":           email,
		"password":        "secret1",
		"confirmPassword": "secret1",
		"firstName":       "Test",
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Token string `json:"token"`
	}
	decodeBody(t, rec, &resp)
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

// approvedMember registers and approves a member.
func (a *testApp) approvedMember(t *testing.T, email string) string {
	t.Helper()
	token := a.register(t, email)
	_, rs, err := a.resolver.Current(context.Background(), token)
	require.NoError(t, err)
	_, err = a.members.SetApproval(context.Background(), "test", rs.Session.Principal.ID, true)
	require.NoError(t, err)
	return token
}

// admin provisions an admin account and signs in through the API in admin mode.
func (a *testApp) admin(t *testing.T, email string) string {
	t.Helper()
	token, err := a.provider.CreateAccount(context.Background(), email, "secret1")
	require.NoError(t, err)
	_, err = a.members.Promote(context.Background(), "ops", "test", token.Principal.ID, token.Principal.Email)
	require.NoError(t, err)

	rec := a.do(t, http.MethodPost, "/api/auth/login", map[string]any{
		"email": email, "password": "secret1", "adminMode": true,
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Token string `json:"token"`
	}
	decodeBody(t, rec, &resp)
	return resp.Token
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

func discardLogger() *slog.Logger {
	return logging.Discard()
}

func newRequest(t *testing.T, method, path string) *http.Request {
	t.Helper()
	return httptest.NewRequest(method, path, nil)
}

func serve(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}
