package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alumni/internal/guard"
	"alumni/internal/members"
	"alumni/internal/notify"
	"alumni/internal/session"
)

func TestHealthReportsEnvironment(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodGet, "/health", nil, "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"environment":"development"`)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))
}

func TestMemberRoutesRequireSignIn(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodGet, "/api/members", nil, "")

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	var resp guardResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, guard.RedirectLogin, resp.Outcome)
	assert.Equal(t, guard.LoginPath, resp.Redirect)
	assert.Equal(t, "/api/members", resp.ReturnTo)
}

func TestInvalidTokenIsTreatedAsSignedOut(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodGet, "/api/auth/session", nil, "not-a-token")

	require.Equal(t, http.StatusOK, rec.Code)
	var state session.State
	decodeBody(t, rec, &state)
	assert.Equal(t, session.StatusResolved, state.Status)
	assert.Nil(t, state.Session)
}

func TestRegisteredMemberIsPendingUntilApproved(t *testing.T) {
	app := newTestApp(t)
	token := app.register(t, "new@alumni.test")

	rec := app.do(t, http.MethodGet, "/api/members", nil, token)
	require.Equal(t, http.StatusForbidden, rec.Code)
	var resp guardResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, guard.RedirectPendingApproval, resp.Outcome)
	assert.Equal(t, guard.PendingApprovalPath, resp.Redirect)

	adminToken := app.admin(t, "admin@alumni.test")
	rec = app.do(t, http.MethodGet, "/api/admin/members?status=pending", nil, adminToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var pending struct {
		Members []members.Profile `json:"members"`
	}
	decodeBody(t, rec, &pending)
	require.Len(t, pending.Members, 1)

	rec = app.do(t, http.MethodPut, "/api/admin/members/"+pending.Members[0].ID.String()+"/approval", map[string]any{"approved": true}, adminToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = app.do(t, http.MethodGet, "/api/members", nil, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestReturnToHeaderIsSanitised(t *testing.T) {
	app := newTestApp(t)

	for _, tc := range []struct {
		header string
		want   string
	}{
		{header: "/events?tab=mine", want: "/events?tab=mine"},
		{header: "//evil.example", want: guard.HomePath},
		{header: "https://evil.example/x", want: guard.HomePath},
	} {
		req := newRequest(t, http.MethodGet, "/api/rsvps")
		req.Header.Set("X-Return-To", tc.header)
		rec := serve(app.handler, req)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		var resp guardResponse
		decodeBody(t, rec, &resp)
		assert.Equal(t, tc.want, resp.ReturnTo, tc.header)
	}
}

func TestAdminRoutesRedirectMembersHome(t *testing.T) {
	app := newTestApp(t)
	token := app.approvedMember(t, "member@alumni.test")

	rec := app.do(t, http.MethodGet, "/api/admin/dashboard", nil, token)

	require.Equal(t, http.StatusForbidden, rec.Code)
	var resp guardResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, guard.RedirectHome, resp.Outcome)
}

func TestAdminModeLoginRejectsMembers(t *testing.T) {
	app := newTestApp(t)
	app.approvedMember(t, "member@alumni.test")

	rec := app.do(t, http.MethodPost, "/api/auth/login", map[string]any{
		"email": "member@alumni.test", "password": "secret1", "adminMode": true,
	}, "")

	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, rec.Result().Cookies())
}

func TestLoginErrorsMapToStatusCodes(t *testing.T) {
	app := newTestApp(t)
	app.register(t, "member@alumni.test")

	rec := app.do(t, http.MethodPost, "/api/auth/login", map[string]any{"email": "nobody@alumni.test", "password": "secret1"}, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = app.do(t, http.MethodPost, "/api/auth/login", map[string]any{"email": "member@alumni.test", "password": "wrong-password"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	var resp errorResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "incorrect email or password", resp.Error)
}

func TestLoginSetsSessionCookie(t *testing.T) {
	app := newTestApp(t)
	app.register(t, "member@alumni.test")

	rec := app.do(t, http.MethodPost, "/api/auth/login", map[string]any{"email": "member@alumni.test", "password": "secret1"}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.False(t, cookie.Secure)

	req := newRequest(t, http.MethodGet, "/api/profile")
	req.AddCookie(cookie)
	rec = serve(app.handler, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"email":"member@alumni.test"`)
}

func TestLogoutSignsOutSession(t *testing.T) {
	app := newTestApp(t)
	token := app.register(t, "member@alumni.test")

	rec := app.do(t, http.MethodPost, "/api/auth/logout", nil, token)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = app.do(t, http.MethodGet, "/api/profile", nil, token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterRejectsUnknownFieldsAndBadInput(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodPost, "/api/auth/register", map[string]any{"email": "a@alumni.test", "role": "admin"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.do(t, http.MethodPost, "/api/auth/register", map[string]any{
		"email": "a@alumni.test", "password": "secret1", "confirmPassword": "secret2",
	}, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp errorResponse
	decodeBody(t, rec, &resp)
	assert.Contains(t, resp.Fields, "confirmPassword")
}

func TestUpdateProfileIsVisibleInSession(t *testing.T) {
	app := newTestApp(t)
	token := app.register(t, "member@alumni.test")

	rec := app.do(t, http.MethodPut, "/api/profile", map[string]any{"city": "Lisbon", "graduationYear": 2010}, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = app.do(t, http.MethodGet, "/api/auth/session", nil, token)
	var state session.State
	decodeBody(t, rec, &state)
	require.NotNil(t, state.Session)
	assert.Equal(t, "Lisbon", state.Session.Profile.City)
	require.NotNil(t, state.Session.Profile.GraduationYear)
	assert.Equal(t, 2010, *state.Session.Profile.GraduationYear)

	rec = app.do(t, http.MethodPut, "/api/profile", map[string]any{"graduationYear": nil}, token)
	require.Equal(t, http.StatusOK, rec.Code)
	var cleared session.State
	decodeBody(t, app.do(t, http.MethodGet, "/api/auth/session", nil, token), &cleared)
	require.NotNil(t, cleared.Session)
	assert.Nil(t, cleared.Session.Profile.GraduationYear)
	assert.Equal(t, "Lisbon", cleared.Session.Profile.City)
}

func TestRSVPKeptWhenConfirmationEmailFails(t *testing.T) {
	app := newTestApp(t)
	adminToken := app.admin(t, "admin@alumni.test")
	token := app.approvedMember(t, "member@alumni.test")
	eventID := createEvent(t, app, adminToken)

	app.mailer.sendFn = func(context.Context, notify.Message) error { return errors.New("smtp down") }

	rec := app.do(t, http.MethodPost, "/api/events/"+eventID+"/rsvp", nil, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp struct {
		RSVP  struct{ Status string } `json:"rsvp"`
		Email notify.Result            `json:"email"`
	}
	decodeBody(t, rec, &resp)
	assert.Equal(t, "confirmed", resp.RSVP.Status)
	assert.False(t, resp.Email.Delivered)
	assert.NotEmpty(t, resp.Email.Error)

	rec = app.do(t, http.MethodGet, "/api/rsvps", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), eventID)

	failed := notify.StatusFailed
	logs, err := app.emailLogs.List(context.Background(), notify.LogFilter{Status: &failed})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "member@alumni.test", logs[0].Recipient)

	app.mailer.sendFn = nil
	rec = app.do(t, http.MethodPost, "/api/events/"+eventID+"/rsvp/resend", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &resp)
	assert.True(t, resp.Email.Delivered)
	assert.Equal(t, 1, app.mailer.count())
}

func TestRSVPRequiresApprovalAndRejectsDuplicates(t *testing.T) {
	app := newTestApp(t)
	adminToken := app.admin(t, "admin@alumni.test")
	eventID := createEvent(t, app, adminToken)

	pending := app.register(t, "pending@alumni.test")
	rec := app.do(t, http.MethodPost, "/api/events/"+eventID+"/rsvp", nil, pending)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	token := app.approvedMember(t, "member@alumni.test")
	rec = app.do(t, http.MethodPost, "/api/events/"+eventID+"/rsvp", nil, token)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = app.do(t, http.MethodPost, "/api/events/"+eventID+"/rsvp", nil, token)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = app.do(t, http.MethodDelete, "/api/events/"+eventID+"/rsvp", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"cancelled"`)

	rec = app.do(t, http.MethodPost, "/api/events/"+eventID+"/rsvp/resend", nil, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEmailEndpointRequiresBearerToken(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodPost, "/api/email/rsvp-confirmation", map[string]any{
		"to": "member@alumni.test", "eventId": "e1", "eventName": "Reunion",
	}, "")

	require.Equal(t, http.StatusForbidden, rec.Code)
	var resp errorResponse
	decodeBody(t, rec, &resp)
	assert.NotEmpty(t, resp.Error)
	assert.Zero(t, app.mailer.count())

	logs, err := app.emailLogs.List(context.Background(), notify.LogFilter{})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, notify.StatusFailed, logs[0].Status)
}

func TestEmailEndpointMalformedBody(t *testing.T) {
	app := newTestApp(t)
	post := func(token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/email/rsvp-confirmation", strings.NewReader(`{"to":`))
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		return serve(app.handler, req)
	}

	assert.Equal(t, http.StatusForbidden, post("").Code)

	token := app.register(t, "member@alumni.test")
	assert.Equal(t, http.StatusBadRequest, post(token).Code)

	failed := notify.StatusFailed
	logs, err := app.emailLogs.List(context.Background(), notify.LogFilter{Status: &failed})
	require.NoError(t, err)
	assert.Len(t, logs, 2)
	assert.Zero(t, app.mailer.count())
}

func TestEmailEndpointRejectsOtherRecipients(t *testing.T) {
	app := newTestApp(t)
	token := app.register(t, "member@alumni.test")

	rec := app.do(t, http.MethodPost, "/api/email/rsvp-confirmation", map[string]any{
		"to": "someone@else.test", "eventId": "e1", "eventName": "Reunion",
	}, token)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, app.mailer.count())
}

func TestEmailEndpointDelivers(t *testing.T) {
	app := newTestApp(t)
	token := app.register(t, "member@alumni.test")

	rec := app.do(t, http.MethodPost, "/api/email/rsvp-confirmation", map[string]any{
		"to": "member@alumni.test", "eventId": "e1", "eventName": "Reunion",
	}, token)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())
	assert.Equal(t, 1, app.mailer.count())
}

func TestBusinessListingsForApprovedMembers(t *testing.T) {
	app := newTestApp(t)
	token := app.approvedMember(t, "member@alumni.test")

	rec := app.do(t, http.MethodPost, "/api/content/businesses", map[string]any{
		"title": "Corner Bakery", "body": "<p>Fresh bread</p><script>alert(1)</script>", "published": true,
	}, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "alert(1)")

	rec = app.do(t, http.MethodPost, "/api/content/announcements", map[string]any{"title": "Hello", "published": true}, token)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = app.do(t, http.MethodGet, "/api/content/businesses", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"businesses":[`)

	rec = app.do(t, http.MethodGet, "/api/content/gossip", nil, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminDeleteRemovesMemberAndSessions(t *testing.T) {
	app := newTestApp(t)
	adminToken := app.admin(t, "admin@alumni.test")
	token := app.approvedMember(t, "member@alumni.test")
	_, rs, err := app.resolver.Current(context.Background(), token)
	require.NoError(t, err)

	rec := app.do(t, http.MethodDelete, "/api/admin/members/"+rs.Session.Principal.ID.String(), nil, adminToken)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = app.do(t, http.MethodGet, "/api/members", nil, token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = app.do(t, http.MethodGet, "/api/admin/audit", nil, adminToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), members.ActionDelete)
}

func TestAdminExportsDirectoryAsCSV(t *testing.T) {
	app := newTestApp(t)
	adminToken := app.admin(t, "admin@alumni.test")
	app.approvedMember(t, "member@alumni.test")

	rec := app.do(t, http.MethodGet, "/api/admin/members/export", nil, adminToken)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/csv"))
	assert.Contains(t, rec.Body.String(), "member@alumni.test")
}

func TestDashboardSummarisesCounts(t *testing.T) {
	app := newTestApp(t)
	adminToken := app.admin(t, "admin@alumni.test")
	app.register(t, "pending@alumni.test")
	createEvent(t, app, adminToken)

	rec := app.do(t, http.MethodGet, "/api/admin/dashboard", nil, adminToken)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Members        members.Counts `json:"members"`
		UpcomingEvents []any          `json:"upcomingEvents"`
	}
	decodeBody(t, rec, &resp)
	assert.Equal(t, 2, resp.Members.Total)
	assert.Equal(t, 1, resp.Members.Pending)
	assert.Equal(t, 1, resp.Members.Admins)
	assert.Len(t, resp.UpcomingEvents, 1)
}

func TestGuardEndpointReportsDecision(t *testing.T) {
	app := newTestApp(t)
	token := app.register(t, "member@alumni.test")

	rec := app.do(t, http.MethodGet, "/api/guard?kind=member&path=/directory", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	var decision guard.Decision
	decodeBody(t, rec, &decision)
	assert.Equal(t, guard.RedirectPendingApproval, decision.Outcome)
	assert.Equal(t, "/directory", decision.ReturnTo)

	rec = app.do(t, http.MethodGet, "/api/guard?kind=owner", nil, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSignInMethods(t *testing.T) {
	app := newTestApp(t)
	app.register(t, "member@alumni.test")

	rec := app.do(t, http.MethodGet, "/api/auth/methods?email=member@alumni.test", nil, "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"methods":["password"]}`, rec.Body.String())
}

func TestPasswordResetFlow(t *testing.T) {
	app := newTestApp(t)
	app.register(t, "member@alumni.test")

	rec := app.do(t, http.MethodPost, "/api/auth/password-reset", map[string]any{"email": "member@alumni.test"}, "")
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	require.Equal(t, 1, app.mailer.count())

	rec = app.do(t, http.MethodPost, "/api/auth/password-reset/confirm", map[string]any{
		"email": "member@alumni.test", "code": "000000-wrong", "password": "newsecret",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func createEvent(t *testing.T, app *testApp, adminToken string) string {
	t.Helper()
	rec := app.do(t, http.MethodPost, "/api/events", map[string]any{
		"name":     "Annual Reunion",
		"location": "Main Hall",
		"date":     time.Now().UTC().AddDate(0, 1, 0).Format("2006-01-02"),
		"time":     "18:00",
		"capacity": 50,
	}, adminToken)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		ID string `json:"id"`
	}
	decodeBody(t, rec, &resp)
	return resp.ID
}
