package identity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"alumni/internal/platform/cache"
)

type resetMailerStub struct {
	mu    sync.Mutex
	codes map[string]string
	err   error
}

func (m *resetMailerStub) SendPasswordReset(ctx context.Context, email, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.codes == nil {
		m.codes = make(map[string]string)
	}
	m.codes[email] = code
	return nil
}

func newTestProvider(t *testing.T, mailer ResetMailer) (*LocalProvider, AccountRepository) {
	t.Helper()
	repo := NewInMemoryRepository()
	issuer := NewTokenIssuer([]byte("test-secret-test-secret-test-secret"), time.Hour)
	provider := NewLocalProvider(repo, issuer, cache.NewMemory(), mailer, LocalConfig{
		MaxFailedAttempts: 3,
		LockoutWindow:     time.Minute,
		BcryptCost:        bcrypt.MinCost,
	}, nil, nil)
	return provider, repo
}

func TestCreateAccountAndSignIn(t *testing.T) {
	provider, _ := newTestProvider(t, nil)
	ctx := context.Background()

	created, err := provider.CreateAccount(ctx, " A@X.com ", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", created.Principal.Email)
	assert.NotEmpty(t, created.SessionID)

	signedIn, err := provider.SignIn(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, created.Principal.ID, signedIn.Principal.ID)
	assert.NotEqual(t, created.SessionID, signedIn.SessionID, "each sign-in starts a new session")

	verified, err := provider.Verify(ctx, signedIn.Raw)
	require.NoError(t, err)
	assert.Equal(t, signedIn.SessionID, verified.SessionID)
}

func TestCreateAccountRejectsDuplicatesAndWeakPasswords(t *testing.T) {
	provider, _ := newTestProvider(t, nil)
	ctx := context.Background()

	_, err := provider.CreateAccount(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	_, err = provider.CreateAccount(ctx, "A@x.com", "secret2")
	assert.ErrorIs(t, err, ErrEmailInUse)

	_, err = provider.CreateAccount(ctx, "b@x.com", "123")
	assert.ErrorIs(t, err, ErrWeakPassword)

	_, err = provider.CreateAccount(ctx, "not-an-email", "secret1")
	assert.ErrorIs(t, err, ErrInvalidEmail)
}

func TestSignInErrors(t *testing.T) {
	provider, _ := newTestProvider(t, nil)
	ctx := context.Background()

	_, err := provider.SignIn(ctx, "missing@x.com", "whatever")
	assert.ErrorIs(t, err, ErrAccountNotFound)

	_, err = provider.CreateAccount(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	_, err = provider.SignIn(ctx, "a@x.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestSignInLocksOutAfterRepeatedFailures(t *testing.T) {
	provider, _ := newTestProvider(t, nil)
	ctx := context.Background()

	_, err := provider.CreateAccount(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = provider.SignIn(ctx, "a@x.com", "wrong")
		require.ErrorIs(t, err, ErrInvalidCredential)
	}

	_, err = provider.SignIn(ctx, "a@x.com", "secret1")
	assert.ErrorIs(t, err, ErrTooManyAttempts, "correct password is still refused during lockout")
}

func TestSignOutRevokesSession(t *testing.T) {
	provider, _ := newTestProvider(t, nil)
	ctx := context.Background()

	token, err := provider.CreateAccount(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	require.NoError(t, provider.SignOut(ctx, token))

	_, err = provider.Verify(ctx, token.Raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestDeleteAccountInvalidatesTokens(t *testing.T) {
	provider, _ := newTestProvider(t, nil)
	ctx := context.Background()

	token, err := provider.CreateAccount(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	require.NoError(t, provider.DeleteAccount(ctx, token.Principal.ID))

	_, err = provider.Verify(ctx, token.Raw)
	assert.ErrorIs(t, err, ErrInvalidToken)

	methods, err := provider.SignInMethods(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Empty(t, methods)

	assert.ErrorIs(t, provider.DeleteAccount(ctx, token.Principal.ID), ErrAccountNotFound)
}

func TestSignInMethods(t *testing.T) {
	provider, _ := newTestProvider(t, nil)
	ctx := context.Background()

	_, err := provider.CreateAccount(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	_, err = provider.SignInWithGoogle(ctx, &GoogleClaims{Sub: "g-1", Email: "a@x.com", EmailVerified: true})
	require.NoError(t, err)

	methods, err := provider.SignInMethods(ctx, "A@X.COM")
	require.NoError(t, err)
	assert.Equal(t, []string{MethodPassword, MethodGoogle}, methods)
}

func TestSignInWithGoogleCreatesAndReusesAccount(t *testing.T) {
	provider, _ := newTestProvider(t, nil)
	ctx := context.Background()

	claims := &GoogleClaims{Sub: "g-42", Email: "G@x.com", EmailVerified: true}
	first, err := provider.SignInWithGoogle(ctx, claims)
	require.NoError(t, err)
	second, err := provider.SignInWithGoogle(ctx, claims)
	require.NoError(t, err)
	assert.Equal(t, first.Principal.ID, second.Principal.ID)

	_, err = provider.SignInWithGoogle(ctx, &GoogleClaims{Sub: "g-43", Email: "u@x.com"})
	assert.ErrorIs(t, err, ErrUnverifiedEmail)
}

func TestPasswordResetFlow(t *testing.T) {
	mailer := &resetMailerStub{}
	provider, _ := newTestProvider(t, mailer)
	ctx := context.Background()

	_, err := provider.CreateAccount(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	assert.ErrorIs(t, provider.SendPasswordReset(ctx, "nobody@x.com"), ErrAccountNotFound)
	require.NoError(t, provider.SendPasswordReset(ctx, "a@x.com"))
	code := mailer.codes["a@x.com"]
	require.NotEmpty(t, code)

	assert.ErrorIs(t, provider.ConfirmPasswordReset(ctx, "a@x.com", "bogus", "newsecret"), ErrInvalidCredential)
	require.NoError(t, provider.ConfirmPasswordReset(ctx, "a@x.com", code, "newsecret"))
	assert.ErrorIs(t, provider.ConfirmPasswordReset(ctx, "a@x.com", code, "again123"), ErrInvalidCredential, "codes are single use")

	_, err = provider.SignIn(ctx, "a@x.com", "newsecret")
	assert.NoError(t, err)
}

func TestSendPasswordResetSurfacesMailerFailure(t *testing.T) {
	provider, _ := newTestProvider(t, &resetMailerStub{err: errors.New("smtp down")})
	ctx := context.Background()

	_, err := provider.CreateAccount(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	assert.Error(t, provider.SendPasswordReset(ctx, "a@x.com"))
}

func TestUpdatePasswordRequiresCurrentPassword(t *testing.T) {
	provider, _ := newTestProvider(t, nil)
	ctx := context.Background()

	token, err := provider.CreateAccount(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	assert.ErrorIs(t, provider.UpdatePassword(ctx, token.Principal.ID, "wrong", "newsecret"), ErrInvalidCredential)
	require.NoError(t, provider.UpdatePassword(ctx, token.Principal.ID, "secret1", "newsecret"))

	_, err = provider.SignIn(ctx, "a@x.com", "newsecret")
	assert.NoError(t, err)
	assert.ErrorIs(t, provider.UpdatePassword(ctx, uuid.New(), "x", "newsecret"), ErrAccountNotFound)
}

func TestSubscribeReceivesChanges(t *testing.T) {
	provider, _ := newTestProvider(t, nil)
	ctx := context.Background()

	changes, cancel := provider.Subscribe()
	defer cancel()

	token, err := provider.CreateAccount(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	signedIn := <-changes
	require.NotNil(t, signedIn.Principal)
	assert.Equal(t, token.SessionID, signedIn.SessionID)
	assert.Equal(t, token.Principal.ID, signedIn.Principal.ID)

	require.NoError(t, provider.SignOut(ctx, token))
	signedOut := <-changes
	assert.Nil(t, signedOut.Principal)
	assert.Equal(t, token.SessionID, signedOut.SessionID)

	require.NoError(t, provider.DeleteAccount(ctx, token.Principal.ID))
	deleted := <-changes
	assert.Empty(t, deleted.SessionID)
	assert.Equal(t, token.Principal.ID, deleted.PrincipalID)

	cancel()
	_, open := <-changes
	assert.False(t, open)
}
