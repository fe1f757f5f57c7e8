package identity

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"alumni/internal/platform/cache"
	"alumni/internal/platform/metrics"
)

const minPasswordLength = 6

// Provider is the identity collaborator consumed by the session resolver.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (Token, error)
	CreateAccount(ctx context.Context, email, password string) (Token, error)
	SignOut(ctx context.Context, token Token) error
	UpdatePassword(ctx context.Context, principalID uuid.UUID, currentPassword, newPassword string) error
	SendPasswordReset(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, email, code, newPassword string) error
	SignInMethods(ctx context.Context, email string) ([]string, error)
	DeleteAccount(ctx context.Context, principalID uuid.UUID) error
	Verify(ctx context.Context, raw string) (Token, error)
	Subscribe() (<-chan Change, func())
}

// ResetMailer delivers password reset codes.
type ResetMailer interface {
	SendPasswordReset(ctx context.Context, email, code string) error
}

// LocalConfig tunes lockout and reset behaviour.
type LocalConfig struct {
	MaxFailedAttempts int
	LockoutWindow     time.Duration
	ResetTTL          time.Duration
	BcryptCost        int
}

// LocalProvider implements Provider over an AccountRepository and a key-value store.
type LocalProvider struct {
	repo     AccountRepository
	tokens   *TokenIssuer
	store    cache.Store
	mailer   ResetMailer
	cfg      LocalConfig
	logger   *slog.Logger
	recorder metrics.Recorder
	now      func() time.Time

	mu          sync.Mutex
	subscribers map[int]chan Change
	nextSubID   int
}

// NewLocalProvider wires a LocalProvider. mailer may be nil, in which case reset codes are only logged.
func NewLocalProvider(repo AccountRepository, tokens *TokenIssuer, store cache.Store, mailer ResetMailer, cfg LocalConfig, logger *slog.Logger, recorder metrics.Recorder) *LocalProvider {
	if cfg.MaxFailedAttempts <= 0 {
		cfg.MaxFailedAttempts = 5
	}
	if cfg.LockoutWindow <= 0 {
		cfg.LockoutWindow = 15 * time.Minute
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = time.Hour
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if store == nil {
		store = cache.NewMemory()
	}
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &LocalProvider{
		repo:        repo,
		tokens:      tokens,
		store:       store,
		mailer:      mailer,
		cfg:         cfg,
		logger:      logger,
		recorder:    recorder,
		now:         time.Now,
		subscribers: make(map[int]chan Change),
	}
}

// SignIn checks the password for email and issues a token under a new session.
func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (Token, error) {
	email = normalizeEmail(email)
	lockKey := lockoutKey(email)

	attempts, err := p.failedAttempts(ctx, lockKey)
	if err != nil {
		return Token{}, err
	}
	if attempts >= int64(p.cfg.MaxFailedAttempts) {
		p.recorder.RecordSignIn("locked_out")
		return Token{}, ErrTooManyAttempts
	}

	account, err := p.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			p.recorder.RecordSignIn("not_found")
		}
		return Token{}, err
	}

	if account.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		if _, err := p.store.Incr(ctx, lockKey, p.cfg.LockoutWindow); err != nil {
			p.logger.Warn("record failed sign-in", "error", err)
		}
		p.recorder.RecordSignIn("invalid_credential")
		return Token{}, ErrInvalidCredential
	}

	if err := p.store.Delete(ctx, lockKey); err != nil {
		p.logger.Warn("clear lockout counter", "error", err)
	}

	token, err := p.startSession(ctx, account)
	if err != nil {
		return Token{}, err
	}
	p.recorder.RecordSignIn("success")
	return token, nil
}

// CreateAccount registers a password account and signs it in.
func (p *LocalProvider) CreateAccount(ctx context.Context, email, password string) (Token, error) {
	email = normalizeEmail(email)
	if err := is.EmailFormat.Validate(email); err != nil || email == "" {
		return Token{}, ErrInvalidEmail
	}
	if len(password) < minPasswordLength {
		return Token{}, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cfg.BcryptCost)
	if err != nil {
		return Token{}, fmt.Errorf("hash password: %w", err)
	}

	now := p.now().UTC()
	account := Account{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := p.repo.Create(ctx, account); err != nil {
		return Token{}, err
	}

	p.logger.Info("account created", "principal_id", account.ID)
	return p.startSession(ctx, account)
}

// SignInWithGoogle links or creates an account for verified Google claims and signs it in.
func (p *LocalProvider) SignInWithGoogle(ctx context.Context, claims *GoogleClaims) (Token, error) {
	if claims == nil || claims.Sub == "" {
		return Token{}, ErrInvalidCredential
	}
	if !claims.EmailVerified {
		return Token{}, ErrUnverifiedEmail
	}

	account, err := p.repo.GetByGoogleSubject(ctx, claims.Sub)
	switch {
	case err == nil:
	case errors.Is(err, ErrAccountNotFound):
		account, err = p.linkGoogle(ctx, claims)
		if err != nil {
			return Token{}, err
		}
	default:
		return Token{}, fmt.Errorf("find account: %w", err)
	}

	token, err := p.startSession(ctx, account)
	if err != nil {
		return Token{}, err
	}
	p.recorder.RecordSignIn("success")
	return token, nil
}

func (p *LocalProvider) linkGoogle(ctx context.Context, claims *GoogleClaims) (Account, error) {
	email := normalizeEmail(claims.Email)
	now := p.now().UTC()

	account, err := p.repo.GetByEmail(ctx, email)
	if err == nil {
		account.GoogleSubject = claims.Sub
		account.UpdatedAt = now
		if err := p.repo.Update(ctx, account); err != nil {
			return Account{}, fmt.Errorf("link google subject: %w", err)
		}
		return account, nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return Account{}, fmt.Errorf("find account: %w", err)
	}

	account = Account{
		ID:            uuid.New(),
		Email:         email,
		GoogleSubject: claims.Sub,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := p.repo.Create(ctx, account); err != nil {
		return Account{}, err
	}
	p.logger.Info("account created", "principal_id", account.ID, "method", MethodGoogle)
	return account, nil
}

// SignOut revokes the token's session and announces it.
func (p *LocalProvider) SignOut(ctx context.Context, token Token) error {
	if token.SessionID == "" {
		return nil
	}
	ttl := token.ExpiresAt.Sub(p.now())
	if ttl <= 0 {
		ttl = time.Minute
	}
	if err := p.store.Set(ctx, revokedKey(token.SessionID), []byte("1"), ttl); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	p.broadcast(Change{SessionID: token.SessionID, PrincipalID: token.Principal.ID})
	return nil
}

// UpdatePassword replaces the password. currentPassword is required when one is set.
func (p *LocalProvider) UpdatePassword(ctx context.Context, principalID uuid.UUID, currentPassword, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return ErrWeakPassword
	}
	account, err := p.repo.GetByID(ctx, principalID)
	if err != nil {
		return err
	}
	if account.PasswordHash != "" && bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(currentPassword)) != nil {
		return ErrInvalidCredential
	}
	return p.setPassword(ctx, account, newPassword)
}

// SendPasswordReset mails a single-use reset code to email.
func (p *LocalProvider) SendPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if _, err := p.repo.GetByEmail(ctx, email); err != nil {
		return err
	}

	code, err := randomCode()
	if err != nil {
		return fmt.Errorf("generate reset code: %w", err)
	}
	if err := p.store.Set(ctx, resetKey(email), []byte(hashCode(code)), p.cfg.ResetTTL); err != nil {
		return fmt.Errorf("store reset code: %w", err)
	}

	if p.mailer == nil {
		p.logger.Warn("password reset requested without a mailer", "email", email)
		return nil
	}
	if err := p.mailer.SendPasswordReset(ctx, email, code); err != nil {
		return fmt.Errorf("send reset email: %w", err)
	}
	return nil
}

// ConfirmPasswordReset sets a new password when code matches the outstanding reset.
func (p *LocalProvider) ConfirmPasswordReset(ctx context.Context, email, code, newPassword string) error {
	email = normalizeEmail(email)
	if len(newPassword) < minPasswordLength {
		return ErrWeakPassword
	}

	stored, err := p.store.Get(ctx, resetKey(email))
	if err != nil {
		return fmt.Errorf("load reset code: %w", err)
	}
	if stored == nil || subtle.ConstantTimeCompare(stored, []byte(hashCode(code))) != 1 {
		return ErrInvalidCredential
	}

	account, err := p.repo.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err := p.setPassword(ctx, account, newPassword); err != nil {
		return err
	}

	_ = p.store.Delete(ctx, resetKey(email))
	_ = p.store.Delete(ctx, lockoutKey(email))
	return nil
}

// SignInMethods lists the methods linked to email; an unknown email yields none.
func (p *LocalProvider) SignInMethods(ctx context.Context, email string) ([]string, error) {
	account, err := p.repo.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, ErrAccountNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	return account.Methods(), nil
}

// DeleteAccount removes the credential record and signs out every session of the principal.
func (p *LocalProvider) DeleteAccount(ctx context.Context, principalID uuid.UUID) error {
	if err := p.repo.Delete(ctx, principalID); err != nil {
		return err
	}
	p.logger.Info("account deleted", "principal_id", principalID)
	p.broadcast(Change{PrincipalID: principalID})
	return nil
}

// Verify re-validates a raw token server side, rejecting revoked sessions and deleted accounts.
func (p *LocalProvider) Verify(ctx context.Context, raw string) (Token, error) {
	token, err := p.tokens.Parse(raw)
	if err != nil {
		return Token{}, err
	}

	revoked, err := p.store.Get(ctx, revokedKey(token.SessionID))
	if err != nil {
		return Token{}, fmt.Errorf("check revocation: %w", err)
	}
	if revoked != nil {
		return Token{}, ErrInvalidToken
	}

	account, err := p.repo.GetByID(ctx, token.Principal.ID)
	if errors.Is(err, ErrAccountNotFound) {
		return Token{}, ErrInvalidToken
	}
	if err != nil {
		return Token{}, err
	}
	token.Principal = account.Principal()
	return token, nil
}

// Subscribe returns a stream of identity changes and a function that ends the subscription.
func (p *LocalProvider) Subscribe() (<-chan Change, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextSubID
	p.nextSubID++
	ch := make(chan Change, 64)
	p.subscribers[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			delete(p.subscribers, id)
			close(ch)
		})
	}
	return ch, cancel
}

func (p *LocalProvider) broadcast(change Change) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, ch := range p.subscribers {
		select {
		case ch <- change:
		default:
			p.logger.Warn("identity change dropped for slow subscriber", "session_id", change.SessionID)
		}
	}
}

func (p *LocalProvider) startSession(ctx context.Context, account Account) (Token, error) {
	now := p.now().UTC()
	account.LastSignInAt = &now
	if err := p.repo.Update(ctx, account); err != nil {
		p.logger.Warn("record last sign-in", "principal_id", account.ID, "error", err)
	}

	token, err := p.tokens.Issue(account.Principal())
	if err != nil {
		return Token{}, err
	}
	principal := token.Principal
	p.broadcast(Change{SessionID: token.SessionID, PrincipalID: principal.ID, Principal: &principal})
	return token, nil
}

func (p *LocalProvider) setPassword(ctx context.Context, account Account, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	account.PasswordHash = string(hash)
	account.UpdatedAt = p.now().UTC()
	return p.repo.Update(ctx, account)
}

func (p *LocalProvider) failedAttempts(ctx context.Context, key string) (int64, error) {
	raw, err := p.store.Get(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("load lockout counter: %w", err)
	}
	if raw == nil {
		return 0, nil
	}
	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, nil
	}
	return n, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func lockoutKey(email string) string { return "lockout:" + email }
func revokedKey(sid string) string   { return "revoked:" + sid }
func resetKey(email string) string   { return "reset:" + email }

func randomCode() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}
