package identity

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleIssuer = "https://accounts.google.com"

var errMissingIDToken = errors.New("google: no id_token in token response")

// GoogleAuthenticator runs the Google OIDC code flow for alumni sign-in. It only proves who the
// caller is; LocalProvider.SignInWithGoogle then finds the account by Google subject or links
// an existing account whose email Google reports as verified. There is no domain allowlist:
// any alumnus may sign in and approval gates access afterwards.
type GoogleAuthenticator struct {
	oauth    *oauth2.Config
	idTokens *oidc.IDTokenVerifier
}

// NewGoogleAuthenticator discovers Google's signing keys and requests the openid, email and
// profile scopes.
func NewGoogleAuthenticator(ctx context.Context, clientID, clientSecret, redirectURL string) (*GoogleAuthenticator, error) {
	provider, err := oidc.NewProvider(ctx, googleIssuer)
	if err != nil {
		return nil, fmt.Errorf("discover google oidc: %w", err)
	}
	return &GoogleAuthenticator{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     google.Endpoint,
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		},
		idTokens: provider.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

// AuthURL returns the consent URL. The account chooser is always shown so members with several
// Google accounts pick the one registered with the association.
func (g *GoogleAuthenticator) AuthURL(state string) string {
	return g.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
}

// Exchange redeems the authorization code and returns the claims of the verified ID token.
func (g *GoogleAuthenticator) Exchange(ctx context.Context, code string) (*GoogleClaims, error) {
	token, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("google code exchange: %w", err)
	}
	raw, ok := token.Extra("id_token").(string)
	if !ok || raw == "" {
		return nil, errMissingIDToken
	}

	idToken, err := g.idTokens.Verify(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("verify google id token: %w", err)
	}
	var claims GoogleClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("decode google claims: %w", err)
	}
	return normalizeGoogleClaims(claims)
}

// normalizeGoogleClaims lower-cases the email so linking matches password accounts, which are
// stored normalized. A token without subject or email cannot identify a member.
func normalizeGoogleClaims(claims GoogleClaims) (*GoogleClaims, error) {
	claims.Sub = strings.TrimSpace(claims.Sub)
	claims.Email = normalizeEmail(claims.Email)
	claims.Name = strings.TrimSpace(claims.Name)
	if claims.Sub == "" || claims.Email == "" {
		return nil, ErrInvalidCredential
	}
	return &claims, nil
}

// GenerateState returns a random nonce for the OAuth state cookie.
func GenerateState() (string, error) {
	nonce := make([]byte, 32)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate oauth state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(nonce), nil
}
