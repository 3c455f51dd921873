package googleauth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// TokenUpdateFunc is invoked whenever the underlying token source hands out
// a fresh access token, so the caller can persist it.
type TokenUpdateFunc func(*oauth2.Token) error

// Credentials carries the per-account tokens a connector call runs under.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
	OnRefresh    TokenUpdateFunc
}

// notifyTokenSource wraps an oauth2.TokenSource and fires the update
// callback when the access token changes.
type notifyTokenSource struct {
	src      oauth2.TokenSource
	current  *oauth2.Token
	callback TokenUpdateFunc
}

func (s *notifyTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	if s.callback != nil && s.current.AccessToken != t.AccessToken {
		s.current = t
		if cbErr := s.callback(t); cbErr != nil {
			// Persisting the refreshed token failed; the call itself can
			// still proceed with the in-memory token.
			fmt.Printf("failed to persist refreshed token: %v\n", cbErr)
		}
	}
	return t, nil
}

// ClientFactory builds authenticated HTTP clients for Google API services.
type ClientFactory struct {
	clientID     string
	clientSecret string
}

func NewClientFactory(clientID, clientSecret string) *ClientFactory {
	return &ClientFactory{clientID: clientID, clientSecret: clientSecret}
}

// OAuthConfig returns the oauth2 config for the web flow with the given
// redirect and scopes.
func (f *ClientFactory) OAuthConfig(redirectURI string, scopes ...string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     f.clientID,
		ClientSecret: f.clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       scopes,
		Endpoint:     google.Endpoint,
	}
}

// HTTPClient builds a client from stored user credentials. A refreshed
// access token is reported through creds.OnRefresh.
func (f *ClientFactory) HTTPClient(ctx context.Context, creds Credentials) *http.Client {
	token := &oauth2.Token{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       creds.Expiry,
	}

	cfg := &oauth2.Config{
		ClientID:     f.clientID,
		ClientSecret: f.clientSecret,
		Endpoint:     google.Endpoint,
	}

	wrapped := &notifyTokenSource{
		src:      cfg.TokenSource(ctx, token),
		current:  token,
		callback: creds.OnRefresh,
	}
	return oauth2.NewClient(ctx, wrapped)
}

// ServiceAccountCredentials mints connector credentials from
// service-account JSON using domain-wide delegation: subject is the
// mailbox or drive owner to impersonate. The result flows through the same
// rate-limited client paths as user OAuth credentials.
func ServiceAccountCredentials(ctx context.Context, credentialsJSON []byte, subject string, scopes ...string) (Credentials, error) {
	cfg, err := google.JWTConfigFromJSON(credentialsJSON, scopes...)
	if err != nil {
		return Credentials{}, fmt.Errorf("parse service account credentials: %w", err)
	}
	cfg.Subject = subject

	token, err := cfg.TokenSource(ctx).Token()
	if err != nil {
		return Credentials{}, fmt.Errorf("service account token exchange: %w", err)
	}
	return Credentials{AccessToken: token.AccessToken, Expiry: token.Expiry}, nil
}
