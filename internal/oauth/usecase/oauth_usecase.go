package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"dealdesk-backend/internal/oauth/domain"
	"dealdesk-backend/internal/oauth/repository"
	"dealdesk-backend/pkg/googleauth"
	"dealdesk-backend/pkg/tokencipher"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

// Tokens expiring within this window are refreshed before use.
const expiryBuffer = 5 * time.Minute

const (
	userinfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
	revokeURL   = "https://oauth2.googleapis.com/revoke"
)

var (
	ErrTokenNotFound           = errors.New("oauth token not found or revoked")
	ErrReauthorizationRequired = errors.New("token refresh failed, user must re-authorize")
	ErrInvalidState            = errors.New("unknown or expired authorization state")
)

var serviceScopes = map[string][]string{
	domain.ServiceGmail: {
		"https://www.googleapis.com/auth/gmail.readonly",
		"https://www.googleapis.com/auth/userinfo.email",
	},
	domain.ServiceDrive: {
		"https://www.googleapis.com/auth/drive.readonly",
		"https://www.googleapis.com/auth/userinfo.email",
	},
}

// ConfigDeleter removes sync configurations that depend on a token. Wired
// to the sync configuration repository at startup.
type ConfigDeleter interface {
	DeleteByTokenID(tokenID string) error
}

// tokenRefresher exchanges a refresh token for a new access token.
// Injectable so the refresh path is testable without Google.
type tokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// tokenRevoker invalidates an access token at the provider. Injectable so
// Revoke is testable without hitting Google's revoke endpoint.
type tokenRevoker interface {
	RevokeAccess(ctx context.Context, accessToken string) error
}

type OAuthUsecase interface {
	AuthorizeURL(userID, service string) (string, error)
	HandleCallback(ctx context.Context, state, code string) (*domain.OAuthToken, error)
	// Resolve returns ready-to-use connector credentials for a stored
	// token, refreshing it first when it is near expiry.
	Resolve(ctx context.Context, tokenID string) (googleauth.Credentials, error)
	// Revoke disconnects one of userID's accounts. A token owned by a
	// different user is reported as not found.
	Revoke(ctx context.Context, userID, tokenID string) error
	Accounts(userID string) ([]domain.AccountInfo, error)
}

type oauthUsecase struct {
	tokenRepo     repository.TokenRepository
	cipher        *tokencipher.Cipher
	factory       *googleauth.ClientFactory
	states        StateStore
	configDeleter ConfigDeleter
	refresher     tokenRefresher
	revoker       tokenRevoker
	redirectURI   string
	httpClient    *http.Client
	log           *logrus.Entry
	now           func() time.Time
}

func NewOAuthUsecase(
	tokenRepo repository.TokenRepository,
	cipher *tokencipher.Cipher,
	factory *googleauth.ClientFactory,
	states StateStore,
	configDeleter ConfigDeleter,
	redirectURI string,
	log *logrus.Entry,
) OAuthUsecase {
	u := &oauthUsecase{
		tokenRepo:     tokenRepo,
		cipher:        cipher,
		factory:       factory,
		states:        states,
		configDeleter: configDeleter,
		redirectURI:   redirectURI,
		httpClient:    &http.Client{Timeout: 15 * time.Second},
		log:           log,
		now:           time.Now,
	}
	u.refresher = &googleRefresher{factory: factory}
	u.revoker = &googleRevoker{httpClient: u.httpClient}
	return u
}

func (u *oauthUsecase) AuthorizeURL(userID, service string) (string, error) {
	scopes, ok := serviceScopes[service]
	if !ok {
		return "", fmt.Errorf("unsupported service: %s", service)
	}

	verifier := oauth2.GenerateVerifier()
	state := uuid.New().String()
	u.states.Put(state, PendingAuth{
		UserID:    userID,
		Service:   service,
		Verifier:  verifier,
		CreatedAt: u.now(),
	})

	cfg := u.factory.OAuthConfig(u.redirectURI, scopes...)
	return cfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.S256ChallengeOption(verifier),
		oauth2.SetAuthURLParam("prompt", "consent"),
	), nil
}

func (u *oauthUsecase) HandleCallback(ctx context.Context, state, code string) (*domain.OAuthToken, error) {
	pending, ok := u.states.Take(state)
	if !ok {
		return nil, ErrInvalidState
	}

	scopes := serviceScopes[pending.Service]
	cfg := u.factory.OAuthConfig(u.redirectURI, scopes...)
	token, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(pending.Verifier))
	if err != nil {
		return nil, fmt.Errorf("code exchange failed: %w", err)
	}

	email, err := u.fetchAccountEmail(ctx, token.AccessToken)
	if err != nil {
		return nil, err
	}

	encAccess, err := u.cipher.Encrypt(token.AccessToken)
	if err != nil {
		return nil, err
	}
	encRefresh, err := u.cipher.Encrypt(token.RefreshToken)
	if err != nil {
		return nil, err
	}

	row := &domain.OAuthToken{
		UserID:       pending.UserID,
		AccountEmail: email,
		Service:      pending.Service,
		AccessToken:  encAccess,
		RefreshToken: encRefresh,
		TokenExpiry:  token.Expiry,
		Scopes:       joinScopes(scopes),
	}
	if err := u.tokenRepo.Upsert(row); err != nil {
		return nil, err
	}

	u.log.WithFields(logrus.Fields{
		"account": email,
		"service": pending.Service,
	}).Info("connected account")
	return row, nil
}

func (u *oauthUsecase) Resolve(ctx context.Context, tokenID string) (googleauth.Credentials, error) {
	row, err := u.tokenRepo.FindActiveByID(tokenID)
	if err != nil {
		return googleauth.Credentials{}, err
	}
	if row == nil {
		return googleauth.Credentials{}, ErrTokenNotFound
	}

	accessToken, err := u.cipher.Decrypt(row.AccessToken)
	if err != nil {
		return googleauth.Credentials{}, fmt.Errorf("decrypt access token: %w", err)
	}
	refreshToken, err := u.cipher.Decrypt(row.RefreshToken)
	if err != nil {
		return googleauth.Credentials{}, fmt.Errorf("decrypt refresh token: %w", err)
	}

	expiry := row.TokenExpiry
	if u.now().Add(expiryBuffer).After(expiry) {
		fresh, err := u.refresher.Refresh(ctx, refreshToken)
		if err != nil {
			return googleauth.Credentials{}, fmt.Errorf("%w: %v", ErrReauthorizationRequired, err)
		}
		if err := u.persistAccessToken(row.ID, fresh); err != nil {
			return googleauth.Credentials{}, err
		}
		accessToken = fresh.AccessToken
		expiry = fresh.Expiry
	}

	tokenID = row.ID
	return googleauth.Credentials{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Expiry:       expiry,
		OnRefresh: func(t *oauth2.Token) error {
			return u.persistAccessToken(tokenID, t)
		},
	}, nil
}

func (u *oauthUsecase) Revoke(ctx context.Context, userID, tokenID string) error {
	row, err := u.tokenRepo.FindActiveByID(tokenID)
	if err != nil {
		return err
	}
	if row == nil || row.UserID != userID {
		return ErrTokenNotFound
	}

	// Best effort: a provider-side failure must not block revocation.
	if accessToken, err := u.cipher.Decrypt(row.AccessToken); err == nil {
		if err := u.revoker.RevokeAccess(ctx, accessToken); err != nil {
			u.log.Warnf("provider-side revoke failed: %v", err)
		}
	}

	if err := u.tokenRepo.Revoke(row.ID, u.now()); err != nil {
		return err
	}

	if err := u.configDeleter.DeleteByTokenID(row.ID); err != nil {
		u.log.WithField("token_id", row.ID).Warnf("failed to delete dependent sync configs: %v", err)
	}

	u.log.WithFields(logrus.Fields{
		"account": row.AccountEmail,
		"service": row.Service,
	}).Info("disconnected account")
	return nil
}

func (u *oauthUsecase) Accounts(userID string) ([]domain.AccountInfo, error) {
	tokens, err := u.tokenRepo.ListActiveByUser(userID)
	if err != nil {
		return nil, err
	}

	accounts := make([]domain.AccountInfo, 0, len(tokens))
	for _, t := range tokens {
		accounts = append(accounts, domain.AccountInfo{
			ID:           t.ID,
			AccountEmail: t.AccountEmail,
			Service:      t.Service,
			Scopes:       t.Scopes,
			TokenExpiry:  t.TokenExpiry,
			CreatedAt:    t.CreatedAt,
		})
	}
	return accounts, nil
}

func (u *oauthUsecase) persistAccessToken(tokenID string, t *oauth2.Token) error {
	encAccess, err := u.cipher.Encrypt(t.AccessToken)
	if err != nil {
		return err
	}
	return u.tokenRepo.UpdateAccessToken(tokenID, encAccess, t.Expiry)
}

func (u *oauthUsecase) fetchAccountEmail(ctx context.Context, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, userinfoURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch account info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch account info: status %d", resp.StatusCode)
	}

	var info struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", fmt.Errorf("decode account info: %w", err)
	}
	if info.Email == "" {
		return "", errors.New("account info response missing email")
	}
	return info.Email, nil
}

func joinScopes(scopes []string) string {
	out := ""
	for i, s := range scopes {
		if i > 0 {
			out += " "
		}
		out += s
	}
	return out
}

// googleRefresher refreshes through the standard oauth2 token source.
type googleRefresher struct {
	factory *googleauth.ClientFactory
}

func (r *googleRefresher) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	cfg := r.factory.OAuthConfig("")
	src := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	return src.Token()
}

type googleRevoker struct {
	httpClient *http.Client
}

func (r *googleRevoker) RevokeAccess(ctx context.Context, accessToken string) error {
	form := url.Values{"token": {accessToken}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, revokeURL+"?"+form.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("revoke endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
