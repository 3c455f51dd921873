package usecase

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"dealdesk-backend/internal/oauth/domain"
	"dealdesk-backend/internal/oauth/repository"
	"dealdesk-backend/pkg/tokencipher"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

type fakeRefresher struct {
	calls int
	token *oauth2.Token
	err   error
}

func (f *fakeRefresher) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	f.calls++
	return f.token, f.err
}

type noopConfigDeleter struct {
	deleted []string
}

func (d *noopConfigDeleter) DeleteByTokenID(tokenID string) error {
	d.deleted = append(d.deleted, tokenID)
	return nil
}

type fakeRevoker struct {
	tokens []string
	err    error
}

func (f *fakeRevoker) RevokeAccess(ctx context.Context, accessToken string) error {
	f.tokens = append(f.tokens, accessToken)
	return f.err
}

func newTestCipher(t *testing.T) *tokencipher.Cipher {
	t.Helper()
	key := base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))
	c, err := tokencipher.New(key)
	if err != nil {
		t.Fatalf("cipher: %v", err)
	}
	return c
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&domain.OAuthToken{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestUsecase(t *testing.T, db *gorm.DB, refresher tokenRefresher) (*oauthUsecase, repository.TokenRepository) {
	t.Helper()
	repo := repository.NewGormTokenRepository(db)
	log := logrus.NewEntry(logrus.New())
	u := &oauthUsecase{
		tokenRepo:     repo,
		cipher:        newTestCipher(t),
		states:        NewMemoryStateStore(time.Minute),
		configDeleter: &noopConfigDeleter{},
		refresher:     refresher,
		revoker:       &fakeRevoker{},
		log:           log,
		now:           time.Now,
	}
	return u, repo
}

func seedToken(t *testing.T, u *oauthUsecase, repo repository.TokenRepository, expiry time.Time) *domain.OAuthToken {
	t.Helper()
	encAccess, err := u.cipher.Encrypt("old-access")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	encRefresh, err := u.cipher.Encrypt("refresh-secret")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	row := &domain.OAuthToken{
		UserID:       "user-1",
		AccountEmail: "sales@example.com",
		Service:      domain.ServiceGmail,
		AccessToken:  encAccess,
		RefreshToken: encRefresh,
		TokenExpiry:  expiry,
	}
	if err := repo.Upsert(row); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	return row
}

func TestResolveRefreshesNearExpiry(t *testing.T) {
	db := newTestDB(t)
	refresher := &fakeRefresher{token: &oauth2.Token{
		AccessToken: "new-access",
		Expiry:      time.Now().Add(time.Hour),
	}}
	u, repo := newTestUsecase(t, db, refresher)
	row := seedToken(t, u, repo, time.Now().Add(2*time.Minute))

	creds, err := u.Resolve(context.Background(), row.ID)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if refresher.calls != 1 {
		t.Fatalf("expected 1 refresh call, got %d", refresher.calls)
	}
	if creds.AccessToken != "new-access" {
		t.Errorf("creds.AccessToken = %q, want new-access", creds.AccessToken)
	}

	stored, err := repo.FindActiveByID(row.ID)
	if err != nil {
		t.Fatalf("FindActiveByID: %v", err)
	}
	plain, err := u.cipher.Decrypt(stored.AccessToken)
	if err != nil {
		t.Fatalf("decrypt stored token: %v", err)
	}
	if plain != "new-access" {
		t.Errorf("stored access token = %q, want new-access", plain)
	}
}

func TestResolveSkipsRefreshWhenFresh(t *testing.T) {
	db := newTestDB(t)
	refresher := &fakeRefresher{err: errors.New("must not be called")}
	u, repo := newTestUsecase(t, db, refresher)
	row := seedToken(t, u, repo, time.Now().Add(time.Hour))

	creds, err := u.Resolve(context.Background(), row.ID)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if refresher.calls != 0 {
		t.Fatalf("expected no refresh calls, got %d", refresher.calls)
	}
	if creds.AccessToken != "old-access" {
		t.Errorf("creds.AccessToken = %q, want old-access", creds.AccessToken)
	}
	if creds.RefreshToken != "refresh-secret" {
		t.Errorf("creds.RefreshToken = %q, want refresh-secret", creds.RefreshToken)
	}
}

func TestResolveRefreshFailureRequiresReauth(t *testing.T) {
	db := newTestDB(t)
	refresher := &fakeRefresher{err: errors.New("invalid_grant")}
	u, repo := newTestUsecase(t, db, refresher)
	row := seedToken(t, u, repo, time.Now().Add(time.Minute))

	_, err := u.Resolve(context.Background(), row.ID)
	if !errors.Is(err, ErrReauthorizationRequired) {
		t.Fatalf("expected ErrReauthorizationRequired, got %v", err)
	}
}

func TestResolveUnknownToken(t *testing.T) {
	db := newTestDB(t)
	u, _ := newTestUsecase(t, db, &fakeRefresher{})

	_, err := u.Resolve(context.Background(), "nope")
	if !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound, got %v", err)
	}
}

func TestRevokeMarksRowAndCascades(t *testing.T) {
	db := newTestDB(t)
	u, repo := newTestUsecase(t, db, &fakeRefresher{})
	deleter := &noopConfigDeleter{}
	u.configDeleter = deleter
	revoker := &fakeRevoker{}
	u.revoker = revoker
	row := seedToken(t, u, repo, time.Now().Add(time.Hour))

	if err := u.Revoke(context.Background(), "user-1", row.ID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	stored, err := repo.FindActiveByID(row.ID)
	if err != nil {
		t.Fatalf("FindActiveByID: %v", err)
	}
	if stored != nil {
		t.Error("revoked token still returned by active lookup")
	}
	if len(deleter.deleted) != 1 || deleter.deleted[0] != row.ID {
		t.Errorf("config cascade delete = %v, want [%s]", deleter.deleted, row.ID)
	}
	if len(revoker.tokens) != 1 || revoker.tokens[0] != "old-access" {
		t.Errorf("provider revoke calls = %v, want [old-access]", revoker.tokens)
	}

	// A second revoke finds nothing active.
	if err := u.Revoke(context.Background(), "user-1", row.ID); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("second revoke error = %v, want ErrTokenNotFound", err)
	}
}

func TestRevokeProviderFailureStillRevokes(t *testing.T) {
	db := newTestDB(t)
	u, repo := newTestUsecase(t, db, &fakeRefresher{})
	u.revoker = &fakeRevoker{err: errors.New("revoke endpoint returned status 503")}
	row := seedToken(t, u, repo, time.Now().Add(time.Hour))

	if err := u.Revoke(context.Background(), "user-1", row.ID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	stored, err := repo.FindActiveByID(row.ID)
	if err != nil {
		t.Fatalf("FindActiveByID: %v", err)
	}
	if stored != nil {
		t.Error("provider failure must not block local revocation")
	}
}

func TestRevokeRejectsForeignUser(t *testing.T) {
	db := newTestDB(t)
	u, repo := newTestUsecase(t, db, &fakeRefresher{})
	deleter := &noopConfigDeleter{}
	u.configDeleter = deleter
	row := seedToken(t, u, repo, time.Now().Add(time.Hour))

	if err := u.Revoke(context.Background(), "user-2", row.ID); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("foreign revoke error = %v, want ErrTokenNotFound", err)
	}

	stored, err := repo.FindActiveByID(row.ID)
	if err != nil {
		t.Fatalf("FindActiveByID: %v", err)
	}
	if stored == nil {
		t.Error("token was revoked by a non-owner")
	}
	if len(deleter.deleted) != 0 {
		t.Errorf("configs deleted by a non-owner: %v", deleter.deleted)
	}
}

func TestAccountsListsActiveOnly(t *testing.T) {
	db := newTestDB(t)
	u, repo := newTestUsecase(t, db, &fakeRefresher{})
	row := seedToken(t, u, repo, time.Now().Add(time.Hour))

	other := seedTokenFor(t, u, repo, "user-1", "ops@example.com", domain.ServiceDrive)
	if err := repo.Revoke(other.ID, time.Now()); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	accounts, err := u.Accounts("user-1")
	if err != nil {
		t.Fatalf("Accounts: %v", err)
	}
	if len(accounts) != 1 {
		t.Fatalf("expected 1 account, got %d", len(accounts))
	}
	if accounts[0].AccountEmail != row.AccountEmail {
		t.Errorf("account email = %q, want %q", accounts[0].AccountEmail, row.AccountEmail)
	}
}

func seedTokenFor(t *testing.T, u *oauthUsecase, repo repository.TokenRepository, userID, email, service string) *domain.OAuthToken {
	t.Helper()
	encAccess, _ := u.cipher.Encrypt("access")
	encRefresh, _ := u.cipher.Encrypt("refresh")
	row := &domain.OAuthToken{
		UserID:       userID,
		AccountEmail: email,
		Service:      service,
		AccessToken:  encAccess,
		RefreshToken: encRefresh,
		TokenExpiry:  time.Now().Add(time.Hour),
	}
	if err := repo.Upsert(row); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	return row
}

func TestStateStoreTakeIsOneShot(t *testing.T) {
	s := NewMemoryStateStore(time.Minute)
	defer s.Close()

	s.Put("state-1", PendingAuth{UserID: "u", Service: domain.ServiceGmail, Verifier: "v"})

	auth, ok := s.Take("state-1")
	if !ok {
		t.Fatal("expected first Take to succeed")
	}
	if auth.Verifier != "v" {
		t.Errorf("verifier = %q, want v", auth.Verifier)
	}
	if _, ok := s.Take("state-1"); ok {
		t.Error("expected second Take to fail")
	}
}

func TestStateStoreExpiry(t *testing.T) {
	s := NewMemoryStateStore(time.Minute)
	defer s.Close()

	s.Put("stale", PendingAuth{
		UserID:    "u",
		Service:   domain.ServiceGmail,
		Verifier:  "v",
		CreatedAt: time.Now().Add(-2 * time.Minute),
	})

	if _, ok := s.Take("stale"); ok {
		t.Error("expected expired state to be rejected")
	}
}
