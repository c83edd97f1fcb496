package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/config"
	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/internal/events"
	"github.com/spec-kit/auth-service/internal/repository"
	apperrors "github.com/spec-kit/auth-service/pkg/util"
)

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]*domain.User{}}
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}
	user.ID = uuid.NewString()
	user.CreatedAt = time.Now()
	stored := *user
	r.users[user.ID] = &stored
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeUserRepo) MarkVerified(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.Verified = true
	return nil
}

type fakeRefreshRepo struct {
	mu     sync.Mutex
	tokens []*repository.RefreshToken
}

func (r *fakeRefreshRepo) Create(_ context.Context, token *repository.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	token.ID = uuid.NewString()
	token.CreatedAt = time.Now()
	stored := *token
	r.tokens = append(r.tokens, &stored)
	return nil
}

func (r *fakeRefreshRepo) FindActiveByUser(_ context.Context, userID string) (*repository.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.tokens) - 1; i >= 0; i-- {
		if r.tokens[i].UserID == userID && !r.tokens[i].Revoked {
			copied := *r.tokens[i]
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeRefreshRepo) RevokeByToken(_ context.Context, tokenStr string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, token := range r.tokens {
		if token.Token == tokenStr {
			token.Revoked = true
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r *fakeRefreshRepo) countForUser(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, token := range r.tokens {
		if token.UserID == userID {
			count++
		}
	}
	return count
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []string
	fail bool
}

func (m *fakeMailer) SendVerificationEmail(_ context.Context, toEmail, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("smtp unavailable")
	}
	if token == "" {
		return errors.New("empty token")
	}
	m.sent = append(m.sent, toEmail)
	return nil
}

type testEnv struct {
	svc     *AuthService
	users   *fakeUserRepo
	refresh *fakeRefreshRepo
	mailer  *fakeMailer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := config.Config{
		Auth: config.AuthConfig{
			AccessSecret:          "test-access-secret",
			RefreshSecret:         "test-refresh-secret",
			EmailSecret:           "test-email-secret",
			AccessTokenTTLMinutes: 15,
			RefreshTokenTTLHours:  168,
			EmailTokenTTLMinutes:  60,
			BcryptCost:            bcrypt.MinCost,
		},
	}

	users := newFakeUserRepo()
	refresh := &fakeRefreshRepo{}
	sender := &fakeMailer{}

	svc := NewAuthService(cfg, AuthDependencies{
		UserRepo:         users,
		RefreshTokenRepo: refresh,
		Tokens:           auth.NewTokenSet(cfg.Auth),
		Mailer:           sender,
		Dispatcher:       events.NewInMemoryDispatcher(),
		Logger:           zap.NewNop(),
	})

	return &testEnv{svc: svc, users: users, refresh: refresh, mailer: sender}
}

func registerAnn(t *testing.T, env *testEnv) *domain.User {
	t.Helper()
	result, err := env.svc.Register(context.Background(), RegisterInput{
		Name:     "Ann",
		Email:    "ann@x.com",
		Password: "secret1",
	})
	require.NoError(t, err)
	return result.User
}

func TestAuthService_Register_Validation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		input RegisterInput
	}{
		{name: "missing name", input: RegisterInput{Email: "ann@x.com", Password: "secret1"}},
		{name: "missing email", input: RegisterInput{Name: "Ann", Password: "secret1"}},
		{name: "missing password", input: RegisterInput{Name: "Ann", Email: "ann@x.com"}},
		{name: "invalid email", input: RegisterInput{Name: "Ann", Email: "not-an-email", Password: "secret1"}},
		{name: "short password", input: RegisterInput{Name: "Ann", Email: "ann@x.com", Password: "short"}},
		{name: "unknown role", input: RegisterInput{Name: "Ann", Email: "ann@x.com", Password: "secret1", Role: "root"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := env.svc.Register(ctx, tt.input)
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, "VALIDATION_FAILED"))
		})
	}
}

func TestAuthService_Register_Success(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	result, err := env.svc.Register(context.Background(), RegisterInput{
		Name:     "Ann",
		Email:    "ann@x.com",
		Password: "secret1",
		RegNo:    "FA22-BIO-001",
		Role:     "faculty",
	})
	require.NoError(t, err)
	require.NotNil(t, result.User)

	assert.NotEmpty(t, result.User.ID)
	assert.Equal(t, "ann@x.com", result.User.Email)
	assert.Equal(t, domain.RoleFaculty, result.User.Role)
	require.NotNil(t, result.User.RegNo)
	assert.Equal(t, "FA22-BIO-001", *result.User.RegNo)
	assert.False(t, result.User.Verified)
	assert.NotEqual(t, "secret1", result.User.PasswordHash)

	assert.True(t, result.VerificationSent)
	assert.Equal(t, []string{"ann@x.com"}, env.mailer.sent)
}

func TestAuthService_Register_RoleDefaultsToUser(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	user := registerAnn(t, env)

	assert.Equal(t, domain.RoleUser, user.Role)
	assert.Nil(t, user.RegNo)
}

func TestAuthService_Register_DuplicateEmail(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	registerAnn(t, env)

	_, err := env.svc.Register(context.Background(), RegisterInput{
		Name:     "Ann Again",
		Email:    "ann@x.com",
		Password: "secret2",
	})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, "DUPLICATE_EMAIL"))
}

func TestAuthService_Register_MailFailureStillCreatesUser(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.mailer.fail = true

	result, err := env.svc.Register(context.Background(), RegisterInput{
		Name:     "Ann",
		Email:    "ann@x.com",
		Password: "secret1",
	})
	require.NoError(t, err)
	assert.False(t, result.VerificationSent)

	_, err = env.users.GetByEmail(context.Background(), "ann@x.com")
	assert.NoError(t, err)
}

func TestAuthService_Login_UserNotFound(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	_, err := env.svc.Login(context.Background(), "nobody@x.com", "secret1")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, "USER_NOT_FOUND"))
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	registerAnn(t, env)

	_, err := env.svc.Login(context.Background(), "ann@x.com", "wrong")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, "INVALID_CREDENTIALS"))
}

func TestAuthService_Login_IssuesVerifiableTokens(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	user := registerAnn(t, env)

	result, err := env.svc.Login(context.Background(), "ann@x.com", "secret1")
	require.NoError(t, err)

	accessClaims, err := env.svc.Tokens().Access.Verify(result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, accessClaims.Subject)
	assert.Equal(t, "Ann", accessClaims.Name)
	assert.Equal(t, "ann@x.com", accessClaims.Email)

	refreshClaims, err := env.svc.Tokens().Refresh.Verify(result.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, refreshClaims.Subject)
	assert.Empty(t, refreshClaims.Name)
	assert.Empty(t, refreshClaims.Email)

	// contexts must not be interchangeable
	_, err = env.svc.Tokens().Refresh.Verify(result.AccessToken)
	assert.Error(t, err)
	_, err = env.svc.Tokens().Access.Verify(result.RefreshToken)
	assert.Error(t, err)
}

func TestAuthService_Login_PersistsOneRowPerLogin(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	user := registerAnn(t, env)

	first, err := env.svc.Login(context.Background(), "ann@x.com", "secret1")
	require.NoError(t, err)
	second, err := env.svc.Login(context.Background(), "ann@x.com", "secret1")
	require.NoError(t, err)

	assert.Equal(t, 2, env.refresh.countForUser(user.ID))

	// the first token stays verifiable; concurrent sessions are allowed
	_, err = env.svc.Tokens().Refresh.Verify(first.RefreshToken)
	assert.NoError(t, err)

	record, err := env.refresh.FindActiveByUser(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, second.RefreshToken, record.Token)
	assert.False(t, record.Revoked)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), record.ExpiresAt, 5*time.Second)
}

func TestAuthService_VerifyEmail(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	user := registerAnn(t, env)

	token, _, err := env.svc.Tokens().Email.Sign(auth.TokenPayload{Subject: user.ID})
	require.NoError(t, err)

	require.NoError(t, env.svc.VerifyEmail(context.Background(), token))

	stored, err := env.users.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, stored.Verified)

	// idempotent on repeat
	require.NoError(t, env.svc.VerifyEmail(context.Background(), token))
}

func TestAuthService_VerifyEmail_RejectsWrongContextToken(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	user := registerAnn(t, env)

	// an access token must not verify an email
	token, _, err := env.svc.Tokens().Access.Sign(auth.TokenPayload{Subject: user.ID})
	require.NoError(t, err)

	err = env.svc.VerifyEmail(context.Background(), token)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, "INVALID_OR_EXPIRED_TOKEN"))

	stored, err := env.users.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.False(t, stored.Verified)
}

func TestAuthService_Refresh(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	user := registerAnn(t, env)

	login, err := env.svc.Login(context.Background(), "ann@x.com", "secret1")
	require.NoError(t, err)

	accessToken, err := env.svc.Refresh(context.Background(), login.RefreshToken)
	require.NoError(t, err)

	claims, err := env.svc.Tokens().Access.Verify(accessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.Subject)
}

func TestAuthService_Refresh_Unauthorized(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	tests := []struct {
		name  string
		token string
	}{
		{name: "missing", token: ""},
		{name: "garbage", token: "not-a-jwt"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := env.svc.Refresh(context.Background(), tt.token)
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, "UNAUTHORIZED"))
		})
	}
}

func TestAuthService_Refresh_DoesNotConsultStore(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	registerAnn(t, env)

	login, err := env.svc.Login(context.Background(), "ann@x.com", "secret1")
	require.NoError(t, err)

	// a revoked but unexpired refresh token still mints access tokens;
	// the signature alone is trusted during refresh
	require.NoError(t, env.refresh.RevokeByToken(context.Background(), login.RefreshToken))

	_, err = env.svc.Refresh(context.Background(), login.RefreshToken)
	assert.NoError(t, err)
}

func TestAuthService_Logout_RevokesStoredRow(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	user := registerAnn(t, env)

	login, err := env.svc.Login(context.Background(), "ann@x.com", "secret1")
	require.NoError(t, err)

	env.svc.Logout(context.Background(), login.RefreshToken)

	_, err = env.refresh.FindActiveByUser(context.Background(), user.ID)
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestAuthService_Logout_SwallowsUnknownToken(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	// no panic, no error surfaced
	env.svc.Logout(context.Background(), "never-stored")
	env.svc.Logout(context.Background(), "")
}

func TestAuthService_MissingSigningSecret(t *testing.T) {
	t.Parallel()

	cfg := config.Config{
		Auth: config.AuthConfig{
			AccessSecret:          "",
			RefreshSecret:         "test-refresh-secret",
			EmailSecret:           "test-email-secret",
			AccessTokenTTLMinutes: 15,
			RefreshTokenTTLHours:  168,
			EmailTokenTTLMinutes:  60,
			BcryptCost:            bcrypt.MinCost,
		},
	}
	users := newFakeUserRepo()
	svc := NewAuthService(cfg, AuthDependencies{
		UserRepo:         users,
		RefreshTokenRepo: &fakeRefreshRepo{},
		Tokens:           auth.NewTokenSet(cfg.Auth),
		Mailer:           &fakeMailer{},
		Dispatcher:       events.NewInMemoryDispatcher(),
		Logger:           zap.NewNop(),
	})

	_, err := svc.Register(context.Background(), RegisterInput{
		Name: "Ann", Email: "ann@x.com", Password: "secret1",
	})
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), "ann@x.com", "secret1")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, "MISSING_SIGNING_SECRET"))
}
