package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/config"
	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/internal/events"
	"github.com/spec-kit/auth-service/internal/mailer"
	"github.com/spec-kit/auth-service/internal/repository"
	apperrors "github.com/spec-kit/auth-service/pkg/util"
)

const minPasswordLength = 6

// AuthService coordinates registration, login, verification, refresh and
// logout flows.
type AuthService struct {
	users      repository.UserRepository
	refresh    repository.RefreshTokenRepository
	tokens     *auth.TokenSet
	mailer     mailer.Sender
	dispatcher events.Dispatcher
	logger     *zap.Logger
	bcryptCost int
}

// AuthDependencies encapsulates collaborator requirements for the auth service.
type AuthDependencies struct {
	UserRepo         repository.UserRepository
	RefreshTokenRepo repository.RefreshTokenRepository
	Tokens           *auth.TokenSet
	Mailer           mailer.Sender
	Dispatcher       events.Dispatcher
	Logger           *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	return &AuthService{
		users:      deps.UserRepo,
		refresh:    deps.RefreshTokenRepo,
		tokens:     deps.Tokens,
		mailer:     deps.Mailer,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		bcryptCost: cfg.Auth.BcryptCost,
	}
}

// RegisterInput carries the register request fields.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	RegNo    string
	Role     string
}

// RegisterResult reports the created account and whether the verification
// email went out.
type RegisterResult struct {
	User             *domain.User
	VerificationSent bool
}

// LoginResult carries the issued credentials after a successful login.
type LoginResult struct {
	User             *domain.User
	AccessToken      string
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Register creates a new account and dispatches a verification email.
// Email delivery is decoupled from account creation: a send failure still
// leaves the account registered.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*RegisterResult, error) {
	if err := validateRegisterInput(input); err != nil {
		return nil, err
	}

	role := domain.RoleUser
	if input.Role != "" {
		role = domain.UserRole(input.Role)
		if !domain.ValidRole(role) {
			return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": input.Role})
		}
	}

	// Pre-check for friendlier errors; the unique constraint still settles
	// concurrent races.
	if _, err := s.users.GetByEmail(ctx, input.Email); err == nil {
		return nil, apperrors.NewDuplicateEmail()
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewInternalError(err)
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: hash,
		Role:         role,
	}
	if input.RegNo != "" {
		user.RegNo = &input.RegNo
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, apperrors.NewDuplicateEmail()
		}
		return nil, apperrors.NewInternalError(err)
	}

	sent := s.sendVerificationEmail(ctx, user)

	s.publish(ctx, events.Event{
		Type:   events.EventUserRegistered,
		UserID: user.ID,
		Payload: events.UserRegisteredPayload{
			Email:            user.Email,
			Role:             string(user.Role),
			VerificationSent: sent,
		},
	})

	return &RegisterResult{User: user, VerificationSent: sent}, nil
}

// sendVerificationEmail signs an email token and dispatches the mail.
// Failures are logged and reported as false, never propagated.
func (s *AuthService) sendVerificationEmail(ctx context.Context, user *domain.User) bool {
	token, _, err := s.tokens.Email.Sign(auth.TokenPayload{Subject: user.ID})
	if err != nil {
		s.logger.Warn("signing verification token failed", zap.String("user_id", user.ID), zap.Error(err))
		return false
	}
	if err := s.mailer.SendVerificationEmail(ctx, user.Email, token); err != nil {
		s.logger.Warn("verification email failed", zap.String("user_id", user.ID), zap.Error(err))
		return false
	}
	return true
}

// Login authenticates the account and issues an access/refresh token pair.
// The refresh token is persisted as a new row; earlier rows stay valid.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if email == "" || password == "" {
		return nil, apperrors.NewValidationError("email and password are required", nil)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUserNotFound()
		}
		return nil, apperrors.NewInternalError(err)
	}

	if !auth.VerifyPassword(password, user.PasswordHash) {
		return nil, apperrors.NewInvalidCredentials()
	}

	accessToken, _, err := s.tokens.Access.Sign(auth.TokenPayload{
		Subject: user.ID,
		Name:    user.Name,
		Email:   user.Email,
	})
	if err != nil {
		return nil, s.signingError(auth.ContextAccess, err)
	}

	refreshToken, refreshExp, err := s.tokens.Refresh.Sign(auth.TokenPayload{Subject: user.ID})
	if err != nil {
		return nil, s.signingError(auth.ContextRefresh, err)
	}

	record := &repository.RefreshToken{
		UserID:    user.ID,
		Token:     refreshToken,
		ExpiresAt: refreshExp,
	}
	if err := s.refresh.Create(ctx, record); err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	s.publish(ctx, events.Event{
		Type:    events.EventUserLoggedIn,
		UserID:  user.ID,
		Payload: events.UserLoggedInPayload{Email: user.Email},
	})

	return &LoginResult{
		User:             user,
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// VerifyEmail validates an email verification token and flips the account's
// verified flag. Safe to call twice with the same token.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		return apperrors.NewValidationError("token is required", nil)
	}

	claims, err := s.tokens.Email.Verify(token)
	if err != nil {
		if errors.Is(err, auth.ErrMissingSecret) {
			return apperrors.NewMissingSigningSecret(string(auth.ContextEmail))
		}
		return apperrors.NewInvalidOrExpiredToken()
	}

	if err := s.users.MarkVerified(ctx, claims.Subject); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewInvalidOrExpiredToken()
		}
		return apperrors.NewInternalError(err)
	}

	s.publish(ctx, events.Event{
		Type:    events.EventEmailVerified,
		UserID:  claims.Subject,
		Payload: events.EmailVerifiedPayload{Email: claims.Email},
	})

	return nil
}

// Refresh mints a new access token from a presented refresh token. The
// signed token alone is trusted; the store's revoked flag is deliberately
// not consulted here.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", apperrors.NewUnauthorized("refresh token not provided")
	}

	claims, err := s.tokens.Refresh.Verify(refreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrMissingSecret) {
			return "", apperrors.NewMissingSigningSecret(string(auth.ContextRefresh))
		}
		return "", apperrors.NewUnauthorized("invalid refresh token")
	}

	accessToken, _, err := s.tokens.Access.Sign(auth.TokenPayload{Subject: claims.Subject})
	if err != nil {
		return "", s.signingError(auth.ContextAccess, err)
	}
	return accessToken, nil
}

// Logout revokes the stored refresh token row when one matches. Revocation
// failure is logged and swallowed; the caller clears the cookie regardless.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) {
	revoked := false
	if refreshToken != "" {
		if err := s.refresh.RevokeByToken(ctx, refreshToken); err != nil {
			s.logger.Warn("refresh token revocation failed", zap.Error(err))
		} else {
			revoked = true
		}
	}

	userID := ""
	if claims, err := s.tokens.Refresh.Verify(refreshToken); err == nil {
		userID = claims.Subject
	}
	s.publish(ctx, events.Event{
		Type:    events.EventUserLoggedOut,
		UserID:  userID,
		Payload: events.UserLoggedOutPayload{TokenRevoked: revoked},
	})
}

// ActiveSession returns the most recent non-revoked refresh token row for
// the user, for introspection.
func (s *AuthService) ActiveSession(ctx context.Context, userID string) (*repository.RefreshToken, error) {
	record, err := s.refresh.FindActiveByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewTokenNotFound()
		}
		return nil, apperrors.NewInternalError(err)
	}
	return record, nil
}

// Tokens exposes the token set for middleware usage.
func (s *AuthService) Tokens() *auth.TokenSet {
	return s.tokens
}

func (s *AuthService) signingError(context auth.TokenContext, err error) error {
	if errors.Is(err, auth.ErrMissingSecret) {
		return apperrors.NewMissingSigningSecret(string(context))
	}
	return apperrors.NewInternalError(err)
}

func (s *AuthService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Timestamp = time.Now()
	_ = s.dispatcher.Publish(ctx, event)
}

func validateRegisterInput(input RegisterInput) error {
	missing := map[string]any{}
	if strings.TrimSpace(input.Name) == "" {
		missing["name"] = "required"
	}
	if input.Email == "" {
		missing["email"] = "required"
	}
	if input.Password == "" {
		missing["password"] = "required"
	}
	if len(missing) > 0 {
		return apperrors.NewValidationError("name, email and password are required", missing)
	}

	if _, err := mail.ParseAddress(input.Email); err != nil {
		return apperrors.NewValidationError("invalid email address", map[string]any{"email": input.Email})
	}
	if len(input.Password) < minPasswordLength {
		return apperrors.NewValidationError("password must be at least 6 characters", nil)
	}
	return nil
}
