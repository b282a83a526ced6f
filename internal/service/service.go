package service

import (
	"auth_service/internal/auth"
	"auth_service/internal/blacklist"
	"auth_service/internal/models"
	"auth_service/internal/storage"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
)

const tokenType = "bearer"

type Service interface {
	ValidateRegistration(ctx context.Context, in RegisterInput) error
	Register(ctx context.Context, in RegisterInput) (TokenResponse, error)
	Login(ctx context.Context, email, password string) (TokenResponse, error)
	Me(ctx context.Context, identity models.Identity) (models.User, error)
	Logout(ctx context.Context, identity models.Identity) error
	Refresh(ctx context.Context, identity models.Identity) (TokenResponse, error)

	Authenticate(ctx context.Context, rawToken string) (models.Identity, error)
	AuthenticateForRefresh(ctx context.Context, rawToken string) (models.Identity, error)
}

type TokenManager interface {
	Issue(subject string) (auth.Token, error)
	Parse(raw string) (*auth.Claims, error)
	ParseForRefresh(raw string) (*auth.Claims, error)
	BlacklistUntil(c *auth.Claims) time.Time
	TTL() time.Duration
}

type PasswordHasher interface {
	HashPassword(password string) (string, error)
	CheckPasswordHash(hash, password string) bool
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type service struct {
	storage   storage.Storage
	blacklist blacklist.Blacklist
	tokens    TokenManager
	hasher    PasswordHasher
}

func NewService(st storage.Storage, bl blacklist.Blacklist, tokens TokenManager, hasher PasswordHasher) *service {
	return &service{
		storage:   st,
		blacklist: bl,
		tokens:    tokens,
		hasher:    hasher,
	}
}

// ValidateRegistration checks the rules a request struct cannot express: a
// taken email and a password over the hasher's byte limit. Problems come back
// as a *ValidationError; a store failure wraps ErrRegistration.
func (s *service) ValidateRegistration(ctx context.Context, in RegisterInput) error {
	const op = "service.ValidateRegistration"

	verr := NewValidationError()

	if len(in.Password) > auth.MaxPasswordBytes {
		verr.Add("password", passwordTooLongMessage)
	}

	if email := normalizeEmail(in.Email); email != "" {
		exists, err := s.storage.ExistsByEmail(ctx, email)
		if err != nil {
			return fmt.Errorf("%s: %w: %w", op, ErrRegistration, err)
		}
		if exists {
			verr.Add("email", emailTakenMessage)
		}
	}

	if len(verr.Fields) > 0 {
		return verr
	}

	return nil
}

// Register creates the user and logs them in with the same credentials.
func (s *service) Register(ctx context.Context, in RegisterInput) (TokenResponse, error) {
	const op = "service.Register"

	if err := s.ValidateRegistration(ctx, in); err != nil {
		return TokenResponse{}, err
	}

	email := normalizeEmail(in.Email)

	passwordHash, err := s.hasher.HashPassword(in.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return TokenResponse{}, fieldError("password", passwordTooLongMessage)
		}
		return TokenResponse{}, fmt.Errorf("%s: %w: %w", op, ErrRegistration, err)
	}

	id, err := uuid.NewV4()
	if err != nil {
		return TokenResponse{}, fmt.Errorf("%s: %w: %w", op, ErrRegistration, err)
	}

	_, err = s.storage.CreateUser(ctx, models.User{
		ID:           id,
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		PasswordHash: passwordHash,
	})
	if err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			return TokenResponse{}, fieldError("email", emailTakenMessage)
		}
		return TokenResponse{}, fmt.Errorf("%s: %w: %w", op, ErrRegistration, err)
	}

	return s.Login(ctx, email, in.Password)
}

// Login reports ErrInvalidCredentials for both an unknown email and a wrong
// password.
func (s *service) Login(ctx context.Context, email, password string) (TokenResponse, error) {
	const op = "service.Login"

	user, err := s.storage.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return TokenResponse{}, ErrInvalidCredentials
		}
		return TokenResponse{}, fmt.Errorf("%s: %w", op, err)
	}

	if ok := s.hasher.CheckPasswordHash(user.PasswordHash, password); !ok {
		return TokenResponse{}, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID.String())
	if err != nil {
		return TokenResponse{}, fmt.Errorf("%s: %w", op, err)
	}

	return s.tokenResponse(token), nil
}

func (s *service) Me(ctx context.Context, identity models.Identity) (models.User, error) {
	const op = "service.Me"

	user, err := s.storage.GetUserByID(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return models.User{}, fmt.Errorf("%s: %w", op, ErrAuthenticationRequired)
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// Logout is idempotent: an already blacklisted token is not an error.
func (s *service) Logout(ctx context.Context, identity models.Identity) error {
	const op = "service.Logout"

	if _, err := s.blacklist.Add(ctx, identity.TokenID, identity.BlacklistUntil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Refresh mints a token for the same subject and consumes the presented one.
// The blacklist claim is the arbiter: of concurrent refreshes of one token
// only the caller whose claim lands gets the new token.
func (s *service) Refresh(ctx context.Context, identity models.Identity) (TokenResponse, error) {
	const op = "service.Refresh"

	token, err := s.tokens.Issue(identity.UserID.String())
	if err != nil {
		return TokenResponse{}, fmt.Errorf("%s: %w: %w", op, ErrRefresh, err)
	}

	claimed, err := s.blacklist.Add(ctx, identity.TokenID, identity.BlacklistUntil)
	if err != nil {
		return TokenResponse{}, fmt.Errorf("%s: %w: %w", op, ErrRefresh, err)
	}
	if !claimed {
		return TokenResponse{}, fmt.Errorf("%s: %w: %w", op, ErrRefresh, ErrTokenBlacklisted)
	}

	return s.tokenResponse(token), nil
}

func (s *service) Authenticate(ctx context.Context, rawToken string) (models.Identity, error) {
	return s.authenticate(ctx, rawToken, s.tokens.Parse)
}

// AuthenticateForRefresh also accepts an expired token inside its refresh
// window.
func (s *service) AuthenticateForRefresh(ctx context.Context, rawToken string) (models.Identity, error) {
	return s.authenticate(ctx, rawToken, s.tokens.ParseForRefresh)
}

func (s *service) authenticate(
	ctx context.Context,
	rawToken string,
	parse func(string) (*auth.Claims, error),
) (models.Identity, error) {
	const op = "service.Authenticate"

	if rawToken == "" {
		return models.Identity{}, ErrTokenNotProvided
	}

	claims, err := parse(rawToken)
	if err != nil {
		return models.Identity{}, fmt.Errorf("%s: %w", op, err)
	}

	userID, err := uuid.FromString(claims.Subject)
	if err != nil {
		return models.Identity{}, fmt.Errorf("%s: %w", op, auth.ErrTokenInvalid)
	}

	listed, err := s.blacklist.IsBlacklisted(ctx, claims.ID)
	if err != nil {
		return models.Identity{}, fmt.Errorf("%s: %w", op, err)
	}
	if listed {
		return models.Identity{}, fmt.Errorf("%s: %w", op, ErrTokenBlacklisted)
	}

	return models.Identity{
		UserID:         userID,
		TokenID:        claims.ID,
		IssuedAt:       claims.IssuedAt.Time,
		ExpiresAt:      claims.ExpiresAt.Time,
		BlacklistUntil: s.tokens.BlacklistUntil(claims),
	}, nil
}

func (s *service) tokenResponse(token auth.Token) TokenResponse {
	return TokenResponse{
		AccessToken: token.Value,
		TokenType:   tokenType,
		ExpiresIn:   int64(s.tokens.TTL().Seconds()),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
