package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gofrs/uuid"

	"animelist_service/internal/auth"
	"animelist_service/internal/models"
	"animelist_service/internal/session"
	"animelist_service/internal/storage"
)

type Auth interface {
	Register(ctx context.Context, login, password string) (models.User, error)
	Login(ctx context.Context, login, password string) (models.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error)
	Logout(ctx context.Context, userID uuid.UUID) error
	Profile(ctx context.Context, userID uuid.UUID) (models.User, error)
}

// AuthService drives the session lifecycle:
// unauthenticated -> authenticated -> rotated -> revoked.
// At most one refresh token is live per user; issuing a new one displaces
// the previous session, and using a displaced token revokes everything.
type AuthService struct {
	storage  storage.Storage
	registry session.Registry
	issuer   *auth.Issuer
	hasher   auth.Hasher
	log      *slog.Logger
}

func NewAuthService(st storage.Storage, reg session.Registry, issuer *auth.Issuer, hasher auth.Hasher, lgr *slog.Logger) *AuthService {
	return &AuthService{
		storage:  st,
		registry: reg,
		issuer:   issuer,
		hasher:   hasher,
		log:      lgr,
	}
}

func (s *AuthService) Register(ctx context.Context, login, password string) (models.User, error) {
	const op = "service.AuthService.Register"

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	id, err := s.storage.CreateUser(ctx, login, passwordHash)
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return models.User{}, fmt.Errorf("%s: %w", op, ErrAlreadyExists)
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.storage.GetUserByID(ctx, id)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("user registered", slog.String("user_id", user.ID.String()))

	return user, nil
}

func (s *AuthService) Login(ctx context.Context, login, password string) (models.TokenPair, error) {
	const op = "service.AuthService.Login"

	cred, err := s.storage.GetCredentialsByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.TokenPair{}, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	ok, err := s.hasher.Verify(password, cred.PasswordHash)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	pair, err := s.issuePair(ctx, cred.UserID)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("user logged in", slog.String("user_id", cred.UserID.String()))

	return pair, nil
}

// Refresh rotates the refresh token. A token whose jti no longer matches
// the registry is treated as reuse of an already-rotated token: the whole
// session is revoked, so a stolen stale token kills the live one too.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error) {
	const op = "service.AuthService.Refresh"

	claims, err := s.issuer.Verify(refreshToken, auth.TokenTypeRefresh)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, auth.ErrInvalidToken)
	}

	active, err := s.registry.IsActive(ctx, claims.UserID, claims.ID)
	if err != nil {
		// Fail closed: a registry outage never passes for a valid session.
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	if !active {
		s.log.Warn("refresh token reuse detected, revoking session",
			slog.String("user_id", claims.UserID.String()),
			slog.String("jti", claims.ID),
		)

		if err := s.registry.Revoke(ctx, claims.UserID); err != nil {
			return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
		}

		return models.TokenPair{}, fmt.Errorf("%s: %w", op, ErrSessionRevoked)
	}

	pair, err := s.issuePair(ctx, claims.UserID)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	return pair, nil
}

func (s *AuthService) Logout(ctx context.Context, userID uuid.UUID) error {
	const op = "service.AuthService.Logout"

	if err := s.registry.Revoke(ctx, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("user logged out", slog.String("user_id", userID.String()))

	return nil
}

func (s *AuthService) Profile(ctx context.Context, userID uuid.UUID) (models.User, error) {
	const op = "service.AuthService.Profile"

	user, err := s.storage.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.User{}, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// issuePair issues a fresh access+refresh pair and registers the new jti,
// displacing whatever session the user had before.
func (s *AuthService) issuePair(ctx context.Context, userID uuid.UUID) (models.TokenPair, error) {
	const op = "service.AuthService.issuePair"

	accessToken, err := s.issuer.IssueAccess(userID)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	refreshToken, jti, err := s.issuer.IssueRefresh(userID)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.registry.Register(ctx, userID, jti, s.issuer.RefreshTTL()); err != nil {
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	return models.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}
