package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
)

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// ErrInvalidToken covers malformed, expired, wrong-type and bad-signature
// tokens. Callers must not tell these apart to avoid an oracle.
var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	UserID    uuid.UUID `json:"user_id"`
	TokenType TokenType `json:"token_type"`
	jwt.RegisteredClaims
}

type Issuer struct {
	key        []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewIssuer(secret string, accessTTL, refreshTTL time.Duration) *Issuer {
	return &Issuer{
		key:        []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

func (i *Issuer) RefreshTTL() time.Duration {
	return i.refreshTTL
}

func (i *Issuer) IssueAccess(userID uuid.UUID) (string, error) {
	const op = "auth.Issuer.IssueAccess"

	token, err := i.sign(userID, TokenTypeAccess, i.accessTTL, "")
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return token, nil
}

// IssueRefresh returns the signed token together with its jti, which the
// session registry uses as the rotation key.
func (i *Issuer) IssueRefresh(userID uuid.UUID) (string, string, error) {
	const op = "auth.Issuer.IssueRefresh"

	jti, err := uuid.NewV4()
	if err != nil {
		return "", "", fmt.Errorf("%s: %w", op, err)
	}

	token, err := i.sign(userID, TokenTypeRefresh, i.refreshTTL, jti.String())
	if err != nil {
		return "", "", fmt.Errorf("%s: %w", op, err)
	}

	return token, jti.String(), nil
}

func (i *Issuer) sign(userID uuid.UUID, tokenType TokenType, ttl time.Duration, jti string) (string, error) {
	now := time.Now()

	claims := &Claims{
		UserID:    userID,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return token.SignedString(i.key)
}

func (i *Issuer) Verify(tokenStr string, expected TokenType) (Claims, error) {
	const op = "auth.Issuer.Verify"

	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.key, nil
	})
	if err != nil || !token.Valid {
		return Claims{}, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return Claims{}, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	if claims.TokenType != expected {
		return Claims{}, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	if claims.UserID.IsNil() {
		return Claims{}, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	return *claims, nil
}
