package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"hospitalrecords/internal/models"
)

const (
	TokenTTL  = 24 * time.Hour
	TokenType = "Bearer"

	// MinSigningKeyLen is 512 bits, matching HS512.
	MinSigningKeyLen = 64
)

// Claims is the payload of a session token. Downstream services read the
// account id and role from it without touching the database.
type Claims struct {
	jwt.RegisteredClaims
	AccountID int64  `json:"uid"`
	Role      string `json:"role"`
}

// TokenService signs and checks session tokens with a process-wide HMAC key.
type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(secret []byte, issuer string) (*TokenService, error) {
	if len(secret) < MinSigningKeyLen {
		return nil, fmt.Errorf("token signing key must be at least %d bytes, got %d", MinSigningKeyLen, len(secret))
	}
	key := make([]byte, len(secret))
	copy(key, secret)
	return &TokenService{
		secret: key,
		issuer: issuer,
		ttl:    TokenTTL,
		now:    time.Now,
	}, nil
}

// Issue signs a token for the account and returns it with its expiry.
func (s *TokenService) Issue(a *models.Account) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   a.Username,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
		AccountID: a.ID,
		Role:      a.Role,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Parse verifies signature, algorithm, issuer and expiry. Any failure yields
// ErrInvalidToken and no claims.
func (s *TokenService) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" || claims.AccountID == 0 {
		return nil, fmt.Errorf("%w: missing subject or account id", ErrInvalidToken)
	}
	return claims, nil
}

func (s *TokenService) Verify(tokenString string) bool {
	_, err := s.Parse(tokenString)
	return err == nil
}

func (s *TokenService) Subject(tokenString string) (string, error) {
	c, err := s.Parse(tokenString)
	if err != nil {
		return "", err
	}
	return c.Subject, nil
}

func (s *TokenService) AccountID(tokenString string) (int64, error) {
	c, err := s.Parse(tokenString)
	if err != nil {
		return 0, err
	}
	return c.AccountID, nil
}

// IsExpired distinguishes an expired token from a forged one in logs.
func IsExpired(err error) bool {
	return errors.Is(err, jwt.ErrTokenExpired)
}
