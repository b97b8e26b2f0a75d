package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"raceday-api/apperror"
	"raceday-api/secrets"
)

const (
	TokenTTL    = 72 * time.Hour
	TokenIssuer = "raceday-api"
)

// UnauthorizedMessage is the only message a failed login or token check
// returns.
const UnauthorizedMessage = "Unauthorized"

type LoginResult struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int    `json:"expiresIn"`
}

// AuthService exchanges the shared admin credential for a signed token.
type AuthService struct {
	secrets   secrets.Provider
	jwtSecret string
	now       func() time.Time
}

// NewAuthService signs tokens with jwtSecret, or with the admin password
// when jwtSecret is empty.
func NewAuthService(provider secrets.Provider, jwtSecret string) *AuthService {
	return &AuthService{
		secrets:   provider,
		jwtSecret: jwtSecret,
		now:       time.Now,
	}
}

func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	if username == "" || password == "" {
		return nil, apperror.Validation("username and password are required")
	}

	expectedUser, err := s.secrets.Get(ctx, secrets.AdminLogin)
	if err != nil {
		return nil, fmt.Errorf("failed to load admin login: %w", err)
	}
	expectedPass, err := s.secrets.Get(ctx, secrets.AdminPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to load admin password: %w", err)
	}

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(expectedUser)) == 1
	passOK := checkPassword(expectedPass, password)
	if !userOK || !passOK {
		return nil, apperror.Forbidden(UnauthorizedMessage)
	}

	key, err := s.signingKey(ctx, expectedPass)
	if err != nil {
		return nil, err
	}

	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   username,
		Issuer:    TokenIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &LoginResult{AccessToken: token, ExpiresIn: int(TokenTTL.Seconds())}, nil
}

// ValidateToken accepts only unexpired HS256 tokens signed with the current
// key and returns their subject.
func (s *AuthService) ValidateToken(ctx context.Context, tokenString string) (string, error) {
	if tokenString == "" {
		return "", apperror.Forbidden(UnauthorizedMessage)
	}

	key, err := s.signingKey(ctx, "")
	if err != nil {
		return "", err
	}

	claims := &jwt.RegisteredClaims{}
	_, err = jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", apperror.Forbidden(UnauthorizedMessage)
	}
	return claims.Subject, nil
}

func (s *AuthService) signingKey(ctx context.Context, adminPassword string) ([]byte, error) {
	if s.jwtSecret != "" {
		return []byte(s.jwtSecret), nil
	}
	if adminPassword == "" {
		var err error
		adminPassword, err = s.secrets.Get(ctx, secrets.AdminPassword)
		if err != nil {
			return nil, fmt.Errorf("failed to load token signing key: %w", err)
		}
	}
	return []byte(adminPassword), nil
}

// checkPassword compares against a bcrypt hash when the stored value is one,
// otherwise in constant time.
func checkPassword(stored, given string) bool {
	if isBcryptHash(stored) {
		err := bcrypt.CompareHashAndPassword([]byte(stored), []byte(given))
		return err == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(given)) == 1
}

func isBcryptHash(s string) bool {
	if len(s) != 60 {
		return false
	}
	for _, prefix := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(s, prefix) {
			_, err := bcrypt.Cost([]byte(s))
			return err == nil
		}
	}
	return false
}

// BearerToken extracts the token from an Authorization header value. The
// scheme is matched case-insensitively.
func BearerToken(header string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", errors.New("missing bearer token")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}
