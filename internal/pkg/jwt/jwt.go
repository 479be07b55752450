package jwt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Role is the caller class carried in the "role" claim.
type Role string

const (
	// RoleDevice is a punch kiosk. It may preview and commit punches.
	RoleDevice Role = "device"
	// RoleSweeper is the absence-sweep job. It may query record existence.
	RoleSweeper Role = "sweeper"
	// RoleAdmin may do everything, including catalog invalidation and audits.
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleDevice || r == RoleSweeper || r == RoleAdmin
}

var (
	ErrInvalidToken     = errors.New("invalid or expired token")
	ErrInsufficientRole = errors.New("insufficient role for this operation")
	ErrInvalidRole      = errors.New("role must be one of: device, sweeper, admin")
)

const streamTokenTTL = 5 * time.Minute

type Service interface {
	GenerateAccessToken(subject string, role Role) (token string, expiresAt int64, err error)
	GenerateStreamToken(subject string) (token string, expiresIn int, err error)
	ValidateStreamToken(tokenString string) (subject string, err error)
	JWTAuth() *jwtauth.JWTAuth
	// RevokeToken verifies token and blocks its id until it expires
	RevokeToken(token string) (tokenID string, err error)
	IsTokenRevoked(tokenID string) bool
}

type JWTService struct {
	accessTokenExpiration time.Duration
	tokenAuth             *jwtauth.JWTAuth
	revokedTokens         map[string]int64 // jti -> exp
	mu                    sync.RWMutex
}

func NewJWTService(secretKey string, accessTokenExpiration time.Duration) Service {
	return &JWTService{
		accessTokenExpiration: accessTokenExpiration,
		tokenAuth:             jwtauth.New("HS256", []byte(secretKey), nil, jwt.WithAcceptableSkew(30*time.Second)),
		revokedTokens:         make(map[string]int64),
	}
}

func (j *JWTService) JWTAuth() *jwtauth.JWTAuth {
	return j.tokenAuth
}

// GenerateAccessToken issues a long-lived token for a device, sweeper or admin.
func (j *JWTService) GenerateAccessToken(subject string, role Role) (token string, expiresAt int64, err error) {
	if subject == "" {
		return "", 0, fmt.Errorf("subject is required")
	}
	if !role.Valid() {
		return "", 0, ErrInvalidRole
	}

	tokenID, err := newTokenID()
	if err != nil {
		return "", 0, err
	}

	now := time.Now()
	expiresAt = now.Add(j.accessTokenExpiration).Unix()
	_, tokenString, err := j.tokenAuth.Encode(map[string]interface{}{
		"jti":  tokenID,
		"sub":  subject,
		"role": string(role),
		"type": "access",
		"iat":  now.Unix(),
		"exp":  expiresAt,
	})
	return tokenString, expiresAt, err
}

// GenerateStreamToken issues a short-lived token for the punch stream, which
// EventSource clients pass as a query parameter.
func (j *JWTService) GenerateStreamToken(subject string) (token string, expiresIn int, err error) {
	tokenID, err := newTokenID()
	if err != nil {
		return "", 0, err
	}

	now := time.Now()
	_, tokenString, err := j.tokenAuth.Encode(map[string]interface{}{
		"jti":  tokenID,
		"sub":  subject,
		"type": "stream",
		"iat":  now.Unix(),
		"exp":  now.Add(streamTokenTTL).Unix(),
	})
	if err != nil {
		return "", 0, err
	}

	return tokenString, int(streamTokenTTL.Seconds()), nil
}

// ValidateStreamToken validates a stream token and returns its subject
func (j *JWTService) ValidateStreamToken(tokenString string) (subject string, err error) {
	token, err := jwtauth.VerifyToken(j.tokenAuth, tokenString)
	if err != nil {
		return "", ErrInvalidToken
	}

	if token.JwtID() == "" || j.IsTokenRevoked(token.JwtID()) {
		return "", ErrInvalidToken
	}

	tokenType, ok := token.Get("type")
	if !ok || tokenType != "stream" {
		return "", ErrInvalidToken
	}

	if token.Subject() == "" {
		return "", ErrInvalidToken
	}
	return token.Subject(), nil
}

func (j *JWTService) RevokeToken(tokenString string) (string, error) {
	token, err := jwtauth.VerifyToken(j.tokenAuth, tokenString)
	if err != nil || token.JwtID() == "" {
		return "", ErrInvalidToken
	}

	now := time.Now().Unix()
	j.mu.Lock()
	defer j.mu.Unlock()
	for id, exp := range j.revokedTokens {
		if exp < now {
			delete(j.revokedTokens, id)
		}
	}
	j.revokedTokens[token.JwtID()] = token.Expiration().Unix()
	return token.JwtID(), nil
}

func (j *JWTService) IsTokenRevoked(tokenID string) bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	_, revoked := j.revokedTokens[tokenID]
	return revoked
}

func newTokenID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate token id: %w", err)
	}
	return id.String(), nil
}
