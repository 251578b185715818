package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Signer mints and verifies HS256 admin tokens for one issuer.
type Signer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

func NewSigner(cfg config.JWTConfig) (*Signer, error) {
	switch {
	case cfg.Secret == "":
		return nil, errors.New("jwt secret is required")
	case cfg.Issuer == "":
		return nil, errors.New("jwt issuer is required")
	case cfg.ExpirationMinutes <= 0:
		return nil, errors.New("jwt expiration minutes must be positive")
	}
	return &Signer{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    time.Duration(cfg.ExpirationMinutes) * time.Minute,
		now:    time.Now,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(cfg.Issuer),
			jwt.WithExpirationRequired(),
		),
	}, nil
}

// Mint signs payload. A missing JTI is generated so the token can be revoked.
func (s *Signer) Mint(payload AdminTokenPayload) (string, error) {
	if strings.TrimSpace(payload.ActorID) == "" {
		return "", errors.New("actor id is required")
	}
	if err := checkRole(payload.Role, payload.TenantID); err != nil {
		return "", err
	}
	jti := strings.TrimSpace(payload.JTI)
	if jti == "" {
		jti = uuid.NewString()
	}
	issued := s.now()
	claims := AdminClaims{
		ActorID:  payload.ActorID,
		Name:     payload.Name,
		Role:     payload.Role,
		TenantID: payload.TenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   payload.ActorID,
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(s.ttl)),
			ID:        jti,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

// Parse verifies signature, issuer and expiry and returns the claims.
func (s *Signer) Parse(token string) (*AdminClaims, error) {
	claims := &AdminClaims{}
	if _, err := s.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}); err != nil {
		return nil, err
	}
	if err := checkRole(claims.Role, claims.TenantID); err != nil {
		return nil, err
	}
	return claims, nil
}

func checkRole(role enums.AdminRole, tenantID *uuid.UUID) error {
	if !role.IsValid() {
		return fmt.Errorf("invalid admin role %q", role)
	}
	if role == enums.AdminRoleOwner && tenantID == nil {
		return errors.New("owner tokens require a tenant id")
	}
	return nil
}

// MintAdminToken signs payload as if issued at now.
func MintAdminToken(cfg config.JWTConfig, now time.Time, payload AdminTokenPayload) (string, error) {
	s, err := NewSigner(cfg)
	if err != nil {
		return "", err
	}
	s.now = func() time.Time { return now }
	return s.Mint(payload)
}

func ParseAdminToken(cfg config.JWTConfig, token string) (*AdminClaims, error) {
	s, err := NewSigner(cfg)
	if err != nil {
		return nil, err
	}
	return s.Parse(token)
}
