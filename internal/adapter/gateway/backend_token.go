package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nw-com/nw-patrol/internal/domain"
)

var (
	errInvalidIssuer   = errors.New("invalid issuer")
	errInvalidAudience = errors.New("invalid audience")
	errMissingSubject  = errors.New("missing subject")
)

// backendClaims mirrors the claims minted by the auth gateway for backend calls.
type backendClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	Sid   string `json:"sid"`
	jwt.RegisteredClaims
}

// BackendTokenConfig configures BackendTokenVerifier.
type BackendTokenConfig struct {
	Secret   string
	Issuer   string
	Audience string
}

// BackendTokenVerifier implements domain.TokenVerifier for HMAC-signed backend
// tokens issued by the auth gateway. The subject claim is the account id.
type BackendTokenVerifier struct {
	secret   []byte
	issuer   string
	audience string
	logger   *slog.Logger
}

// NewBackendTokenVerifier creates a verifier for backend tokens.
func NewBackendTokenVerifier(cfg BackendTokenConfig, logger *slog.Logger) *BackendTokenVerifier {
	if cfg.Secret == "" {
		logger.Warn("BACKEND_TOKEN_SECRET not set, backend token verification will deny all requests")
	}
	return &BackendTokenVerifier{
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		logger:   logger.With("component", "backend_token_verifier"),
	}
}

// VerifyToken validates signature, expiry, issuer and audience.
func (v *BackendTokenVerifier) VerifyToken(ctx context.Context, token string) (*domain.Caller, error) {
	if token == "" {
		return nil, domain.ErrCredentialInvalid
	}
	if len(v.secret) == 0 {
		return nil, fmt.Errorf("%w: JWT secret not configured", domain.ErrCredentialInvalid)
	}

	parsed, err := jwt.ParseWithClaims(token, &backendClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		v.logger.DebugContext(ctx, "backend token rejected", "error", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrCredentialInvalid, err)
	}

	claims, ok := parsed.Claims.(*backendClaims)
	if !ok || !parsed.Valid {
		return nil, domain.ErrCredentialInvalid
	}
	if claims.Issuer != v.issuer {
		return nil, fmt.Errorf("%w: %w", domain.ErrCredentialInvalid, errInvalidIssuer)
	}
	if !slices.Contains(claims.Audience, v.audience) {
		return nil, fmt.Errorf("%w: %w", domain.ErrCredentialInvalid, errInvalidAudience)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: %w", domain.ErrCredentialInvalid, errMissingSubject)
	}

	return &domain.Caller{ID: claims.Subject, IsAuthenticated: true}, nil
}
