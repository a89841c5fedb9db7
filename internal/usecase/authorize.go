package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nw-com/nw-patrol/internal/domain"
)

const (
	msgAuthRequired  = "authentication required"
	msgAdminRequired = "administrator role required"
)

// AdminGuard admits callers whose verified credential maps to a profile with the admin role.
type AdminGuard struct {
	verifier domain.TokenVerifier
	profiles domain.ProfileStore
	logger   *slog.Logger
	timeout  time.Duration
}

// NewAdminGuard creates an AdminGuard. timeout bounds each upstream call; zero disables it.
func NewAdminGuard(verifier domain.TokenVerifier, profiles domain.ProfileStore, logger *slog.Logger, timeout time.Duration) *AdminGuard {
	return &AdminGuard{
		verifier: verifier,
		profiles: profiles,
		logger:   logger.With("component", "admin_guard"),
		timeout:  timeout,
	}
}

// Authorize returns the caller id when credential belongs to an administrator.
// Verifier details never reach the returned message.
func (g *AdminGuard) Authorize(ctx context.Context, credential string) (string, error) {
	if credential == "" {
		return "", domain.NewError(domain.KindUnauthenticated, msgAuthRequired)
	}

	verifyCtx, cancel := withCallTimeout(ctx, g.timeout)
	caller, err := g.verifier.VerifyToken(verifyCtx, credential)
	cancel()
	if err != nil {
		if errors.Is(err, domain.ErrIdentityProviderUnavailable) {
			g.logger.ErrorContext(ctx, "credential verification unavailable", "error", err)
			return "", domain.WrapError(domain.KindInternal, "credential verification unavailable", err)
		}
		g.logger.InfoContext(ctx, "credential rejected", "error", err)
		return "", domain.NewError(domain.KindUnauthenticated, msgAuthRequired)
	}
	if caller == nil || !caller.IsAuthenticated || caller.ID == "" {
		return "", domain.NewError(domain.KindUnauthenticated, msgAuthRequired)
	}

	lookupCtx, cancel := withCallTimeout(ctx, g.timeout)
	profile, err := g.profiles.Get(lookupCtx, caller.ID)
	cancel()
	if err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) {
			g.logger.WarnContext(ctx, "caller has no profile", "caller_id", caller.ID)
			return "", domain.NewError(domain.KindPermissionDenied, msgAdminRequired)
		}
		g.logger.ErrorContext(ctx, "failed to load caller profile", "caller_id", caller.ID, "error", err)
		return "", domain.WrapError(domain.KindInternal, "failed to load caller profile", err)
	}
	if !profile.IsAdmin() {
		g.logger.WarnContext(ctx, "caller is not an administrator", "caller_id", caller.ID)
		return "", domain.NewError(domain.KindPermissionDenied, msgAdminRequired)
	}

	return caller.ID, nil
}

// OperatorGuard trusts the process it runs in. The provisioning CLI uses it because it
// already holds privileged store credentials.
type OperatorGuard struct {
	operatorID string
}

// NewOperatorGuard creates an OperatorGuard that reports operatorID as the caller.
func NewOperatorGuard(operatorID string) *OperatorGuard {
	if operatorID == "" {
		operatorID = "operator"
	}
	return &OperatorGuard{operatorID: operatorID}
}

// Authorize ignores the credential and admits the operator.
func (g *OperatorGuard) Authorize(_ context.Context, _ string) (string, error) {
	return g.operatorID, nil
}

func withCallTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
