package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nw-com/nw-patrol/internal/domain"
)

const (
	opCreateUser = "create_user"
	opUpdateUser = "update_user"
	opDeleteUser = "delete_user"
)

// Orphan classes reported to Metrics.RecordOrphan.
const (
	OrphanIdentity     = "identity"
	OrphanProfile      = "profile"
	OrphanProfileAhead = "profile_ahead"
)

// Metrics receives operation outcomes.
type Metrics interface {
	RecordOperation(operation, outcome string, seconds float64)
	RecordOrphan(store string)
}

type nopMetrics struct{}

func (nopMetrics) RecordOperation(string, string, float64) {}
func (nopMetrics) RecordOrphan(string)                     {}

// UserLifecycle creates, updates and deletes accounts across the identity provider
// and the profile store. The two writes are never joined in a transaction and a
// failed second write is not compensated.
type UserLifecycle struct {
	guard       domain.Guard
	validator   *RequestValidator
	identities  domain.IdentityProvider
	profiles    domain.ProfileStore
	metrics     Metrics
	tracer      trace.Tracer
	logger      *slog.Logger
	callTimeout time.Duration
}

// NewUserLifecycle creates the orchestrator. metrics may be nil.
func NewUserLifecycle(
	guard domain.Guard,
	identities domain.IdentityProvider,
	profiles domain.ProfileStore,
	metrics Metrics,
	logger *slog.Logger,
	callTimeout time.Duration,
) *UserLifecycle {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &UserLifecycle{
		guard:       guard,
		validator:   NewRequestValidator(),
		identities:  identities,
		profiles:    profiles,
		metrics:     metrics,
		tracer:      otel.Tracer("user-admin/usecase"),
		logger:      logger.With("component", "user_lifecycle"),
		callTimeout: callTimeout,
	}
}

// CreateUser creates the identity first, then the profile under the identity's id.
func (uc *UserLifecycle) CreateUser(ctx context.Context, credential string, in domain.CreateUserInput) (_ *domain.CreateUserResult, err error) {
	ctx, span, start := uc.begin(ctx, opCreateUser)
	defer func() { uc.finish(span, opCreateUser, start, err) }()

	callerID, err := uc.guard.Authorize(ctx, credential)
	if err != nil {
		return nil, err
	}
	if err := uc.validator.ValidateCreate(&in); err != nil {
		return nil, err
	}

	var record *domain.IdentityRecord
	err = uc.step(ctx, "identity.create", func(ctx context.Context) error {
		var cerr error
		record, cerr = uc.identities.CreateAccount(ctx, domain.NewAccount{
			Email:       in.Email,
			Password:    in.Password,
			DisplayName: in.Name,
		})
		return cerr
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrEmailTaken):
			return nil, domain.WrapError(domain.KindAlreadyExists, "email already registered", err)
		case errors.Is(err, domain.ErrPasswordRejected):
			return nil, domain.WrapError(domain.KindInvalidArgument, "password rejected by identity provider", err)
		case errors.Is(err, domain.ErrIdentityRejected):
			return nil, domain.WrapError(domain.KindInvalidArgument, "email rejected by identity provider", err)
		}
		uc.logger.ErrorContext(ctx, "failed to create identity", "caller_id", callerID, "error", err)
		return nil, domain.WrapError(domain.KindInternal, "failed to create account", err)
	}
	if record == nil || record.ID == "" {
		uc.logger.ErrorContext(ctx, "identity provider returned no account id", "caller_id", callerID)
		return nil, domain.NewError(domain.KindInternal, "failed to create account")
	}
	span.SetAttributes(attribute.String("account.id", record.ID))

	profile := &domain.UserProfile{
		ID:          record.ID,
		Email:       in.Email,
		Name:        in.Name,
		Role:        in.Role,
		Title:       in.Title,
		Communities: in.Communities,
	}
	err = uc.step(ctx, "profile.put", func(ctx context.Context) error {
		return uc.profiles.Put(ctx, profile)
	})
	if err != nil {
		uc.metrics.RecordOrphan(OrphanIdentity)
		uc.logger.ErrorContext(ctx, "profile write failed after identity was created",
			"orphan", OrphanIdentity,
			"account_id", record.ID,
			"caller_id", callerID,
			"error", err)
		return nil, domain.WrapError(domain.KindInternal, "account created without profile", err)
	}

	uc.logger.InfoContext(ctx, "user created", "account_id", record.ID, "caller_id", callerID)
	return &domain.CreateUserResult{Success: true, AccountID: record.ID}, nil
}

// UpdateUser replaces the profile, then updates the identity's display name and
// optional password. A failed identity update leaves the profile change in place.
func (uc *UserLifecycle) UpdateUser(ctx context.Context, credential string, in domain.UpdateUserInput) (_ *domain.Result, err error) {
	ctx, span, start := uc.begin(ctx, opUpdateUser)
	defer func() { uc.finish(span, opUpdateUser, start, err) }()

	callerID, err := uc.guard.Authorize(ctx, credential)
	if err != nil {
		return nil, err
	}
	if err := uc.validator.ValidateUpdate(&in); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("account.id", in.ID))

	err = uc.step(ctx, "profile.update", func(ctx context.Context) error {
		return uc.profiles.Update(ctx, in.ID, domain.ProfileChanges{
			Name:        in.Name,
			Role:        in.Role,
			Title:       in.Title,
			Communities: in.Communities,
		})
	})
	if err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) {
			return nil, domain.WrapError(domain.KindNotFound, "user not found", err)
		}
		uc.logger.ErrorContext(ctx, "failed to update profile", "account_id", in.ID, "caller_id", callerID, "error", err)
		return nil, domain.WrapError(domain.KindInternal, "failed to update profile", err)
	}

	err = uc.step(ctx, "identity.update", func(ctx context.Context) error {
		return uc.identities.UpdateAccount(ctx, in.ID, domain.AccountChanges{
			DisplayName: in.Name,
			Password:    in.Password,
		})
	})
	if err != nil {
		uc.metrics.RecordOrphan(OrphanProfileAhead)
		uc.logger.ErrorContext(ctx, "identity update failed after profile was updated",
			"orphan", OrphanProfileAhead,
			"account_id", in.ID,
			"caller_id", callerID,
			"password_changed", in.Password != "",
			"error", err)

		switch {
		case errors.Is(err, domain.ErrPasswordRejected):
			return nil, domain.WrapError(domain.KindInvalidArgument, "password rejected by identity provider", err)
		case errors.Is(err, domain.ErrIdentityRejected):
			return nil, domain.WrapError(domain.KindInvalidArgument, "identity update rejected by identity provider", err)
		case errors.Is(err, domain.ErrAccountNotFound):
			return nil, domain.WrapError(domain.KindNotFound, "account not found in identity provider", err)
		}
		return nil, domain.WrapError(domain.KindInternal, "failed to update account", err)
	}

	uc.logger.InfoContext(ctx, "user updated", "account_id", in.ID, "caller_id", callerID, "password_changed", in.Password != "")
	return &domain.Result{Success: true}, nil
}

// DeleteUser removes the identity first so the account cannot log in, then the profile.
func (uc *UserLifecycle) DeleteUser(ctx context.Context, credential string, in domain.DeleteUserInput) (_ *domain.Result, err error) {
	ctx, span, start := uc.begin(ctx, opDeleteUser)
	defer func() { uc.finish(span, opDeleteUser, start, err) }()

	callerID, err := uc.guard.Authorize(ctx, credential)
	if err != nil {
		return nil, err
	}
	if err := uc.validator.ValidateDelete(&in); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("account.id", in.ID))

	err = uc.step(ctx, "identity.delete", func(ctx context.Context) error {
		return uc.identities.DeleteAccount(ctx, in.ID)
	})
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, domain.WrapError(domain.KindNotFound, "user not found", err)
		}
		uc.logger.ErrorContext(ctx, "failed to delete identity", "account_id", in.ID, "caller_id", callerID, "error", err)
		return nil, domain.WrapError(domain.KindInternal, "failed to delete account", err)
	}

	err = uc.step(ctx, "profile.delete", func(ctx context.Context) error {
		return uc.profiles.Delete(ctx, in.ID)
	})
	switch {
	case errors.Is(err, domain.ErrProfileNotFound):
		uc.logger.WarnContext(ctx, "identity deleted but no profile existed", "account_id", in.ID, "caller_id", callerID)
	case err != nil:
		uc.metrics.RecordOrphan(OrphanProfile)
		uc.logger.ErrorContext(ctx, "profile delete failed after identity was deleted",
			"orphan", OrphanProfile,
			"account_id", in.ID,
			"caller_id", callerID,
			"error", err)
		return nil, domain.WrapError(domain.KindInternal, "account deleted but profile remains", err)
	}

	uc.logger.InfoContext(ctx, "user deleted", "account_id", in.ID, "caller_id", callerID)
	return &domain.Result{Success: true}, nil
}

// Authorize runs the guard on its own, with no store writes. Transports call it
// when a request cannot be decoded, so an unauthorized caller is told so first.
func (uc *UserLifecycle) Authorize(ctx context.Context, credential string) error {
	_, err := uc.guard.Authorize(ctx, credential)
	return err
}

func (uc *UserLifecycle) begin(ctx context.Context, op string) (context.Context, trace.Span, time.Time) {
	ctx, span := uc.tracer.Start(ctx, "UserLifecycle."+op)
	return ctx, span, time.Now()
}

func (uc *UserLifecycle) finish(span trace.Span, op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = domain.KindOf(err).Code()
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	span.SetAttributes(attribute.String("outcome", outcome))
	uc.metrics.RecordOperation(op, outcome, time.Since(start).Seconds())
	span.End()
}

// step runs one external call under its own span and timeout. A call that ran out
// of time is a plain failure.
func (uc *UserLifecycle) step(ctx context.Context, name string, call func(context.Context) error) error {
	ctx, span := uc.tracer.Start(ctx, name)
	defer span.End()

	callCtx, cancel := withCallTimeout(ctx, uc.callTimeout)
	defer cancel()

	if err := call(callCtx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}
