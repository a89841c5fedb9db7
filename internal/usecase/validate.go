package usecase

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/nw-com/nw-patrol/internal/domain"
	"github.com/nw-com/nw-patrol/utils/validator"
)

// RequestValidator checks the per-operation field contracts before any store is touched.
type RequestValidator struct {
	v *validator.Validator
}

// NewRequestValidator creates a RequestValidator.
func NewRequestValidator() *RequestValidator {
	return &RequestValidator{v: validator.New()}
}

// ValidateCreate trims the email, checks a create request and defaults
// communities to an empty set.
func (r *RequestValidator) ValidateCreate(in *domain.CreateUserInput) error {
	in.Email = strings.TrimSpace(in.Email)
	if err := r.check(in); err != nil {
		return err
	}
	if in.Communities == nil {
		in.Communities = []string{}
	}
	return nil
}

// ValidateUpdate checks an update request. Omitted communities become an empty set,
// which replaces whatever the profile held.
func (r *RequestValidator) ValidateUpdate(in *domain.UpdateUserInput) error {
	if err := r.check(in); err != nil {
		return err
	}
	in.ID = canonicalID(in.ID)
	if in.Communities == nil {
		in.Communities = []string{}
	}
	return nil
}

// ValidateDelete checks a delete request.
func (r *RequestValidator) ValidateDelete(in *domain.DeleteUserInput) error {
	if err := r.check(in); err != nil {
		return err
	}
	in.ID = canonicalID(in.ID)
	return nil
}

func (r *RequestValidator) check(in any) error {
	err := r.v.Validate(in)
	if err == nil {
		return nil
	}

	var verr *validator.ValidationError
	if errors.As(err, &verr) {
		msg := fmt.Sprintf("invalid fields: %s", strings.Join(verr.Fields(), ", "))
		return domain.WrapError(domain.KindInvalidArgument, msg, verr)
	}
	return domain.WrapError(domain.KindInvalidArgument, "invalid request", err)
}

// canonicalID rewrites an already validated id into lowercase hyphenated form.
func canonicalID(id string) string {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return id
	}
	return parsed.String()
}
