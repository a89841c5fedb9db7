package domain

import "time"

// RoleAdmin is the only role that may call the admin operations.
const RoleAdmin = "admin"

// Caller is the verified subject behind a request credential.
type Caller struct {
	ID              string
	IsAuthenticated bool
}

// UserProfile holds business attributes, keyed by the identity id.
type UserProfile struct {
	ID          string
	Email       string
	Name        string
	Role        string
	Title       string
	Communities []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsAdmin reports whether the profile grants admin access.
func (p *UserProfile) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

// ProfileChanges is the full replacement applied by an update.
type ProfileChanges struct {
	Name        string
	Role        string
	Title       string
	Communities []string
}

// NewAccount is what the identity provider needs to create a login.
type NewAccount struct {
	Email       string
	Password    string
	DisplayName string
}

// AccountChanges updates an existing login. An empty Password keeps the current one.
type AccountChanges struct {
	DisplayName string
	Password    string
}

// IdentityRecord is the identity provider's view of an account.
type IdentityRecord struct {
	ID          string
	Email       string
	DisplayName string
}

// CreateUserInput is the request to provision a new account.
type CreateUserInput struct {
	Email       string   `json:"email" validate:"required,email,max=256"`
	Password    string   `json:"password" validate:"required,notblank,max=1024"`
	Name        string   `json:"name" validate:"required,notblank,max=256"`
	Role        string   `json:"role" validate:"required,notblank,max=64"`
	Title       string   `json:"title" validate:"required,notblank,max=256"`
	Communities []string `json:"communities" validate:"omitempty,max=64,dive,required,notblank,max=256"`
}

// UpdateUserInput replaces the profile fields of an account.
// Omitted Communities clear the stored set.
type UpdateUserInput struct {
	ID          string   `json:"id" validate:"required,account_id"`
	Name        string   `json:"name" validate:"required,notblank,max=256"`
	Role        string   `json:"role" validate:"required,notblank,max=64"`
	Title       string   `json:"title" validate:"required,notblank,max=256"`
	Communities []string `json:"communities" validate:"omitempty,max=64,dive,required,notblank,max=256"`
	Password    string   `json:"password,omitempty" validate:"omitempty,max=1024"`
}

// DeleteUserInput removes an account from both stores.
type DeleteUserInput struct {
	ID string `json:"id" validate:"required,account_id"`
}

// CreateUserResult is returned by a successful create.
type CreateUserResult struct {
	Success   bool   `json:"success"`
	AccountID string `json:"accountId"`
}

// Result is returned by a successful update or delete.
type Result struct {
	Success bool `json:"success"`
}
