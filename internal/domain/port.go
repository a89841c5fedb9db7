package domain

//go:generate mockgen -source=port.go -destination=../mocks/mock_port.go -package=mock_domain

import "context"

// TokenVerifier resolves a bearer credential to the caller it was issued for.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*Caller, error)
}

// IdentityProvider writes login records. Ids it returns key the profile store too.
type IdentityProvider interface {
	CreateAccount(ctx context.Context, account NewAccount) (*IdentityRecord, error)
	UpdateAccount(ctx context.Context, id string, changes AccountChanges) error
	DeleteAccount(ctx context.Context, id string) error
}

// ProfileStore persists user profiles.
type ProfileStore interface {
	Get(ctx context.Context, id string) (*UserProfile, error)
	Put(ctx context.Context, profile *UserProfile) error
	Update(ctx context.Context, id string, changes ProfileChanges) error
	Delete(ctx context.Context, id string) error
}

// Guard decides whether a credential may run admin operations and returns the caller id.
type Guard interface {
	Authorize(ctx context.Context, credential string) (string, error)
}
