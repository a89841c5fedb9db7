package usecase

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/nw-com/nw-patrol/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeVerifier maps tokens to account ids.
type fakeVerifier struct {
	tokens map[string]string
	err    error
}

func (f *fakeVerifier) VerifyToken(_ context.Context, token string) (*domain.Caller, error) {
	if f.err != nil {
		return nil, f.err
	}
	id, ok := f.tokens[token]
	if !ok {
		return nil, domain.ErrCredentialInvalid
	}
	return &domain.Caller{ID: id, IsAuthenticated: true}, nil
}

// fakeIdentityProvider is an in-memory identity store with injectable failures.
type fakeIdentityProvider struct {
	mu       sync.Mutex
	accounts map[string]domain.IdentityRecord
	writes   int

	createErr error
	updateErr error
	deleteErr error
}

func newFakeIdentityProvider() *fakeIdentityProvider {
	return &fakeIdentityProvider{accounts: make(map[string]domain.IdentityRecord)}
}

func (f *fakeIdentityProvider) CreateAccount(_ context.Context, account domain.NewAccount) (*domain.IdentityRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	for _, existing := range f.accounts {
		if strings.EqualFold(existing.Email, account.Email) {
			return nil, domain.ErrEmailTaken
		}
	}
	record := domain.IdentityRecord{ID: uuid.NewString(), Email: account.Email, DisplayName: account.DisplayName}
	f.accounts[record.ID] = record
	f.writes++
	return &record, nil
}

func (f *fakeIdentityProvider) UpdateAccount(_ context.Context, id string, changes domain.AccountChanges) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	record, ok := f.accounts[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	record.DisplayName = changes.DisplayName
	f.accounts[id] = record
	f.writes++
	return nil
}

func (f *fakeIdentityProvider) DeleteAccount(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.accounts[id]; !ok {
		return domain.ErrAccountNotFound
	}
	delete(f.accounts, id)
	f.writes++
	return nil
}

func (f *fakeIdentityProvider) has(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.accounts[id]
	return ok
}

// fakeProfileStore is an in-memory profile store with injectable failures.
type fakeProfileStore struct {
	mu       sync.Mutex
	profiles map[string]domain.UserProfile
	writes   int

	getErr    error
	putErr    error
	updateErr error
	deleteErr error
}

func newFakeProfileStore() *fakeProfileStore {
	return &fakeProfileStore{profiles: make(map[string]domain.UserProfile)}
}

func (f *fakeProfileStore) Get(_ context.Context, id string) (*domain.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	p, ok := f.profiles[id]
	if !ok {
		return nil, domain.ErrProfileNotFound
	}
	return &p, nil
}

func (f *fakeProfileStore) Put(_ context.Context, profile *domain.UserProfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	p := *profile
	p.Communities = append([]string{}, profile.Communities...)
	f.profiles[p.ID] = p
	f.writes++
	return nil
}

func (f *fakeProfileStore) Update(_ context.Context, id string, changes domain.ProfileChanges) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	p, ok := f.profiles[id]
	if !ok {
		return domain.ErrProfileNotFound
	}
	p.Name = changes.Name
	p.Role = changes.Role
	p.Title = changes.Title
	p.Communities = append([]string{}, changes.Communities...)
	f.profiles[id] = p
	f.writes++
	return nil
}

func (f *fakeProfileStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.profiles[id]; !ok {
		return domain.ErrProfileNotFound
	}
	delete(f.profiles, id)
	f.writes++
	return nil
}

func (f *fakeProfileStore) profile(id string) (domain.UserProfile, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[id]
	return p, ok
}

// fakeMetrics counts orphans and outcomes.
type fakeMetrics struct {
	mu       sync.Mutex
	outcomes map[string]int
	orphans  map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{outcomes: make(map[string]int), orphans: make(map[string]int)}
}

func (m *fakeMetrics) RecordOperation(operation, outcome string, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[operation+"/"+outcome]++
}

func (m *fakeMetrics) RecordOrphan(store string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orphans[store]++
}
