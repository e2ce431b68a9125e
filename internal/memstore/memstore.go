// Package memstore provides an in-memory implementation of the store
// contracts. It backs the local deployment mode, where the service runs
// without Postgres and payments resolve through the synthetic gateway,
// and doubles as the store for unit tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gymkey/gymkey/internal/model"
	"github.com/gymkey/gymkey/internal/repository"
)

// Store holds users and checkins in process memory.
// All methods are safe for concurrent use; a single mutex stands in for
// the per-row atomicity the Postgres store gets from conditional writes.
type Store struct {
	mu       sync.Mutex
	users    map[string]*model.User    // keyed by user id
	byExtID  map[string]string         // external id -> user id
	checkins map[string]*model.Checkin // keyed by checkin id
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		users:    make(map[string]*model.User),
		byExtID:  make(map[string]string),
		checkins: make(map[string]*model.Checkin),
	}
}

// CreateCheckin inserts a new checkin.
func (s *Store) CreateCheckin(_ context.Context, checkin *model.Checkin) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.checkins[checkin.ID]; ok {
		return repository.ErrCheckinExists
	}

	s.checkins[checkin.ID] = cloneCheckin(checkin)
	return nil
}

// GetCheckinByID retrieves a checkin without owner scoping.
func (s *Store) GetCheckinByID(_ context.Context, id string) (*model.Checkin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	checkin, ok := s.checkins[id]
	if !ok {
		return nil, repository.ErrCheckinNotFound
	}
	return cloneCheckin(checkin), nil
}

// GetCheckinForUser retrieves a checkin scoped by owner.
func (s *Store) GetCheckinForUser(_ context.Context, id, userID string) (*model.Checkin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	checkin, ok := s.checkins[id]
	if !ok || checkin.UserID != userID {
		return nil, repository.ErrCheckinNotFound
	}
	return cloneCheckin(checkin), nil
}

// ListCheckinsForUser retrieves a user's checkins, most recent first.
func (s *Store) ListCheckinsForUser(_ context.Context, userID string) ([]*model.Checkin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*model.Checkin
	for _, checkin := range s.checkins {
		if checkin.UserID == userID {
			out = append(out, cloneCheckin(checkin))
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})

	return out, nil
}

// UpdateCheckinStatus performs a conditional status transition, matching
// the semantics of the Postgres store: the write happens only if the
// stored status still equals expected.
func (s *Store) UpdateCheckinStatus(_ context.Context, id string, expected, next model.CheckinStatus, update model.StatusUpdate) (*model.Checkin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	checkin, ok := s.checkins[id]
	if !ok {
		return nil, repository.ErrCheckinNotFound
	}
	if checkin.Status != expected {
		return nil, repository.ErrStatusConflict
	}

	checkin.Status = next
	if update.PinCode != nil {
		pin := *update.PinCode
		checkin.PinCode = &pin
	}
	if update.PaymentReference != nil {
		ref := *update.PaymentReference
		checkin.PaymentReference = &ref
	}
	checkin.UpdatedAt = time.Now().UTC()

	return cloneCheckin(checkin), nil
}

// SetPaymentReference stores the gateway transaction id without touching status.
func (s *Store) SetPaymentReference(_ context.Context, id, reference string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	checkin, ok := s.checkins[id]
	if !ok {
		return repository.ErrCheckinNotFound
	}

	ref := reference
	checkin.PaymentReference = &ref
	checkin.UpdatedAt = time.Now().UTC()
	return nil
}

// GetOrCreateUser finds the user for an external identity, creating it on
// first resolution and refreshing the profile on every later one.
func (s *Store) GetOrCreateUser(_ context.Context, user *model.User) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byExtID[user.ExternalID]; ok {
		existing := s.users[id]
		existing.DisplayName = user.DisplayName
		existing.PictureURL = user.PictureURL
		existing.UpdatedAt = time.Now().UTC()
		return cloneUser(existing), nil
	}

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	s.users[user.ID] = cloneUser(user)
	s.byExtID[user.ExternalID] = user.ID
	return cloneUser(user), nil
}

// GetUserByID retrieves a user by id.
func (s *Store) GetUserByID(_ context.Context, id string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return cloneUser(user), nil
}

func cloneCheckin(c *model.Checkin) *model.Checkin {
	out := *c
	if c.PinCode != nil {
		pin := *c.PinCode
		out.PinCode = &pin
	}
	if c.PaymentReference != nil {
		ref := *c.PaymentReference
		out.PaymentReference = &ref
	}
	return &out
}

func cloneUser(u *model.User) *model.User {
	out := *u
	if u.PictureURL != nil {
		url := *u.PictureURL
		out.PictureURL = &url
	}
	return &out
}
