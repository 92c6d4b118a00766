// Package memory is an in-process Backend used by tests and the demo mode.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"airhome/internal/store"
)

type favouriteKey struct {
	owner  string
	homeID string
}

// Store keeps everything in maps guarded by one mutex.
type Store struct {
	mu         sync.RWMutex
	homes      map[string]store.Home
	order      []string
	favourites map[favouriteKey]struct{}
	favOrder   []favouriteKey
	users      map[string]store.User
	byEmail    map[string]string
}

var _ store.Backend = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{
		homes:      make(map[string]store.Home),
		favourites: make(map[favouriteKey]struct{}),
		users:      make(map[string]store.User),
		byEmail:    make(map[string]string),
	}
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

// CreateHome stores a new home under a fresh id.
func (s *Store) CreateHome(ctx context.Context, home store.Home) (store.Home, error) {
	if err := store.Checkpoint(ctx, "create home"); err != nil {
		return store.Home{}, err
	}
	home, err := store.PrepareHome(home)
	if err != nil {
		return store.Home{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	home.ID = uuid.NewString()
	s.homes[home.ID] = home
	s.order = append(s.order, home.ID)
	return home, nil
}

// UpdateHome overwrites every mutable field of an existing home.
func (s *Store) UpdateHome(ctx context.Context, id string, home store.Home) (store.Home, error) {
	if err := store.Checkpoint(ctx, "update home"); err != nil {
		return store.Home{}, err
	}
	home, err := store.PrepareHome(home)
	if err != nil {
		return store.Home{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.homes[id]; !ok {
		return store.Home{}, store.ErrHomeNotFound
	}
	home.ID = id
	s.homes[id] = home
	return home, nil
}

// HomeByID returns a single home.
func (s *Store) HomeByID(ctx context.Context, id string) (store.Home, error) {
	if err := store.Checkpoint(ctx, "get home"); err != nil {
		return store.Home{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	home, ok := s.homes[id]
	if !ok {
		return store.Home{}, store.ErrHomeNotFound
	}
	return home, nil
}

// ListHomes returns every home in insertion order.
func (s *Store) ListHomes(ctx context.Context) ([]store.Home, error) {
	if err := store.Checkpoint(ctx, "list homes"); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]store.Home, 0, len(s.order))
	for _, id := range s.order {
		result = append(result, s.homes[id])
	}
	return result, nil
}

// DeleteHome removes the home and its favourites under the same lock.
func (s *Store) DeleteHome(ctx context.Context, id string) error {
	if err := store.Checkpoint(ctx, "delete home"); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.homes[id]; !ok {
		return store.ErrHomeNotFound
	}

	kept := s.favOrder[:0]
	for _, key := range s.favOrder {
		if key.homeID == id {
			delete(s.favourites, key)
			continue
		}
		kept = append(kept, key)
	}
	s.favOrder = kept

	delete(s.homes, id)
	s.order = removeID(s.order, id)
	return nil
}

// AddFavourite records the pair once, for an existing home.
func (s *Store) AddFavourite(ctx context.Context, owner, homeID string) error {
	if err := store.Checkpoint(ctx, "add favourite"); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.homes[homeID]; !ok {
		return store.ErrHomeNotFound
	}
	key := favouriteKey{owner: owner, homeID: homeID}
	if _, ok := s.favourites[key]; ok {
		return store.ErrFavouriteExists
	}
	s.favourites[key] = struct{}{}
	s.favOrder = append(s.favOrder, key)
	return nil
}

// RemoveFavourite deletes the pair.
func (s *Store) RemoveFavourite(ctx context.Context, owner, homeID string) error {
	if err := store.Checkpoint(ctx, "remove favourite"); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := favouriteKey{owner: owner, homeID: homeID}
	if _, ok := s.favourites[key]; !ok {
		return store.ErrFavouriteNotFound
	}
	delete(s.favourites, key)
	for i, k := range s.favOrder {
		if k == key {
			s.favOrder = append(s.favOrder[:i], s.favOrder[i+1:]...)
			break
		}
	}
	return nil
}

// FavouriteHomeIDs lists the owner's favourites in the order they were added.
func (s *Store) FavouriteHomeIDs(ctx context.Context, owner string) ([]string, error) {
	if err := store.Checkpoint(ctx, "list favourites"); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for _, key := range s.favOrder {
		if key.owner == owner {
			ids = append(ids, key.homeID)
		}
	}
	return ids, nil
}

// CreateUser registers an account with a unique email.
func (s *Store) CreateUser(ctx context.Context, user store.User) (store.User, error) {
	if err := store.Checkpoint(ctx, "create user"); err != nil {
		return store.User{}, err
	}
	user, err := store.PrepareUser(user)
	if err != nil {
		return store.User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byEmail[user.Email]; taken {
		return store.User{}, store.ErrUserExists
	}
	user.ID = uuid.NewString()
	s.users[user.ID] = user
	s.byEmail[user.Email] = user.ID
	return user, nil
}

// UserByEmail looks up an account by normalized email.
func (s *Store) UserByEmail(ctx context.Context, email string) (store.User, error) {
	if err := store.Checkpoint(ctx, "get user"); err != nil {
		return store.User{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[store.NormalizeEmail(email)]
	if !ok {
		return store.User{}, store.ErrUserNotFound
	}
	return s.users[id], nil
}

// UserByID looks up an account.
func (s *Store) UserByID(ctx context.Context, id string) (store.User, error) {
	if err := store.Checkpoint(ctx, "get user"); err != nil {
		return store.User{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return store.User{}, store.ErrUserNotFound
	}
	return user, nil
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
