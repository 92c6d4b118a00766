// Package jsonfile persists every entity as one JSON array per file under a
// data directory: homes.json, favourites.json and users.json.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/google/uuid"

	"airhome/internal/store"
)

const (
	homesFile      = "homes.json"
	favouritesFile = "favourites.json"
	usersFile      = "users.json"
)

type favouriteRecord struct {
	Owner  string `json:"owner"`
	HomeID string `json:"homeId"`
}

type userRecord struct {
	ID           string `json:"id"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName,omitempty"`
	Email        string `json:"email"`
	PasswordHash string `json:"passwordHash"`
	UserType     string `json:"userType"`
}

// Store serializes every read-modify-write cycle behind one mutex.
type Store struct {
	dir string
	mu  sync.Mutex
}

var _ store.Backend = (*Store)(nil)

// New prepares dir and returns a Store rooted there.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Close is a no-op; every write is flushed before returning.
func (s *Store) Close() error { return nil }

// CreateHome appends a home with a fresh id.
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

	var homes []store.Home
	if err := s.load(homesFile, &homes); err != nil {
		return store.Home{}, store.Wrap("read homes", err)
	}
	home.ID = uuid.NewString()
	homes = append(homes, home)
	if err := s.save(homesFile, homes); err != nil {
		return store.Home{}, store.Wrap("write homes", err)
	}
	return home, nil
}

// UpdateHome replaces the record with the matching id.
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

	var homes []store.Home
	if err := s.load(homesFile, &homes); err != nil {
		return store.Home{}, store.Wrap("read homes", err)
	}
	idx := indexOf(homes, id)
	if idx < 0 {
		return store.Home{}, store.ErrHomeNotFound
	}
	home.ID = id
	homes[idx] = home
	if err := s.save(homesFile, homes); err != nil {
		return store.Home{}, store.Wrap("write homes", err)
	}
	return home, nil
}

// HomeByID scans homes.json for id.
func (s *Store) HomeByID(ctx context.Context, id string) (store.Home, error) {
	if err := store.Checkpoint(ctx, "get home"); err != nil {
		return store.Home{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var homes []store.Home
	if err := s.load(homesFile, &homes); err != nil {
		return store.Home{}, store.Wrap("read homes", err)
	}
	idx := indexOf(homes, id)
	if idx < 0 {
		return store.Home{}, store.ErrHomeNotFound
	}
	return homes[idx], nil
}

// ListHomes returns the file contents in order.
func (s *Store) ListHomes(ctx context.Context) ([]store.Home, error) {
	if err := store.Checkpoint(ctx, "list homes"); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var homes []store.Home
	if err := s.load(homesFile, &homes); err != nil {
		return nil, store.Wrap("read homes", err)
	}
	return homes, nil
}

// DeleteHome drops the favourites that reference id first, then the home.
// A failure between the two writes leaves the home in place with fewer
// favourites, never a favourite pointing at a missing home.
func (s *Store) DeleteHome(ctx context.Context, id string) error {
	if err := store.Checkpoint(ctx, "delete home"); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var homes []store.Home
	if err := s.load(homesFile, &homes); err != nil {
		return store.Wrap("read homes", err)
	}
	idx := indexOf(homes, id)
	if idx < 0 {
		return store.ErrHomeNotFound
	}

	var favs []favouriteRecord
	if err := s.load(favouritesFile, &favs); err != nil {
		return store.Wrap("read favourites", err)
	}
	kept := favs[:0]
	for _, f := range favs {
		if f.HomeID != id {
			kept = append(kept, f)
		}
	}
	if len(kept) != len(favs) {
		if err := s.save(favouritesFile, kept); err != nil {
			return store.Wrap("write favourites", err)
		}
	}

	homes = append(homes[:idx], homes[idx+1:]...)
	if err := s.save(homesFile, homes); err != nil {
		return store.Wrap("write homes", err)
	}
	return nil
}

// AddFavourite appends the pair unless it is already present or the home is
// gone.
func (s *Store) AddFavourite(ctx context.Context, owner, homeID string) error {
	if err := store.Checkpoint(ctx, "add favourite"); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var homes []store.Home
	if err := s.load(homesFile, &homes); err != nil {
		return store.Wrap("read homes", err)
	}
	if !slices.ContainsFunc(homes, func(h store.Home) bool { return h.ID == homeID }) {
		return store.ErrHomeNotFound
	}

	var favs []favouriteRecord
	if err := s.load(favouritesFile, &favs); err != nil {
		return store.Wrap("read favourites", err)
	}
	for _, f := range favs {
		if f.Owner == owner && f.HomeID == homeID {
			return store.ErrFavouriteExists
		}
	}
	favs = append(favs, favouriteRecord{Owner: owner, HomeID: homeID})
	if err := s.save(favouritesFile, favs); err != nil {
		return store.Wrap("write favourites", err)
	}
	return nil
}

// RemoveFavourite deletes the pair.
func (s *Store) RemoveFavourite(ctx context.Context, owner, homeID string) error {
	if err := store.Checkpoint(ctx, "remove favourite"); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var favs []favouriteRecord
	if err := s.load(favouritesFile, &favs); err != nil {
		return store.Wrap("read favourites", err)
	}
	for i, f := range favs {
		if f.Owner == owner && f.HomeID == homeID {
			favs = append(favs[:i], favs[i+1:]...)
			if err := s.save(favouritesFile, favs); err != nil {
				return store.Wrap("write favourites", err)
			}
			return nil
		}
	}
	return store.ErrFavouriteNotFound
}

// FavouriteHomeIDs lists the owner's home ids in file order.
func (s *Store) FavouriteHomeIDs(ctx context.Context, owner string) ([]string, error) {
	if err := store.Checkpoint(ctx, "list favourites"); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var favs []favouriteRecord
	if err := s.load(favouritesFile, &favs); err != nil {
		return nil, store.Wrap("read favourites", err)
	}
	var ids []string
	for _, f := range favs {
		if f.Owner == owner {
			ids = append(ids, f.HomeID)
		}
	}
	return ids, nil
}

// CreateUser appends an account, rejecting a taken email.
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

	var users []userRecord
	if err := s.load(usersFile, &users); err != nil {
		return store.User{}, store.Wrap("read users", err)
	}
	for _, u := range users {
		if u.Email == user.Email {
			return store.User{}, store.ErrUserExists
		}
	}
	user.ID = uuid.NewString()
	users = append(users, toRecord(user))
	if err := s.save(usersFile, users); err != nil {
		return store.User{}, store.Wrap("write users", err)
	}
	return user, nil
}

// UserByEmail finds an account by normalized email.
func (s *Store) UserByEmail(ctx context.Context, email string) (store.User, error) {
	email = store.NormalizeEmail(email)
	return s.findUser(ctx, func(u userRecord) bool { return u.Email == email })
}

// UserByID finds an account by id.
func (s *Store) UserByID(ctx context.Context, id string) (store.User, error) {
	return s.findUser(ctx, func(u userRecord) bool { return u.ID == id })
}

func (s *Store) findUser(ctx context.Context, match func(userRecord) bool) (store.User, error) {
	if err := store.Checkpoint(ctx, "get user"); err != nil {
		return store.User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var users []userRecord
	if err := s.load(usersFile, &users); err != nil {
		return store.User{}, store.Wrap("read users", err)
	}
	for _, u := range users {
		if match(u) {
			return fromRecord(u), nil
		}
	}
	return store.User{}, store.ErrUserNotFound
}

// load decodes name into v. A missing file reads as an empty array.
func (s *Store) load(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

// save writes v through a temp file and renames it over name.
func (s *Store) save(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if tmp != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return err
	}
	tmp = nil
	return nil
}

func indexOf(homes []store.Home, id string) int {
	for i, h := range homes {
		if h.ID == id {
			return i
		}
	}
	return -1
}

func toRecord(u store.User) userRecord {
	return userRecord{
		ID:           u.ID,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		UserType:     u.UserType,
	}
}

func fromRecord(r userRecord) store.User {
	return store.User{
		ID:           r.ID,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		UserType:     r.UserType,
	}
}
