package favourites

import (
	"context"
	"errors"
	"time"

	"airhome/internal/logging"
	"airhome/internal/store"
)

// Store defines persistence operations required for favourites workflows.
type Store interface {
	AddFavourite(ctx context.Context, owner, homeID string) error
	RemoveFavourite(ctx context.Context, owner, homeID string) error
	FavouriteHomeIDs(ctx context.Context, owner string) ([]string, error)
	HomeByID(ctx context.Context, id string) (store.Home, error)
}

// Service describes high level favourites operations used by HTTP handlers.
// The owner is a user id, or "" for anonymous visitors.
type Service interface {
	// Add reports false, with a nil error, when the home was already a favourite.
	Add(ctx context.Context, owner, homeID string) (bool, error)
	// Remove is a no-op for pairs that do not exist.
	Remove(ctx context.Context, owner, homeID string) error
	List(ctx context.Context, owner string) ([]store.Home, error)
}

type service struct {
	store   Store
	timeout time.Duration
}

// New constructs a favourites Service backed by the given store.
func New(st Store, timeout time.Duration) Service {
	return &service{store: st, timeout: timeout}
}

func (s *service) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *service) Add(ctx context.Context, owner, homeID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, store.Wrap("add favourite", err)
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if _, err := s.store.HomeByID(ctx, homeID); err != nil {
		return false, err
	}

	err := s.store.AddFavourite(ctx, owner, homeID)
	if errors.Is(err, store.ErrFavouriteExists) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *service) Remove(ctx context.Context, owner, homeID string) error {
	if err := ctx.Err(); err != nil {
		return store.Wrap("remove favourite", err)
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	err := s.store.RemoveFavourite(ctx, owner, homeID)
	if errors.Is(err, store.ErrFavouriteNotFound) {
		return nil
	}
	return err
}

// List resolves the owner's favourites to homes, skipping ids whose home is gone.
func (s *service) List(ctx context.Context, owner string) ([]store.Home, error) {
	if err := ctx.Err(); err != nil {
		return nil, store.Wrap("list favourites", err)
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	ids, err := s.store.FavouriteHomeIDs(ctx, owner)
	if err != nil {
		return nil, err
	}

	homes := make([]store.Home, 0, len(ids))
	for _, id := range ids {
		home, err := s.store.HomeByID(ctx, id)
		if errors.Is(err, store.ErrHomeNotFound) {
			logging.FromContext(ctx).Debug().Str("home_id", id).Msg("skip favourite for missing home")
			continue
		}
		if err != nil {
			return nil, err
		}
		homes = append(homes, home)
	}
	return homes, nil
}
