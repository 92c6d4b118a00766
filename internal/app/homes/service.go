package homes

import (
	"context"
	"errors"
	"io"
	"time"

	"airhome/internal/logging"
	"airhome/internal/media"
	"airhome/internal/store"
	"airhome/internal/validation"
)

// Store defines persistence operations required for home workflows.
type Store interface {
	CreateHome(ctx context.Context, home store.Home) (store.Home, error)
	UpdateHome(ctx context.Context, id string, home store.Home) (store.Home, error)
	HomeByID(ctx context.Context, id string) (store.Home, error)
	ListHomes(ctx context.Context) ([]store.Home, error)
	DeleteHome(ctx context.Context, id string) error
}

// Photo is an uploaded image waiting to be stored.
type Photo struct {
	Name        string
	ContentType string
	Body        io.Reader
}

// Service describes high level home operations used by HTTP handlers.
type Service interface {
	List(ctx context.Context) ([]store.Home, error)
	Get(ctx context.Context, id string) (store.Home, error)
	Create(ctx context.Context, home store.Home, photo *Photo) (store.Home, error)
	// Update keeps the current photo when photo is nil.
	Update(ctx context.Context, id string, home store.Home, photo *Photo) (store.Home, error)
	Delete(ctx context.Context, id string) error
}

type service struct {
	store   Store
	uploads media.Uploader
	timeout time.Duration
}

// New constructs a homes Service. Every store call is bounded by timeout
// when it is positive.
func New(st Store, uploads media.Uploader, timeout time.Duration) Service {
	return &service{store: st, uploads: uploads, timeout: timeout}
}

func (s *service) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *service) List(ctx context.Context) ([]store.Home, error) {
	if err := ctx.Err(); err != nil {
		return nil, store.Wrap("list homes", err)
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return s.store.ListHomes(ctx)
}

func (s *service) Get(ctx context.Context, id string) (store.Home, error) {
	if err := ctx.Err(); err != nil {
		return store.Home{}, store.Wrap("get home", err)
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return s.store.HomeByID(ctx, id)
}

func (s *service) Create(ctx context.Context, home store.Home, photo *Photo) (store.Home, error) {
	if err := ctx.Err(); err != nil {
		return store.Home{}, store.Wrap("create home", err)
	}
	if err := s.check(home, photo); err != nil {
		return store.Home{}, err
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	home.ID = ""
	home.Photo = ""
	if photo != nil {
		ref, err := s.uploads.Save(ctx, photo.Name, photo.ContentType, photo.Body)
		if err != nil {
			return store.Home{}, store.Wrap("save photo", err)
		}
		home.Photo = ref
	}

	created, err := s.store.CreateHome(ctx, home)
	if err != nil {
		s.discard(ctx, home.Photo)
		return store.Home{}, err
	}
	return created, nil
}

func (s *service) Update(ctx context.Context, id string, home store.Home, photo *Photo) (store.Home, error) {
	if err := ctx.Err(); err != nil {
		return store.Home{}, store.Wrap("update home", err)
	}
	if err := s.check(home, photo); err != nil {
		return store.Home{}, err
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	current, err := s.store.HomeByID(ctx, id)
	if err != nil {
		return store.Home{}, err
	}

	home.Photo = current.Photo
	if photo != nil {
		ref, err := s.uploads.Save(ctx, photo.Name, photo.ContentType, photo.Body)
		if err != nil {
			return store.Home{}, store.Wrap("save photo", err)
		}
		home.Photo = ref
	}

	updated, err := s.store.UpdateHome(ctx, id, home)
	if err != nil {
		if home.Photo != current.Photo {
			s.discard(ctx, home.Photo)
		}
		return store.Home{}, err
	}
	if updated.Photo != current.Photo {
		s.discard(ctx, current.Photo)
	}
	return updated, nil
}

func (s *service) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return store.Wrap("delete home", err)
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	current, err := s.store.HomeByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteHome(ctx, id); err != nil {
		return err
	}
	s.discard(ctx, current.Photo)
	return nil
}

// check reports field problems, including an unacceptable photo, in one error.
func (s *service) check(home store.Home, photo *Photo) error {
	verr := &validation.Error{}
	if _, err := store.PrepareHome(home); err != nil {
		var ve *validation.Error
		if !errors.As(err, &ve) {
			return err
		}
		verr.Merge(ve)
	}
	if photo != nil && !media.Allowed(photo.ContentType) {
		verr.Add("photo", "type", media.ErrUnsupportedType.Error())
	}
	return verr.OrNil()
}

// discard removes a photo that is no longer referenced. Failures are logged only.
func (s *service) discard(ctx context.Context, ref string) {
	if ref == "" {
		return
	}
	if err := s.uploads.Remove(context.WithoutCancel(ctx), ref); err != nil {
		logging.FromContext(ctx).Warn().Err(err).Str("photo", ref).Msg("remove photo")
	}
}
