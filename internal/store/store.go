// Package store defines the persistence contract shared by every backend:
// the Home entity store, the favourites relation and the user accounts.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"airhome/internal/validation"
)

var (
	// ErrHomeNotFound signals a missing home record.
	ErrHomeNotFound = errors.New("home not found")
	// ErrFavouriteExists indicates the home is already marked favourite for the owner.
	ErrFavouriteExists = errors.New("home is already marked favourite")
	// ErrFavouriteNotFound signals there is no favourite to remove.
	ErrFavouriteNotFound = errors.New("favourite not found")
	// ErrUserExists signals the email is already registered.
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound signals a missing user record.
	ErrUserNotFound = errors.New("user not found")
)

// User types.
const (
	UserTypeGuest = "guest"
	UserTypeHost  = "host"
)

// Home is a rental listing.
type Home struct {
	ID          string  `json:"id"`
	HouseName   string  `json:"houseName" form:"houseName" label:"House Name" validate:"required"`
	Price       float64 `json:"price" form:"price" label:"Price" validate:"finite,gt=0"`
	Location    string  `json:"location" form:"location" label:"Location" validate:"required"`
	Rating      float64 `json:"rating" form:"rating" label:"Rating" validate:"finite,gte=0,lte=5" msg:"gte:Rating must be between 0 and 5;lte:Rating must be between 0 and 5"`
	Photo       string  `json:"photo,omitempty"`
	Description string  `json:"description,omitempty"`
}

// User is an account. PasswordHash never leaves the server.
type User struct {
	ID           string `json:"id"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName,omitempty"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	UserType     string `json:"userType"`
}

// IsHost reports whether the user may manage listings.
func (u User) IsHost() bool {
	return u.UserType == UserTypeHost
}

// Homes is the entity store for listings.
type Homes interface {
	CreateHome(ctx context.Context, home Home) (Home, error)
	UpdateHome(ctx context.Context, id string, home Home) (Home, error)
	HomeByID(ctx context.Context, id string) (Home, error)
	ListHomes(ctx context.Context) ([]Home, error)
	// DeleteHome removes the home and every favourite that references it.
	DeleteHome(ctx context.Context, id string) error
}

// Favourites tracks (owner, home) pairs. The empty owner is the anonymous
// visitor pool.
type Favourites interface {
	// AddFavourite returns ErrFavouriteExists for a duplicate pair. Backends
	// that can see the home in the same critical section return
	// ErrHomeNotFound when it is missing.
	AddFavourite(ctx context.Context, owner, homeID string) error
	RemoveFavourite(ctx context.Context, owner, homeID string) error
	FavouriteHomeIDs(ctx context.Context, owner string) ([]string, error)
}

// Users holds accounts.
type Users interface {
	CreateUser(ctx context.Context, user User) (User, error)
	UserByEmail(ctx context.Context, email string) (User, error)
	UserByID(ctx context.Context, id string) (User, error)
}

// Backend bundles the three stores behind one handle.
type Backend interface {
	Homes
	Favourites
	Users
	Close() error
}

// PrepareHome trims the textual fields and validates the record.
func PrepareHome(home Home) (Home, error) {
	home.HouseName = strings.TrimSpace(home.HouseName)
	home.Location = strings.TrimSpace(home.Location)
	home.Description = strings.TrimSpace(home.Description)
	home.Photo = strings.TrimSpace(home.Photo)
	if err := validation.Struct(home); err != nil {
		return Home{}, err
	}
	return home, nil
}

// NormalizeEmail lower-cases and trims an address so lookups are stable.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// PrepareUser normalizes a user before insert.
func PrepareUser(user User) (User, error) {
	user.FirstName = strings.TrimSpace(user.FirstName)
	user.LastName = strings.TrimSpace(user.LastName)
	user.Email = NormalizeEmail(user.Email)
	if user.UserType == "" {
		user.UserType = UserTypeGuest
	}
	if user.FirstName == "" || user.Email == "" || user.PasswordHash == "" {
		return User{}, fmt.Errorf("first name, email and password hash are required")
	}
	if user.UserType != UserTypeGuest && user.UserType != UserTypeHost {
		return User{}, fmt.Errorf("unknown user type %q", user.UserType)
	}
	return user, nil
}
