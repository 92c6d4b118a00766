package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"airhome/internal/store"
	"airhome/internal/validation"
)

// DefaultHashCost is the bcrypt cost used for new passwords.
const DefaultHashCost = 12

// Store describes the persistence operations required by the user service.
type Store interface {
	CreateUser(ctx context.Context, user store.User) (store.User, error)
	UserByEmail(ctx context.Context, email string) (store.User, error)
	UserByID(ctx context.Context, id string) (store.User, error)
}

// SignupForm is the raw signup submission.
type SignupForm struct {
	FirstName       string `form:"firstName" json:"firstName" label:"First Name" validate:"min=2,alphaspace"`
	LastName        string `form:"lastName" json:"lastName" label:"Last Name" validate:"alphaspace"`
	Email           string `form:"email" json:"email" label:"Email" validate:"email"`
	Password        string `form:"password" json:"password" label:"Password" validate:"min=8,maxbytes=72,hasupper,haslower,hasdigit,hasspecial"`
	ConfirmPassword string `form:"confirmPassword" json:"confirmPassword" validate:"eqfield=Password" msg:"eqfield:Passwords do not match"`
	UserType        string `form:"userType" json:"userType" label:"User Type" validate:"required,oneof=guest host" msg:"required:Please select a user type"`
	Terms           string `form:"terms" json:"terms" validate:"eq=on" msg:"eq:Please accept the terms and conditions"`
}

// Reason classifies a failed login.
type Reason int

const (
	ReasonNoSuchUser Reason = iota + 1
	ReasonBadPassword
)

// AuthError is returned by Authenticate for unknown emails and wrong passwords.
type AuthError struct {
	Reason Reason
}

func (e *AuthError) Error() string {
	switch e.Reason {
	case ReasonNoSuchUser:
		return "user does not exist"
	case ReasonBadPassword:
		return "invalid password"
	default:
		return "authentication failed"
	}
}

// Service exposes user-related workflows.
type Service interface {
	Register(ctx context.Context, form SignupForm) (store.User, error)
	Authenticate(ctx context.Context, email, password string) (store.User, error)
	Get(ctx context.Context, id string) (store.User, error)
}

// Option tunes a Service.
type Option func(*service)

// WithHashCost overrides the bcrypt cost.
func WithHashCost(cost int) Option {
	return func(s *service) { s.cost = cost }
}

type service struct {
	store   Store
	timeout time.Duration
	cost    int

	dummyOnce sync.Once
	dummyHash []byte
}

// New wires a Service backed by the provided Store.
func New(st Store, timeout time.Duration, opts ...Option) Service {
	s := &service{store: st, timeout: timeout, cost: DefaultHashCost}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Register validates every field at once, then stores the account with a
// bcrypt hash of the password.
func (s *service) Register(ctx context.Context, form SignupForm) (store.User, error) {
	if err := ctx.Err(); err != nil {
		return store.User{}, store.Wrap("register", err)
	}

	form.FirstName = strings.TrimSpace(form.FirstName)
	form.LastName = strings.TrimSpace(form.LastName)
	form.Email = store.NormalizeEmail(form.Email)
	if err := validation.Struct(form); err != nil {
		return store.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(form.Password), s.cost)
	if err != nil {
		return store.User{}, fmt.Errorf("hash password: %w", err)
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()

	user, err := s.store.CreateUser(ctx, store.User{
		FirstName:    form.FirstName,
		LastName:     form.LastName,
		Email:        form.Email,
		PasswordHash: string(hash),
		UserType:     form.UserType,
	})
	if errors.Is(err, store.ErrUserExists) {
		verr := &validation.Error{}
		verr.Add("email", "unique", "An account with this email already exists")
		return store.User{}, verr
	}
	if err != nil {
		return store.User{}, err
	}
	return user, nil
}

func (s *service) Authenticate(ctx context.Context, email, password string) (store.User, error) {
	if err := ctx.Err(); err != nil {
		return store.User{}, store.Wrap("authenticate", err)
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	user, err := s.store.UserByEmail(ctx, email)
	if errors.Is(err, store.ErrUserNotFound) {
		_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
		return store.User{}, &AuthError{Reason: ReasonNoSuchUser}
	}
	if err != nil {
		return store.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return store.User{}, &AuthError{Reason: ReasonBadPassword}
	}
	return user, nil
}

func (s *service) Get(ctx context.Context, id string) (store.User, error) {
	if err := ctx.Err(); err != nil {
		return store.User{}, store.Wrap("get user", err)
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return s.store.UserByID(ctx, id)
}

// dummy returns a hash at the configured cost so unknown emails take as long
// as wrong passwords.
func (s *service) dummy() []byte {
	s.dummyOnce.Do(func() {
		hash, err := bcrypt.GenerateFromPassword([]byte("airhome-dummy-password"), s.cost)
		if err == nil {
			s.dummyHash = hash
		}
	})
	return s.dummyHash
}
