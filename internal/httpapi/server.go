package httpapi

import (
	"context"
	"errors"
	"net/http"

	"airhome/internal/app/homes"
	"airhome/internal/app/users"
	"airhome/internal/logging"
	"airhome/internal/session"
	"airhome/internal/store"
)

// HomeService describes listing workflows.
type HomeService interface {
	List(ctx context.Context) ([]store.Home, error)
	Get(ctx context.Context, id string) (store.Home, error)
	Create(ctx context.Context, home store.Home, photo *homes.Photo) (store.Home, error)
	Update(ctx context.Context, id string, home store.Home, photo *homes.Photo) (store.Home, error)
	Delete(ctx context.Context, id string) error
}

// FavouriteService coordinates favouriting workflows.
type FavouriteService interface {
	Add(ctx context.Context, owner, homeID string) (bool, error)
	Remove(ctx context.Context, owner, homeID string) error
	List(ctx context.Context, owner string) ([]store.Home, error)
}

// UserService captures the account operations needed by the HTTP handlers.
type UserService interface {
	Register(ctx context.Context, form users.SignupForm) (store.User, error)
	Authenticate(ctx context.Context, email, password string) (store.User, error)
	Get(ctx context.Context, id string) (store.User, error)
}

// Sessions binds a browser to a user id.
type Sessions interface {
	Begin(ctx context.Context, w http.ResponseWriter, userID string) error
	Current(ctx context.Context, r *http.Request) (string, error)
	End(ctx context.Context, w http.ResponseWriter, r *http.Request) error
}

// Options holds the optional parts of the HTTP surface.
type Options struct {
	// UploadDir is served under /uploads/ when set.
	UploadDir string
	// Metrics is served at /metrics when set.
	Metrics http.Handler
}

// Server wires HTTP handlers to the underlying services.
type Server struct {
	homes      HomeService
	favourites FavouriteService
	users      UserService
	sessions   Sessions
	opts       Options
}

// New configures a Server.
func New(homes HomeService, favourites FavouriteService, users UserService, sessions Sessions, opts Options) *Server {
	return &Server{
		homes:      homes,
		favourites: favourites,
		users:      users,
		sessions:   sessions,
		opts:       opts,
	}
}

// Routes exposes the storefront, host, and account pages.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if wantsJSON(r) {
			writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	if s.opts.Metrics != nil {
		mux.Handle("GET /metrics", s.opts.Metrics)
	}
	if s.opts.UploadDir != "" {
		mux.Handle("GET /uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(s.opts.UploadDir))))
	}

	// Storefront
	mux.HandleFunc("GET /{$}", s.identify(s.handleIndex))
	mux.HandleFunc("GET /homes", s.identify(s.handleHomes))
	mux.HandleFunc("GET /homes/{id}", s.identify(s.handleHomeDetail))
	mux.HandleFunc("GET /bookings", s.identify(s.handleBookings))
	mux.HandleFunc("GET /favourites", s.identify(s.handleFavourites))
	mux.HandleFunc("POST /favourites", s.identify(s.handleAddFavourite))
	mux.HandleFunc("POST /favourites/delete/{id}", s.identify(s.handleRemoveFavourite))

	// Host
	mux.HandleFunc("GET /host/host-home-list", s.identify(s.requireHost(s.handleHostHomes)))
	mux.HandleFunc("GET /host/add-home", s.identify(s.requireHost(s.handleAddHomeForm)))
	mux.HandleFunc("POST /host/add-home", s.identify(s.requireHost(s.handleAddHome)))
	mux.HandleFunc("GET /host/edit-home/{id}", s.identify(s.requireHost(s.handleEditHomeForm)))
	mux.HandleFunc("POST /host/edit-home", s.identify(s.requireHost(s.handleEditHome)))
	mux.HandleFunc("POST /host/edit-home/{id}", s.identify(s.requireHost(s.handleEditHome)))
	mux.HandleFunc("POST /host/delete-home/{id}", s.identify(s.requireHost(s.handleDeleteHome)))

	// Accounts
	mux.HandleFunc("GET /login", s.identify(s.handleLoginForm))
	mux.HandleFunc("POST /login", s.identify(s.handleLogin))
	mux.HandleFunc("GET /signup", s.identify(s.handleSignupForm))
	mux.HandleFunc("POST /signup", s.identify(s.handleSignup))
	mux.HandleFunc("POST /logout", s.identify(s.handleLogout))

	mux.HandleFunc("/", s.identify(func(w http.ResponseWriter, r *http.Request) {
		s.render(w, r, http.StatusNotFound, "404", viewData{Title: "Page Not Found"})
	}))

	return mux
}

// fail renders the generic error page. Expected outcomes such as misses and
// validation problems are handled by the callers.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	event := logging.FromContext(r.Context()).Error().Err(err)
	if store.IsStorage(err) {
		event = event.Bool("storage", true)
	}
	event.Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")

	s.render(w, r, http.StatusInternalServerError, "error", viewData{
		Title:   "Something went wrong",
		Message: "Something went wrong. Please try again later.",
	})
}

func (s *Server) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	logging.FromContext(r.Context()).Warn().Err(err).Str("path", r.URL.Path).Msg("bad request")
	s.render(w, r, http.StatusBadRequest, "error", viewData{
		Title:   "Bad Request",
		Message: "The submitted form could not be read.",
	})
}

type ctxKey int

const userKey ctxKey = iota

// identify resolves the session cookie to a user before calling next.
// Unknown or stale sessions are treated as anonymous.
func (s *Server) identify(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		userID, err := s.sessions.Current(ctx, r)
		switch {
		case errors.Is(err, session.ErrNoSession):
		case err != nil:
			s.fail(w, r, err)
			return
		default:
			user, err := s.users.Get(ctx, userID)
			switch {
			case errors.Is(err, store.ErrUserNotFound):
				logging.FromContext(ctx).Debug().Str("user_id", userID).Msg("session refers to a missing user")
			case err != nil:
				s.fail(w, r, err)
				return
			default:
				ctx = context.WithValue(ctx, userKey, &user)
				ctx = logging.WithUserID(ctx, user.ID)
			}
		}

		next(w, r.WithContext(ctx))
	}
}

// requireHost sends anonymous visitors to the login page and refuses guests.
func (s *Server) requireHost(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := currentUser(r)
		if user == nil {
			redirect(w, r, "/login")
			return
		}
		if !user.IsHost() {
			s.render(w, r, http.StatusForbidden, "error", viewData{
				Title:   "Forbidden",
				Message: "Only hosts can manage homes.",
			})
			return
		}
		next(w, r)
	}
}

func currentUser(r *http.Request) *store.User {
	user, _ := r.Context().Value(userKey).(*store.User)
	return user
}

// owner keys the favourites list: the user id, or "" for anonymous visitors.
func owner(r *http.Request) string {
	if user := currentUser(r); user != nil {
		return user.ID
	}
	return ""
}
