package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"airhome/internal/app/users"
	"airhome/internal/validation"
)

// invalidCredentials is shown for unknown emails and wrong passwords alike.
const invalidCredentials = "Invalid email or password"

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "login", viewData{Title: "Login"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(w, r); err != nil {
		s.badRequest(w, r, err)
		return
	}
	email := strings.TrimSpace(r.FormValue("email"))

	user, err := s.users.Authenticate(r.Context(), email, r.FormValue("password"))
	var authErr *users.AuthError
	if errors.As(err, &authErr) {
		s.render(w, r, http.StatusUnprocessableEntity, "login", viewData{
			Title:    "Login",
			Errors:   []validation.FieldError{{Field: "email", Rule: "credentials", Message: invalidCredentials}},
			OldInput: map[string]string{"email": email},
		})
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if err := s.sessions.Begin(r.Context(), w, user.ID); err != nil {
		s.fail(w, r, err)
		return
	}
	redirect(w, r, "/")
}

func (s *Server) handleSignupForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "signup", viewData{Title: "Signup"})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(w, r); err != nil {
		s.badRequest(w, r, err)
		return
	}
	form := users.SignupForm{
		FirstName:       r.FormValue("firstName"),
		LastName:        r.FormValue("lastName"),
		Email:           r.FormValue("email"),
		Password:        r.FormValue("password"),
		ConfirmPassword: r.FormValue("confirmPassword"),
		UserType:        r.FormValue("userType"),
		Terms:           r.FormValue("terms"),
	}

	_, err := s.users.Register(r.Context(), form)
	var ve *validation.Error
	if errors.As(err, &ve) {
		s.render(w, r, http.StatusUnprocessableEntity, "signup", viewData{
			Title:  "Signup",
			Errors: ve.Fields,
			OldInput: map[string]string{
				"firstName": form.FirstName,
				"lastName":  form.LastName,
				"email":     form.Email,
				"userType":  form.UserType,
			},
		})
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	redirect(w, r, "/login")
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.End(r.Context(), w, r); err != nil {
		s.fail(w, r, err)
		return
	}
	redirect(w, r, "/login")
}
