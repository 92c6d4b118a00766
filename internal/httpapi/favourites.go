package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"airhome/internal/store"
)

func (s *Server) handleFavourites(w http.ResponseWriter, r *http.Request) {
	list, err := s.favourites.List(r.Context(), owner(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "favourite-list", viewData{Title: "My Favourites", Homes: list, JSON: homesResponse(list)})
}

func (s *Server) handleAddFavourite(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(w, r); err != nil {
		s.badRequest(w, r, err)
		return
	}

	_, err := s.favourites.Add(r.Context(), owner(r), strings.TrimSpace(r.FormValue("id")))
	if errors.Is(err, store.ErrHomeNotFound) {
		redirect(w, r, "/homes")
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	redirect(w, r, "/favourites")
}

func (s *Server) handleRemoveFavourite(w http.ResponseWriter, r *http.Request) {
	if err := s.favourites.Remove(r.Context(), owner(r), r.PathValue("id")); err != nil {
		s.fail(w, r, err)
		return
	}
	redirect(w, r, "/favourites")
}
