package httpapi

import (
	"errors"
	"math"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"airhome/internal/app/homes"
	"airhome/internal/store"
	"airhome/internal/validation"
)

const (
	maxUploadBytes  = 10 << 20
	maxMemoryBytes  = 2 << 20
	hostHomeListURL = "/host/host-home-list"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	list, err := s.homes.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "index", viewData{Title: "airhome", Homes: list, JSON: homesResponse(list)})
}

func (s *Server) handleHomes(w http.ResponseWriter, r *http.Request) {
	list, err := s.homes.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "home-list", viewData{Title: "Homes List", Homes: list, JSON: homesResponse(list)})
}

func (s *Server) handleHomeDetail(w http.ResponseWriter, r *http.Request) {
	home, err := s.homes.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrHomeNotFound) {
		redirect(w, r, "/homes")
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "home-detail", viewData{Title: home.HouseName, Home: &home})
}

func (s *Server) handleBookings(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "bookings", viewData{Title: "My Bookings"})
}

func (s *Server) handleHostHomes(w http.ResponseWriter, r *http.Request) {
	list, err := s.homes.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "host-home-list", viewData{Title: "Host Homes List", Homes: list, JSON: homesResponse(list)})
}

func (s *Server) handleAddHomeForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "edit-home", viewData{Title: "Add Home to airhome", Home: &store.Home{}})
}

func (s *Server) handleAddHome(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(w, r); err != nil {
		s.badRequest(w, r, err)
		return
	}
	home, verr := homeFromForm(r)
	photo, closePhoto, err := formPhoto(r)
	if err != nil {
		s.badRequest(w, r, err)
		return
	}
	defer closePhoto()

	if verr != nil {
		s.rejectHome(w, r, home, false, verr)
		return
	}

	if _, err := s.homes.Create(r.Context(), home, photo); err != nil {
		var ve *validation.Error
		if errors.As(err, &ve) {
			s.rejectHome(w, r, home, false, ve)
			return
		}
		s.fail(w, r, err)
		return
	}
	redirect(w, r, hostHomeListURL)
}

func (s *Server) handleEditHomeForm(w http.ResponseWriter, r *http.Request) {
	home, err := s.homes.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrHomeNotFound) {
		redirect(w, r, hostHomeListURL)
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "edit-home", viewData{Title: "Edit your Home", Home: &home, Editing: true})
}

// handleEditHome serves both /host/edit-home/{id} and the legacy form post
// to /host/edit-home that carries the id as a field. The id only selects
// the record to update.
func (s *Server) handleEditHome(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(w, r); err != nil {
		s.badRequest(w, r, err)
		return
	}
	id := r.PathValue("id")
	if id == "" {
		id = strings.TrimSpace(r.FormValue("id"))
	}

	home, verr := homeFromForm(r)
	home.ID = id
	photo, closePhoto, err := formPhoto(r)
	if err != nil {
		s.badRequest(w, r, err)
		return
	}
	defer closePhoto()

	if verr != nil {
		s.rejectHome(w, r, home, true, verr)
		return
	}

	_, err = s.homes.Update(r.Context(), id, home, photo)
	var ve *validation.Error
	switch {
	case err == nil:
		redirect(w, r, hostHomeListURL)
	case errors.Is(err, store.ErrHomeNotFound):
		redirect(w, r, hostHomeListURL)
	case errors.As(err, &ve):
		s.rejectHome(w, r, home, true, ve)
	default:
		s.fail(w, r, err)
	}
}

func (s *Server) handleDeleteHome(w http.ResponseWriter, r *http.Request) {
	err := s.homes.Delete(r.Context(), r.PathValue("id"))
	if err != nil && !errors.Is(err, store.ErrHomeNotFound) {
		s.fail(w, r, err)
		return
	}
	redirect(w, r, hostHomeListURL)
}

func (s *Server) rejectHome(w http.ResponseWriter, r *http.Request, home store.Home, editing bool, verr *validation.Error) {
	title := "Add Home to airhome"
	if editing {
		title = "Edit your Home"
	}
	s.render(w, r, http.StatusUnprocessableEntity, "edit-home", viewData{
		Title:   title,
		Home:    &home,
		Editing: editing,
		Errors:  verr.Fields,
	})
}

type homesPayload struct {
	Homes []store.Home `json:"homes"`
}

func homesResponse(list []store.Home) homesPayload {
	if list == nil {
		list = []store.Home{}
	}
	return homesPayload{Homes: list}
}

// parseForm reads url-encoded and multipart bodies alike.
func parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return r.ParseMultipartForm(maxMemoryBytes)
	}
	return r.ParseForm()
}

// homeFromForm decodes the listing fields. Numbers that do not parse are
// reported together with every other field problem.
func homeFromForm(r *http.Request) (store.Home, *validation.Error) {
	home := store.Home{
		HouseName:   r.FormValue("houseName"),
		Location:    r.FormValue("location"),
		Description: r.FormValue("description"),
	}

	bad := &validation.Error{}
	home.Price = formNumber(r, "price", "Price", bad)
	home.Rating = formNumber(r, "rating", "Rating", bad)
	if len(bad.Fields) == 0 {
		return home, nil
	}

	if _, err := store.PrepareHome(home); err != nil {
		var ve *validation.Error
		if errors.As(err, &ve) {
			for _, f := range ve.Fields {
				if f.Field != "price" && f.Field != "rating" {
					bad.Add(f.Field, f.Rule, f.Message)
				}
			}
		}
	}
	return home, bad
}

func formNumber(r *http.Request, field, label string, bad *validation.Error) float64 {
	raw := strings.TrimSpace(r.FormValue(field))
	if raw == "" {
		bad.Add(field, "required", label+" is required")
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		bad.Add(field, "number", label+" must be a number")
		return 0
	}
	return v
}

// formPhoto returns the uploaded photo, or nil when none was chosen.
func formPhoto(r *http.Request) (*homes.Photo, func(), error) {
	noop := func() {}
	if r.MultipartForm == nil {
		return nil, noop, nil
	}

	file, header, err := r.FormFile("photo")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, noop, nil
	}
	if err != nil {
		return nil, noop, err
	}
	if header.Filename == "" || header.Size == 0 {
		_ = file.Close()
		return nil, noop, nil
	}

	return &homes.Photo{
		Name:        filepath.Base(header.Filename),
		ContentType: photoType(header),
		Body:        file,
	}, func() { _ = file.Close() }, nil
}

func photoType(header *multipart.FileHeader) string {
	ct := header.Header.Get("Content-Type")
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}
