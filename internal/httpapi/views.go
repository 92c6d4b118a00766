package httpapi

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strconv"
	"strings"

	"airhome/internal/logging"
	"airhome/internal/store"
	"airhome/internal/validation"
)

//go:embed templates/*.html
var templateFS embed.FS

var views = mustParseViews()

var viewFuncs = template.FuncMap{
	"price": func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) },
	"formatFloat": func(v float64) string {
		if v == 0 {
			return ""
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	},
}

// viewData feeds both the HTML templates and, for JSON clients, the
// response body.
type viewData struct {
	Title    string                  `json:"-"`
	User     *store.User             `json:"user,omitempty"`
	Homes    []store.Home            `json:"homes,omitempty"`
	Home     *store.Home             `json:"home,omitempty"`
	Editing  bool                    `json:"editing,omitempty"`
	Errors   []validation.FieldError `json:"errors,omitempty"`
	OldInput map[string]string       `json:"oldInput,omitempty"`
	Message  string                  `json:"message,omitempty"`

	// JSON replaces the default body for JSON clients when set.
	JSON any `json:"-"`
}

func mustParseViews() map[string]*template.Template {
	pages, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		panic(err)
	}

	out := make(map[string]*template.Template, len(pages))
	for _, page := range pages {
		name := strings.TrimSuffix(path.Base(page), ".html")
		if name == "layout" {
			continue
		}
		t, err := template.New(name).Funcs(viewFuncs).ParseFS(templateFS, "templates/layout.html", page)
		if err != nil {
			panic(fmt.Sprintf("parse %s: %v", page, err))
		}
		out[name] = t
	}
	return out
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

// render writes the named page, or data as JSON when the client asked for it.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, page string, data viewData) {
	if data.User == nil {
		data.User = currentUser(r)
	}

	if wantsJSON(r) {
		var payload any = data
		if data.JSON != nil {
			payload = data.JSON
		}
		writeJSON(w, r, status, payload)
		return
	}

	t, ok := views[page]
	if !ok {
		logging.FromContext(r.Context()).Error().Str("page", page).Msg("unknown view")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		logging.FromContext(r.Context()).Error().Err(err).Str("page", page).Msg("render view")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// writeJSON encodes before writing headers so an unencodable payload turns
// into a 500 instead of an empty 200.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	var buf bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&buf).Encode(payload); err != nil {
			logging.FromContext(r.Context()).Error().Err(err).Msg("encode json response")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func redirect(w http.ResponseWriter, r *http.Request, to string) {
	http.Redirect(w, r, to, http.StatusSeeOther)
}
