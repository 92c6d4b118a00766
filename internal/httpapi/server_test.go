package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"airhome/internal/app/favourites"
	"airhome/internal/app/homes"
	"airhome/internal/app/users"
	"airhome/internal/media"
	"airhome/internal/session"
	"airhome/internal/store"
	"airhome/internal/store/memory"
	"airhome/internal/validation"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	st := memory.New()
	uploads, err := media.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	sessions := session.NewManager(session.NewMemoryStore(), session.Options{Secret: "test-secret-0123456789"})

	srv := New(
		homes.New(st, uploads, time.Second),
		favourites.New(st, time.Second),
		users.New(st, time.Second, users.WithHashCost(bcrypt.MinCost)),
		sessions,
		Options{UploadDir: uploads.Dir()},
	)
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return ts
}

// browser is a cookie-keeping client that does not follow redirects.
type browser struct {
	t    *testing.T
	base string
	c    *http.Client
}

func newBrowser(t *testing.T, ts *httptest.Server) *browser {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	return &browser{
		t:    t,
		base: ts.URL,
		c: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (b *browser) do(req *http.Request) (*http.Response, []byte) {
	b.t.Helper()
	resp, err := b.c.Do(req)
	if err != nil {
		b.t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		b.t.Fatalf("read body: %v", err)
	}
	return resp, body
}

func (b *browser) get(path string) (*http.Response, []byte) {
	b.t.Helper()
	req, _ := http.NewRequest(http.MethodGet, b.base+path, nil)
	return b.do(req)
}

func (b *browser) getJSON(path string, out any) *http.Response {
	b.t.Helper()
	req, _ := http.NewRequest(http.MethodGet, b.base+path, nil)
	req.Header.Set("Accept", "application/json")
	resp, body := b.do(req)
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			b.t.Fatalf("decode %s: %v\n%s", path, err, body)
		}
	}
	return resp
}

func (b *browser) post(path string, form url.Values) (*http.Response, []byte) {
	b.t.Helper()
	req, _ := http.NewRequest(http.MethodPost, b.base+path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

func (b *browser) postJSONAccept(path string, form url.Values, out any) *http.Response {
	b.t.Helper()
	req, _ := http.NewRequest(http.MethodPost, b.base+path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	resp, body := b.do(req)
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			b.t.Fatalf("decode %s: %v\n%s", path, err, body)
		}
	}
	return resp
}

func (b *browser) postPhoto(path string, form url.Values, filename, contentType string, photo []byte) (*http.Response, []byte) {
	b.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for key, values := range form {
		for _, v := range values {
			_ = mw.WriteField(key, v)
		}
	}
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="photo"; filename="`+filename+`"`)
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		b.t.Fatalf("CreatePart: %v", err)
	}
	_, _ = part.Write(photo)
	_ = mw.Close()

	req, _ := http.NewRequest(http.MethodPost, b.base+path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return b.do(req)
}

func expectRedirect(t *testing.T, resp *http.Response, location string) {
	t.Helper()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", resp.StatusCode)
	}
	if got := resp.Header.Get("Location"); got != location {
		t.Fatalf("Location = %q, want %q", got, location)
	}
}

func signupAndLogin(t *testing.T, b *browser, email, userType string) {
	t.Helper()
	resp, body := b.post("/signup", url.Values{
		"firstName":       {"Jane"},
		"lastName":        {"Doe"},
		"email":           {email},
		"password":        {"Passw0rd!"},
		"confirmPassword": {"Passw0rd!"},
		"userType":        {userType},
		"terms":           {"on"},
	})
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("signup status = %d\n%s", resp.StatusCode, body)
	}
	resp, _ = b.post("/login", url.Values{"email": {email}, "password": {"Passw0rd!"}})
	expectRedirect(t, resp, "/")
}

var lakeCabin = url.Values{
	"houseName":   {"Lake Cabin"},
	"price":       {"120"},
	"location":    {"Tahoe"},
	"rating":      {"4.5"},
	"description": {"Quiet cabin by the water"},
}

func TestLakeCabinLifecycle(t *testing.T) {
	ts := newTestServer(t)
	host := newBrowser(t, ts)
	visitor := newBrowser(t, ts)

	signupAndLogin(t, host, "host@example.com", "host")

	resp, body := host.postPhoto("/host/add-home", lakeCabin, "cabin.jpg", "image/jpeg", []byte("jpeg-bytes"))
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("add home status = %d\n%s", resp.StatusCode, body)
	}

	var listed homesPayload
	visitor.getJSON("/homes", &listed)
	if len(listed.Homes) != 1 {
		t.Fatalf("expected one home, got %#v", listed.Homes)
	}
	cabin := listed.Homes[0]
	if cabin.HouseName != "Lake Cabin" || cabin.Price != 120 || cabin.Rating != 4.5 {
		t.Fatalf("unexpected home %#v", cabin)
	}
	if !strings.HasPrefix(cabin.Photo, media.LocalPrefix) || !strings.HasSuffix(cabin.Photo, "-cabin.jpg") {
		t.Fatalf("unexpected photo ref %q", cabin.Photo)
	}

	resp, body = visitor.get(cabin.Photo)
	if resp.StatusCode != http.StatusOK || string(body) != "jpeg-bytes" {
		t.Fatalf("photo not served: %d %q", resp.StatusCode, body)
	}

	for i := 0; i < 2; i++ {
		resp, _ = visitor.post("/favourites", url.Values{"id": {cabin.ID}})
		expectRedirect(t, resp, "/favourites")
	}
	var favs homesPayload
	visitor.getJSON("/favourites", &favs)
	if len(favs.Homes) != 1 || favs.Homes[0].ID != cabin.ID {
		t.Fatalf("expected one favourite, got %#v", favs.Homes)
	}

	resp, _ = host.post("/host/delete-home/"+cabin.ID, nil)
	expectRedirect(t, resp, "/host/host-home-list")

	visitor.getJSON("/favourites", &favs)
	if len(favs.Homes) != 0 {
		t.Fatalf("favourite survived delete: %#v", favs.Homes)
	}
	resp, _ = visitor.get("/homes/" + cabin.ID)
	expectRedirect(t, resp, "/homes")
	resp, _ = visitor.get(cabin.Photo)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("photo should be removed, got %d", resp.StatusCode)
	}
}

func TestFavouritesArePerOwner(t *testing.T) {
	ts := newTestServer(t)
	host := newBrowser(t, ts)
	signupAndLogin(t, host, "host@example.com", "host")

	resp, _ := host.post("/host/add-home", lakeCabin)
	expectRedirect(t, resp, "/host/host-home-list")
	var listed homesPayload
	host.getJSON("/homes", &listed)

	resp, _ = host.post("/favourites", url.Values{"id": {listed.Homes[0].ID}})
	expectRedirect(t, resp, "/favourites")

	var favs homesPayload
	newBrowser(t, ts).getJSON("/favourites", &favs)
	if len(favs.Homes) != 0 {
		t.Fatalf("anonymous pool should be empty, got %#v", favs.Homes)
	}
	host.getJSON("/favourites", &favs)
	if len(favs.Homes) != 1 {
		t.Fatalf("expected host favourite, got %#v", favs.Homes)
	}
}

func TestFavouriteUnknownHome(t *testing.T) {
	ts := newTestServer(t)
	resp, _ := newBrowser(t, ts).post("/favourites", url.Values{"id": {"missing"}})
	expectRedirect(t, resp, "/homes")
}

func TestRemoveFavouriteMissingIsNoop(t *testing.T) {
	ts := newTestServer(t)
	resp, _ := newBrowser(t, ts).post("/favourites/delete/missing", nil)
	expectRedirect(t, resp, "/favourites")
}

func TestHostRoutesRequireHost(t *testing.T) {
	ts := newTestServer(t)

	anonymous := newBrowser(t, ts)
	resp, _ := anonymous.get("/host/add-home")
	expectRedirect(t, resp, "/login")

	guest := newBrowser(t, ts)
	signupAndLogin(t, guest, "guest@example.com", "guest")
	resp, _ = guest.get("/host/host-home-list")
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("guest status = %d, want 403", resp.StatusCode)
	}
	resp, _ = guest.post("/host/add-home", lakeCabin)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("guest post status = %d, want 403", resp.StatusCode)
	}
}

func TestLogoutReturnsToAnonymous(t *testing.T) {
	ts := newTestServer(t)
	host := newBrowser(t, ts)
	signupAndLogin(t, host, "host@example.com", "host")

	resp, _ := host.get("/host/add-home")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	resp, _ = host.post("/logout", nil)
	expectRedirect(t, resp, "/login")

	resp, _ = host.get("/host/add-home")
	expectRedirect(t, resp, "/login")
}

func TestAddHomeValidation(t *testing.T) {
	ts := newTestServer(t)
	host := newBrowser(t, ts)
	signupAndLogin(t, host, "host@example.com", "host")

	tests := []struct {
		name   string
		form   url.Values
		fields []string
		rules  [][2]string
	}{
		{
			name:   "missing fields",
			form:   url.Values{"price": {"0"}, "rating": {"7"}},
			fields: []string{"houseName", "price", "location", "rating"},
		},
		{
			name:   "price not a number",
			form:   url.Values{"houseName": {"Cabin"}, "price": {"cheap"}, "location": {""}, "rating": {"4"}},
			fields: []string{"price", "location"},
		},
		{
			name:   "rating absent",
			form:   url.Values{"houseName": {"No Rating"}, "price": {"100"}, "location": {"X"}},
			fields: []string{"rating"},
			rules:  [][2]string{{"rating", "required"}},
		},
		{
			name:   "price blank",
			form:   url.Values{"houseName": {"No Price"}, "price": {" "}, "location": {"X"}, "rating": {"4"}},
			fields: []string{"price"},
			rules:  [][2]string{{"price", "required"}},
		},
		{
			name:   "infinite numbers",
			form:   url.Values{"houseName": {"Endless"}, "price": {"Inf"}, "location": {"X"}, "rating": {"NaN"}},
			fields: []string{"price", "rating"},
			rules:  [][2]string{{"price", "number"}, {"rating", "number"}},
		},
		{
			name:   "infinity spelled out",
			form:   url.Values{"houseName": {"Endless"}, "price": {"+Infinity"}, "location": {"X"}, "rating": {"4"}},
			fields: []string{"price"},
			rules:  [][2]string{{"price", "number"}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got viewData
			resp := host.postJSONAccept("/host/add-home", tc.form, &got)
			if resp.StatusCode != http.StatusUnprocessableEntity {
				t.Fatalf("status = %d, want 422", resp.StatusCode)
			}
			verr := &validation.Error{Fields: got.Errors}
			for _, field := range tc.fields {
				found := false
				for _, f := range verr.Fields {
					if f.Field == field {
						found = true
					}
				}
				if !found {
					t.Errorf("missing violation for %s in %#v", field, verr.Fields)
				}
			}
			for _, rule := range tc.rules {
				if !verr.Has(rule[0], rule[1]) {
					t.Errorf("missing %s/%s violation in %#v", rule[0], rule[1], verr.Fields)
				}
			}
		})
	}

	var listed homesPayload
	host.getJSON("/homes", &listed)
	if len(listed.Homes) != 0 {
		t.Fatalf("nothing should be stored, got %#v", listed.Homes)
	}
}

func TestAddHomeRejectsPhotoType(t *testing.T) {
	ts := newTestServer(t)
	host := newBrowser(t, ts)
	signupAndLogin(t, host, "host@example.com", "host")

	resp, body := host.postPhoto("/host/add-home", lakeCabin, "notes.pdf", "application/pdf", []byte("%PDF"))
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
	if !bytes.Contains(body, []byte(media.ErrUnsupportedType.Error())) {
		t.Fatalf("page does not mention the photo type:\n%s", body)
	}
}

func TestEditHome(t *testing.T) {
	ts := newTestServer(t)
	host := newBrowser(t, ts)
	signupAndLogin(t, host, "host@example.com", "host")

	resp, _ := host.post("/host/add-home", lakeCabin)
	expectRedirect(t, resp, "/host/host-home-list")
	var listed homesPayload
	host.getJSON("/homes", &listed)
	id := listed.Homes[0].ID

	resp, _ = host.get("/host/edit-home/" + id)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("edit form status = %d", resp.StatusCode)
	}

	edited := url.Values{
		"id":        {id},
		"houseName": {"Lake Cabin Deluxe"},
		"price":     {"150"},
		"location":  {"Tahoe"},
		"rating":    {"5"},
	}
	resp, _ = host.post("/host/edit-home", edited)
	expectRedirect(t, resp, "/host/host-home-list")

	var detail viewData
	host.getJSON("/homes/"+id, &detail)
	if detail.Home == nil || detail.Home.HouseName != "Lake Cabin Deluxe" || detail.Home.Price != 150 || detail.Home.ID != id {
		t.Fatalf("unexpected home after edit %#v", detail.Home)
	}

	resp, _ = host.post("/host/edit-home/missing", edited)
	expectRedirect(t, resp, "/host/host-home-list")
	resp, _ = host.get("/host/edit-home/missing")
	expectRedirect(t, resp, "/host/host-home-list")
}

func TestSignupValidation(t *testing.T) {
	ts := newTestServer(t)
	b := newBrowser(t, ts)

	var got viewData
	resp := b.postJSONAccept("/signup", url.Values{
		"firstName":       {"J"},
		"email":           {"Jane@Example.com"},
		"password":        {"weak"},
		"confirmPassword": {"other"},
		"userType":        {"host"},
	}, &got)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}

	verr := &validation.Error{Fields: got.Errors}
	for _, want := range [][2]string{
		{"firstName", "min"},
		{"password", "min"},
		{"confirmPassword", "eqfield"},
		{"terms", "eq"},
	} {
		if !verr.Has(want[0], want[1]) {
			t.Errorf("missing %s/%s in %#v", want[0], want[1], verr.Fields)
		}
	}
	if got.OldInput["email"] != "Jane@Example.com" || got.OldInput["userType"] != "host" {
		t.Fatalf("old input not echoed: %#v", got.OldInput)
	}
	if _, ok := got.OldInput["password"]; ok {
		t.Fatalf("password must not be echoed")
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	ts := newTestServer(t)
	signupAndLogin(t, newBrowser(t, ts), "jane@example.com", "guest")

	var got viewData
	resp := newBrowser(t, ts).postJSONAccept("/signup", url.Values{
		"firstName":       {"Jane"},
		"email":           {"JANE@example.com"},
		"password":        {"Passw0rd!"},
		"confirmPassword": {"Passw0rd!"},
		"userType":        {"guest"},
		"terms":           {"on"},
	}, &got)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
	if !(&validation.Error{Fields: got.Errors}).Has("email", "unique") {
		t.Fatalf("expected email/unique, got %#v", got.Errors)
	}
}

func TestLoginFailuresShareMessage(t *testing.T) {
	ts := newTestServer(t)
	signupAndLogin(t, newBrowser(t, ts), "jane@example.com", "guest")

	for _, creds := range []url.Values{
		{"email": {"jane@example.com"}, "password": {"wrong"}},
		{"email": {"nobody@example.com"}, "password": {"Passw0rd!"}},
	} {
		var got viewData
		resp := newBrowser(t, ts).postJSONAccept("/login", creds, &got)
		if resp.StatusCode != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d, want 422", resp.StatusCode)
		}
		if len(got.Errors) != 1 || got.Errors[0].Message != invalidCredentials {
			t.Fatalf("unexpected errors %#v", got.Errors)
		}
		if got.OldInput["email"] != creds.Get("email") {
			t.Fatalf("email not echoed: %#v", got.OldInput)
		}
	}
}

func TestPages(t *testing.T) {
	ts := newTestServer(t)
	b := newBrowser(t, ts)

	tests := []struct {
		path   string
		status int
		want   string
	}{
		{path: "/", status: http.StatusOK, want: "No homes available."},
		{path: "/homes", status: http.StatusOK, want: "Homes List"},
		{path: "/bookings", status: http.StatusOK, want: "My Bookings"},
		{path: "/favourites", status: http.StatusOK, want: "No favourites yet."},
		{path: "/login", status: http.StatusOK, want: `name="password"`},
		{path: "/signup", status: http.StatusOK, want: `name="confirmPassword"`},
		{path: "/health", status: http.StatusOK, want: "OK"},
		{path: "/no/such/page", status: http.StatusNotFound, want: "Page Not Found"},
	}

	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			resp, body := b.get(tc.path)
			if resp.StatusCode != tc.status {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tc.status)
			}
			if !bytes.Contains(body, []byte(tc.want)) {
				t.Fatalf("body does not contain %q:\n%s", tc.want, body)
			}
		})
	}
}

type failingHomes struct {
	HomeService
}

func (failingHomes) List(context.Context) ([]store.Home, error) {
	return nil, store.Wrap("list homes", errors.New("connection refused"))
}

func TestStorageErrorRendersErrorPage(t *testing.T) {
	st := memory.New()
	srv := New(
		failingHomes{},
		favourites.New(st, time.Second),
		users.New(st, time.Second, users.WithHashCost(bcrypt.MinCost)),
		session.NewManager(session.NewMemoryStore(), session.Options{Secret: "test-secret-0123456789"}),
		Options{},
	)

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/homes", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "connection refused") {
		t.Fatalf("driver error leaked to the page")
	}
}

func TestWriteJSONUnencodablePayload(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/homes", nil)

	rec := httptest.NewRecorder()
	writeJSON(rec, req, http.StatusOK, homesPayload{Homes: []store.Home{{ID: "1", HouseName: "Endless", Price: math.Inf(1)}}})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}

	rec = httptest.NewRecorder()
	writeJSON(rec, req, http.StatusCreated, map[string]string{"status": "ok"})
	if rec.Code != http.StatusCreated || rec.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("status = %d content-type = %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if strings.TrimSpace(rec.Body.String()) != `{"status":"ok"}` {
		t.Fatalf("body = %q", rec.Body.String())
	}
}
