package user

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/hidenkeys/innkeeper/apperr"
	"github.com/hidenkeys/innkeeper/auth"
	"github.com/hidenkeys/innkeeper/models"
	"github.com/hidenkeys/innkeeper/obs"
	"github.com/hidenkeys/innkeeper/storage"
	"github.com/hidenkeys/innkeeper/storage/storagetest"
)

const secret = "test-secret"

func newApp(t *testing.T) (*fiber.App, *storage.Store) {
	t.Helper()
	s := storagetest.New(t)
	v, err := auth.NewVerifier(auth.Config{Secret: secret})
	if err != nil {
		t.Fatal(err)
	}
	h := NewHandler(s, secret, time.Hour)
	app := fiber.New(fiber.Config{ErrorHandler: apperr.Handler(obs.Discard())})
	app.Post("/auth/login", h.Login)
	app.Post("/auth/register", h.Register)
	app.Post("/auth/logout", h.Logout)
	app.Get("/users/me", h.Me, v.Middleware())
	app.Get("/users/:id", h.GetByID, v.Middleware())
	app.Put("/users/:id/password", h.ChangePassword, v.Middleware())
	app.Post("/users", h.Create, v.Middleware(), auth.RequireRoles(models.RoleAdmin))
	app.Get("/users", h.Search, v.Middleware(), auth.RequireRoles(models.RoleAdmin))
	return app, s
}

type response struct {
	Success bool            `json:"success"`
	Count   int             `json:"count"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

func do(t *testing.T, app *fiber.App, method, path, token, body string) (*http.Response, response) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out response
	json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func login(t *testing.T, app *fiber.App, email, password string) string {
	t.Helper()
	resp, out := do(t, app, http.MethodPost, "/auth/login", "", `{"email":"`+email+`","password":"`+password+`"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login %s: %d %s", email, resp.StatusCode, out.Error)
	}
	var data struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}
	json.Unmarshal(out.Data, &data)
	if data.Token == "" || data.User.Email != email {
		t.Fatalf("unexpected login payload %s", out.Data)
	}
	return data.Token
}

func TestLogin(t *testing.T) {
	app, s := newApp(t)
	if err := SeedAdmin(context.Background(), s, "admin@hotel.test", "supersecret", obs.Discard()); err != nil {
		t.Fatal(err)
	}

	resp, _ := do(t, app, http.MethodPost, "/auth/login", "", `{"email":"admin@hotel.test","password":"supersecret"}`)
	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == cookieName {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value == "" || !cookie.HttpOnly {
		t.Fatalf("auth cookie not set: %+v", resp.Cookies())
	}

	tests := []struct {
		name string
		body string
		want int
	}{
		{"wrong password", `{"email":"admin@hotel.test","password":"nope"}`, http.StatusUnauthorized},
		{"unknown email", `{"email":"ghost@hotel.test","password":"supersecret"}`, http.StatusUnauthorized},
		{"missing password", `{"email":"admin@hotel.test"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, out := do(t, app, http.MethodPost, "/auth/login", "", tt.body)
			if resp.StatusCode != tt.want || out.Success {
				t.Fatalf("got %d %+v", resp.StatusCode, out)
			}
		})
	}
}

func TestSeedAdminIsIdempotent(t *testing.T) {
	s := storagetest.New(t)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := SeedAdmin(ctx, s, "admin@hotel.test", "supersecret", obs.Discard()); err != nil {
			t.Fatal(err)
		}
	}
	admins, err := s.SearchUsers(ctx, string(models.RoleAdmin), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(admins) != 1 {
		t.Fatalf("%d admins seeded", len(admins))
	}
}

func TestRegisterIsAlwaysGuest(t *testing.T) {
	app, _ := newApp(t)
	resp, out := do(t, app, http.MethodPost, "/auth/register", "",
		`{"email":"eve@example.com","password":"longenough","firstName":"Eve","role":"admin"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: %d %s", resp.StatusCode, out.Error)
	}
	var u models.User
	json.Unmarshal(out.Data, &u)
	if u.Role != models.RoleGuest {
		t.Fatalf("registered as %s", u.Role)
	}

	resp, _ = do(t, app, http.MethodPost, "/auth/register", "",
		`{"email":"eve@example.com","password":"longenough","firstName":"Eve"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("duplicate email: %d", resp.StatusCode)
	}

	tok := login(t, app, "eve@example.com", "longenough")
	resp, out = do(t, app, http.MethodGet, "/users/me", tok, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me: %d %s", resp.StatusCode, out.Error)
	}
	resp, _ = do(t, app, http.MethodPost, "/users", tok, `{"email":"x@y.z","password":"longenough","firstName":"X"}`)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("guest creating staff: %d", resp.StatusCode)
	}
}

func TestAdminCreatesStaff(t *testing.T) {
	app, s := newApp(t)
	SeedAdmin(context.Background(), s, "admin@hotel.test", "supersecret", obs.Discard())
	tok := login(t, app, "admin@hotel.test", "supersecret")

	resp, out := do(t, app, http.MethodPost, "/users", tok,
		`{"email":"maid@hotel.test","password":"longenough","firstName":"Mo","role":"housekeeper"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: %d %s", resp.StatusCode, out.Error)
	}
	resp, _ = do(t, app, http.MethodPost, "/users", tok,
		`{"email":"boss@hotel.test","password":"longenough","firstName":"B","role":"owner"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown role: %d", resp.StatusCode)
	}

	_, out = do(t, app, http.MethodGet, "/users?role=housekeeper", tok, "")
	if out.Count != 1 {
		t.Fatalf("housekeepers: %d", out.Count)
	}
}

func TestChangePassword(t *testing.T) {
	app, s := newApp(t)
	u := storagetest.User(t, s, "guest@example.com", models.RoleGuest)
	other := storagetest.User(t, s, "other@example.com", models.RoleGuest)
	tok := login(t, app, "guest@example.com", "password")
	path := "/users/" + strconvID(u.ID) + "/password"

	resp, _ := do(t, app, http.MethodPut, path, tok, `{"currentPassword":"wrong","password":"newpassword","confirmPassword":"newpassword"}`)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong current password: %d", resp.StatusCode)
	}
	resp, _ = do(t, app, http.MethodPut, path, tok, `{"currentPassword":"password","password":"newpassword","confirmPassword":"different"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("mismatched confirmation: %d", resp.StatusCode)
	}
	resp, _ = do(t, app, http.MethodPut, "/users/"+strconvID(other.ID)+"/password", tok, `{"password":"newpassword","confirmPassword":"newpassword"}`)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("changing someone else's password: %d", resp.StatusCode)
	}
	resp, _ = do(t, app, http.MethodPut, path, tok, `{"currentPassword":"password","password":"newpassword","confirmPassword":"newpassword"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("change: %d", resp.StatusCode)
	}
	login(t, app, "guest@example.com", "newpassword")
}

func strconvID(id uint) string {
	b, _ := json.Marshal(id)
	return string(b)
}
