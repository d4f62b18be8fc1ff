package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/hidenkeys/innkeeper/auth"
	"github.com/hidenkeys/innkeeper/config"
	"github.com/hidenkeys/innkeeper/gateway"
	"github.com/hidenkeys/innkeeper/ledger"
	"github.com/hidenkeys/innkeeper/lock"
	"github.com/hidenkeys/innkeeper/models"
	"github.com/hidenkeys/innkeeper/notify"
	"github.com/hidenkeys/innkeeper/obs"
	"github.com/hidenkeys/innkeeper/storage"
	"github.com/hidenkeys/innkeeper/storage/storagetest"
	"github.com/hidenkeys/innkeeper/user"
)

const webhookSecret = "whsec"

type client struct {
	t   *testing.T
	app *fiber.App
}

type envelope struct {
	Success bool            `json:"success"`
	Count   int             `json:"count"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

func (c client) call(method, path, token string, body any, header ...string) (int, envelope) {
	c.t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		r = bytes.NewReader(b)
	default:
		raw, _ := json.Marshal(b)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := c.app.Test(req)
	if err != nil {
		c.t.Fatal(err)
	}
	defer resp.Body.Close()
	var out envelope
	json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func (c client) login(email, password string) string {
	c.t.Helper()
	code, out := c.call(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": email, "password": password})
	if code != http.StatusOK {
		c.t.Fatalf("login %s: %d %s", email, code, out.Error)
	}
	var data struct {
		Token string `json:"token"`
	}
	json.Unmarshal(out.Data, &data)
	return data.Token
}

func newTestApp(t *testing.T) (client, *storage.Store) {
	t.Helper()
	cfg := config.App{
		Name:             "innkeeper-test",
		CORSOrigins:      "http://localhost:5173",
		JWTSecret:        "test-secret",
		TokenTTL:         time.Hour,
		WebhookSecret:    webhookSecret,
		Currency:         "USD",
		GatewayTimeout:   time.Second,
		OverpayTolerance: 0.01,
		LockTTL:          time.Second,
		LockWait:         time.Second,
		CancelCutoff:     24 * time.Hour,
		NoShowWindow:     24 * time.Hour,
	}
	store := storagetest.New(t)
	v, err := auth.NewVerifier(auth.Config{Secret: cfg.JWTSecret})
	if err != nil {
		t.Fatal(err)
	}
	log := obs.Discard()
	if err := user.SeedAdmin(context.Background(), store, "admin@hotel.test", "supersecret", log); err != nil {
		t.Fatal(err)
	}
	app := newApp(cfg, deps{
		store:    store,
		locker:   lock.NewLocal(cfg.LockWait),
		gateway:  gateway.Offline{},
		notifier: notify.Log{Logger: log},
		verifier: v,
	}, log)
	return client{t: t, app: app}, store
}

func date(days int) string {
	return models.Day(time.Now()).AddDate(0, 0, days).Format(time.DateOnly)
}

func TestFrontDeskFlow(t *testing.T) {
	c, _ := newTestApp(t)
	admin := c.login("admin@hotel.test", "supersecret")

	code, out := c.call(http.MethodPost, "/api/v1/rooms", admin, map[string]any{
		"roomNumber": "101", "roomType": "standard", "price": 100, "capacity": 2,
	})
	if code != http.StatusCreated {
		t.Fatalf("create room: %d %s", code, out.Error)
	}
	var room models.Room
	json.Unmarshal(out.Data, &room)

	code, out = c.call(http.MethodPost, "/api/v1/auth/register", "", map[string]any{
		"email": "ada@example.com", "password": "longenough", "firstName": "Ada",
	})
	if code != http.StatusCreated {
		t.Fatalf("register: %d %s", code, out.Error)
	}
	guest := c.login("ada@example.com", "longenough")

	code, out = c.call(http.MethodPost, "/api/v1/bookings", guest, map[string]any{
		"room": room.ID, "checkInDate": date(3), "checkOutDate": date(6),
	})
	if code != http.StatusCreated {
		t.Fatalf("book: %d %s", code, out.Error)
	}
	var b models.Booking
	json.Unmarshal(out.Data, &b)
	if b.TotalAmount != 300 {
		t.Fatalf("total %.2f", b.TotalAmount)
	}

	code, _ = c.call(http.MethodPost, "/api/v1/bookings", guest, map[string]any{
		"room": room.ID, "checkInDate": date(5), "checkOutDate": date(8),
	})
	if code != http.StatusBadRequest {
		t.Fatalf("overlapping booking: %d", code)
	}

	code, out = c.call(http.MethodGet, "/api/v1/rooms/"+id(room.ID)+"/bookedDates", guest, nil)
	var nights []string
	json.Unmarshal(out.Data, &nights)
	if code != http.StatusOK || len(nights) != 3 || nights[0] != date(3) {
		t.Fatalf("booked dates: %d %v", code, nights)
	}

	// card payment stays pending until the provider calls back
	bookingPath := "/api/v1/bookings/" + id(b.ID)
	code, out = c.call(http.MethodPost, bookingPath+"/payments", guest, map[string]any{
		"paymentMethod": "credit-card", "token": "tokn_test",
	})
	if code != http.StatusCreated {
		t.Fatalf("pay: %d %s", code, out.Error)
	}
	var p models.Payment
	json.Unmarshal(out.Data, &p)
	if p.Status != models.PaymentStatusPending || p.Amount != 300 {
		t.Fatalf("unexpected payment %+v", p)
	}

	hook, _ := json.Marshal(ledger.WebhookEvent{Event: ledger.EventCompleted, Data: ledger.WebhookData{Reference: p.Reference}})
	code, _ = c.call(http.MethodPost, "/api/v1/payments/webhook", "", hook, ledger.SignatureHeader, "00ff")
	if code != http.StatusBadRequest {
		t.Fatalf("forged webhook: %d", code)
	}
	for i := 0; i < 2; i++ {
		code, out = c.call(http.MethodPost, "/api/v1/payments/webhook", "", hook,
			ledger.SignatureHeader, ledger.Sign([]byte(webhookSecret), hook))
		if code != http.StatusOK {
			t.Fatalf("webhook delivery %d: %d %s", i, code, out.Error)
		}
	}

	_, out = c.call(http.MethodGet, bookingPath+"/balance", guest, nil)
	var sum ledger.Summary
	json.Unmarshal(out.Data, &sum)
	if sum.Paid != 300 || sum.Status != models.PaymentPaid || sum.Outstanding != 0 {
		t.Fatalf("unexpected balance %+v", sum)
	}

	if code, _ := c.call(http.MethodPut, bookingPath+"/checkin", guest, nil); code != http.StatusUnauthorized {
		t.Fatalf("guest check-in: %d", code)
	}
	if code, out := c.call(http.MethodPut, bookingPath+"/checkin", admin, nil); code != http.StatusOK {
		t.Fatalf("check-in: %d %s", code, out.Error)
	}
	if code, out := c.call(http.MethodPut, bookingPath+"/checkout", admin, nil); code != http.StatusOK {
		t.Fatalf("checkout: %d %s", code, out.Error)
	}

	_, out = c.call(http.MethodGet, "/api/v1/rooms/"+id(room.ID), admin, nil)
	json.Unmarshal(out.Data, &room)
	if room.Status != models.RoomCleaning {
		t.Fatalf("room after checkout: %s", room.Status)
	}
	code, out = c.call(http.MethodGet, "/api/v1/housekeeping?room="+id(room.ID), admin, nil)
	if code != http.StatusOK || out.Count != 1 {
		t.Fatalf("housekeeping tasks: %d count=%d", code, out.Count)
	}
}

func TestRouteProtection(t *testing.T) {
	c, store := newTestApp(t)
	storagetest.User(t, store, "guest@example.com", models.RoleGuest)
	guest := c.login("guest@example.com", "password")
	admin := c.login("admin@hotel.test", "supersecret")

	tests := []struct {
		method, path, token string
		want                int
	}{
		{http.MethodGet, "/api/v1/rooms", "", http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/rooms", guest, http.StatusOK},
		{http.MethodGet, "/api/v1/payments/methods", guest, http.StatusOK},
		{http.MethodGet, "/api/v1/bookings/stats", guest, http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/housekeeping", guest, http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/guests", guest, http.StatusUnauthorized},
		{http.MethodPost, "/api/v1/rooms", guest, http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/reports/bookings.xlsx?startDate=2025-01-01&endDate=2025-01-31", guest, http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/users/me", guest, http.StatusOK},
		{http.MethodGet, "/api/v1/users", guest, http.StatusUnauthorized},
		{http.MethodDelete, "/api/v1/bookings/1", guest, http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/users", admin, http.StatusOK},
		{http.MethodGet, "/api/v1/bookings/stats", admin, http.StatusOK},
		{http.MethodGet, "/api/v1/reports/bookings.xlsx?startDate=2025-01-01&endDate=2025-01-31", admin, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			code, out := c.call(tt.method, tt.path, tt.token, nil)
			if code != tt.want {
				t.Fatalf("got %d (%s), want %d", code, out.Error, tt.want)
			}
		})
	}
}

func id(n uint) string {
	return fmt.Sprint(n)
}
