package main

import (
	"github.com/gofiber/fiber/v3"
	"github.com/hidenkeys/innkeeper/auth"
	"github.com/hidenkeys/innkeeper/booking"
	"github.com/hidenkeys/innkeeper/guest"
	"github.com/hidenkeys/innkeeper/housekeeping"
	"github.com/hidenkeys/innkeeper/ledger"
	"github.com/hidenkeys/innkeeper/models"
	"github.com/hidenkeys/innkeeper/report"
	"github.com/hidenkeys/innkeeper/room"
	"github.com/hidenkeys/innkeeper/user"
)

type handlers struct {
	users    *user.Handler
	bookings *booking.Handler
	payments *ledger.Handler
	rooms    *room.Handler
	tasks    *housekeeping.Handler
	guests   *guest.Handler
	reports  *report.Handler
}

var (
	adminOnly = auth.RequireRoles(models.RoleAdmin)
	staffOnly = auth.RequireRoles(models.RoleAdmin, models.RoleReceptionist)
	crewOnly  = auth.RequireRoles(models.RoleAdmin, models.RoleReceptionist, models.RoleHousekeeper)
)

func registerRoutes(api fiber.Router, v *auth.Verifier, h handlers) {
	// public
	api.Post("/auth/login", h.users.Login)
	api.Post("/auth/logout", h.users.Logout)
	api.Post("/auth/register", h.users.Register)
	api.Post("/payments/webhook", h.payments.Webhook)

	requireAuth := v.Middleware()
	userRoutes(api.Group("/users", requireAuth), h.users)
	bookingRoutes(api.Group("/bookings", requireAuth), h.bookings, h.payments)
	paymentRoutes(api.Group("/payments", requireAuth), h.payments)
	roomRoutes(api.Group("/rooms", requireAuth), h.rooms)
	housekeepingRoutes(api.Group("/housekeeping", requireAuth, crewOnly), h.tasks)
	guestRoutes(api.Group("/guests", requireAuth), h.guests)
	api.Get("/reports/bookings.xlsx", h.reports.Bookings, requireAuth, staffOnly)
}

func userRoutes(r fiber.Router, h *user.Handler) {
	r.Get("/me", h.Me)
	r.Get("", h.Search, adminOnly) // optional ?role= &q=
	r.Post("", h.Create, adminOnly)
	r.Get("/:id", h.GetByID)
	r.Put("/:id/password", h.ChangePassword)
}

func bookingRoutes(r fiber.Router, h *booking.Handler, p *ledger.Handler) {
	r.Post("", h.Create)
	r.Get("/range", h.Range)
	r.Get("/stats", h.Stats, staffOnly)
	r.Get("/room/:id", h.ListByRoom, staffOnly)
	r.Get("/:id", h.GetByID)
	r.Put("/:id", h.Update)
	r.Put("/:id/checkin", h.CheckIn, staffOnly)
	r.Put("/:id/checkout", h.CheckOut, staffOnly)
	r.Put("/:id/noshow", h.NoShow, staffOnly)
	r.Put("/:id/cancel", h.Cancel)
	r.Put("/:id/total", h.OverrideTotal, adminOnly)
	r.Delete("/:id", h.Delete, adminOnly)

	r.Post("/:id/payments", p.Record)
	r.Get("/:id/payments", p.ListForBooking)
	r.Get("/:id/balance", p.Balance)
}

func paymentRoutes(r fiber.Router, h *ledger.Handler) {
	r.Get("/methods", h.Methods)
	r.Get("/totals", h.Totals, staffOnly)
	r.Get("/verify/:paymentId", h.Verify)
	r.Post("/:id/refund", h.Refund, staffOnly)
	r.Delete("/:id", h.Delete, adminOnly)
}

func roomRoutes(r fiber.Router, h *room.Handler) {
	r.Get("", h.Search)
	r.Get("/categories", h.Categories)
	r.Post("", h.Create, adminOnly)
	r.Get("/:id", h.GetByID)
	r.Get("/:id/bookedDates", h.BookedDates)
	r.Put("/:id/override", h.Override, adminOnly)
}

func housekeepingRoutes(r fiber.Router, h *housekeeping.Handler) {
	r.Get("", h.List)
	r.Post("", h.Create, staffOnly)
	r.Get("/stats", h.Stats)
	r.Get("/:id", h.GetByID)
	r.Put("/:id/assign", h.Assign, staffOnly)
	r.Put("/:id/status", h.UpdateStatus)
	r.Put("/:id/complete", h.Complete)
}

func guestRoutes(r fiber.Router, h *guest.Handler) {
	r.Post("", h.Create)
	r.Get("", h.Search, staffOnly)
	r.Get("/:id", h.GetByID, staffOnly)
	r.Put("/:id", h.Update, staffOnly)
	r.Get("/:id/bookings", h.Bookings, staffOnly)
}
