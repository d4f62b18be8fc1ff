// Package guest keeps the front desk's guest register.
package guest

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/hidenkeys/innkeeper/apperr"
	"github.com/hidenkeys/innkeeper/auth"
	"github.com/hidenkeys/innkeeper/models"
)

type Store interface {
	CreateGuest(ctx context.Context, g *models.Guest) error
	GetGuest(ctx context.Context, id uint) (*models.Guest, error)
	UpdateGuest(ctx context.Context, id uint, fields map[string]any) error
	SearchGuests(ctx context.Context, query string) ([]models.Guest, error)
	BookingsForGuest(ctx context.Context, guestID uint) ([]models.Booking, error)
}

type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

type guestRequest struct {
	FirstName        string `json:"firstName" validate:"required,max=50"`
	LastName         string `json:"lastName" validate:"required,max=50"`
	Email            string `json:"email" validate:"omitempty,email"`
	Phone            string `json:"phone" validate:"required,max=20"`
	Address          string `json:"address" validate:"max=200"`
	EmergencyContact string `json:"emergencyContact" validate:"max=100"`
}

func (h *Handler) Create(c fiber.Ctx) error {
	req := new(guestRequest)
	if err := c.Bind().JSON(req); err != nil {
		return apperr.Validation("invalid request body")
	}
	if err := apperr.Validate(req); err != nil {
		return err
	}

	g := &models.Guest{
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		Email:            req.Email,
		Phone:            req.Phone,
		Address:          req.Address,
		EmergencyContact: req.EmergencyContact,
	}
	// a guest registering themselves is linked to their account
	if actor := auth.ActorFrom(c); actor.Role == models.RoleGuest {
		g.UserID = &actor.UserID
	}
	if err := h.store.CreateGuest(c.UserContext(), g); err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"success": true, "data": g})
}

func (h *Handler) Update(c fiber.Ctx) error {
	id, err := guestID(c)
	if err != nil {
		return err
	}
	req := new(guestRequest)
	if err := c.Bind().JSON(req); err != nil {
		return apperr.Validation("invalid request body")
	}
	if err := apperr.Validate(req); err != nil {
		return err
	}

	err = h.store.UpdateGuest(c.UserContext(), id, map[string]any{
		"first_name":        req.FirstName,
		"last_name":         req.LastName,
		"email":             req.Email,
		"phone":             req.Phone,
		"address":           req.Address,
		"emergency_contact": req.EmergencyContact,
	})
	if err != nil {
		return err
	}
	g, err := h.store.GetGuest(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"success": true, "data": g})
}

// Search matches ?q= against name, email and phone.
func (h *Handler) Search(c fiber.Ctx) error {
	guests, err := h.store.SearchGuests(c.UserContext(), c.Query("q"))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"success": true, "count": len(guests), "data": guests})
}

func (h *Handler) GetByID(c fiber.Ctx) error {
	id, err := guestID(c)
	if err != nil {
		return err
	}
	g, err := h.store.GetGuest(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"success": true, "data": g})
}

func (h *Handler) Bookings(c fiber.Ctx) error {
	id, err := guestID(c)
	if err != nil {
		return err
	}
	if _, err := h.store.GetGuest(c.UserContext(), id); err != nil {
		return err
	}
	bookings, err := h.store.BookingsForGuest(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"success": true, "count": len(bookings), "data": bookings})
}

func guestID(c fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validation("invalid guest id")
	}
	return uint(id), nil
}
