package room

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/hidenkeys/innkeeper/apperr"
	"github.com/hidenkeys/innkeeper/auth"
	"github.com/hidenkeys/innkeeper/models"
)

type Handler struct {
	store Store
	sync  *Synchronizer
}

func NewHandler(store Store, sync *Synchronizer) *Handler {
	return &Handler{store: store, sync: sync}
}

type createRoomRequest struct {
	Number      string  `json:"roomNumber" validate:"required,max=10"`
	Category    string  `json:"roomType" validate:"required"`
	Description string  `json:"description" validate:"max=500"`
	Price       float64 `json:"price" validate:"gte=0"`
	Capacity    int     `json:"capacity" validate:"gte=1"`
	Floor       int     `json:"floor"`
}

func (h *Handler) Create(c fiber.Ctx) error {
	req := new(createRoomRequest)
	if err := c.Bind().JSON(req); err != nil {
		return apperr.Validation("invalid request body")
	}
	if err := apperr.Validate(req); err != nil {
		return err
	}

	r := &models.Room{
		Number:      req.Number,
		Category:    req.Category,
		Description: req.Description,
		Price:       req.Price,
		Capacity:    req.Capacity,
		Floor:       req.Floor,
		Status:      models.RoomAvailable,
	}
	if err := h.store.CreateRoom(c.UserContext(), r); err != nil {
		if errors.Is(err, apperr.ErrDuplicate) {
			return apperr.Conflict("room number %s already exists", req.Number)
		}
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"success": true, "data": r})
}

// Search filters by ?category= and ?status=.
func (h *Handler) Search(c fiber.Ctx) error {
	status := c.Query("status")
	if status != "" && !models.RoomStatus(status).Valid() {
		return apperr.Validation("unknown room status %q", status)
	}
	rooms, err := h.store.ListRooms(c.UserContext(), c.Query("category"), status)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"success": true, "count": len(rooms), "data": rooms})
}

func (h *Handler) GetByID(c fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	r, err := h.store.GetRoom(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"success": true, "data": r})
}

func (h *Handler) Categories(c fiber.Ctx) error {
	categories, err := h.store.RoomCategories(c.UserContext())
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"success": true, "data": categories})
}

func (h *Handler) BookedDates(c fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	dates, err := BookedDates(c.UserContext(), h.store, id)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"success": true, "data": dates})
}

type overrideRequest struct {
	Status *models.RoomStatus `json:"status"`
	Note   string             `json:"note" validate:"max=500"`
}

func (h *Handler) Override(c fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	req := new(overrideRequest)
	if err := c.Bind().JSON(req); err != nil {
		return apperr.Validation("invalid request body")
	}
	if err := apperr.Validate(req); err != nil {
		return err
	}
	r, err := h.sync.SetOverride(c.UserContext(), auth.ActorFrom(c), id, req.Status, req.Note)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"success": true, "data": r})
}

// BookedDates lists every night held by an active booking of the room, as
// YYYY-MM-DD, ascending.
func BookedDates(ctx context.Context, store Store, roomID uint) ([]string, error) {
	if _, err := store.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	bookings, err := store.BookingsForRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	dates := []string{}
	seen := map[string]bool{}
	for _, b := range bookings {
		if !b.Status.Active() || b.Status == models.BookingCheckedOut || b.Status == models.BookingNoShow {
			continue
		}
		for d := models.Day(b.CheckIn); d.Before(b.CheckOut); d = d.Add(24 * time.Hour) {
			s := d.Format(time.DateOnly)
			if !seen[s] {
				seen[s] = true
				dates = append(dates, s)
			}
		}
	}
	return dates, nil
}

func paramID(c fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validation("invalid %s", name)
	}
	return uint(id), nil
}
