package booking

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/hidenkeys/innkeeper/apperr"
	"github.com/hidenkeys/innkeeper/auth"
	"github.com/hidenkeys/innkeeper/models"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Create(c fiber.Ctx) error {
	var in CreateInput
	if err := c.Bind().JSON(&in); err != nil {
		return apperr.Validation("invalid request body")
	}
	b, err := h.svc.Create(c.UserContext(), auth.ActorFrom(c), in)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"success": true, "data": b})
}

func (h *Handler) GetByID(c fiber.Ctx) error {
	id, err := bookingID(c)
	if err != nil {
		return err
	}
	b, err := h.svc.Get(c.UserContext(), auth.ActorFrom(c), id)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"success": true, "data": b})
}

// Range lists bookings touching ?startDate=&endDate=.
func (h *Handler) Range(c fiber.Ctx) error {
	startQ, endQ := c.Query("startDate"), c.Query("endDate")
	if startQ == "" || endQ == "" {
		return apperr.Validation("please provide both start and end dates")
	}
	start, err := ParseDate(startQ)
	if err != nil {
		return err
	}
	end, err := ParseDate(endQ)
	if err != nil {
		return err
	}
	bookings, err := h.svc.ListRange(c.UserContext(), auth.ActorFrom(c), start, end)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"success": true, "count": len(bookings), "data": bookings})
}

func (h *Handler) ListByRoom(c fiber.Ctx) error {
	roomID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || roomID == 0 {
		return apperr.Validation("invalid room id")
	}
	bookings, err := h.svc.ListByRoom(c.UserContext(), auth.ActorFrom(c), uint(roomID))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"success": true, "count": len(bookings), "data": bookings})
}

func (h *Handler) Stats(c fiber.Ctx) error {
	stats, err := h.svc.Stats(c.UserContext(), auth.ActorFrom(c))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"success": true, "data": stats})
}

func (h *Handler) Update(c fiber.Ctx) error {
	id, err := bookingID(c)
	if err != nil {
		return err
	}
	var in UpdateInput
	if err := c.Bind().JSON(&in); err != nil {
		return apperr.Validation("invalid request body")
	}
	b, err := h.svc.Update(c.UserContext(), auth.ActorFrom(c), id, in)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"success": true, "data": b})
}

func (h *Handler) CheckIn(c fiber.Ctx) error {
	return h.transition(c, models.BookingCheckedIn)
}

func (h *Handler) CheckOut(c fiber.Ctx) error {
	return h.transition(c, models.BookingCheckedOut)
}

func (h *Handler) NoShow(c fiber.Ctx) error {
	return h.transition(c, models.BookingNoShow)
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

func (h *Handler) Cancel(c fiber.Ctx) error {
	id, err := bookingID(c)
	if err != nil {
		return err
	}
	req := new(cancelRequest)
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(req); err != nil {
			return apperr.Validation("invalid request body")
		}
		if err := apperr.Validate(req); err != nil {
			return err
		}
	}
	b, err := h.svc.Cancel(c.UserContext(), auth.ActorFrom(c), id, req.Reason)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"success": true, "data": b})
}

func (h *Handler) transition(c fiber.Ctx, to models.BookingStatus) error {
	id, err := bookingID(c)
	if err != nil {
		return err
	}
	b, err := h.svc.Transition(c.UserContext(), auth.ActorFrom(c), id, to, "")
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"success": true, "data": b})
}

type totalRequest struct {
	TotalAmount *float64 `json:"totalAmount" validate:"required"`
	Reason      string   `json:"reason" validate:"max=500"`
}

func (h *Handler) OverrideTotal(c fiber.Ctx) error {
	id, err := bookingID(c)
	if err != nil {
		return err
	}
	req := new(totalRequest)
	if err := c.Bind().JSON(req); err != nil {
		return apperr.Validation("invalid request body")
	}
	if err := apperr.Validate(req); err != nil {
		return err
	}
	b, err := h.svc.OverrideTotal(c.UserContext(), auth.ActorFrom(c), id, *req.TotalAmount, req.Reason)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"success": true, "data": b})
}

func (h *Handler) Delete(c fiber.Ctx) error {
	id, err := bookingID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.UserContext(), auth.ActorFrom(c), id); err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"success": true, "data": fiber.Map{}})
}

func bookingID(c fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validation("invalid booking id")
	}
	return uint(id), nil
}
