package housekeeping

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
	t, err := h.svc.Create(c.UserContext(), auth.ActorFrom(c), in)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"success": true, "data": t})
}

// List filters by ?room= and ?status=.
func (h *Handler) List(c fiber.Ctx) error {
	var roomID uint
	if q := c.Query("room"); q != "" {
		id, err := strconv.ParseUint(q, 10, 64)
		if err != nil {
			return apperr.Validation("invalid room")
		}
		roomID = uint(id)
	}
	tasks, err := h.svc.List(c.UserContext(), roomID, c.Query("status"))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"success": true, "count": len(tasks), "data": tasks})
}

func (h *Handler) Stats(c fiber.Ctx) error {
	stats, err := h.svc.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"success": true, "data": stats})
}

func (h *Handler) GetByID(c fiber.Ctx) error {
	id, err := taskID(c)
	if err != nil {
		return err
	}
	t, err := h.svc.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"success": true, "data": t})
}

type assignRequest struct {
	UserID uint `json:"assignedTo" validate:"required"`
}

func (h *Handler) Assign(c fiber.Ctx) error {
	id, err := taskID(c)
	if err != nil {
		return err
	}
	req := new(assignRequest)
	if err := c.Bind().JSON(req); err != nil {
		return apperr.Validation("invalid request body")
	}
	if err := apperr.Validate(req); err != nil {
		return err
	}
	t, err := h.svc.Assign(c.UserContext(), auth.ActorFrom(c), id, req.UserID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"success": true, "data": t})
}

type statusRequest struct {
	Status models.TaskStatus `json:"status" validate:"required"`
}

func (h *Handler) UpdateStatus(c fiber.Ctx) error {
	id, err := taskID(c)
	if err != nil {
		return err
	}
	req := new(statusRequest)
	if err := c.Bind().JSON(req); err != nil {
		return apperr.Validation("invalid request body")
	}
	if err := apperr.Validate(req); err != nil {
		return err
	}
	t, err := h.svc.Transition(c.UserContext(), auth.ActorFrom(c), id, req.Status)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"success": true, "data": t})
}

func (h *Handler) Complete(c fiber.Ctx) error {
	id, err := taskID(c)
	if err != nil {
		return err
	}
	t, err := h.svc.Transition(c.UserContext(), auth.ActorFrom(c), id, models.TaskCompleted)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"success": true, "data": t})
}

func taskID(c fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validation("invalid task id")
	}
	return uint(id), nil
}
