package ledger

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/hidenkeys/innkeeper/apperr"
	"github.com/hidenkeys/innkeeper/auth"
	"github.com/hidenkeys/innkeeper/models"
)

type Handler struct {
	agg           *Aggregator
	webhookSecret []byte
}

func NewHandler(agg *Aggregator, webhookSecret string) *Handler {
	return &Handler{agg: agg, webhookSecret: []byte(webhookSecret)}
}

func (h *Handler) Record(c fiber.Ctx) error {
	bookingID, err := param(c, "id")
	if err != nil {
		return err
	}
	var in RecordInput
	if err := c.Bind().JSON(&in); err != nil {
		return apperr.Validation("invalid request body")
	}
	p, err := h.agg.RecordPayment(c.UserContext(), auth.ActorFrom(c), bookingID, in)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"success": true, "data": p})
}

func (h *Handler) ListForBooking(c fiber.Ctx) error {
	bookingID, err := param(c, "id")
	if err != nil {
		return err
	}
	payments, err := h.agg.Payments(c.UserContext(), auth.ActorFrom(c), bookingID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"success": true, "count": len(payments), "data": payments})
}

func (h *Handler) Balance(c fiber.Ctx) error {
	bookingID, err := param(c, "id")
	if err != nil {
		return err
	}
	sum, err := h.agg.Balance(c.UserContext(), auth.ActorFrom(c), bookingID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"success": true, "data": sum})
}

// Webhook authenticates the raw body before anything is decoded.
func (h *Handler) Webhook(c fiber.Ctx) error {
	body := c.Body()
	if err := VerifySignature(h.webhookSecret, body, c.Get(SignatureHeader)); err != nil {
		return err
	}
	var ev WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return apperr.Validation("invalid webhook payload")
	}
	if err := h.agg.ResolveWebhook(c.UserContext(), ev); err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"success": true})
}

func (h *Handler) Verify(c fiber.Ctx) error {
	id, err := param(c, "paymentId")
	if err != nil {
		return err
	}
	p, err := h.agg.Verify(c.UserContext(), auth.ActorFrom(c), id)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"success": true, "data": p})
}

func (h *Handler) Refund(c fiber.Ctx) error {
	id, err := param(c, "id")
	if err != nil {
		return err
	}
	var in RefundInput
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&in); err != nil {
			return apperr.Validation("invalid request body")
		}
	}
	refund, err := h.agg.Refund(c.UserContext(), auth.ActorFrom(c), id, in)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"success": true, "data": refund})
}

func (h *Handler) Delete(c fiber.Ctx) error {
	id, err := param(c, "id")
	if err != nil {
		return err
	}
	if err := h.agg.DeletePayment(c.UserContext(), auth.ActorFrom(c), id); err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"success": true, "data": fiber.Map{}})
}

func (h *Handler) Totals(c fiber.Ctx) error {
	totals, err := h.agg.Totals(c.UserContext(), auth.ActorFrom(c))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"success": true, "data": totals})
}

var methods = []fiber.Map{
	{"id": models.MethodCash, "name": "Cash"},
	{"id": models.MethodCard, "name": "Credit Card"},
	{"id": models.MethodDebitCard, "name": "Debit Card"},
	{"id": models.MethodBankTransfer, "name": "Bank Transfer"},
	{"id": models.MethodMobileMoney, "name": "Mobile Money"},
	{"id": models.MethodOther, "name": "Other"},
}

func (h *Handler) Methods(c fiber.Ctx) error {
	return c.Status(http.StatusOK).JSON(fiber.Map{"success": true, "data": methods})
}

func param(c fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validation("invalid %s", name)
	}
	return uint(id), nil
}
