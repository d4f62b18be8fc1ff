package apperr

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
)

// Handler returns a fiber ErrorHandler rendering errors as
// {"success": false, "error": "..."}.
func Handler(log *logrus.Logger) fiber.ErrorHandler {
	return func(c fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{"success": false, "error": fe.Message})
		}

		status := Status(err)
		if status >= fiber.StatusInternalServerError {
			log.WithFields(logrus.Fields{
				"method": c.Method(),
				"path":   c.Path(),
				"kind":   KindOf(err).String(),
			}).WithError(err).Error("request failed")
		}
		return c.Status(status).JSON(fiber.Map{"success": false, "error": Message(err)})
	}
}
