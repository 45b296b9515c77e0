package api

import (
	"strconv"

	"github.com/gmsas95/caretrack/internal/appointments"
	apperrors "github.com/gmsas95/caretrack/internal/errors"
	"github.com/gofiber/fiber/v2"
)

// renderError maps the error taxonomy onto HTTP statuses. A slot
// conflict is 409 and carries the suggested alternative so the client
// can offer it directly.
func renderError(c *fiber.Ctx, err error) error {
	if conflict, ok := apperrors.AsSlotConflict(err); ok {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":     conflict.Message,
			"suggested": appointments.NewSlot(conflict.Suggested),
		})
	}

	status := fiber.StatusInternalServerError
	switch apperrors.GetCode(err) {
	case "GEN_001":
		status = fiber.StatusNotFound
	case "GEN_002", "APPT_002", "MED_001", "MED_002":
		status = fiber.StatusBadRequest
	case "STORE_001":
		status = fiber.StatusServiceUnavailable
	}

	return c.Status(status).JSON(fiber.Map{"error": errMessage(err)})
}

func errMessage(err error) string {
	if e, ok := err.(*apperrors.AppError); ok {
		return e.Message
	}
	return err.Error()
}

func parseID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return 0, apperrors.New("GEN_002", "invalid id")
	}
	return id, nil
}
