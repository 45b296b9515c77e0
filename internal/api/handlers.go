package api

import (
	"time"

	"github.com/gmsas95/caretrack/internal/metrics"
	"github.com/gmsas95/caretrack/internal/session"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"version":   "0.1.0",
		"timestamp": time.Now().Unix(),
	})
}

func (s *Server) handleMetrics(c *fiber.Ctx) error {
	c.Set("Content-Type", "text/plain; charset=utf-8")
	return c.SendString(metrics.Prometheus())
}

func (s *Server) handleMetricsJSON(c *fiber.Ctx) error {
	return c.JSON(metrics.Default().Snapshot())
}

func (s *Server) handleLogin(c *fiber.Ctx) error {
	var req struct {
		Password string `json:"password"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}

	if s.config.Security.Password != "" && req.Password != s.config.Security.Password {
		return c.Status(401).JSON(fiber.Map{"error": "invalid password"})
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "default",
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(7 * 24 * time.Hour).Unix(),
	})

	tokenString, err := token.SignedString([]byte(s.config.Security.JWTSecret))
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to generate token"})
	}

	return c.JSON(fiber.Map{"token": tokenString})
}

// ==================== Appointments ====================

func (s *Server) handleListAppointments(c *fiber.Ctx) error {
	return c.JSON(s.session.Appointments())
}

func (s *Server) handleCreateAppointment(c *fiber.Ctx) error {
	var req session.AppointmentInput
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}

	appt, err := s.session.CreateAppointment(c.Context(), req)
	if err != nil {
		return renderError(c, err)
	}

	return c.Status(201).JSON(appt)
}

func (s *Server) handleUpdateAppointment(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return renderError(c, err)
	}

	var req session.AppointmentInput
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}

	appt, err := s.session.UpdateAppointment(c.Context(), id, req)
	if err != nil {
		return renderError(c, err)
	}

	return c.JSON(appt)
}

func (s *Server) handleDeleteAppointment(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return renderError(c, err)
	}

	if err := s.session.DeleteAppointment(c.Context(), id); err != nil {
		s.logger.Error("Failed to delete appointment", zap.Error(err))
		return renderError(c, err)
	}

	return c.SendStatus(204)
}

// ==================== Medications ====================

func (s *Server) handleListMedications(c *fiber.Ctx) error {
	return c.JSON(s.session.Medications())
}

func (s *Server) handleCreateMedication(c *fiber.Ctx) error {
	var req session.MedicationInput
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}

	med, err := s.session.CreateMedication(c.Context(), req)
	if err != nil {
		return renderError(c, err)
	}

	return c.Status(201).JSON(med)
}

func (s *Server) handleUpdateMedication(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return renderError(c, err)
	}

	var req session.MedicationInput
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}

	med, err := s.session.UpdateMedication(c.Context(), id, req)
	if err != nil {
		return renderError(c, err)
	}

	return c.JSON(med)
}

func (s *Server) handleDeleteMedication(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return renderError(c, err)
	}

	if err := s.session.DeleteMedication(c.Context(), id); err != nil {
		s.logger.Error("Failed to delete medication", zap.Error(err))
		return renderError(c, err)
	}

	return c.SendStatus(204)
}

func (s *Server) handleMarkTaken(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return renderError(c, err)
	}

	med, err := s.session.MarkTaken(c.Context(), id)
	if err != nil {
		return renderError(c, err)
	}

	return c.JSON(med)
}

// ==================== Read side ====================

func (s *Server) handleDashboard(c *fiber.Ctx) error {
	return c.JSON(s.session.Dashboard())
}

func (s *Server) handleCalendar(c *fiber.Ctx) error {
	now := time.Now()
	year := c.QueryInt("year", now.Year())
	month := c.QueryInt("month", int(now.Month()))

	if month < 1 || month > 12 {
		return c.Status(400).JSON(fiber.Map{"error": "month must be 1-12"})
	}

	return c.JSON(fiber.Map{
		"year":   year,
		"month":  month,
		"events": s.session.MonthEvents(year, time.Month(month)),
	})
}
