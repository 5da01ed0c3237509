package server

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"

	"github.com/NextMind-AI/followup-go/engine"
)

// runCycleHandler handles POST /followup/cycle[?tenant=]
func (s *Server) runCycleHandler(c fiber.Ctx) error {
	tenantID := c.Query("tenant")
	log.Info().Str("tenant_id", tenantID).Msg("Received cycle request")

	result, err := s.engine.RunCycle(c.Context(), tenantID)
	if err != nil {
		return s.engineError(c, "CYCLE_FAILED", err)
	}

	return c.JSON(result)
}

// auditStructuralHandler handles POST /followup/audit/structural/:tenantId
func (s *Server) auditStructuralHandler(c fiber.Ctx) error {
	tenantID := c.Params("tenantId")
	log.Info().Str("tenant_id", tenantID).Msg("Received structural audit request")

	result, err := s.engine.AuditStructural(c.Context(), tenantID)
	if err != nil {
		return s.engineError(c, "AUDIT_FAILED", err)
	}

	return c.JSON(result)
}

// auditSemanticHandler handles POST /followup/audit/semantic/:tenantId
func (s *Server) auditSemanticHandler(c fiber.Ctx) error {
	tenantID := c.Params("tenantId")
	log.Info().Str("tenant_id", tenantID).Msg("Received semantic audit request")

	result, err := s.engine.AuditSemantic(c.Context(), tenantID)
	if err != nil {
		return s.engineError(c, "AUDIT_FAILED", err)
	}

	return c.JSON(result)
}

// hardResetHandler handles POST /followup/reset/:tenantId
func (s *Server) hardResetHandler(c fiber.Ctx) error {
	tenantID := c.Params("tenantId")
	log.Info().Str("tenant_id", tenantID).Msg("Received hard reset request")

	result, err := s.engine.HardReset(c.Context(), tenantID)
	if err != nil {
		return s.engineError(c, "RESET_FAILED", err)
	}

	return c.JSON(result)
}

// toggleContactHandler handles POST /followup/contacts/toggle
func (s *Server) toggleContactHandler(c fiber.Ctx) error {
	var req ToggleContactRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: ErrorDetail{
				Code:    "INVALID_BODY",
				Message: "Invalid request body: " + err.Error(),
			},
		})
	}

	if req.PhoneNumber == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: ErrorDetail{
				Code:    "INVALID_PARAMETER",
				Message: "phone_number is required",
			},
		})
	}

	log.Info().
		Str("phone_number", req.PhoneNumber).
		Bool("is_active", req.IsActive).
		Msg("Received contact toggle request")

	state, err := s.engine.Toggle(c.Context(), req.PhoneNumber, req.IsActive, req.SessionID)
	if err != nil {
		if errors.Is(err, engine.ErrInvalidPhone) {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Error: ErrorDetail{
					Code:    "INVALID_PHONE",
					Message: err.Error(),
				},
			})
		}
		return s.engineError(c, "TOGGLE_FAILED", err)
	}

	return c.JSON(state)
}

// contactStatusHandler handles GET /followup/contacts/status?phone=&session_id=
func (s *Server) contactStatusHandler(c fiber.Ctx) error {
	phone := c.Query("phone")
	if phone == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: ErrorDetail{
				Code:    "INVALID_PARAMETER",
				Message: "phone query parameter is required",
			},
		})
	}

	state, err := s.engine.ContactStatus(c.Context(), phone, c.Query("session_id"))
	if err != nil {
		if errors.Is(err, engine.ErrInvalidPhone) {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Error: ErrorDetail{
					Code:    "INVALID_PHONE",
					Message: err.Error(),
				},
			})
		}
		return s.engineError(c, "STATUS_FAILED", err)
	}

	return c.JSON(state)
}

// activeEntriesHandler handles GET /followup/active[?tenant=]
func (s *Server) activeEntriesHandler(c fiber.Ctx) error {
	views, err := s.engine.GetActive(c.Context(), c.Query("tenant"))
	if err != nil {
		return s.engineError(c, "LISTING_FAILED", err)
	}

	return c.JSON(views)
}

// healthHandler handles GET /health
func (s *Server) healthHandler(c fiber.Ctx) error {
	response := HealthResponse{Status: "ok", Redis: "ok"}

	if err := s.redisClient.Ping(c.Context()); err != nil {
		response.Status = "degraded"
		response.Redis = err.Error()
	}

	connectivity := s.gateway.CheckConnectivity(c.Context())
	response.GatewayOnline = connectivity.Online
	response.GatewayError = connectivity.Error
	if !connectivity.Online {
		response.Status = "degraded"
	}

	if response.Status != "ok" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(response)
	}
	return c.JSON(response)
}

// engineError maps a failed engine invocation to the JSON error
// envelope. Only setup failures reach here; per-item problems ride
// inside the operation results.
func (s *Server) engineError(c fiber.Ctx, code string, err error) error {
	log.Error().Err(err).Str("code", code).Msg("Engine operation failed")
	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: err.Error(),
		},
	})
}
