package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/digilearn/moodle-sync-api/internal/service"
	"github.com/digilearn/moodle-sync-api/internal/utils"
	"github.com/digilearn/moodle-sync-api/pkg/moodle"
)

// DebugHandler exposes connectivity diagnostics against the Moodle endpoint.
type DebugHandler struct {
	connection service.ConnectionService
	logger     zerolog.Logger
}

// NewDebugHandler constructs the handler.
func NewDebugHandler(connection service.ConnectionService, logger zerolog.Logger) *DebugHandler {
	return &DebugHandler{
		connection: connection,
		logger:     logger.With().Str("component", "debug_handler").Logger(),
	}
}

// Register attaches debug endpoints to the router group.
func (h *DebugHandler) Register(router fiber.Router) {
	router.Get("/connection", h.checkConnection)
}

func (h *DebugHandler) checkConnection(c *fiber.Ctx) error {
	result, err := h.connection.Check(c.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("moodle connection check failed")

		var apiErr *moodle.APIError
		if errors.As(err, &apiErr) {
			return utils.SendError(c, fiber.StatusBadGateway, apiErr.Error())
		}

		return utils.SendError(c, fiber.StatusInternalServerError, "connection check failed")
	}

	return utils.SendSuccess(c, "moodle connection ok", result)
}
