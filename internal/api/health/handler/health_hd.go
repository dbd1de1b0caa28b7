package healthHandler

import (
	"github.com/gofiber/fiber/v2"

	"PlateRecognition/internal/api/health"
	"PlateRecognition/pkg/handlerUtil"
	"PlateRecognition/pkg/log"
	"PlateRecognition/pkg/response"
)

func (h *HealthHandler) GetHealth(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	errHandler := handlerUtil.New(h.log)

	status := h.healthService.Status()
	if !status.Healthy {
		h.log.WithFields(log.Fields{
			"request_id":           requestID,
			"consecutive_failures": status.ConsecutiveFailures,
			"error":                health.ErrUnhealthy.Error(),
		}).Debug("Reporting unhealthy status")
		return errHandler.HandleSuccess(ctx, response.StatusCode(health.ErrUnhealthy), status)
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, status)
}
