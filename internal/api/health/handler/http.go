package healthHandler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	healthService "PlateRecognition/internal/api/health/service"
	"PlateRecognition/internal/middleware"
)

type HealthHandler struct {
	log           *logrus.Logger
	middleware    middleware.Middleware
	healthService healthService.IHealthService
}

func New(
	log *logrus.Logger,
	middleware middleware.Middleware,
	hs healthService.IHealthService,
) *HealthHandler {
	return &HealthHandler{
		log:           log,
		middleware:    middleware,
		healthService: hs,
	}
}

func (h *HealthHandler) Start(srv fiber.Router) {
	srv.Get("/health", h.GetHealth)
}
