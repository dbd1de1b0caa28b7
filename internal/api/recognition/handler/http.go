package recognitionHandler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"

	recognitionService "PlateRecognition/internal/api/recognition/service"
	"PlateRecognition/internal/middleware"
	"PlateRecognition/pkg/utils"
)

type RecognitionHandler struct {
	log                *logrus.Logger
	middleware         middleware.Middleware
	recognitionService recognitionService.IRecognitionService
	utils              utils.IUtils
	requestTimeout     time.Duration
}

func New(
	log *logrus.Logger,
	middleware middleware.Middleware,
	rs recognitionService.IRecognitionService,
	utils utils.IUtils,
	requestTimeout time.Duration,
) *RecognitionHandler {
	if requestTimeout <= 0 {
		requestTimeout = 60 * time.Second
	}
	return &RecognitionHandler{
		recognitionService: rs,
		log:                log,
		middleware:         middleware,
		utils:              utils,
		requestTimeout:     requestTimeout,
	}
}

func (h *RecognitionHandler) Start(srv fiber.Router) {
	wsMiddleware := func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}

	srv.Post("/process-image", h.ProcessImage)

	processImage := srv.Group("/process-image")
	processImage.Use("/ws", wsMiddleware)
	processImage.Get("/ws", websocket.New(h.handleWebSocket))
}
