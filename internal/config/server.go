package config

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	healthHandler "PlateRecognition/internal/api/health/handler"
	healthService "PlateRecognition/internal/api/health/service"
	recognitionHandler "PlateRecognition/internal/api/recognition/handler"
	recognitionService "PlateRecognition/internal/api/recognition/service"
	"PlateRecognition/internal/middleware"
	"PlateRecognition/pkg/utils"
)

type ServerOption func(*Server) error

type Server struct {
	engine             *fiber.App
	log                *logrus.Logger
	cfg                *Config
	middleware         middleware.Middleware
	utils              utils.IUtils
	recognitionService recognitionService.IRecognitionService
	healthMonitor      healthService.IHealthService
	handlers           []handler
}

type handler interface {
	Start(srv fiber.Router)
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if server.cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if server.middleware == nil {
		return nil, fmt.Errorf("middleware is required")
	}
	if server.recognitionService == nil {
		return nil, fmt.Errorf("recognition service is required")
	}
	if server.utils == nil {
		server.utils = utils.New(server.cfg.MaxUploadSize, server.cfg.JPEGQuality)
	}
	if server.healthMonitor == nil {
		server.healthMonitor = healthService.NewDisabledMonitor()
	}

	return server, nil
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithConfig(cfg *Config) ServerOption {
	return func(s *Server) error {
		s.cfg = cfg
		return nil
	}
}

func WithMiddleware() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before middleware")
		}
		if s.cfg == nil {
			return fmt.Errorf("config must be initialized before middleware")
		}
		s.middleware = middleware.New(s.log, s.cfg.RateLimit, s.cfg.RateBurst)
		return nil
	}
}

func WithUtils(u utils.IUtils) ServerOption {
	return func(s *Server) error {
		s.utils = u
		return nil
	}
}

func WithRecognitionService(rs recognitionService.IRecognitionService) ServerOption {
	return func(s *Server) error {
		s.recognitionService = rs
		return nil
	}
}

func WithHealthMonitor(monitor healthService.IHealthService) ServerOption {
	return func(s *Server) error {
		s.healthMonitor = monitor
		return nil
	}
}

func (s *Server) RegisterHandler() {
	s.engine.Use(s.middleware.NewRequestIDMiddleware())
	s.engine.Use(s.middleware.NewLoggingMiddleware())
	s.engine.Use(s.middleware.NewRateLimiter)

	// Recognition
	recognitionHandlers := recognitionHandler.New(s.log, s.middleware, s.recognitionService, s.utils, s.cfg.RequestTimeout)

	// Health
	healthHandlers := healthHandler.New(s.log, s.middleware, s.healthMonitor)

	s.setupRootCheck()
	s.handlers = append(s.handlers, recognitionHandlers, healthHandlers)

	for _, h := range s.handlers {
		h.Start(s.engine)
	}
}

func (s *Server) Run() error {
	s.healthMonitor.Start()

	return s.engine.Listen(fmt.Sprintf(":%s", s.cfg.AppPort))
}

func (s *Server) Shutdown(timeout time.Duration) error {
	if err := s.healthMonitor.Stop(); err != nil {
		s.log.Errorf("Failed to stop health monitor: %v", err)
	}
	s.middleware.Close()
	return s.engine.ShutdownWithTimeout(timeout)
}

func (s *Server) setupRootCheck() {
	s.engine.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{
			"message": "Server is Healthy!",
		})
	})
}
