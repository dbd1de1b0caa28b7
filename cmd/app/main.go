package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	recognitionService "PlateRecognition/internal/api/recognition/service"
	"PlateRecognition/internal/config"
	"PlateRecognition/pkg/log"
)

func main() {
	logger := log.NewLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Error loading configuration: %v", err)
	}

	engines, err := config.NewEngines(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatalf("Error creating inference engines: %v", err)
	}
	defer engines.Close()

	pipeline := engines.NewPipeline(cfg, logger)
	recognitionServices := recognitionService.NewRecognitionService(pipeline, engines.Utils)

	options := []config.ServerOption{
		config.WithFiber(config.NewFiber(logger, cfg)),
		config.WithLogger(logger),
		config.WithConfig(cfg),
		config.WithMiddleware(),
		config.WithUtils(engines.Utils),
		config.WithRecognitionService(recognitionServices),
	}

	if cfg.HealthEnabled {
		monitor, closeMonitor, err := engines.NewHealthMonitor(cfg, logger)
		if err != nil {
			logger.Fatalf("Error creating health monitor: %v", err)
		}
		defer closeMonitor()
		options = append(options, config.WithHealthMonitor(monitor))
	}

	server, err := config.NewServer(options...)
	if err != nil {
		logger.Fatal(err)
	}

	server.RegisterHandler()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Run(); err != nil {
			logger.Fatalf("Error starting server: %v", err)
		}
	}()

	logger.Info("Server started successfully")

	<-sigChan
	logger.Info("Shutting down server...")

	if err := server.Shutdown(10 * time.Second); err != nil {
		logger.Errorf("Error during shutdown: %v", err)
	}
}
