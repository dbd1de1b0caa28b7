package config

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	healthService "PlateRecognition/internal/api/health/service"
	"PlateRecognition/internal/api/recognition"
	recognitionService "PlateRecognition/internal/api/recognition/service"
	"PlateRecognition/pkg/annotate"
	"PlateRecognition/pkg/detector"
	"PlateRecognition/pkg/gemini"
	"PlateRecognition/pkg/openai"
	"PlateRecognition/pkg/redis"
	s3Pkg "PlateRecognition/pkg/s3"
	"PlateRecognition/pkg/smtp"
	"PlateRecognition/pkg/tracker"
	"PlateRecognition/pkg/utils"
	websocketPkg "PlateRecognition/pkg/websocket"
)

// Engines holds the inference clients shared by every pipeline in the process.
type Engines struct {
	VehicleDetector detector.IDetector
	PlateDetector   detector.IDetector
	Recognizer      recognitionService.Recognizer
	Renderer        *annotate.Renderer
	CropSink        recognitionService.CropSink
	Utils           utils.IUtils

	closers []func()
}

func NewEngines(ctx context.Context, cfg *Config, logger *logrus.Logger) (*Engines, error) {
	e := &Engines{
		Utils:    utils.New(cfg.MaxUploadSize, cfg.JPEGQuality),
		Renderer: annotate.NewRenderer(annotate.DefaultOptions()),
		VehicleDetector: detector.New(detector.Config{
			Name:                "vehicle",
			Endpoint:            cfg.VehicleDetectorURL,
			ConfidenceThreshold: cfg.DetectorConfidence,
			Timeout:             cfg.InferenceTimeout,
		}),
		PlateDetector: detector.New(detector.Config{
			Name:                "plate",
			Endpoint:            cfg.PlateDetectorURL,
			ConfidenceThreshold: cfg.DetectorConfidence,
			Timeout:             cfg.InferenceTimeout,
		}),
	}

	switch cfg.Recognizer {
	case "gemini":
		client, err := gemini.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		e.Recognizer = client
		e.closers = append(e.closers, client.Close)
	case "openai":
		client, err := openai.NewVision(openai.Config{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIModel,
			BaseURL: cfg.OpenAIBaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create OpenAI client: %w", err)
		}
		e.Recognizer = client
	default:
		client := websocketPkg.NewOCRWebSocketClient(cfg.OCRServiceURL, logger)
		e.Recognizer = client
		e.closers = append(e.closers, client.CloseConnections)
	}

	switch cfg.DebugCropSink {
	case "file":
		sink, err := recognitionService.NewFileCropSink(cfg.DebugCropDir, e.Utils)
		if err != nil {
			e.Close()
			return nil, err
		}
		e.CropSink = sink
	case "s3":
		client, err := s3Pkg.New(s3Pkg.Config{
			Region:          cfg.AWSRegion,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			BucketName:      cfg.AWSBucketName,
			Prefix:          "debug-crops",
		})
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		e.CropSink = recognitionService.NewS3CropSink(client, e.Utils)
	}

	return e, nil
}

// NewPipeline builds a pipeline over the shared engines with its own tracker.
func (e *Engines) NewPipeline(cfg *Config, logger *logrus.Logger) *recognitionService.Pipeline {
	return recognitionService.NewPipeline(recognitionService.PipelineDeps{
		VehicleDetector: e.VehicleDetector,
		PlateDetector:   e.PlateDetector,
		Tracker:         tracker.New(cfg.TrackerMaxLost, cfg.TrackerIOUThreshold),
		Recognizer:      e.Recognizer,
		Renderer:        e.Renderer,
		Codec:           e.Utils,
		CropSink:        e.CropSink,
		Logger:          logger,
	}, recognitionService.PipelineConfig{
		VehicleClasses:   cfg.VehicleClasses,
		CropChannel:      cfg.CropChannel,
		InferenceTimeout: cfg.InferenceTimeout,
		FailurePolicy:    recognition.FailurePolicy(cfg.PlateFailurePolicy),
	})
}

// NewHealthMonitor wires the monitor to a private pipeline and the configured supervisors.
// The returned closer releases the redis connection, if one was opened.
func (e *Engines) NewHealthMonitor(cfg *Config, logger *logrus.Logger) (healthService.IHealthService, func(), error) {
	reference, err := os.ReadFile(cfg.HealthReferenceImage)
	if err != nil {
		return nil, nil, fmt.Errorf("read health reference image: %w", err)
	}

	deps := healthService.SupervisorDeps{
		Logger:      logger,
		Instance:    cfg.AppName,
		LivenessKey: cfg.HealthLivenessKey,
		LivenessTTL: cfg.HealthLivenessTTL,
	}

	closer := func() {}
	if cfg.UsesSupervisor("redis") {
		client := redis.New(redis.Config{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		deps.Liveness = client
		closer = func() { _ = client.Close() }
	}

	if cfg.UsesSupervisor("email") {
		mailer, err := smtp.New(smtp.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			To:       cfg.HealthAlertEmails,
		})
		if err != nil {
			closer()
			return nil, nil, fmt.Errorf("failed to create SMTP client: %w", err)
		}
		deps.Mailer = mailer
	}

	supervisor, err := healthService.NewSupervisor(cfg.HealthSupervisor, deps)
	if err != nil {
		closer()
		return nil, nil, err
	}

	monitor, err := healthService.NewHealthMonitor(
		e.NewPipeline(cfg, logger),
		e.Utils,
		reference,
		supervisor,
		logger,
		healthService.MonitorConfig{
			Interval: cfg.HealthInterval,
			Timeout:  cfg.HealthTimeout,
			Realert:  cfg.HealthRealert,
		},
	)
	if err != nil {
		closer()
		return nil, nil, err
	}

	return monitor, closer, nil
}

func (e *Engines) Close() {
	for _, closeFn := range e.closers {
		closeFn()
	}
}
