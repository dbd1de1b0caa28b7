package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/samber/lo"
)

type Config struct {
	AppName string `validate:"required"`
	AppPort string `validate:"required,numeric"`
	AppEnv  string

	MaxUploadSize  int64         `validate:"gt=0"`
	JPEGQuality    int           `validate:"gte=1,lte=100"`
	RequestTimeout time.Duration `validate:"min=1s"`
	RateLimit      float64       `validate:"gt=0"`
	RateBurst      int           `validate:"gt=0"`

	VehicleDetectorURL  string        `validate:"required,url"`
	PlateDetectorURL    string        `validate:"required,url"`
	DetectorConfidence  float64       `validate:"gte=0,lte=1"`
	InferenceTimeout    time.Duration `validate:"min=1ms"`
	VehicleClasses      []int         `validate:"min=1,dive,gte=0"`
	TrackerMaxLost      int           `validate:"gte=0"`
	TrackerIOUThreshold float64       `validate:"gt=0,lte=1"`
	CropChannel         int           `validate:"gte=0,lte=2"`
	PlateFailurePolicy  string        `validate:"oneof=abort skip"`

	Recognizer    string `validate:"oneof=websocket gemini openai"`
	OCRServiceURL string `validate:"required_if=Recognizer websocket,omitempty,url"`
	GeminiAPIKey  string `validate:"required_if=Recognizer gemini"`
	GeminiModel   string
	OpenAIAPIKey  string `validate:"required_if=Recognizer openai"`
	OpenAIModel   string
	OpenAIBaseURL string `validate:"omitempty,url"`

	HealthEnabled        bool
	HealthReferenceImage string        `validate:"required_if=HealthEnabled true"`
	HealthInterval       time.Duration `validate:"min=1s"`
	HealthTimeout        time.Duration `validate:"min=1s"`
	HealthRealert        bool
	HealthSupervisor     string `validate:"required"`
	HealthLivenessKey    string `validate:"required"`
	HealthLivenessTTL    time.Duration
	HealthAlertEmails    []string `validate:"dive,email"`

	SMTPHost     string
	SMTPPort     int `validate:"gte=0,lte=65535"`
	SMTPUsername string
	SMTPPassword string

	RedisAddress  string
	RedisPassword string
	RedisDB       int `validate:"gte=0"`

	DebugCropSink      string `validate:"oneof=none file s3"`
	DebugCropDir       string `validate:"required_if=DebugCropSink file"`
	AWSRegion          string `validate:"required_if=DebugCropSink s3"`
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSBucketName      string `validate:"required_if=DebugCropSink s3"`
}

// Load reads the configuration from the environment. A missing .env file is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	env := &envReader{}
	cfg := &Config{
		AppName: env.String("APP_NAME", "Plate Recognition"),
		AppPort: env.String("APP_PORT", "3000"),
		AppEnv:  env.String("APP_ENV", "development"),

		MaxUploadSize:  env.Int64("MAX_UPLOAD_SIZE", 16*1024*1024),
		JPEGQuality:    env.Int("JPEG_QUALITY", 90),
		RequestTimeout: env.Duration("REQUEST_TIMEOUT", 60*time.Second),
		RateLimit:      env.Float("RATE_LIMIT", 50),
		RateBurst:      env.Int("RATE_BURST", 100),

		VehicleDetectorURL:  env.String("VEHICLE_DETECTOR_URL", ""),
		PlateDetectorURL:    env.String("PLATE_DETECTOR_URL", ""),
		DetectorConfidence:  env.Float("DETECTOR_CONFIDENCE", 0.25),
		InferenceTimeout:    env.Duration("INFERENCE_TIMEOUT", 10*time.Second),
		VehicleClasses:      env.IntList("VEHICLE_CLASSES", []int{2, 3, 5, 7}),
		TrackerMaxLost:      env.Int("TRACKER_MAX_LOST", 30),
		TrackerIOUThreshold: env.Float("TRACKER_IOU_THRESHOLD", 0.3),
		CropChannel:         env.Int("CROP_CHANNEL", 1),
		PlateFailurePolicy:  strings.ToLower(env.String("PLATE_FAILURE_POLICY", "abort")),

		Recognizer:    strings.ToLower(env.String("RECOGNIZER", "websocket")),
		OCRServiceURL: env.String("OCR_SERVICE_URL", ""),
		GeminiAPIKey:  env.String("GEMINI_API_KEY", ""),
		GeminiModel:   env.String("GEMINI_MODEL", "gemini-1.5-flash"),
		OpenAIAPIKey:  env.String("OPENAI_API_KEY", ""),
		OpenAIModel:   env.String("OPENAI_MODEL", ""),
		OpenAIBaseURL: env.String("OPENAI_BASE_URL", ""),

		HealthEnabled:        env.Bool("HEALTH_ENABLED", true),
		HealthReferenceImage: env.String("HEALTH_REFERENCE_IMAGE", ""),
		HealthInterval:       env.Duration("HEALTH_INTERVAL", 5*time.Minute),
		HealthTimeout:        env.Duration("HEALTH_TIMEOUT", time.Minute),
		HealthRealert:        env.Bool("HEALTH_REALERT", false),
		HealthSupervisor:     env.String("HEALTH_SUPERVISOR", "log"),
		HealthLivenessKey:    env.String("HEALTH_LIVENESS_KEY", "plate-recognition:liveness"),
		HealthLivenessTTL:    env.Duration("HEALTH_LIVENESS_TTL", 15*time.Minute),
		HealthAlertEmails:    env.List("HEALTH_ALERT_EMAILS"),

		SMTPHost:     env.String("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:     env.Int("SMTP_PORT", 587),
		SMTPUsername: env.String("SMTP_MAIL", ""),
		SMTPPassword: env.String("SMTP_PASSWORD", ""),

		RedisAddress:  env.String("REDIS_ADDRESS", "localhost:6379"),
		RedisPassword: env.String("REDIS_PASSWORD", ""),
		RedisDB:       env.Int("REDIS_DB", 0),

		DebugCropSink:      strings.ToLower(env.String("DEBUG_CROP_SINK", "none")),
		DebugCropDir:       env.String("DEBUG_CROP_DIR", "./storage/crops"),
		AWSRegion:          env.String("AWS_REGION", ""),
		AWSAccessKeyID:     env.String("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: env.String("AWS_SECRET_ACCESS_KEY", ""),
		AWSBucketName:      env.String("AWS_BUCKET_NAME", ""),
	}

	if err := env.Err(); err != nil {
		return nil, err
	}

	if err := NewValidator().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// UsesSupervisor reports whether kind is listed in HealthSupervisor.
func (c *Config) UsesSupervisor(kind string) bool {
	return lo.ContainsBy(strings.Split(c.HealthSupervisor, ","), func(s string) bool {
		return strings.EqualFold(strings.TrimSpace(s), kind)
	})
}

type envReader struct {
	errs []error
}

func (r *envReader) Err() error {
	return errors.Join(r.errs...)
}

func (r *envReader) lookup(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	value = strings.TrimSpace(value)
	return value, ok && value != ""
}

func (r *envReader) fail(key, value string, err error) {
	r.errs = append(r.errs, fmt.Errorf("%s=%q: %w", key, value, err))
}

func (r *envReader) String(key, fallback string) string {
	if value, ok := r.lookup(key); ok {
		return value
	}
	return fallback
}

func (r *envReader) Int(key string, fallback int) int {
	value, ok := r.lookup(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		r.fail(key, value, err)
		return fallback
	}
	return n
}

func (r *envReader) Int64(key string, fallback int64) int64 {
	value, ok := r.lookup(key)
	if !ok {
		return fallback
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		r.fail(key, value, err)
		return fallback
	}
	return n
}

func (r *envReader) Float(key string, fallback float64) float64 {
	value, ok := r.lookup(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		r.fail(key, value, err)
		return fallback
	}
	return f
}

func (r *envReader) Bool(key string, fallback bool) bool {
	value, ok := r.lookup(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		r.fail(key, value, err)
		return fallback
	}
	return b
}

func (r *envReader) Duration(key string, fallback time.Duration) time.Duration {
	value, ok := r.lookup(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		r.fail(key, value, err)
		return fallback
	}
	return d
}

func (r *envReader) List(key string) []string {
	value, ok := r.lookup(key)
	if !ok {
		return nil
	}
	return lo.Compact(lo.Map(strings.Split(value, ","), func(s string, _ int) string {
		return strings.TrimSpace(s)
	}))
}

func (r *envReader) IntList(key string, fallback []int) []int {
	value, ok := r.lookup(key)
	if !ok {
		return fallback
	}

	parts := lo.Compact(lo.Map(strings.Split(value, ","), func(s string, _ int) string {
		return strings.TrimSpace(s)
	}))

	list := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			r.fail(key, value, err)
			return fallback
		}
		list = append(list, n)
	}
	return list
}
