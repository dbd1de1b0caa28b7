package healthService

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/oklog/ulid/v2"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"

	"PlateRecognition/internal/api/health"
	"PlateRecognition/internal/entity"
	contextPkg "PlateRecognition/pkg/context"
	"PlateRecognition/pkg/log"
)

type MonitorConfig struct {
	Interval time.Duration
	// Timeout bounds a single run.
	Timeout time.Duration
	// Realert signals the supervisor on every unhealthy run instead of only the first.
	Realert bool
}

type monitor struct {
	processor  Processor
	decoder    Decoder
	reference  []byte
	supervisor Supervisor
	logger     *logrus.Logger
	cfg        MonitorConfig
	now        func() time.Time

	scheduler gocron.Scheduler
	stopOnce  sync.Once
	stopErr   error

	runMu     sync.Mutex
	mu        sync.RWMutex
	status    entity.HealthStatus
	signalled bool
}

// NewHealthMonitor periodically runs processor on the reference image and tells
// supervisor when recognition stops working. The processor must not share a tracker
// with request handling.
func NewHealthMonitor(
	processor Processor,
	decoder Decoder,
	reference []byte,
	supervisor Supervisor,
	logger *logrus.Logger,
	cfg MonitorConfig,
) (IHealthService, error) {
	if len(reference) == 0 {
		return nil, health.ErrNoReferenceImage
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Minute
	}

	m := &monitor{
		processor:  processor,
		decoder:    decoder,
		reference:  reference,
		supervisor: supervisor,
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
		status:     entity.HealthStatus{Healthy: true},
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create health scheduler: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(cfg.Interval),
		gocron.NewTask(m.tick),
		gocron.WithName("plate-recognition-health-check"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return nil, fmt.Errorf("schedule health check: %w", err)
	}

	m.scheduler = scheduler
	return m, nil
}

func (m *monitor) Start() {
	m.logger.WithFields(log.Fields{
		"interval": m.cfg.Interval.String(),
	}).Info("Starting health monitor")
	m.scheduler.Start()
}

func (m *monitor) Stop() error {
	m.stopOnce.Do(func() {
		m.logger.Info("Stopping health monitor")
		m.stopErr = m.scheduler.Shutdown()
	})
	return m.stopErr
}

func (m *monitor) Status() entity.HealthStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *monitor) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.Timeout)
	defer cancel()

	m.RunOnce(ctx)
}

func (m *monitor) RunOnce(ctx context.Context) entity.HealthStatus {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	// Each run gets its own id so its logs and debug crops are distinct.
	if contextPkg.GetRequestID(ctx) == "unknown" {
		ctx = contextPkg.WithRequestID(ctx, "health-"+ulid.Make().String())
	}

	status := entity.HealthStatus{CheckedAt: m.now()}

	texts, err := m.checkReference(ctx)
	switch {
	case err != nil:
		status.LastError = err.Error()
	case IsHealthy(texts):
		status.Healthy = true
		status.RecognizedText = texts
	default:
		status.RecognizedText = texts
		status.LastError = "no plate text recognized on reference image"
	}

	m.mu.Lock()
	var signal, recovered bool
	if status.Healthy {
		recovered = m.signalled
		m.signalled = false
	} else {
		status.ConsecutiveFailures = m.status.ConsecutiveFailures + 1
		signal = !m.signalled || m.cfg.Realert
		m.signalled = true
	}
	m.status = status
	m.mu.Unlock()

	m.notify(ctx, status, signal, recovered)
	return status
}

func (m *monitor) checkReference(ctx context.Context) ([]string, error) {
	img, err := m.decoder.DecodeImage(m.reference)
	if err != nil {
		return nil, fmt.Errorf("decode reference image: %w", err)
	}

	result, err := m.processor.Process(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("process reference image: %w", err)
	}

	return result.RecognizedText, nil
}

func (m *monitor) notify(ctx context.Context, status entity.HealthStatus, signal, recovered bool) {
	fields := log.Fields{
		"healthy":              status.Healthy,
		"recognized_text":      status.RecognizedText,
		"consecutive_failures": status.ConsecutiveFailures,
	}

	if status.Healthy {
		m.logger.WithFields(fields).Debug("Health check passed")
	} else {
		m.logger.WithFields(fields).Warn("Health check failed")
	}

	if reporter, ok := m.supervisor.(Reporter); ok {
		if err := reporter.Report(ctx, status); err != nil {
			m.logger.WithFields(log.Fields{"error": err.Error()}).Error("Failed to report health status")
		}
	}

	if signal {
		if err := m.supervisor.Signal(ctx, status); err != nil {
			m.logger.WithFields(log.Fields{"error": err.Error()}).Error("Failed to signal supervisor")
		}
	}

	if recovered {
		if err := m.supervisor.Recover(ctx, status); err != nil {
			m.logger.WithFields(log.Fields{"error": err.Error()}).Error("Failed to notify supervisor of recovery")
		}
	}
}

// IsHealthy reports whether at least one entry is real plate text.
func IsHealthy(texts []string) bool {
	return lo.ContainsBy(texts, func(text string) bool {
		return text != entity.NoPlateFound && text != entity.NoTextFound
	})
}

type staticMonitor struct{}

// NewDisabledMonitor reports healthy forever. Used when periodic checks are turned off.
func NewDisabledMonitor() IHealthService {
	return staticMonitor{}
}

func (staticMonitor) Start()      {}
func (staticMonitor) Stop() error { return nil }

func (staticMonitor) RunOnce(context.Context) entity.HealthStatus {
	return entity.HealthStatus{Healthy: true}
}

func (staticMonitor) Status() entity.HealthStatus {
	return entity.HealthStatus{Healthy: true}
}
