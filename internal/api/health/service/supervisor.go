package healthService

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"

	"PlateRecognition/internal/api/health"
	"PlateRecognition/internal/entity"
	"PlateRecognition/pkg/log"
)

// Reporter is implemented by supervisors that want the result of every run,
// not only the transitions.
type Reporter interface {
	Report(ctx context.Context, status entity.HealthStatus) error
}

type LivenessStore interface {
	SetLiveness(ctx context.Context, key string, value string, expiration time.Duration) error
}

type Mailer interface {
	SendAlert(subject string, body string) error
}

type SupervisorDeps struct {
	Logger *logrus.Logger
	Mailer Mailer
	// Instance names the process in alert emails.
	Instance    string
	Liveness    LivenessStore
	LivenessKey string
	LivenessTTL time.Duration
	// Exit defaults to os.Exit.
	Exit func(code int)
}

// NewSupervisor builds the supervisors named in a comma separated list such as "log,redis".
func NewSupervisor(kinds string, deps SupervisorDeps) (Supervisor, error) {
	names := lo.Uniq(lo.Compact(lo.Map(strings.Split(kinds, ","), func(s string, _ int) string {
		return strings.ToLower(strings.TrimSpace(s))
	})))
	if len(names) == 0 {
		names = []string{string(health.SupervisorLog)}
	}

	supervisors := make(multiSupervisor, 0, len(names))
	var exitLast Supervisor
	for _, name := range names {
		switch health.SupervisorKind(name) {
		case health.SupervisorLog:
			supervisors = append(supervisors, &logSupervisor{logger: deps.Logger})
		case health.SupervisorRedis:
			if deps.Liveness == nil {
				return nil, fmt.Errorf("redis supervisor needs a liveness store")
			}
			supervisors = append(supervisors, &livenessSupervisor{
				store: deps.Liveness,
				key:   deps.LivenessKey,
				ttl:   deps.LivenessTTL,
			})
		case health.SupervisorEmail:
			if deps.Mailer == nil {
				return nil, fmt.Errorf("email supervisor needs a mailer")
			}
			supervisors = append(supervisors, &emailSupervisor{mailer: deps.Mailer, instance: deps.Instance})
		case health.SupervisorExit:
			exit := deps.Exit
			if exit == nil {
				exit = os.Exit
			}
			exitLast = &exitSupervisor{logger: deps.Logger, exit: exit}
		default:
			return nil, fmt.Errorf("%w: %q", health.ErrUnknownSupervisor, name)
		}
	}

	if exitLast != nil {
		supervisors = append(supervisors, exitLast)
	}

	if len(supervisors) == 1 {
		return supervisors[0], nil
	}
	return supervisors, nil
}

type logSupervisor struct {
	logger *logrus.Logger
}

func (s *logSupervisor) Signal(_ context.Context, status entity.HealthStatus) error {
	s.logger.WithFields(log.Fields{
		"recognized_text":      status.RecognizedText,
		"consecutive_failures": status.ConsecutiveFailures,
		"last_error":           status.LastError,
	}).Error("Health check failed, recognition service needs attention")
	return nil
}

func (s *logSupervisor) Recover(_ context.Context, status entity.HealthStatus) error {
	s.logger.WithFields(log.Fields{
		"recognized_text": status.RecognizedText,
	}).Info("Health check recovered")
	return nil
}

type livenessSupervisor struct {
	store LivenessStore
	key   string
	ttl   time.Duration
}

func (s *livenessSupervisor) Signal(ctx context.Context, _ entity.HealthStatus) error {
	return s.store.SetLiveness(ctx, s.key, health.LivenessUnhealthy, s.ttl)
}

func (s *livenessSupervisor) Recover(ctx context.Context, _ entity.HealthStatus) error {
	return s.store.SetLiveness(ctx, s.key, health.LivenessHealthy, s.ttl)
}

// Report refreshes the key on every run so it expires when the monitor stops.
func (s *livenessSupervisor) Report(ctx context.Context, status entity.HealthStatus) error {
	value := health.LivenessHealthy
	if !status.Healthy {
		value = health.LivenessUnhealthy
	}
	return s.store.SetLiveness(ctx, s.key, value, s.ttl)
}

type emailSupervisor struct {
	mailer   Mailer
	instance string
}

func (s *emailSupervisor) Signal(_ context.Context, status entity.HealthStatus) error {
	subject := fmt.Sprintf("[%s] plate recognition unhealthy", s.instance)
	return s.mailer.SendAlert(subject, alertBody(status))
}

func (s *emailSupervisor) Recover(_ context.Context, status entity.HealthStatus) error {
	subject := fmt.Sprintf("[%s] plate recognition recovered", s.instance)
	return s.mailer.SendAlert(subject, alertBody(status))
}

func alertBody(status entity.HealthStatus) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Checked at: %s\r\n", status.CheckedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Healthy: %t\r\n", status.Healthy)
	fmt.Fprintf(&b, "Consecutive failures: %d\r\n", status.ConsecutiveFailures)
	fmt.Fprintf(&b, "Recognized text: %s\r\n", strings.Join(status.RecognizedText, ", "))
	if status.LastError != "" {
		fmt.Fprintf(&b, "Last error: %s\r\n", status.LastError)
	}
	return b.String()
}

// exitSupervisor ends the process so the process manager restarts it.
type exitSupervisor struct {
	logger *logrus.Logger
	exit   func(code int)
}

func (s *exitSupervisor) Signal(_ context.Context, status entity.HealthStatus) error {
	s.logger.WithFields(log.Fields{
		"recognized_text": status.RecognizedText,
		"last_error":      status.LastError,
	}).Error("Health check failed, exiting for restart")
	s.exit(1)
	return nil
}

func (s *exitSupervisor) Recover(context.Context, entity.HealthStatus) error {
	return nil
}

type multiSupervisor []Supervisor

func (m multiSupervisor) Signal(ctx context.Context, status entity.HealthStatus) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Signal(ctx, status))
	}
	return errors.Join(errs...)
}

func (m multiSupervisor) Recover(ctx context.Context, status entity.HealthStatus) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Recover(ctx, status))
	}
	return errors.Join(errs...)
}

func (m multiSupervisor) Report(ctx context.Context, status entity.HealthStatus) error {
	var errs []error
	for _, s := range m {
		if r, ok := s.(Reporter); ok {
			errs = append(errs, r.Report(ctx, status))
		}
	}
	return errors.Join(errs...)
}
