package healthHandler

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/context"

	"PlateRecognition/internal/entity"
	"PlateRecognition/internal/middleware"
)

type staticHealth struct {
	status entity.HealthStatus
}

func (s staticHealth) Start()                                      {}
func (s staticHealth) Stop() error                                 { return nil }
func (s staticHealth) RunOnce(context.Context) entity.HealthStatus { return s.status }
func (s staticHealth) Status() entity.HealthStatus                 { return s.status }

func TestGetHealth(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	checked := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name   string
		status entity.HealthStatus
		want   int
	}{
		{"healthy", entity.HealthStatus{Healthy: true, CheckedAt: checked, RecognizedText: []string{"AB12CD"}}, fiber.StatusOK},
		{"unhealthy", entity.HealthStatus{CheckedAt: checked, ConsecutiveFailures: 2, LastError: "no plate"}, fiber.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			New(logger, middleware.New(logger, 100, 100), staticHealth{status: tt.status}).Start(app)

			resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)

			var body entity.HealthStatus
			require.NoError(t, jsoniter.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.status.Healthy, body.Healthy)
			assert.Equal(t, tt.status.ConsecutiveFailures, body.ConsecutiveFailures)
			assert.True(t, tt.status.CheckedAt.Equal(body.CheckedAt))
		})
	}
}
