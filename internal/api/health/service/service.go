package healthService

import (
	"image"

	"golang.org/x/net/context"

	"PlateRecognition/internal/entity"
)

type IHealthService interface {
	Start()
	Stop() error
	RunOnce(ctx context.Context) entity.HealthStatus
	Status() entity.HealthStatus
}

// Processor runs the recognition pipeline on a single frame.
type Processor interface {
	Process(ctx context.Context, img image.Image) (*entity.PipelineResult, error)
}

type Decoder interface {
	DecodeImage(data []byte) (image.Image, error)
}

// Supervisor is told when the service becomes unhealthy and when it recovers.
type Supervisor interface {
	Signal(ctx context.Context, status entity.HealthStatus) error
	Recover(ctx context.Context, status entity.HealthStatus) error
}
