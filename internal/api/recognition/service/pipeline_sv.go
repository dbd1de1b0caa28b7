package recognitionService

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"runtime/debug"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"

	"PlateRecognition/internal/api/recognition"
	"PlateRecognition/internal/entity"
	"PlateRecognition/pkg/annotate"
	contextPkg "PlateRecognition/pkg/context"
	"PlateRecognition/pkg/log"
	"PlateRecognition/pkg/utils"
)

var ErrPipelinePanic = errors.New("pipeline panicked")

type PipelineConfig struct {
	VehicleClasses   []int
	CropChannel      int
	InferenceTimeout time.Duration
	FailurePolicy    recognition.FailurePolicy
}

type PipelineDeps struct {
	VehicleDetector Detector
	PlateDetector   Detector
	Tracker         Tracker
	Recognizer      Recognizer
	Renderer        Annotator
	Codec           ImageCodec
	// CropSink is optional.
	CropSink CropSink
	Logger   *logrus.Logger
}

// Pipeline turns one image into an annotated image and the plate texts found in it.
// Any failure yields the original image with entity.NoPlateFound instead of an error.
type Pipeline struct {
	deps           PipelineDeps
	vehicleClasses map[int]struct{}
	cropChannel    int
	timeout        time.Duration
	policy         recognition.FailurePolicy
}

func NewPipeline(deps PipelineDeps, cfg PipelineConfig) *Pipeline {
	if cfg.InferenceTimeout <= 0 {
		cfg.InferenceTimeout = 10 * time.Second
	}
	if cfg.FailurePolicy == "" {
		cfg.FailurePolicy = recognition.FailurePolicyAbort
	}
	if deps.Renderer == nil {
		deps.Renderer = annotate.NewRenderer(annotate.DefaultOptions())
	}
	if deps.Logger == nil {
		deps.Logger = log.NewLogger()
	}

	return &Pipeline{
		deps: deps,
		vehicleClasses: lo.SliceToMap(cfg.VehicleClasses, func(id int) (int, struct{}) {
			return id, struct{}{}
		}),
		cropChannel: cfg.CropChannel,
		timeout:     cfg.InferenceTimeout,
		policy:      cfg.FailurePolicy,
	}
}

// Process runs the frame through detection, tracking, association, recognition and
// annotation. The only error returned is a failure to encode the original image.
func (p *Pipeline) Process(ctx context.Context, img image.Image) (result *entity.PipelineResult, err error) {
	original, err := p.deps.Codec.EncodeJPEG(img)
	if err != nil {
		return nil, fmt.Errorf("encode original image: %w", err)
	}

	fallback := &entity.PipelineResult{
		ProcessedImage: original,
		RecognizedText: []string{entity.NoPlateFound},
	}
	requestID := contextPkg.GetRequestID(ctx)

	defer func() {
		if r := recover(); r != nil {
			p.deps.Logger.WithFields(log.Fields{
				"request_id": requestID,
				"panic":      fmt.Sprint(r),
				"stack":      string(debug.Stack()),
			}).Error("Pipeline panicked, returning original image")
			result, err = fallback, nil
		}
	}()

	out, runErr := p.run(ctx, img, requestID)
	if runErr != nil {
		p.deps.Logger.WithFields(log.Fields{
			"request_id": requestID,
			"error":      runErr.Error(),
		}).Warn("Pipeline failed, returning original image")
		return fallback, nil
	}
	if out == nil {
		return fallback, nil
	}

	return out, nil
}

func (p *Pipeline) run(ctx context.Context, img image.Image, requestID string) (*entity.PipelineResult, error) {
	frame := utils.ToRGBA(img)

	vehicles, err := p.detect(ctx, p.deps.VehicleDetector, frame)
	if err != nil {
		return nil, fmt.Errorf("vehicle detection: %w", err)
	}

	vehicles = lo.Filter(vehicles, func(d entity.Detection, _ int) bool {
		_, ok := p.vehicleClasses[d.ClassID]
		return ok
	})

	tracks, err := p.deps.Tracker.Update(vehicles)
	if err != nil {
		return nil, fmt.Errorf("tracking: %w", err)
	}

	plates, err := p.detect(ctx, p.deps.PlateDetector, frame)
	if err != nil {
		return nil, fmt.Errorf("plate detection: %w", err)
	}

	texts := make([]string, 0, len(plates))
	for i, plate := range plates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		trackID := Associate(plate.Box, tracks)
		if trackID == entity.Unmatched {
			p.deps.Logger.WithFields(log.Fields{
				"request_id": requestID,
				"plate":      i,
			}).Debug("Plate not inside any tracked vehicle, skipping")
			continue
		}

		text, err := p.readPlate(ctx, frame, plate.Box, fmt.Sprintf("%s-%d.jpg", requestID, i))
		if err == nil {
			err = p.drawPlate(frame, plate.Box, text)
		}
		if err != nil {
			if p.policy == recognition.FailurePolicySkip {
				p.deps.Logger.WithFields(log.Fields{
					"request_id": requestID,
					"plate":      i,
					"track_id":   trackID,
					"error":      err.Error(),
				}).Warn("Plate recognition failed, skipping plate")
				continue
			}
			return nil, fmt.Errorf("plate %d: %w", i, err)
		}

		texts = append(texts, text)
	}

	// Nothing was drawn, so the original encoding is returned as is.
	if len(texts) == 0 {
		return nil, nil
	}

	encoded, err := p.deps.Codec.EncodeJPEG(frame)
	if err != nil {
		return nil, fmt.Errorf("encode annotated image: %w", err)
	}

	return &entity.PipelineResult{
		ProcessedImage: encoded,
		RecognizedText: texts,
	}, nil
}

func (p *Pipeline) detect(ctx context.Context, detector Detector, frame image.Image) ([]entity.Detection, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	return detector.Detect(callCtx, frame)
}

// drawPlate annotates one plate. A panic restores the frame under the skip policy so a
// dropped plate leaves no partial marking behind.
func (p *Pipeline) drawPlate(frame *image.RGBA, box entity.BoundingBox, text string) (err error) {
	var snapshot []byte
	if p.policy == recognition.FailurePolicySkip {
		snapshot = bytes.Clone(frame.Pix)
	}

	defer func() {
		if r := recover(); r != nil {
			if snapshot != nil {
				copy(frame.Pix, snapshot)
			}
			err = fmt.Errorf("%w: render: %v", ErrPipelinePanic, r)
		}
	}()

	p.deps.Renderer.Annotate(frame, box, text)
	return nil
}

// readPlate crops and recognizes one plate. Panics are turned into errors so the
// skip policy can drop a single plate.
func (p *Pipeline) readPlate(ctx context.Context, frame image.Image, box entity.BoundingBox, name string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPipelinePanic, r)
		}
	}()

	crop, err := ExtractPlate(frame, box, p.cropChannel)
	if err != nil {
		return "", err
	}

	if p.deps.CropSink != nil {
		if err := p.deps.CropSink.Store(ctx, name, crop); err != nil {
			p.deps.Logger.WithFields(log.Fields{
				"name":  name,
				"error": err.Error(),
			}).Warn("Failed to store debug crop")
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	raw, err := p.deps.Recognizer.Recognize(callCtx, crop)
	if err != nil {
		return "", fmt.Errorf("recognize: %w", err)
	}

	return NormalizeText(raw), nil
}
