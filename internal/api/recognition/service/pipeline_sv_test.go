package recognitionService

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/context"

	"PlateRecognition/internal/api/recognition"
	"PlateRecognition/internal/entity"
	"PlateRecognition/pkg/annotate"
	contextPkg "PlateRecognition/pkg/context"
	"PlateRecognition/pkg/tracker"
	"PlateRecognition/pkg/utils"
)

type fakeDetector struct {
	detections []entity.Detection
	err        error
	panicMsg   string
}

func (f *fakeDetector) Detect(ctx context.Context, frame image.Image) ([]entity.Detection, error) {
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	return f.detections, f.err
}

type fakeTracker struct {
	received [][]entity.Detection
}

func (f *fakeTracker) Update(detections []entity.Detection) ([]entity.Track, error) {
	f.received = append(f.received, detections)
	tracks := make([]entity.Track, len(detections))
	for i, d := range detections {
		tracks[i] = entity.Track{ID: i + 1, Box: d.Box}
	}
	return tracks, nil
}

type fakeRecognizer struct {
	mu      sync.Mutex
	results map[int][]string
	errs    map[int]error
	calls   int
	block   bool
	panics  bool
}

func (f *fakeRecognizer) Recognize(ctx context.Context, plate image.Image) ([]string, error) {
	f.mu.Lock()
	call := f.calls
	f.calls++
	f.mu.Unlock()

	if f.panics {
		panic("recognizer exploded")
	}
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err, ok := f.errs[call]; ok {
		return nil, err
	}
	return f.results[call], nil
}

type failingCodec struct {
	ImageCodec
}

func (failingCodec) EncodeJPEG(image.Image) ([]byte, error) {
	return nil, errors.New("encoder unavailable")
}

type recordingSink struct {
	names []string
}

func (s *recordingSink) Store(_ context.Context, name string, crop image.Image) error {
	s.names = append(s.names, name)
	return errors.New("disk full")
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func whiteFrame(w, h int) *image.RGBA {
	return newFrame(w, h, color.RGBA{R: 255, G: 255, B: 255, A: 255})
}

func vehicle(x1, y1, x2, y2 float64) entity.Detection {
	return entity.Detection{Box: entity.BoundingBox{X1: x1, Y1: y1, X2: x2, Y2: y2}, ClassID: 2, Confidence: 0.9}
}

func plate(x1, y1, x2, y2 float64) entity.Detection {
	return entity.Detection{Box: entity.BoundingBox{X1: x1, Y1: y1, X2: x2, Y2: y2}, Confidence: 0.8}
}

type smudgingAnnotator struct {
	base    Annotator
	panicOn int
	calls   int
}

// Annotate paints the whole plate box red before panicking on call panicOn.
func (a *smudgingAnnotator) Annotate(frame *image.RGBA, box entity.BoundingBox, text string) {
	call := a.calls
	a.calls++
	if call != a.panicOn {
		a.base.Annotate(frame, box, text)
		return
	}
	for y := int(box.Y1); y < int(box.Y2); y++ {
		for x := int(box.X1); x < int(box.X2); x++ {
			frame.SetRGBA(x, y, color.RGBA{R: 255, A: 255})
		}
	}
	panic("font face unavailable")
}

type pipelineFixture struct {
	vehicles   *fakeDetector
	plates     *fakeDetector
	tracker    Tracker
	recognizer *fakeRecognizer
	annotator  Annotator
	sink       CropSink
	codec      ImageCodec
	cfg        PipelineConfig
}

func newFixture() *pipelineFixture {
	return &pipelineFixture{
		vehicles:   &fakeDetector{},
		plates:     &fakeDetector{},
		tracker:    tracker.New(30, 0.3),
		recognizer: &fakeRecognizer{results: map[int][]string{}, errs: map[int]error{}},
		codec:      utils.New(0, 0),
		cfg: PipelineConfig{
			VehicleClasses:   []int{2, 3, 5, 7},
			CropChannel:      1,
			InferenceTimeout: time.Second,
		},
	}
}

func (f *pipelineFixture) build() *Pipeline {
	return NewPipeline(PipelineDeps{
		VehicleDetector: f.vehicles,
		PlateDetector:   f.plates,
		Tracker:         f.tracker,
		Recognizer:      f.recognizer,
		Renderer:        f.annotator,
		Codec:           f.codec,
		CropSink:        f.sink,
		Logger:          quietLogger(),
	}, f.cfg)
}

func encode(t *testing.T, img image.Image) []byte {
	t.Helper()
	data, err := utils.New(0, 0).EncodeJPEG(img)
	require.NoError(t, err)
	return data
}

func TestProcessNoDetections(t *testing.T) {
	f := newFixture()
	frame := whiteFrame(64, 48)

	result, err := f.build().Process(context.Background(), frame)
	require.NoError(t, err)

	assert.Equal(t, []string{entity.NoPlateFound}, result.RecognizedText)
	assert.Equal(t, encode(t, frame), result.ProcessedImage)
	assert.Zero(t, f.recognizer.calls)
}

func TestProcessReturnsOriginalEncodingWhenNothingDrawn(t *testing.T) {
	src := whiteFrame(64, 48)
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			src.SetRGBA(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 5), B: 90, A: 255})
		}
	}
	decoded, err := utils.New(0, 0).DecodeImage(encode(t, src))
	require.NoError(t, err)
	_, isYCbCr := decoded.(*image.YCbCr)
	require.True(t, isYCbCr)

	cases := map[string]func(f *pipelineFixture){
		"no detections": func(f *pipelineFixture) {},
		"unmatched plate": func(f *pipelineFixture) {
			f.vehicles.detections = []entity.Detection{vehicle(0, 0, 20, 20)}
			f.plates.detections = []entity.Detection{plate(30, 30, 60, 40)}
		},
	}

	for name, setup := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture()
			setup(f)

			result, err := f.build().Process(context.Background(), decoded)
			require.NoError(t, err)
			assert.Equal(t, []string{entity.NoPlateFound}, result.RecognizedText)
			assert.Equal(t, encode(t, decoded), result.ProcessedImage)
		})
	}
}

func TestProcessRecognizesContainedPlate(t *testing.T) {
	f := newFixture()
	f.vehicles.detections = []entity.Detection{vehicle(10, 10, 190, 140)}
	f.plates.detections = []entity.Detection{plate(60, 90, 140, 120)}
	f.recognizer.results[0] = []string{"AB-12 CD"}

	frame := whiteFrame(200, 150)
	result, err := f.build().Process(context.Background(), frame)
	require.NoError(t, err)

	assert.Equal(t, []string{"AB12CD"}, result.RecognizedText)
	assert.NotEqual(t, encode(t, frame), result.ProcessedImage)

	decoded, err := utils.New(0, 0).DecodeImage(result.ProcessedImage)
	require.NoError(t, err)
	assert.Equal(t, frame.Bounds(), decoded.Bounds())

	// The bracket at the plate's top left corner is green.
	r, g, b, _ := decoded.At(60, 95).RGBA()
	assert.Greater(t, g>>8, uint32(150))
	assert.Less(t, r>>8, uint32(100))
	assert.Less(t, b>>8, uint32(100))

	// The input frame is never drawn on.
	assert.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, frame.RGBAAt(60, 95))
}

func TestProcessSkipsUnmatchedPlate(t *testing.T) {
	f := newFixture()
	f.vehicles.detections = []entity.Detection{vehicle(0, 0, 50, 50)}
	f.plates.detections = []entity.Detection{plate(60, 60, 90, 75)}

	frame := whiteFrame(100, 100)
	result, err := f.build().Process(context.Background(), frame)
	require.NoError(t, err)

	assert.Equal(t, []string{entity.NoPlateFound}, result.RecognizedText)
	assert.Equal(t, encode(t, frame), result.ProcessedImage)
	assert.Zero(t, f.recognizer.calls)
}

func TestProcessRecognizerFailureFallsBack(t *testing.T) {
	f := newFixture()
	f.vehicles.detections = []entity.Detection{vehicle(0, 0, 100, 100)}
	f.plates.detections = []entity.Detection{plate(20, 20, 60, 40), plate(20, 60, 60, 80)}
	f.recognizer.results[0] = []string{"FIRST"}
	f.recognizer.errs[1] = errors.New("ocr service down")

	frame := whiteFrame(100, 100)
	result, err := f.build().Process(context.Background(), frame)
	require.NoError(t, err)

	assert.Equal(t, []string{entity.NoPlateFound}, result.RecognizedText)
	assert.Equal(t, encode(t, frame), result.ProcessedImage)
}

func TestProcessSkipPolicyDropsFailingPlate(t *testing.T) {
	f := newFixture()
	f.cfg.FailurePolicy = recognition.FailurePolicySkip
	f.vehicles.detections = []entity.Detection{vehicle(0, 0, 100, 100)}
	f.plates.detections = []entity.Detection{plate(20, 20, 60, 40), plate(20, 60, 60, 80)}
	f.recognizer.errs[0] = errors.New("ocr service down")
	f.recognizer.results[1] = []string{"XY 99"}

	result, err := f.build().Process(context.Background(), whiteFrame(100, 100))
	require.NoError(t, err)

	assert.Equal(t, []string{"XY99"}, result.RecognizedText)
}

func TestProcessRenderPanic(t *testing.T) {
	setup := func(policy recognition.FailurePolicy) *pipelineFixture {
		f := newFixture()
		f.cfg.FailurePolicy = policy
		f.annotator = &smudgingAnnotator{base: annotate.NewRenderer(annotate.DefaultOptions()), panicOn: 1}
		f.vehicles.detections = []entity.Detection{vehicle(0, 0, 200, 200)}
		f.plates.detections = []entity.Detection{plate(20, 40, 100, 70), plate(20, 140, 100, 170)}
		f.recognizer.results[0] = []string{"AA 11"}
		f.recognizer.results[1] = []string{"BB 22"}
		return f
	}

	t.Run("skip drops only that plate", func(t *testing.T) {
		result, err := setup(recognition.FailurePolicySkip).build().Process(context.Background(), whiteFrame(200, 200))
		require.NoError(t, err)
		assert.Equal(t, []string{"AA11"}, result.RecognizedText)

		decoded, err := utils.New(0, 0).DecodeImage(result.ProcessedImage)
		require.NoError(t, err)
		r, g, b, _ := decoded.At(60, 155).RGBA()
		assert.Greater(t, r>>8, uint32(200))
		assert.Greater(t, g>>8, uint32(200))
		assert.Greater(t, b>>8, uint32(200))
	})

	t.Run("abort returns original", func(t *testing.T) {
		frame := whiteFrame(200, 200)
		result, err := setup(recognition.FailurePolicyAbort).build().Process(context.Background(), frame)
		require.NoError(t, err)
		assert.Equal(t, []string{entity.NoPlateFound}, result.RecognizedText)
		assert.Equal(t, encode(t, frame), result.ProcessedImage)
	})
}

func TestProcessSkipPolicyStillAbortsOnDetectorFailure(t *testing.T) {
	f := newFixture()
	f.cfg.FailurePolicy = recognition.FailurePolicySkip
	f.plates.err = errors.New("plate model unavailable")

	frame := whiteFrame(40, 40)
	result, err := f.build().Process(context.Background(), frame)
	require.NoError(t, err)

	assert.Equal(t, []string{entity.NoPlateFound}, result.RecognizedText)
	assert.Equal(t, encode(t, frame), result.ProcessedImage)
}

func TestProcessRecoversPanics(t *testing.T) {
	t.Run("detector", func(t *testing.T) {
		f := newFixture()
		f.vehicles.panicMsg = "nil model"

		frame := whiteFrame(40, 40)
		result, err := f.build().Process(context.Background(), frame)
		require.NoError(t, err)
		assert.Equal(t, []string{entity.NoPlateFound}, result.RecognizedText)
		assert.Equal(t, encode(t, frame), result.ProcessedImage)
	})

	t.Run("recognizer", func(t *testing.T) {
		f := newFixture()
		f.vehicles.detections = []entity.Detection{vehicle(0, 0, 100, 100)}
		f.plates.detections = []entity.Detection{plate(20, 20, 60, 40)}
		f.recognizer.panics = true

		result, err := f.build().Process(context.Background(), whiteFrame(100, 100))
		require.NoError(t, err)
		assert.Equal(t, []string{entity.NoPlateFound}, result.RecognizedText)
	})
}

func TestProcessFiltersVehicleClasses(t *testing.T) {
	f := newFixture()
	tr := &fakeTracker{}
	f.tracker = tr
	person := vehicle(0, 0, 100, 100)
	person.ClassID = 0
	f.vehicles.detections = []entity.Detection{person}
	f.plates.detections = []entity.Detection{plate(20, 20, 60, 40)}

	result, err := f.build().Process(context.Background(), whiteFrame(100, 100))
	require.NoError(t, err)

	require.Len(t, tr.received, 1)
	assert.Empty(t, tr.received[0])
	assert.Equal(t, []string{entity.NoPlateFound}, result.RecognizedText)
}

func TestProcessRecognizerTimeout(t *testing.T) {
	f := newFixture()
	f.cfg.InferenceTimeout = 20 * time.Millisecond
	f.vehicles.detections = []entity.Detection{vehicle(0, 0, 100, 100)}
	f.plates.detections = []entity.Detection{plate(20, 20, 60, 40)}
	f.recognizer.block = true

	start := time.Now()
	result, err := f.build().Process(context.Background(), whiteFrame(100, 100))
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, []string{entity.NoPlateFound}, result.RecognizedText)
}

func TestProcessEncodeFailureIsReturned(t *testing.T) {
	f := newFixture()
	f.codec = failingCodec{ImageCodec: utils.New(0, 0)}

	_, err := f.build().Process(context.Background(), whiteFrame(10, 10))
	assert.ErrorContains(t, err, "encoder unavailable")
}

func TestProcessCropSinkErrorsAreIgnored(t *testing.T) {
	f := newFixture()
	sink := &recordingSink{}
	f.sink = sink
	f.vehicles.detections = []entity.Detection{vehicle(0, 0, 100, 100)}
	f.plates.detections = []entity.Detection{plate(20, 20, 60, 40)}
	f.recognizer.results[0] = []string{"K 1"}

	ctx := contextPkg.WithRequestID(context.Background(), "req1")
	result, err := f.build().Process(ctx, whiteFrame(100, 100))
	require.NoError(t, err)

	assert.Equal(t, []string{"K1"}, result.RecognizedText)
	assert.Equal(t, []string{"req1-0.jpg"}, sink.names)
}

func TestProcessNeverReturnsEmptyText(t *testing.T) {
	cases := map[string]func(f *pipelineFixture){
		"nothing detected": func(f *pipelineFixture) {},
		"unreadable plate": func(f *pipelineFixture) {
			f.vehicles.detections = []entity.Detection{vehicle(0, 0, 100, 100)}
			f.plates.detections = []entity.Detection{plate(20, 20, 60, 40)}
			f.recognizer.results[0] = []string{"--"}
		},
		"plate outside frame": func(f *pipelineFixture) {
			f.vehicles.detections = []entity.Detection{vehicle(150, 150, 300, 300)}
			f.plates.detections = []entity.Detection{plate(200, 200, 250, 220)}
		},
		"skip policy all failing": func(f *pipelineFixture) {
			f.cfg.FailurePolicy = recognition.FailurePolicySkip
			f.vehicles.detections = []entity.Detection{vehicle(0, 0, 100, 100)}
			f.plates.detections = []entity.Detection{plate(20, 20, 60, 40)}
			f.recognizer.errs[0] = errors.New("down")
		},
	}

	for name, setup := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture()
			setup(f)

			result, err := f.build().Process(context.Background(), whiteFrame(100, 100))
			require.NoError(t, err)
			assert.NotEmpty(t, result.RecognizedText)
			assert.NotEmpty(t, result.ProcessedImage)
			assert.True(t, bytes.HasPrefix(result.ProcessedImage, []byte{0xFF, 0xD8}))
		})
	}
}
