package recognitionService

import (
	"image"

	"golang.org/x/net/context"

	"PlateRecognition/internal/entity"
)

type IRecognitionService interface {
	ProcessImage(ctx context.Context, data []byte) (*entity.PipelineResult, error)
}

type Detector interface {
	Detect(ctx context.Context, frame image.Image) ([]entity.Detection, error)
}

type Tracker interface {
	Update(detections []entity.Detection) ([]entity.Track, error)
}

type Recognizer interface {
	Recognize(ctx context.Context, plate image.Image) ([]string, error)
}

type ImageCodec interface {
	DecodeImage(data []byte) (image.Image, error)
	EncodeJPEG(img image.Image) ([]byte, error)
}

// Annotator draws the plate marking and its text onto the frame in place.
type Annotator interface {
	Annotate(frame *image.RGBA, box entity.BoundingBox, text string)
}

// CropSink receives every plate crop that was extracted successfully.
type CropSink interface {
	Store(ctx context.Context, name string, crop image.Image) error
}

type recognitionService struct {
	pipeline *Pipeline
	codec    ImageCodec
}

func NewRecognitionService(pipeline *Pipeline, codec ImageCodec) IRecognitionService {
	return &recognitionService{
		pipeline: pipeline,
		codec:    codec,
	}
}
