package recognitionService

import (
	"fmt"

	"golang.org/x/net/context"

	"PlateRecognition/internal/api/recognition"
	"PlateRecognition/internal/entity"
)

func (s *recognitionService) ProcessImage(ctx context.Context, data []byte) (*entity.PipelineResult, error) {
	img, err := s.codec.DecodeImage(data)
	if err != nil {
		return nil, recognition.ErrInvalidImage
	}

	result, err := s.pipeline.Process(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", recognition.ErrProcessingFailed, err)
	}

	return result, nil
}
