package recognitionService

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"golang.org/x/net/context"

	s3Pkg "PlateRecognition/pkg/s3"
)

type fileCropSink struct {
	dir   string
	codec ImageCodec
}

// NewFileCropSink writes crops as JPEG files under dir.
func NewFileCropSink(dir string, codec ImageCodec) (CropSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create crop directory: %w", err)
	}
	return &fileCropSink{dir: dir, codec: codec}, nil
}

func (s *fileCropSink) Store(_ context.Context, name string, crop image.Image) error {
	data, err := s.codec.EncodeJPEG(crop)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.dir, filepath.Base(name)), data, 0o644)
}

type s3CropSink struct {
	client s3Pkg.ItfS3
	codec  ImageCodec
}

func NewS3CropSink(client s3Pkg.ItfS3, codec ImageCodec) CropSink {
	return &s3CropSink{client: client, codec: codec}
}

func (s *s3CropSink) Store(ctx context.Context, name string, crop image.Image) error {
	data, err := s.codec.EncodeJPEG(crop)
	if err != nil {
		return err
	}
	_, err = s.client.UploadBytes(ctx, name, data, "image/jpeg")
	return err
}
