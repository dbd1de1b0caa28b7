// Package detector is a client for an object detection inference service. The service
// receives a JPEG frame as multipart field "file" and answers with the detected boxes.
package detector

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"

	"PlateRecognition/internal/entity"
)

type IDetector interface {
	Detect(ctx context.Context, frame image.Image) ([]entity.Detection, error)
	Name() string
}

// Detection mirrors one entry of the inference service response.
type Detection struct {
	Class      string    `json:"class"`
	ClassID    int       `json:"class_id"`
	Confidence float64   `json:"confidence"`
	BBox       []float64 `json:"bbox"` // [x1, y1, x2, y2]
}

type Result struct {
	Detections      []Detection `json:"detections"`
	InferenceTimeMs float64     `json:"inference_time_ms"`
}

type Config struct {
	Name                string
	Endpoint            string
	ConfidenceThreshold float64
	Timeout             time.Duration
}

type httpDetector struct {
	name          string
	endpoint      string
	confThreshold float64
	client        *http.Client
}

func New(cfg Config) IDetector {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &httpDetector{
		name:          cfg.Name,
		endpoint:      cfg.Endpoint,
		confThreshold: cfg.ConfidenceThreshold,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (d *httpDetector) Name() string {
	return d.name
}

func (d *httpDetector) Detect(ctx context.Context, frame image.Image) ([]entity.Detection, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "frame.jpg")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if err := jpeg.Encode(part, frame, &jpeg.Options{Quality: 95}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s detector request: %w", d.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%s detector failed with status %d: %s", d.name, resp.StatusCode, bytes.TrimSpace(msg))
	}

	var result Result
	if err := jsoniter.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode %s detector response: %w", d.name, err)
	}

	return d.toEntities(result.Detections)
}

func (d *httpDetector) toEntities(raw []Detection) ([]entity.Detection, error) {
	detections := make([]entity.Detection, 0, len(raw))
	for i, det := range raw {
		if len(det.BBox) != 4 {
			return nil, fmt.Errorf("%s detection %d: bbox has %d values, want 4", d.name, i, len(det.BBox))
		}
		if det.Confidence < d.confThreshold {
			continue
		}
		detections = append(detections, entity.Detection{
			Box:        entity.NewBoundingBox(det.BBox[0], det.BBox[1], det.BBox[2], det.BBox[3]),
			Confidence: det.Confidence,
			ClassID:    det.ClassID,
			Label:      det.Class,
		})
	}
	return detections, nil
}
