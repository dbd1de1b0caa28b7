package recognitionService

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"PlateRecognition/internal/entity"
)

var (
	ErrEmptyCrop      = errors.New("plate crop region is empty")
	ErrInvalidChannel = errors.New("crop channel must be 0, 1 or 2")
)

// ExtractPlate copies one color channel of the plate region into a gray image.
// Channels are indexed in RGB order; 1 (green) is the same in RGB and BGR layouts.
func ExtractPlate(frame image.Image, box entity.BoundingBox, channel int) (*image.Gray, error) {
	if channel < 0 || channel > 2 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidChannel, channel)
	}

	rect := ClampRegion(box, frame.Bounds())
	if rect.Empty() {
		return nil, fmt.Errorf("%w: box %+v in %v", ErrEmptyCrop, box, frame.Bounds())
	}

	region := imaging.Crop(frame, rect)
	bounds := region.Bounds()
	gray := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))

	for y := 0; y < bounds.Dy(); y++ {
		src := region.Pix[y*region.Stride : y*region.Stride+bounds.Dx()*4]
		dst := gray.Pix[y*gray.Stride : y*gray.Stride+bounds.Dx()]
		for x := range dst {
			dst[x] = src[x*4+channel]
		}
	}

	return gray, nil
}

// ClampRegion truncates box to integer pixels and clamps every coordinate into the
// frame, x to [0, width-1] and y to [0, height-1]. The result is half open and may be empty.
func ClampRegion(box entity.BoundingBox, bounds image.Rectangle) image.Rectangle {
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return image.Rectangle{}
	}

	x1 := clamp(int(box.X1), 0, w-1)
	y1 := clamp(int(box.Y1), 0, h-1)
	x2 := clamp(int(box.X2), 0, w-1)
	y2 := clamp(int(box.Y2), 0, h-1)
	if x2 <= x1 || y2 <= y1 {
		return image.Rectangle{}
	}

	return image.Rectangle{Min: image.Pt(x1, y1), Max: image.Pt(x2, y2)}.Add(bounds.Min)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
