package entity

import "math"

const (
	NoTextFound  = "No Text"
	NoPlateFound = "No license plate or text found"

	// Unmatched is returned by the associator when no track contains a plate.
	Unmatched = -1
)

type BoundingBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// NewBoundingBox orders the corners so that X1 <= X2 and Y1 <= Y2.
func NewBoundingBox(x1, y1, x2, y2 float64) BoundingBox {
	return BoundingBox{
		X1: math.Min(x1, x2),
		Y1: math.Min(y1, y2),
		X2: math.Max(x1, x2),
		Y2: math.Max(y1, y2),
	}
}

func (b BoundingBox) Width() float64 {
	return b.X2 - b.X1
}

func (b BoundingBox) Height() float64 {
	return b.Y2 - b.Y1
}

func (b BoundingBox) Area() float64 {
	return b.Width() * b.Height()
}

// Contains reports whether inner lies entirely within b. Shared edges count as inside.
func (b BoundingBox) Contains(inner BoundingBox) bool {
	return inner.X1 >= b.X1 && inner.Y1 >= b.Y1 && inner.X2 <= b.X2 && inner.Y2 <= b.Y2
}

// Intersect returns the overlapping region and false when the boxes do not overlap.
func (b BoundingBox) Intersect(other BoundingBox) (BoundingBox, bool) {
	r := BoundingBox{
		X1: math.Max(b.X1, other.X1),
		Y1: math.Max(b.Y1, other.Y1),
		X2: math.Min(b.X2, other.X2),
		Y2: math.Min(b.Y2, other.Y2),
	}
	if r.X1 > r.X2 || r.Y1 > r.Y2 {
		return BoundingBox{}, false
	}
	return r, true
}

func (b BoundingBox) IOU(other BoundingBox) float64 {
	inter, ok := b.Intersect(other)
	if !ok {
		return 0
	}
	union := b.Area() + other.Area() - inter.Area()
	if union <= 0 {
		return 0
	}
	return inter.Area() / union
}

type Detection struct {
	Box        BoundingBox `json:"box"`
	Confidence float64     `json:"confidence"`
	ClassID    int         `json:"class_id"`
	Label      string      `json:"label,omitempty"`
}

type Track struct {
	Box BoundingBox `json:"box"`
	ID  int         `json:"id"`
}

type PipelineResult struct {
	ProcessedImage []byte
	RecognizedText []string
}
