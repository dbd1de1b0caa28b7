package annotate

import (
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"PlateRecognition/internal/entity"
)

func grayFrame(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 128
	}
	return img
}

func TestFitScaleTerminatesForDegenerateRegions(t *testing.T) {
	r := NewRenderer(DefaultOptions())
	long := strings.Repeat("W", 500)

	tests := []struct {
		name string
		text string
		w, h float64
	}{
		{"1x1 region", "AB12CD", 1, 1},
		{"zero region", "AB12CD", 0, 0},
		{"very long text", long, 200, 40},
		{"long text in 1x1", long, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scale := r.FitScale(tt.text, tt.w, tt.h)
			assert.InDelta(t, r.Options().MinScale, scale, 1e-9)
		})
	}
}

func TestFitScaleKeepsStartScaleWhenTextFits(t *testing.T) {
	r := NewRenderer(DefaultOptions())
	assert.Equal(t, 1.0, r.FitScale("AB", 1000, 1000))
}

func TestFitScaleShrinksUntilFit(t *testing.T) {
	r := NewRenderer(DefaultOptions())

	w, h := r.Measure("AB12CD", 0.5)
	scale := r.FitScale("AB12CD", w, h)

	assert.Less(t, scale, 1.0)
	assert.GreaterOrEqual(t, scale, 0.5-1e-9)
	fw, fh := r.Measure("AB12CD", scale)
	assert.LessOrEqual(t, fw, w)
	assert.LessOrEqual(t, fh, h)
}

func TestNewRendererRepairsNonTerminatingOptions(t *testing.T) {
	r := NewRenderer(Options{StartScale: 1, ScaleStep: 0, MinScale: -1})
	assert.Greater(t, r.Options().ScaleStep, 0.0)
	assert.Greater(t, r.Options().MinScale, 0.0)
	assert.InDelta(t, r.Options().MinScale, r.FitScale("ABC", 1, 1), 1e-9)
}

func TestLabelRegion(t *testing.T) {
	bounds := image.Rect(0, 0, 200, 100)

	region := LabelRegion(entity.NewBoundingBox(20, 60, 120, 80), bounds)
	assert.Equal(t, image.Rect(20, 50, 120, 60), region)

	clipped := LabelRegion(entity.NewBoundingBox(20, 4, 120, 24), bounds)
	assert.Equal(t, image.Rect(20, 0, 120, 4), clipped)

	assert.True(t, LabelRegion(entity.NewBoundingBox(20, 0, 120, 20), bounds).Empty())
}

func TestDrawLabelFillsBackground(t *testing.T) {
	r := NewRenderer(DefaultOptions())
	frame := grayFrame(200, 100)
	box := entity.NewBoundingBox(20, 60, 120, 80)

	r.DrawLabel(frame, box, "")

	assert.Equal(t, color.RGBA{255, 255, 255, 255}, frame.RGBAAt(20, 50))
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, frame.RGBAAt(119, 59))
	assert.Equal(t, color.RGBA{128, 128, 128, 128}, frame.RGBAAt(20, 49))
	assert.Equal(t, color.RGBA{128, 128, 128, 128}, frame.RGBAAt(20, 60))
}

func TestDrawLabelWritesTextInsideRegionOnly(t *testing.T) {
	r := NewRenderer(DefaultOptions())
	frame := grayFrame(300, 200)
	box := entity.NewBoundingBox(50, 120, 250, 160)

	r.DrawLabel(frame, box, "AB12CD")

	region := LabelRegion(box, frame.Bounds())
	dark := 0
	for y := region.Min.Y; y < region.Max.Y; y++ {
		for x := region.Min.X; x < region.Max.X; x++ {
			if frame.RGBAAt(x, y).R < 100 {
				dark++
			}
		}
	}
	assert.Greater(t, dark, 0)
	assert.Equal(t, color.RGBA{128, 128, 128, 128}, frame.RGBAAt(150, 99))
}

func TestDrawLabelOnTinyPlateDoesNotHang(t *testing.T) {
	r := NewRenderer(DefaultOptions())
	frame := grayFrame(10, 10)

	r.DrawLabel(frame, entity.NewBoundingBox(2, 4, 3, 6), strings.Repeat("X", 64))

	assert.Equal(t, image.Rect(2, 3, 3, 4), LabelRegion(entity.NewBoundingBox(2, 4, 3, 6), frame.Bounds()))
}

func TestDrawCornerBrackets(t *testing.T) {
	r := NewRenderer(DefaultOptions())
	frame := grayFrame(200, 200)
	box := entity.NewBoundingBox(40, 40, 160, 120)

	r.DrawCornerBrackets(frame, box)

	green := func(x, y int) bool {
		c := frame.RGBAAt(x, y)
		return c.G > 200 && c.R < 60 && c.B < 60
	}
	assert.True(t, green(45, 40), "top-left horizontal arm")
	assert.True(t, green(40, 45), "top-left vertical arm")
	assert.True(t, green(155, 120), "bottom-right horizontal arm")
	assert.False(t, green(100, 40), "top edge midpoint stays untouched")
	assert.False(t, green(100, 80), "interior stays untouched")
}
