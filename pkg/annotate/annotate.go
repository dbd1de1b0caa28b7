// Package annotate draws plate highlights and text labels onto frames.
package annotate

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"PlateRecognition/internal/entity"
)

var regular *truetype.Font

func init() {
	var err error
	regular, err = truetype.Parse(goregular.TTF)
	if err != nil {
		panic(err)
	}
}

type Options struct {
	BracketColor     color.RGBA
	BracketThickness float64
	BracketLength    float64
	LabelBackground  color.RGBA
	LabelForeground  color.RGBA
	// BaseFontSize is the pixel size of the label font at scale 1.0.
	BaseFontSize float64
	StartScale   float64
	ScaleStep    float64
	MinScale     float64
}

func DefaultOptions() Options {
	return Options{
		BracketColor:     color.RGBA{R: 0, G: 255, B: 0, A: 255},
		BracketThickness: 3,
		BracketLength:    10,
		LabelBackground:  color.RGBA{R: 255, G: 255, B: 255, A: 255},
		LabelForeground:  color.RGBA{R: 0, G: 0, B: 0, A: 255},
		BaseFontSize:     30,
		StartScale:       1.0,
		ScaleStep:        0.1,
		MinScale:         0.1,
	}
}

type Renderer struct {
	opts Options
}

func NewRenderer(opts Options) *Renderer {
	def := DefaultOptions()
	if opts.BaseFontSize <= 0 {
		opts.BaseFontSize = def.BaseFontSize
	}
	if opts.ScaleStep <= 0 {
		opts.ScaleStep = def.ScaleStep
	}
	if opts.MinScale <= 0 {
		opts.MinScale = def.MinScale
	}
	if opts.StartScale < opts.MinScale {
		opts.StartScale = opts.MinScale
	}
	if opts.BracketThickness <= 0 {
		opts.BracketThickness = def.BracketThickness
	}
	if opts.BracketLength < 0 {
		opts.BracketLength = 0
	}
	return &Renderer{opts: opts}
}

func (r *Renderer) Options() Options {
	return r.opts
}

// Annotate highlights box and writes text in the label strip above it.
func (r *Renderer) Annotate(frame *image.RGBA, box entity.BoundingBox, text string) {
	r.DrawCornerBrackets(frame, box)
	r.DrawLabel(frame, box, text)
}

// DrawCornerBrackets draws a right angle bracket at each corner of box.
// Arms never exceed half of the box side so opposite brackets cannot cross.
func (r *Renderer) DrawCornerBrackets(frame *image.RGBA, box entity.BoundingBox) {
	x1, y1 := math.Trunc(box.X1), math.Trunc(box.Y1)
	x2, y2 := math.Trunc(box.X2), math.Trunc(box.Y2)
	lx := math.Min(r.opts.BracketLength, (x2-x1)/2)
	ly := math.Min(r.opts.BracketLength, (y2-y1)/2)

	dc := gg.NewContextForRGBA(frame)
	dc.SetColor(r.opts.BracketColor)
	dc.SetLineWidth(r.opts.BracketThickness)
	dc.SetLineCap(gg.LineCapSquare)

	segments := [][4]float64{
		{x1, y1, x1, y1 + ly}, {x1, y1, x1 + lx, y1}, // top-left
		{x1, y2, x1, y2 - ly}, {x1, y2, x1 + lx, y2}, // bottom-left
		{x2, y1, x2 - lx, y1}, {x2, y1, x2, y1 + ly}, // top-right
		{x2, y2, x2, y2 - ly}, {x2, y2, x2 - lx, y2}, // bottom-right
	}
	for _, s := range segments {
		dc.DrawLine(s[0], s[1], s[2], s[3])
		dc.Stroke()
	}
}

// LabelRegion is the strip directly above box, half the box height tall and as wide as
// the box, clipped to bounds.
func LabelRegion(box entity.BoundingBox, bounds image.Rectangle) image.Rectangle {
	top := int(box.Y1 - box.Height()/2)
	region := image.Rect(int(box.X1), top, int(box.X2), int(box.Y1))
	return region.Intersect(bounds)
}

// DrawLabel fills the label region with the background color and centers text in it.
// An empty region (plate on the top edge of the frame) draws nothing.
func (r *Renderer) DrawLabel(frame *image.RGBA, box entity.BoundingBox, text string) {
	region := LabelRegion(box, frame.Bounds())
	if region.Empty() {
		return
	}

	draw.Draw(frame, region, image.NewUniform(r.opts.LabelBackground), image.Point{}, draw.Src)
	if text == "" {
		return
	}

	scale := r.FitScale(text, float64(region.Dx()), float64(region.Dy()))

	dc := gg.NewContextForRGBA(frame)
	dc.DrawRectangle(float64(region.Min.X), float64(region.Min.Y), float64(region.Dx()), float64(region.Dy()))
	dc.Clip()
	dc.SetFontFace(r.face(scale))
	dc.SetColor(r.opts.LabelForeground)
	cx := float64(region.Min.X) + float64(region.Dx())/2
	cy := float64(region.Min.Y) + float64(region.Dy())/2
	dc.DrawStringAnchored(text, cx, cy, 0.5, 0.5)
	dc.ResetClip()
}

// FitScale returns the largest scale, walking down from StartScale by ScaleStep, at which
// text fits inside a w x h region. When nothing fits the result is MinScale and the
// caller draws with clipping.
func (r *Renderer) FitScale(text string, w, h float64) float64 {
	scale := r.opts.StartScale
	for {
		tw, th := r.Measure(text, scale)
		if tw <= w && th <= h {
			return scale
		}
		next := scale - r.opts.ScaleStep
		if next < r.opts.MinScale-1e-9 {
			return r.opts.MinScale
		}
		scale = next
	}
}

// Measure returns the rendered width and line height of text at scale.
func (r *Renderer) Measure(text string, scale float64) (float64, float64) {
	face := r.face(scale)
	defer face.Close()

	d := &font.Drawer{Face: face}
	width := float64(d.MeasureString(text)) / 64
	height := float64(face.Metrics().Height) / 64
	return width, height
}

func (r *Renderer) face(scale float64) font.Face {
	return truetype.NewFace(regular, &truetype.Options{
		Size:    r.opts.BaseFontSize * scale,
		Hinting: font.HintingFull,
	})
}
