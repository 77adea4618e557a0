package renderer

import (
	"bytes"
	"image"
	"image/color"
	"image/png"

	"golang.org/x/image/draw"

	"github.com/ivlev/video2comic/internal/comic")

var (
	paper       = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	ink         = color.RGBA{R: 0x14, G: 0x14, B: 0x14, A: 0xff}
	placeholder = color.RGBA{R: 0xd8, G: 0xd8, B: 0xd8, A: 0xff}
	hatch       = color.RGBA{R: 0xb0, G: 0xb0, B: 0xb0, A: 0xff}
	captionFill = color.RGBA{R: 0xff, G: 0xf4, B: 0xc2, A: 0xff}
)

// PlaceholderText is printed on panels whose artwork is missing.
const PlaceholderText = "frame unavailable"

// Resolver returns the styled image for a segment, or nil when it is missing.
type Resolver func(segment int) image.Image

// Renderer composes pages onto fixed-size canvases.
type Renderer struct {
	Width  int
	Height int
	Border int
}

func New(width, height int) *Renderer {
	return &Renderer{Width: width, Height: height, Border: 3}
}

// Render draws a page. The returned canvas is pooled; hand it back with
// Release when done. degraded reports whether any
// panel fell back to a placeholder.
func (r *Renderer) Render(page comic.Page, resolve Resolver) (*image.RGBA, bool) {
	canvas := canvases.get(image.Pt(r.Width, r.Height))

	text := newTextCache()
	defer text.Close()

	degraded := false
	for _, panel := range page.Panels {
		var img image.Image
		if !panel.Placeholder && resolve != nil {
			img = resolve(panel.SegmentIndex)
		}
		if img == nil {
			degraded = true
			r.drawPlaceholder(canvas, panel.Cell, text)
		} else {
			drawCover(canvas, panel.Cell, img)
		}
		strokeRect(canvas, panel.Cell, r.Border, ink)

		for _, b := range panel.Bubbles {
			drawBubble(canvas, panel.Cell, b, text)
		}
	}
	return canvas, degraded
}

// RenderPNG renders and encodes a page. Identical input gives identical bytes.
func (r *Renderer) RenderPNG(page comic.Page, resolve Resolver) ([]byte, bool, error) {
	canvas, degraded := r.Render(page, resolve)
	defer Release(canvas)

	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.DefaultCompression}
	if err := enc.Encode(&buf, canvas); err != nil {
		return nil, degraded, err
	}
	return buf.Bytes(), degraded, nil
}

// drawCover scales img to cover cell completely, cropping the overflow
// evenly on both sides.
func drawCover(dst *image.RGBA, cell image.Rectangle, img image.Image) {
	src := img.Bounds()
	tr := comic.Cover(src.Size(), cell.Size())
	scaled := image.Pt(
		int(float64(src.Dx())*tr.Scale+0.5),
		int(float64(src.Dy())*tr.Scale+0.5),
	)
	target := image.Rectangle{Min: cell.Min.Sub(tr.Offset)}
	target.Max = target.Min.Add(scaled)

	sub := dst.SubImage(cell).(*image.RGBA)
	draw.ApproxBiLinear.Scale(sub, target, img, src, draw.Src, nil)
}

func (r *Renderer) drawPlaceholder(dst *image.RGBA, cell image.Rectangle, text *textCache) {
	draw.Draw(dst, cell, image.NewUniform(placeholder), image.Point{}, draw.Src)
	for y := cell.Min.Y; y < cell.Max.Y; y++ {
		for x := cell.Min.X; x < cell.Max.X; x++ {
			if (x-cell.Min.X+y-cell.Min.Y)%24 < 3 {
				dst.SetRGBA(x, y, hatch)
			}
		}
	}

	label := image.Rect(
		cell.Min.X+cell.Dx()/5, cell.Min.Y+cell.Dy()*2/5,
		cell.Max.X-cell.Dx()/5, cell.Min.Y+cell.Dy()*3/5,
	)
	if !label.Empty() {
		box := label.Inset(-8)
		draw.Draw(dst, box, image.NewUniform(paper), image.Point{}, draw.Src)
		strokeRect(dst, box, 2, ink)
		text.Draw(dst, label, PlaceholderText)
	}
}

func strokeRect(dst *image.RGBA, r image.Rectangle, width int, c color.RGBA) {
	u := image.NewUniform(c)
	for i := 0; i < width; i++ {
		in := r.Inset(i)
		if in.Empty() {
			return
		}
		draw.Draw(dst, image.Rect(in.Min.X, in.Min.Y, in.Max.X, in.Min.Y+1), u, image.Point{}, draw.Src)
		draw.Draw(dst, image.Rect(in.Min.X, in.Max.Y-1, in.Max.X, in.Max.Y), u, image.Point{}, draw.Src)
		draw.Draw(dst, image.Rect(in.Min.X, in.Min.Y, in.Min.X+1, in.Max.Y), u, image.Point{}, draw.Src)
		draw.Draw(dst, image.Rect(in.Max.X-1, in.Min.Y, in.Max.X, in.Max.Y), u, image.Point{}, draw.Src)
	}
}
