package stylize

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"math"
	"math/rand"

	"github.com/ivlev/video2comic/internal/analyzer"
)

// ComicFilter is a pure Go cel-shading pass: posterized colour, dark ink
// on strong edges and a sparse halftone in the shadows.
type ComicFilter struct {
	Levels       int     // Colour levels per channel
	EdgeStrength float64 // 0 disables ink lines
}

func NewComicFilter(levels int, edgeStrength float64) *ComicFilter {
	if levels < 2 {
		levels = 5
	}
	return &ComicFilter{Levels: levels, EdgeStrength: edgeStrength}
}

func (f *ComicFilter) Stylize(ctx context.Context, img image.Image, seed int64) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Rect, img, b.Min, draw.Src)

	step := 255.0 / float64(f.Levels-1)
	quant := func(v uint8) uint8 {
		return uint8(math.Round(math.Round(float64(v)/step) * step))
	}

	// The seed only shifts the halftone grid, so frames stay comparable.
	rnd := rand.New(rand.NewSource(seed))
	phaseX, phaseY := rnd.Intn(4), rnd.Intn(4)

	var edges *image.Gray
	if f.EdgeStrength > 0 {
		edges = analyzer.Sobel(analyzer.ToGray(out))
	}
	inkCut := 255 * (1 - math.Min(1, f.EdgeStrength))

	for y := 0; y < out.Rect.Dy(); y++ {
		if y%64 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		for x := 0; x < out.Rect.Dx(); x++ {
			i := y*out.Stride + x*4
			r, g, bl := out.Pix[i], out.Pix[i+1], out.Pix[i+2]
			c := color.RGBA{R: quant(r), G: quant(g), B: quant(bl), A: 0xff}

			luma := (299*int(c.R) + 587*int(c.G) + 114*int(c.B)) / 1000
			if luma < 80 && (x+phaseX)%4 == 0 && (y+phaseY)%4 == 0 {
				c = color.RGBA{A: 0xff}
			}
			if edges != nil && float64(edges.Pix[y*edges.Stride+x]) > inkCut {
				c = color.RGBA{R: 20, G: 20, B: 20, A: 0xff}
			}
			out.Pix[i], out.Pix[i+1], out.Pix[i+2], out.Pix[i+3] = c.R, c.G, c.B, c.A
		}
	}
	return out, nil
}
