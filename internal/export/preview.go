package export

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"github.com/gen2brain/go-fitz"
	xdraw "golang.org/x/image/draw"
)

// Previews rasterizes each page of an exported PDF and scales it down to
// the configured thumbnail width.
func (p *Packager) Previews(ctx context.Context, pdf []byte) ([]Artifact, error) {
	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	dpi := p.cfg.PreviewDPI
	if dpi <= 0 {
		dpi = 36
	}

	out := make([]Artifact, 0, doc.NumPage())
	for i := 0; i < doc.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := doc.ImageDPI(i, float64(dpi))
		if err != nil {
			return nil, fmt.Errorf("rasterize page %d: %w", i+1, err)
		}
		thumb := thumbnail(img, p.cfg.PreviewWidth)

		var buf bytes.Buffer
		if err := png.Encode(&buf, thumb); err != nil {
			return nil, err
		}
		out = append(out, Artifact{Name: PreviewName(i), ContentType: ContentTypePNG, Data: buf.Bytes()})
	}
	return out, nil
}

// thumbnail scales img to width, keeping the aspect ratio. Narrower images
// are returned unchanged.
func thumbnail(img image.Image, width int) image.Image {
	b := img.Bounds()
	if width <= 0 || b.Dx() <= width {
		return img
	}
	height := b.Dy() * width / b.Dx()
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}
