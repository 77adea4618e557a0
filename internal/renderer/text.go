package renderer

import (
	"image"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

const (
	minFontSize = 7
	maxFontSize = 48
	lineSpacing = 1.15
)

var (
	fontOnce sync.Once
	regular  *opentype.Font
	fontErr  error
)

func loadFont() (*opentype.Font, error) {
	fontOnce.Do(func() {
		regular, fontErr = opentype.Parse(goregular.TTF)
	})
	return regular, fontErr
}

// textCache holds font faces by size for one render call. Faces are not
// safe for concurrent use, so every render gets its own cache.
type textCache struct {
	faces map[int]font.Face
}

func newTextCache() *textCache {
	return &textCache{faces: make(map[int]font.Face)}
}

func (c *textCache) face(size int) font.Face {
	if f, ok := c.faces[size]; ok {
		return f
	}
	fnt, err := loadFont()
	if err != nil {
		return nil
	}
	f, err := opentype.NewFace(fnt, &opentype.FaceOptions{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil
	}
	c.faces[size] = f
	return f
}

func (c *textCache) Close() {
	for _, f := range c.faces {
		f.Close()
	}
}

// Layout picks the largest font size at which the word-wrapped text fits
// box, and returns the lines and face.
func (c *textCache) Layout(box image.Rectangle, text string) (font.Face, []string) {
	words := strings.Fields(text)
	if len(words) == 0 || box.Dx() <= 0 || box.Dy() <= 0 {
		return nil, nil
	}
	top := min(maxFontSize, box.Dy())
	for size := top; size >= minFontSize; size-- {
		face := c.face(size)
		if face == nil {
			return nil, nil
		}
		lines, ok := wrap(face, words, box.Dx())
		if ok && lineHeight(face)*len(lines) <= box.Dy() {
			return face, lines
		}
	}
	face := c.face(minFontSize)
	if face == nil {
		return nil, nil
	}
	lines, _ := wrap(face, words, box.Dx())
	return face, lines
}

// Draw writes text centred in box.
func (c *textCache) Draw(dst *image.RGBA, box image.Rectangle, text string) {
	face, lines := c.Layout(box, text)
	if face == nil {
		return
	}
	lh := lineHeight(face)
	ascent := face.Metrics().Ascent.Ceil()
	y := box.Min.Y + (box.Dy()-lh*len(lines))/2 + ascent

	d := &font.Drawer{Dst: dst, Src: image.NewUniform(ink), Face: face}
	for _, line := range lines {
		w := d.MeasureString(line).Ceil()
		d.Dot = fixed.P(box.Min.X+(box.Dx()-w)/2, y)
		d.DrawString(line)
		y += lh
	}
}

func lineHeight(face font.Face) int {
	return int(float64(face.Metrics().Height.Ceil())*lineSpacing + 0.5)
}

// wrap breaks words into lines no wider than width. ok is false when a
// single word is wider than width on its own.
func wrap(face font.Face, words []string, width int) ([]string, bool) {
	ok := true
	var lines []string
	cur := ""
	for _, w := range words {
		candidate := w
		if cur != "" {
			candidate = cur + " " + w
		}
		if font.MeasureString(face, candidate).Ceil() <= width {
			cur = candidate
			continue
		}
		if cur != "" {
			lines = append(lines, cur)
		}
		if font.MeasureString(face, w).Ceil() > width {
			ok = false
		}
		cur = w
	}
	if cur != "" {
		lines = append(lines, cur)
	}
	return lines, ok
}
