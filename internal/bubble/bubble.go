package bubble

import (
	"image"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/ivlev/video2comic/internal/comic"
	"github.com/ivlev/video2comic/internal/config"
)

const (
	// Aspect is bubble width over height.
	Aspect = 2.2

	baseArea    = 0.03  // Area share of an empty bubble
	areaPerChar = 0.004 // Extra area share per character
	ellipsis    = "..."
)

// Placer sizes and positions dialogue bubbles inside one panel.
type Placer struct {
	MaxAreaFraction float64
	Tolerance       float64 // Accepted salient overlap, as a share of bubble area
	Margin          int
	Spacing         int
	MaxChars        int
}

func NewPlacer(cfg config.BubbleConfig) *Placer {
	return &Placer{
		MaxAreaFraction: cfg.MaxAreaFraction,
		Tolerance:       cfg.Tolerance,
		Margin:          cfg.Margin,
		Spacing:         cfg.Spacing,
		MaxChars:        cfg.MaxChars,
	}
}

// Place returns one bubble per line, stacked top to bottom in the order
// given (earliest first). Geometry is panel-local. salient may be nil, in
// which case every bubble becomes a caption. No line is ever dropped.
func (p *Placer) Place(panel image.Point, salient *image.Rectangle, lines []comic.DialogueLine) []comic.Bubble {
	if len(lines) == 0 || panel.X <= 0 || panel.Y <= 0 {
		return nil
	}
	bounds := image.Rectangle{Max: panel}

	var region *image.Rectangle
	if salient != nil {
		if r := salient.Intersect(bounds); !r.Empty() {
			region = &r
		}
	}

	margin, spacing := p.Margin, p.Spacing
	if 2*margin >= panel.X || 2*margin >= panel.Y {
		margin = 0
	}
	avail := image.Pt(panel.X-2*margin, panel.Y-2*margin)

	bubbles := make([]comic.Bubble, len(lines))
	sizes := make([]image.Point, len(lines))
	for i, l := range lines {
		text, style := p.classify(l.Text, region != nil)
		bubbles[i] = comic.Bubble{Text: text, Style: style}
		sizes[i] = p.size(panel, avail, utf8.RuneCountInString(text))
	}
	sizes, spacing = fitStack(sizes, spacing, avail.Y)

	block := image.Point{Y: spacing * (len(sizes) - 1)}
	for _, s := range sizes {
		block.X = max(block.X, s.X)
		block.Y += s.Y
	}

	var (
		best      []image.Rectangle
		bestScore = math.Inf(1)
	)
	for _, c := range candidates(panel, block, margin) {
		rects := stack(c, sizes, spacing)
		score, clean := p.overlap(rects, region)
		if clean {
			best = rects
			break
		}
		if score < bestScore {
			best, bestScore = rects, score
		}
	}

	for i := range bubbles {
		bubbles[i].Rect = best[i]
		bubbles[i].Anchor = anchor(best[i], region)
		if region != nil {
			share := overlapShare(best[i], *region)
			bubbles[i].LowConfidence = share > 0 && share >= p.Tolerance
		}
	}
	return bubbles
}

// classify trims the text and picks the bubble style.
func (p *Placer) classify(text string, hasSubject bool) (string, comic.BubbleStyle) {
	text = strings.TrimSpace(text)
	style := comic.BubbleSpeech
	if len(text) > 2 && strings.HasPrefix(text, "(") && strings.HasSuffix(text, ")") {
		text = strings.TrimSpace(text[1 : len(text)-1])
		style = comic.BubbleThought
	}
	if !hasSubject {
		style = comic.BubbleCaption
	}
	return Trim(text, p.MaxChars), style
}

// Trim cuts text to limit runes, marking the cut with an ellipsis.
func Trim(text string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:limit])) + ellipsis
}

// size grows with text length, capped at MaxAreaFraction of the panel and
// clipped to the panel interior.
func (p *Placer) size(panel, avail image.Point, chars int) image.Point {
	frac := math.Min(p.MaxAreaFraction, baseArea+areaPerChar*float64(chars))
	area := frac * float64(panel.X*panel.Y)
	w := math.Sqrt(area * Aspect)
	h := w / Aspect
	return image.Pt(
		max(1, min(avail.X, int(w))),
		max(1, min(avail.Y, int(h))),
	)
}

// fitStack shrinks all bubbles by the same factor until the stack fits the
// available height. Spacing is dropped only if it alone would not fit.
func fitStack(sizes []image.Point, spacing, avail int) ([]image.Point, int) {
	total := 0
	for _, s := range sizes {
		total += s.Y
	}
	gaps := spacing * (len(sizes) - 1)
	if total+gaps <= avail {
		return sizes, spacing
	}
	if gaps >= avail {
		spacing, gaps = 0, 0
	}

	scale := float64(avail-gaps) / float64(total)
	out := make([]image.Point, len(sizes))
	for i, s := range sizes {
		out[i] = image.Pt(max(1, int(float64(s.X)*scale)), max(1, int(float64(s.Y)*scale)))
	}
	return out, spacing
}

type corner struct {
	origin image.Point
	right  bool // Bubbles hug the right edge
}

// candidates lists stack origins in priority order: top-left, top-right,
// bottom-left, bottom-right.
func candidates(panel, block image.Point, margin int) []corner {
	left, top := margin, margin
	right := max(margin, panel.X-margin-block.X)
	bottom := max(margin, panel.Y-margin-block.Y)
	return []corner{
		{origin: image.Pt(left, top)},
		{origin: image.Pt(right, top), right: true},
		{origin: image.Pt(left, bottom)},
		{origin: image.Pt(right, bottom), right: true},
	}
}

func stack(c corner, sizes []image.Point, spacing int) []image.Rectangle {
	blockW := 0
	for _, s := range sizes {
		blockW = max(blockW, s.X)
	}
	rects := make([]image.Rectangle, len(sizes))
	y := c.origin.Y
	for i, s := range sizes {
		x := c.origin.X
		if c.right {
			x += blockW - s.X
		}
		rects[i] = image.Rect(x, y, x+s.X, y+s.Y)
		y += s.Y + spacing
	}
	return rects
}

// overlap sums the salient overlap shares of a stack; clean reports that
// every bubble is within tolerance.
func (p *Placer) overlap(rects []image.Rectangle, region *image.Rectangle) (float64, bool) {
	if region == nil {
		return 0, true
	}
	total, clean := 0.0, true
	for _, r := range rects {
		share := overlapShare(r, *region)
		total += share
		if share > 0 && share >= p.Tolerance {
			clean = false
		}
	}
	return total, clean
}

func overlapShare(r, region image.Rectangle) float64 {
	area := r.Dx() * r.Dy()
	if area == 0 {
		return 0
	}
	in := r.Intersect(region)
	return float64(in.Dx()*in.Dy()) / float64(area)
}

// anchor is the salient edge midpoint closest to the bubble centre; ties
// prefer top, bottom, left, right. Without a region it is the centre itself.
func anchor(r image.Rectangle, region *image.Rectangle) image.Point {
	c := image.Pt((r.Min.X+r.Max.X)/2, (r.Min.Y+r.Max.Y)/2)
	if region == nil {
		return c
	}
	s := *region
	mx, my := (s.Min.X+s.Max.X)/2, (s.Min.Y+s.Max.Y)/2
	edges := []image.Point{
		{X: mx, Y: s.Min.Y},
		{X: mx, Y: s.Max.Y},
		{X: s.Min.X, Y: my},
		{X: s.Max.X, Y: my},
	}
	best, bestDist := edges[0], math.MaxInt
	for _, e := range edges {
		dx, dy := e.X-c.X, e.Y-c.Y
		if d := dx*dx + dy*dy; d < bestDist {
			best, bestDist = e, d
		}
	}
	return best
}
