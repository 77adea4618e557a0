package renderer

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"

	"github.com/ivlev/video2comic/internal/comic"
)

const outline = 3.0

// drawBubble paints one bubble. Bubble geometry is panel-local and clipped
// to the panel cell.
func drawBubble(dst *image.RGBA, cell image.Rectangle, b comic.Bubble, text *textCache) {
	clip := dst.SubImage(cell).(*image.RGBA)
	rect := b.Rect.Add(cell.Min)
	anchor := b.Anchor.Add(cell.Min)

	switch b.Style {
	case comic.BubbleCaption:
		draw.Draw(clip, rect, image.NewUniform(captionFill), image.Point{}, draw.Src)
		strokeRect(clip, rect, 2, ink)
		text.Draw(clip, rect.Inset(min(rect.Dx(), rect.Dy())/8), b.Text)
		return
	case comic.BubbleThought:
		drawThoughtTrail(clip, rect, anchor)
	default:
		drawTail(clip, rect, anchor)
	}
	fillEllipse(clip, rect, ink, paper)
	text.Draw(clip, ellipseInterior(rect), b.Text)
}

// ellipseInterior is the largest axis-aligned box inside the ellipse
// inscribed in r, with a little padding.
func ellipseInterior(r image.Rectangle) image.Rectangle {
	const k = 0.64 // slightly under 1/sqrt(2)
	w := int(float64(r.Dx()) * k)
	h := int(float64(r.Dy()) * k)
	c := image.Pt((r.Min.X+r.Max.X)/2, (r.Min.Y+r.Max.Y)/2)
	return image.Rect(c.X-w/2, c.Y-h/2, c.X+w/2, c.Y+h/2)
}

// fillEllipse paints the ellipse inscribed in r with an outline.
func fillEllipse(dst *image.RGBA, r image.Rectangle, stroke, fill color.RGBA) {
	a, b := float64(r.Dx())/2, float64(r.Dy())/2
	if a < 1 || b < 1 {
		return
	}
	cx, cy := float64(r.Min.X)+a, float64(r.Min.Y)+b
	ia, ib := math.Max(a-outline, 0.5), math.Max(b-outline, 0.5)

	area := r.Intersect(dst.Rect)
	for y := area.Min.Y; y < area.Max.Y; y++ {
		dy := float64(y) + 0.5 - cy
		for x := area.Min.X; x < area.Max.X; x++ {
			dx := float64(x) + 0.5 - cx
			if dx*dx/(a*a)+dy*dy/(b*b) > 1 {
				continue
			}
			if dx*dx/(ia*ia)+dy*dy/(ib*ib) <= 1 {
				dst.SetRGBA(x, y, fill)
			} else {
				dst.SetRGBA(x, y, stroke)
			}
		}
	}
}

// tailTip limits how far a tail reaches out of its bubble.
func tailTip(r image.Rectangle, anchor image.Point) (center, tip [2]float64, ok bool) {
	cx, cy := float64(r.Min.X+r.Max.X)/2, float64(r.Min.Y+r.Max.Y)/2
	dx, dy := float64(anchor.X)-cx, float64(anchor.Y)-cy
	dist := math.Hypot(dx, dy)
	a, b := float64(r.Dx())/2, float64(r.Dy())/2
	if dist < 1 || a < 1 || b < 1 {
		return center, tip, false
	}
	ux, uy := dx/dist, dy/dist
	// distance from the centre to the ellipse edge along (ux, uy)
	edge := 1 / math.Sqrt(ux*ux/(a*a)+uy*uy/(b*b))
	if dist <= edge {
		return center, tip, false
	}
	reach := math.Min(dist, edge+0.8*math.Min(a, b))
	return [2]float64{cx, cy}, [2]float64{cx + ux*reach, cy + uy*reach}, true
}

// drawTail draws a wedge from the bubble centre toward the anchor; the
// ellipse painted afterwards covers its base.
func drawTail(dst *image.RGBA, r image.Rectangle, anchor image.Point) {
	c, tip, ok := tailTip(r, anchor)
	if !ok {
		return
	}
	half := math.Max(4, math.Min(float64(r.Dx()), float64(r.Dy()))/6)
	dx, dy := tip[0]-c[0], tip[1]-c[1]
	l := math.Hypot(dx, dy)
	px, py := -dy/l*half, dx/l*half

	outer := [3][2]float64{{c[0] + px, c[1] + py}, {c[0] - px, c[1] - py}, tip}
	fillTriangle(dst, outer, ink)

	shrink := (half - outline) / half
	inner := [3][2]float64{
		{c[0] + px*shrink, c[1] + py*shrink},
		{c[0] - px*shrink, c[1] - py*shrink},
		{tip[0] - dx/l*outline*2, tip[1] - dy/l*outline*2},
	}
	fillTriangle(dst, inner, paper)
}

// drawThoughtTrail places shrinking circles between the bubble and the anchor.
func drawThoughtTrail(dst *image.RGBA, r image.Rectangle, anchor image.Point) {
	c, tip, ok := tailTip(r, anchor)
	if !ok {
		return
	}
	base := math.Max(3, math.Min(float64(r.Dx()), float64(r.Dy()))/8)
	for i, t := range []float64{0.45, 0.7, 0.92} {
		x := c[0] + (tip[0]-c[0])*t
		y := c[1] + (tip[1]-c[1])*t
		rad := base * (1 - 0.25*float64(i))
		circle := image.Rect(int(x-rad), int(y-rad), int(x+rad), int(y+rad))
		fillEllipse(dst, circle, ink, paper)
	}
}

func fillTriangle(dst *image.RGBA, t [3][2]float64, c color.RGBA) {
	minX := math.Floor(math.Min(t[0][0], math.Min(t[1][0], t[2][0])))
	maxX := math.Ceil(math.Max(t[0][0], math.Max(t[1][0], t[2][0])))
	minY := math.Floor(math.Min(t[0][1], math.Min(t[1][1], t[2][1])))
	maxY := math.Ceil(math.Max(t[0][1], math.Max(t[1][1], t[2][1])))
	area := image.Rect(int(minX), int(minY), int(maxX)+1, int(maxY)+1).Intersect(dst.Rect)

	sign := func(p, a, b [2]float64) float64 {
		return (p[0]-b[0])*(a[1]-b[1]) - (a[0]-b[0])*(p[1]-b[1])
	}
	for y := area.Min.Y; y < area.Max.Y; y++ {
		for x := area.Min.X; x < area.Max.X; x++ {
			p := [2]float64{float64(x) + 0.5, float64(y) + 0.5}
			d1, d2, d3 := sign(p, t[0], t[1]), sign(p, t[1], t[2]), sign(p, t[2], t[0])
			neg := d1 < 0 || d2 < 0 || d3 < 0
			pos := d1 > 0 || d2 > 0 || d3 > 0
			if !(neg && pos) {
				dst.SetRGBA(x, y, c)
			}
		}
	}
}
