package scene

import (
	"image"
	"math"

	"golang.org/x/image/draw"
)

const (
	histBins    = 32
	thumbWidth  = 64
	thumbHeight = 36
)

// signature is the reduced form of a frame used for comparison.
type signature struct {
	hist  [histBins]float64 // Normalized luma histogram
	thumb []uint8           // thumbWidth x thumbHeight luma
}

func signatureOf(img image.Image) signature {
	thumb := image.NewGray(image.Rect(0, 0, thumbWidth, thumbHeight))
	draw.ApproxBiLinear.Scale(thumb, thumb.Rect, img, img.Bounds(), draw.Src, nil)

	var sig signature
	sig.thumb = thumb.Pix
	for _, v := range thumb.Pix {
		sig.hist[int(v)*histBins/256]++
	}
	n := float64(len(thumb.Pix))
	for i := range sig.hist {
		sig.hist[i] /= n
	}
	return sig
}

// Difference mixes histogram distance (global tone shifts) with mean
// per-pixel distance (composition changes). Result is within [0,1].
func Difference(a, b image.Image) float64 {
	return distance(signatureOf(a), signatureOf(b))
}

func distance(a, b signature) float64 {
	var hist float64
	for i := range a.hist {
		hist += math.Abs(a.hist[i] - b.hist[i])
	}
	hist /= 2

	var pix float64
	for i := range a.thumb {
		pix += math.Abs(float64(a.thumb[i]) - float64(b.thumb[i]))
	}
	pix /= 255 * float64(len(a.thumb))

	return math.Min(1, 0.5*hist+0.5*pix)
}
