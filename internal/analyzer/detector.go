package analyzer

import "image"

// Block is a region of visual interest in a frame.
type Block struct {
	Rect       image.Rectangle
	Kind       string  // "subject", "texture"
	Confidence float64 // 0.0-1.0
}

// Score ranks blocks when choosing the salient region.
func (b Block) Score() float64 {
	return float64(b.Rect.Dx()*b.Rect.Dy()) * b.Confidence
}

// Detector finds candidate regions in a frame.
type Detector interface {
	Detect(img image.Image) ([]Block, error)
}

// CenterDetector assumes the subject sits in the middle of the frame.
type CenterDetector struct {
	Fraction float64 // Width/height share of the frame, default 0.5
}

func (d CenterDetector) Detect(img image.Image) ([]Block, error) {
	frac := d.Fraction
	if frac <= 0 || frac > 1 {
		frac = 0.5
	}
	b := img.Bounds()
	w := int(float64(b.Dx()) * frac)
	h := int(float64(b.Dy()) * frac)
	x0 := b.Min.X + (b.Dx()-w)/2
	y0 := b.Min.Y + (b.Dy()-h)/2
	return []Block{{Rect: image.Rect(x0, y0, x0+w, y0+h), Kind: "subject", Confidence: 0.5}}, nil
}
