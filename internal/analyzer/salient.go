package analyzer

import (
	"image"
	"sort"
)

// MaxSalientShare drops blocks that cover nearly the whole frame; those are
// busy backgrounds, not subjects.
const MaxSalientShare = 0.9

// Salient returns the region bubbles should avoid, or nil when the detector
// finds nothing worth protecting.
func Salient(d Detector, img image.Image) (*image.Rectangle, error) {
	if d == nil || img == nil {
		return nil, nil
	}
	blocks, err := d.Detect(img)
	if err != nil {
		return nil, err
	}

	frame := img.Bounds()
	limit := MaxSalientShare * float64(frame.Dx()*frame.Dy())
	candidates := blocks[:0:0]
	for _, b := range blocks {
		r := b.Rect.Intersect(frame)
		if r.Empty() || float64(r.Dx()*r.Dy()) > limit {
			continue
		}
		b.Rect = r
		candidates = append(candidates, b)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	// Сначала самый высокий score, при равенстве берем блок левее и выше
	sort.SliceStable(candidates, func(i, j int) bool {
		si, sj := candidates[i].Score(), candidates[j].Score()
		if si != sj {
			return si > sj
		}
		if candidates[i].Rect.Min.Y != candidates[j].Rect.Min.Y {
			return candidates[i].Rect.Min.Y < candidates[j].Rect.Min.Y
		}
		return candidates[i].Rect.Min.X < candidates[j].Rect.Min.X
	})

	best := candidates[0].Rect.Sub(frame.Min)
	return &best, nil
}
