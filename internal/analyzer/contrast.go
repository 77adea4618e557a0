package analyzer

import (
	"image"
	"image/draw"
	"math"
)

// ContrastDetector finds subjects as clusters of strong edges: Sobel
// gradient, threshold, dilation, connected components.
type ContrastDetector struct {
	MinAreaShare  float64 // Minimum block area as a share of the frame
	EdgeThreshold float64 // Gradient magnitude threshold
	DilateSize    int
	DilatePasses  int
}

func NewContrastDetector() *ContrastDetector {
	return &ContrastDetector{
		MinAreaShare:  0.01,
		EdgeThreshold: 60.0,
		DilateSize:    5,
		DilatePasses:  2,
	}
}

func (d *ContrastDetector) Detect(img image.Image) ([]Block, error) {
	gray := ToGray(img)
	edges := threshold(Sobel(gray), d.EdgeThreshold)
	dilated := dilate(edges, d.DilateSize, d.DilatePasses)

	b := gray.Bounds()
	minArea := int(d.MinAreaShare * float64(b.Dx()*b.Dy()))

	var blocks []Block
	for _, rect := range findContours(dilated) {
		if rect.Dx()*rect.Dy() < minArea {
			continue
		}
		blocks = append(blocks, Block{
			Rect:       rect.Add(img.Bounds().Min),
			Kind:       "subject",
			Confidence: edgeDensity(edges, rect),
		})
	}
	return blocks, nil
}

// ToGray returns a zero-origin grayscale copy of img.
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Rect.Min == (image.Point{}) {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Rect, img, b.Min, draw.Src)
	return gray
}

// Sobel returns the gradient magnitude of gray, clamped to 255. Border
// pixels are zero.
func Sobel(gray *image.Gray) *image.Gray {
	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	px := func(x, y int) float64 { return float64(gray.Pix[y*gray.Stride+x]) }

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			gx := -px(x-1, y-1) + px(x+1, y-1) -
				2*px(x-1, y) + 2*px(x+1, y) -
				px(x-1, y+1) + px(x+1, y+1)
			gy := -px(x-1, y-1) - 2*px(x, y-1) - px(x+1, y-1) +
				px(x-1, y+1) + 2*px(x, y+1) + px(x+1, y+1)
			out.Pix[y*out.Stride+x] = uint8(math.Min(255, math.Sqrt(gx*gx+gy*gy)))
		}
	}
	return out
}

func threshold(mag *image.Gray, t float64) *image.Gray {
	out := image.NewGray(mag.Rect)
	for i, v := range mag.Pix {
		if float64(v) > t {
			out.Pix[i] = 255
		}
	}
	return out
}

// dilate grows white areas so that nearby edges merge into one component.
func dilate(img *image.Gray, kernelSize, passes int) *image.Gray {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	half := kernelSize / 2
	result := img
	for p := 0; p < passes; p++ {
		next := image.NewGray(img.Rect)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				if result.Pix[y*result.Stride+x] == 0 {
					continue
				}
				for ky := max(0, y-half); ky <= min(h-1, y+half); ky++ {
					row := next.Pix[ky*next.Stride:]
					for kx := max(0, x-half); kx <= min(w-1, x+half); kx++ {
						row[kx] = 255
					}
				}
			}
		}
		result = next
	}
	return result
}

// findContours returns bounding rectangles of 4-connected white regions.
func findContours(img *image.Gray) []image.Rectangle {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	visited := make([]bool, w*h)
	var contours []image.Rectangle

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			if visited[i] || img.Pix[y*img.Stride+x] <= 128 {
				continue
			}
			contours = append(contours, floodFill(img, visited, x, y))
		}
	}
	return contours
}

func floodFill(img *image.Gray, visited []bool, startX, startY int) image.Rectangle {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	minX, minY, maxX, maxY := startX, startY, startX, startY

	stack := []image.Point{{X: startX, Y: startY}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if p.X < 0 || p.X >= w || p.Y < 0 || p.Y >= h {
			continue
		}
		i := p.Y*w + p.X
		if visited[i] || img.Pix[p.Y*img.Stride+p.X] <= 128 {
			continue
		}
		visited[i] = true

		minX, maxX = min(minX, p.X), max(maxX, p.X)
		minY, maxY = min(minY, p.Y), max(maxY, p.Y)

		stack = append(stack,
			image.Point{X: p.X + 1, Y: p.Y},
			image.Point{X: p.X - 1, Y: p.Y},
			image.Point{X: p.X, Y: p.Y + 1},
			image.Point{X: p.X, Y: p.Y - 1},
		)
	}

	return image.Rect(minX, minY, maxX+1, maxY+1)
}

// edgeDensity maps the share of edge pixels inside r to a confidence in [0.3, 1].
func edgeDensity(edges *image.Gray, r image.Rectangle) float64 {
	area := r.Dx() * r.Dy()
	if area == 0 {
		return 0
	}
	on := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for _, v := range edges.Pix[y*edges.Stride+r.Min.X : y*edges.Stride+r.Max.X] {
			if v != 0 {
				on++
			}
		}
	}
	return 0.3 + 0.7*math.Min(1, 4*float64(on)/float64(area))
}
