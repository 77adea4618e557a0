package director

import (
	"image"
	"testing"
	"time"

	"github.com/ivlev/video2comic/internal/comic"
	"github.com/ivlev/video2comic/internal/config"
)

func segments(scores ...float64) []comic.SceneSegment {
	out := make([]comic.SceneSegment, len(scores))
	for i, s := range scores {
		out[i] = comic.SceneSegment{
			Index:           i,
			StartFrame:      i * 3,
			Frame:           comic.Frame{Index: i * 3, Timestamp: time.Duration(i*3) * time.Second},
			DifferenceScore: s,
		}
	}
	return out
}

func newTestDirector(template string) *Director {
	layout := config.Default().Layout
	layout.Template = template
	return NewDirector(layout, 0.65)
}

func TestPaginate(t *testing.T) {
	tests := []struct {
		name      string
		template  string
		scores    []float64
		templates []comic.LayoutTemplate
	}{
		{
			name:      "full pages",
			template:  "grid-2x2",
			scores:    []float64{0, .4, .4, .4, .4, .4, .4, .4},
			templates: []comic.LayoutTemplate{comic.TemplateGrid2x2, comic.TemplateGrid2x2},
		},
		{
			name:      "remainder of one becomes splash",
			template:  "grid-2x2",
			scores:    []float64{0, .4, .4, .4, .4},
			templates: []comic.LayoutTemplate{comic.TemplateGrid2x2, comic.TemplateSplash},
		},
		{
			name:      "remainder of three becomes grid-3x1",
			template:  "grid-2x2",
			scores:    []float64{0, .4, .4},
			templates: []comic.LayoutTemplate{comic.TemplateGrid3x1},
		},
		{
			name:      "remainder of two becomes custom",
			template:  "grid-2x2",
			scores:    []float64{0, .4},
			templates: []comic.LayoutTemplate{comic.TemplateCustom},
		},
		{
			name:      "dramatic cut flushes and takes a splash",
			template:  "grid-2x2",
			scores:    []float64{0, .4, .4, .9, .4, .4, .4, .4},
			templates: []comic.LayoutTemplate{comic.TemplateGrid3x1, comic.TemplateSplash, comic.TemplateGrid2x2},
		},
		{
			name:      "grid-3x1",
			template:  "grid-3x1",
			scores:    []float64{0, .4, .4, .4},
			templates: []comic.LayoutTemplate{comic.TemplateGrid3x1, comic.TemplateSplash},
		},
		{
			name:      "single segment",
			template:  "grid-2x2",
			scores:    []float64{0},
			templates: []comic.LayoutTemplate{comic.TemplateSplash},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDirector(tt.template)
			pages, err := d.Paginate(segments(tt.scores...))
			if err != nil {
				t.Fatalf("Paginate failed: %v", err)
			}
			if len(pages) != len(tt.templates) {
				t.Fatalf("Expected %d pages, got %d", len(tt.templates), len(pages))
			}

			next := 0
			for i, p := range pages {
				if p.Index != i {
					t.Errorf("Page %d has index %d", i, p.Index)
				}
				if p.Template != tt.templates[i] {
					t.Errorf("Page %d: expected %s, got %s", i, tt.templates[i], p.Template)
				}
				if len(p.Panels) != p.Rows*p.Cols {
					t.Errorf("Page %d: %d panels for %dx%d grid", i, len(p.Panels), p.Rows, p.Cols)
				}
				for _, panel := range p.Panels {
					if panel.SegmentIndex != next {
						t.Errorf("Page %d: expected segment %d, got %d", i, next, panel.SegmentIndex)
					}
					next++
				}
			}
			if next != len(tt.scores) {
				t.Errorf("Expected %d panels overall, got %d", len(tt.scores), next)
			}
		})
	}
}

func TestPaginateRejectsCustom(t *testing.T) {
	d := newTestDirector("custom")
	if _, err := d.Paginate(segments(0, .4)); err == nil {
		t.Error("Expected error for custom template, got nil")
	}
}

func TestCellsTileCanvas(t *testing.T) {
	shapes := [][2]int{{1, 1}, {2, 2}, {3, 1}, {5, 1}, {7, 3}}
	d := &Director{PageWidth: 1237, PageHeight: 1753, Gutter: 20}

	for _, s := range shapes {
		rows, cols := s[0], s[1]
		cells := d.Cells(rows, cols)
		if len(cells) != rows*cols {
			t.Fatalf("%dx%d: expected %d cells, got %d", rows, cols, rows*cols, len(cells))
		}

		canvas := image.Rect(0, 0, d.PageWidth, d.PageHeight)
		area := 0
		for i, c := range cells {
			if !c.In(canvas) {
				t.Errorf("%dx%d: cell %d %v outside canvas", rows, cols, i, c)
			}
			area += c.Dx() * c.Dy()
			for j := i + 1; j < len(cells); j++ {
				if c.Overlaps(cells[j]) {
					t.Errorf("%dx%d: cells %d and %d overlap", rows, cols, i, j)
				}
			}
		}

		// Cells plus gutters cover the canvas exactly.
		wantArea := (d.PageWidth - d.Gutter*(cols+1)) * (d.PageHeight - d.Gutter*(rows+1))
		if area != wantArea {
			t.Errorf("%dx%d: cell area %d, want %d", rows, cols, area, wantArea)
		}
		last := cells[len(cells)-1]
		if last.Max.X != d.PageWidth-d.Gutter || last.Max.Y != d.PageHeight-d.Gutter {
			t.Errorf("%dx%d: last cell %v does not reach the far gutter", rows, cols, last)
		}
		if cells[0].Min != image.Pt(d.Gutter, d.Gutter) {
			t.Errorf("%dx%d: first cell starts at %v", rows, cols, cells[0].Min)
		}
	}
}
