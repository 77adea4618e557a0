package director

import (
	"fmt"
	"image"

	"github.com/ivlev/video2comic/internal/comic"
	"github.com/ivlev/video2comic/internal/config"
)

// Director groups scene segments into pages and computes panel geometry.
type Director struct {
	PageWidth         int
	PageHeight        int
	Gutter            int
	Template          comic.LayoutTemplate
	DramaticThreshold float64 // Segments scoring above it get a splash page
}

func NewDirector(layout config.LayoutConfig, dramatic float64) *Director {
	return &Director{
		PageWidth:         layout.PageWidth,
		PageHeight:        layout.PageHeight,
		Gutter:            layout.Gutter,
		Template:          comic.LayoutTemplate(layout.Template),
		DramaticThreshold: dramatic,
	}
}

// Shape returns rows and columns of a template. Custom templates hold n
// panels in a single column.
func Shape(t comic.LayoutTemplate, n int) (rows, cols int) {
	switch t {
	case comic.TemplateSplash:
		return 1, 1
	case comic.TemplateGrid3x1:
		return 3, 1
	case comic.TemplateGrid2x2:
		return 2, 2
	default:
		return n, 1
	}
}

// Capacity is the number of panels a named template holds.
func Capacity(t comic.LayoutTemplate) int {
	rows, cols := Shape(t, 1)
	return rows * cols
}

// fallback picks the template for an under-full group.
func fallback(n int) comic.LayoutTemplate {
	switch n {
	case 1:
		return comic.TemplateSplash
	case 3:
		return comic.TemplateGrid3x1
	case 4:
		return comic.TemplateGrid2x2
	default:
		return comic.TemplateCustom
	}
}

// Paginate lays segments out in order. Groups fill the configured template;
// a dramatic segment closes the open group early and takes a splash page of
// its own. Pages are never padded with blank panels.
func (d *Director) Paginate(segments []comic.SceneSegment) ([]comic.Page, error) {
	capacity := Capacity(d.Template)
	if d.Template == comic.TemplateCustom || capacity == 0 {
		return nil, fmt.Errorf("template %q cannot be selected directly", d.Template)
	}

	var pages []comic.Page
	var pending []comic.SceneSegment

	flush := func() {
		if len(pending) == 0 {
			return
		}
		tmpl := d.Template
		if len(pending) != capacity {
			tmpl = fallback(len(pending))
		}
		pages = append(pages, d.page(len(pages), tmpl, pending))
		pending = nil
	}

	for _, seg := range segments {
		if seg.Index > 0 && d.DramaticThreshold > 0 && seg.DifferenceScore > d.DramaticThreshold {
			flush()
			pages = append(pages, d.page(len(pages), comic.TemplateSplash, []comic.SceneSegment{seg}))
			continue
		}
		pending = append(pending, seg)
		if len(pending) == capacity {
			flush()
		}
	}
	flush()
	return pages, nil
}

func (d *Director) page(index int, tmpl comic.LayoutTemplate, group []comic.SceneSegment) comic.Page {
	rows, cols := Shape(tmpl, len(group))
	cells := d.Cells(rows, cols)

	page := comic.Page{
		Index:    index,
		Template: tmpl,
		Rows:     rows,
		Cols:     cols,
		Panels:   make([]comic.Panel, len(group)),
	}
	for i, seg := range group {
		page.Panels[i] = comic.Panel{SegmentIndex: seg.Index, Cell: cells[i]}
	}
	return page
}

// Cells subdivides the page into rows x cols cells in reading order, with
// a gutter around and between them. Integer remainders go to the last row
// and column so cells and gutters tile the canvas exactly.
func (d *Director) Cells(rows, cols int) []image.Rectangle {
	xs := split(d.PageWidth, cols, d.Gutter)
	ys := split(d.PageHeight, rows, d.Gutter)

	cells := make([]image.Rectangle, 0, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			cells = append(cells, image.Rect(xs[c][0], ys[r][0], xs[c][1], ys[r][1]))
		}
	}
	return cells
}

// split divides length into n spans separated and surrounded by gutter.
func split(length, n, gutter int) [][2]int {
	inner := length - gutter*(n+1)
	size := inner / n
	rem := inner - size*n

	spans := make([][2]int, n)
	pos := gutter
	for i := range spans {
		w := size
		if i == n-1 {
			w += rem
		}
		spans[i] = [2]int{pos, pos + w}
		pos += w + gutter
	}
	return spans
}
