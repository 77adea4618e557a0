package director

import (
	"image"
	"time"

	"github.com/google/uuid"

	"github.com/ivlev/video2comic/internal/comic"
)

// Storyboard is the editable record of a finished layout: every cell,
// bubble and flag, so low-confidence placements can be fixed by hand.
type Storyboard struct {
	Version string      `yaml:"version"`
	JobID   string      `yaml:"job_id,omitempty"`
	Source  string      `yaml:"source"`
	Width   int         `yaml:"width"`
	Height  int         `yaml:"height"`
	Pages   []PageEntry `yaml:"pages"`
}

type PageEntry struct {
	Index       int                `yaml:"index"`
	Template    string             `yaml:"template"`
	Rows        int                `yaml:"rows"`
	Cols        int                `yaml:"cols"`
	Degraded    bool               `yaml:"degraded,omitempty"`
	Annotations []comic.Annotation `yaml:"annotations,omitempty"`
	Panels      []PanelEntry       `yaml:"panels"`
}

type PanelEntry struct {
	Segment     int                `yaml:"segment"`
	Time        float64            `yaml:"time"` // Seconds into the video
	Cell        Rectangle          `yaml:"cell"`
	Placeholder bool               `yaml:"placeholder,omitempty"`
	Annotations []comic.Annotation `yaml:"annotations,omitempty"`
	Bubbles     []BubbleEntry      `yaml:"bubbles,omitempty"`
}

type BubbleEntry struct {
	Text          string    `yaml:"text"`
	Style         string    `yaml:"style"`
	Rect          Rectangle `yaml:"rect"` // Panel-local
	Anchor        Point     `yaml:"anchor"`
	LowConfidence bool      `yaml:"low_confidence,omitempty"`
}

// Rectangle represents a bounding box
type Rectangle struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
	W int `yaml:"w"`
	H int `yaml:"h"`
}

type Point struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

func toRectangle(r image.Rectangle) Rectangle {
	return Rectangle{X: r.Min.X, Y: r.Min.Y, W: r.Dx(), H: r.Dy()}
}

// Image converts back to an image.Rectangle.
func (r Rectangle) Image() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H)
}

// NewStoryboard records pages; segments provide panel timestamps.
func NewStoryboard(jobID uuid.UUID, source string, width, height int, pages []comic.Page, segments []comic.SceneSegment) *Storyboard {
	times := make(map[int]time.Duration, len(segments))
	for _, s := range segments {
		times[s.Index] = s.Timestamp()
	}

	sb := &Storyboard{Version: "1.0", Source: source, Width: width, Height: height}
	if jobID != uuid.Nil {
		sb.JobID = jobID.String()
	}
	for _, p := range pages {
		pe := PageEntry{
			Index:       p.Index,
			Template:    string(p.Template),
			Rows:        p.Rows,
			Cols:        p.Cols,
			Degraded:    p.Degraded,
			Annotations: p.Annotations,
		}
		for _, panel := range p.Panels {
			entry := PanelEntry{
				Segment:     panel.SegmentIndex,
				Time:        times[panel.SegmentIndex].Seconds(),
				Cell:        toRectangle(panel.Cell),
				Placeholder: panel.Placeholder,
				Annotations: panel.Annotations,
			}
			for _, b := range panel.Bubbles {
				entry.Bubbles = append(entry.Bubbles, BubbleEntry{
					Text:          b.Text,
					Style:         string(b.Style),
					Rect:          toRectangle(b.Rect),
					Anchor:        Point{X: b.Anchor.X, Y: b.Anchor.Y},
					LowConfidence: b.LowConfidence,
				})
			}
			pe.Panels = append(pe.Panels, entry)
		}
		sb.Pages = append(sb.Pages, pe)
	}
	return sb
}

// ComicPages rebuilds the comic pages, e.g. after manual edits.
func (s *Storyboard) ComicPages() []comic.Page {
	pages := make([]comic.Page, 0, len(s.Pages))
	for _, pe := range s.Pages {
		p := comic.Page{
			Index:       pe.Index,
			Template:    comic.LayoutTemplate(pe.Template),
			Rows:        pe.Rows,
			Cols:        pe.Cols,
			Degraded:    pe.Degraded,
			Annotations: pe.Annotations,
		}
		for _, entry := range pe.Panels {
			panel := comic.Panel{
				SegmentIndex: entry.Segment,
				Cell:         entry.Cell.Image(),
				Placeholder:  entry.Placeholder,
				Annotations:  entry.Annotations,
			}
			for _, b := range entry.Bubbles {
				panel.Bubbles = append(panel.Bubbles, comic.Bubble{
					Text:          b.Text,
					Style:         comic.BubbleStyle(b.Style),
					Rect:          b.Rect.Image(),
					Anchor:        image.Pt(b.Anchor.X, b.Anchor.Y),
					LowConfidence: b.LowConfidence,
				})
			}
			p.Panels = append(p.Panels, panel)
		}
		pages = append(pages, p)
	}
	return pages
}

// Issue is a flag a reviewer should look at.
type Issue struct {
	Page    int
	Panel   int // -1 for page-level issues
	Kind    comic.AnnotationKind
	Message string
}

// Issues lists degraded pages, placeholder panels and low-confidence bubbles.
func (s *Storyboard) Issues() []Issue {
	var issues []Issue
	for _, p := range s.Pages {
		if p.Degraded {
			issues = append(issues, Issue{Page: p.Index, Panel: -1, Kind: comic.AnnotationRenderDegraded, Message: "page rendered with placeholders"})
		}
		for i, panel := range p.Panels {
			if panel.Placeholder {
				issues = append(issues, Issue{Page: p.Index, Panel: i, Kind: comic.AnnotationStylizationFailed, Message: "frame unavailable"})
			}
			for _, b := range panel.Bubbles {
				if b.LowConfidence {
					issues = append(issues, Issue{Page: p.Index, Panel: i, Kind: comic.AnnotationBubbleLowConfidence, Message: b.Text})
				}
			}
		}
	}
	return issues
}

// SceneReport lists selected segments without laying them out.
type SceneReport struct {
	Version  string       `yaml:"version"`
	Source   string       `yaml:"source"`
	Duration float64      `yaml:"duration"`
	Skipped  int          `yaml:"skipped_frames,omitempty"`
	Scenes   []SceneEntry `yaml:"scenes"`
}

type SceneEntry struct {
	Index    int     `yaml:"index"`
	Probe    int     `yaml:"probe"`
	Time     float64 `yaml:"time"`
	Score    float64 `yaml:"score"`
	Dramatic bool    `yaml:"dramatic,omitempty"`
}

func NewSceneReport(source string, duration time.Duration, skipped int, segments []comic.SceneSegment, dramatic float64) *SceneReport {
	r := &SceneReport{Version: "1.0", Source: source, Duration: duration.Seconds(), Skipped: skipped}
	for _, s := range segments {
		r.Scenes = append(r.Scenes, SceneEntry{
			Index:    s.Index,
			Probe:    s.StartFrame,
			Time:     s.Timestamp().Seconds(),
			Score:    s.DifferenceScore,
			Dramatic: s.Index > 0 && s.DifferenceScore > dramatic,
		})
	}
	return r
}
