package comic

import (
	"image"
	"time"
)

// Frame is a single decoded probe of the source video.
type Frame struct {
	Index     int           // Probe ordinal within the sampler pass
	Timestamp time.Duration // Offset from the start of the video
	Image     image.Image
	Salient   *image.Rectangle // nil until estimated
}

// Size returns the frame dimensions.
func (f Frame) Size() image.Point {
	if f.Image == nil {
		return image.Point{}
	}
	return f.Image.Bounds().Size()
}

// TimeRange is a half-open interval [Start, End).
type TimeRange struct {
	Start time.Duration
	End   time.Duration
}

// Overlaps reports whether the two ranges share any instant.
func (r TimeRange) Overlaps(o TimeRange) bool {
	return r.Start < o.End && o.Start < r.End
}

// SceneSegment is a frame selected as the start of a new scene.
type SceneSegment struct {
	Index           int
	StartFrame      int
	Frame           Frame
	DifferenceScore float64
}

// Timestamp of the representative frame.
func (s SceneSegment) Timestamp() time.Duration {
	return s.Frame.Timestamp
}

// DialogueLine is a transcript entry.
type DialogueLine struct {
	Text    string
	Range   TimeRange
	Speaker string
}

type BubbleStyle string

const (
	BubbleSpeech  BubbleStyle = "speech"
	BubbleThought BubbleStyle = "thought"
	BubbleCaption BubbleStyle = "caption"
)

// Bubble geometry is expressed in panel-local coordinates.
type Bubble struct {
	Text          string
	Anchor        image.Point
	Rect          image.Rectangle
	Style         BubbleStyle
	LowConfidence bool
}

// Panel places one segment's styled image into a page cell.
type Panel struct {
	SegmentIndex int
	Cell         image.Rectangle // Page coordinates
	Bubbles      []Bubble
	Placeholder  bool
	Annotations  []Annotation
}

// Size of the panel cell.
func (p Panel) Size() image.Point {
	return p.Cell.Size()
}

type LayoutTemplate string

const (
	TemplateGrid2x2 LayoutTemplate = "grid-2x2"
	TemplateGrid3x1 LayoutTemplate = "grid-3x1"
	TemplateSplash  LayoutTemplate = "splash"
	TemplateCustom  LayoutTemplate = "custom"
)

// Page is one comic page. Rows*Cols always equals len(Panels).
type Page struct {
	Index       int
	Template    LayoutTemplate
	Rows        int
	Cols        int
	Panels      []Panel
	Degraded    bool
	Annotations []Annotation
}

// Annotate appends a page-level annotation.
func (p *Page) Annotate(kind AnnotationKind, detail string) {
	p.Annotations = append(p.Annotations, Annotation{Kind: kind, Detail: detail})
}

// Annotate appends a panel-level annotation.
func (p *Panel) Annotate(kind AnnotationKind, detail string) {
	p.Annotations = append(p.Annotations, Annotation{Kind: kind, Detail: detail})
}
