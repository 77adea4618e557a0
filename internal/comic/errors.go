package comic

import "errors"

var (
	// ErrMediaUnreadable is fatal: the whole video could not be decoded.
	ErrMediaUnreadable = errors.New("media unreadable")

	ErrFrameDecodeSkipped    = errors.New("frame decode skipped")
	ErrStylizationFailed     = errors.New("stylization failed")
	ErrTranscriptUnavailable = errors.New("transcript unavailable")
	ErrBubbleLowConfidence   = errors.New("bubble placement low confidence")
	ErrRenderDegraded        = errors.New("render degraded")

	ErrCancelled = errors.New("cancelled")
)

type AnnotationKind string

const (
	AnnotationFrameDecodeSkipped    AnnotationKind = "frame-decode-skipped"
	AnnotationStylizationFailed     AnnotationKind = "stylization-failed"
	AnnotationTranscriptUnavailable AnnotationKind = "transcript-unavailable"
	AnnotationBubbleLowConfidence   AnnotationKind = "bubble-low-confidence"
	AnnotationRenderDegraded        AnnotationKind = "render-degraded"
)

// Annotation records a recovered, non-fatal failure on the entity it is attached to.
type Annotation struct {
	Kind   AnnotationKind `yaml:"kind"`
	Detail string         `yaml:"detail,omitempty"`
}
