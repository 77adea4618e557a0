package director

import (
	"bytes"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ivlev/video2comic/internal/comic"
)

func samplePages() []comic.Page {
	return []comic.Page{{
		Index:    0,
		Template: comic.TemplateCustom,
		Rows:     2,
		Cols:     1,
		Degraded: true,
		Panels: []comic.Panel{
			{
				SegmentIndex: 0,
				Cell:         image.Rect(20, 20, 1220, 877),
				Bubbles: []comic.Bubble{{
					Text:          "Where were you?",
					Style:         comic.BubbleSpeech,
					Rect:          image.Rect(12, 12, 300, 140),
					Anchor:        image.Pt(500, 200),
					LowConfidence: true,
				}},
			},
			{
				SegmentIndex: 1,
				Cell:         image.Rect(20, 897, 1220, 1734),
				Placeholder:  true,
				Annotations:  []comic.Annotation{{Kind: comic.AnnotationStylizationFailed, Detail: "timeout"}},
			},
		},
	}}
}

func TestStoryboardWriteRead(t *testing.T) {
	sb := NewStoryboard(uuid.New(), "clip.mp4", 1240, 1754, samplePages(), segments(0, .4))

	path := filepath.Join(t.TempDir(), StoryboardName)
	if err := WriteStoryboard(sb, path); err != nil {
		t.Fatalf("WriteStoryboard failed: %v", err)
	}

	read, err := ReadStoryboard(path)
	if err != nil {
		t.Fatalf("ReadStoryboard failed: %v", err)
	}
	if read.JobID != sb.JobID || read.Source != "clip.mp4" {
		t.Errorf("Header mismatch: %+v", read)
	}
	if read.Pages[0].Panels[1].Time != 3 {
		t.Errorf("Expected panel time 3s, got %v", read.Pages[0].Panels[1].Time)
	}

	pages := read.ComicPages()
	if got := pages[0].Panels[0].Bubbles[0]; got.Rect != image.Rect(12, 12, 300, 140) || got.Anchor != image.Pt(500, 200) {
		t.Errorf("Bubble geometry lost: %+v", got)
	}
	if pages[0].Panels[1].Annotations[0].Kind != comic.AnnotationStylizationFailed {
		t.Errorf("Panel annotation lost: %+v", pages[0].Panels[1].Annotations)
	}

	issues := read.Issues()
	if len(issues) != 3 {
		t.Fatalf("Expected 3 issues (degraded, placeholder, low confidence), got %d", len(issues))
	}
	for _, is := range issues {
		t.Logf("Issue: page %d panel %d %s %q", is.Page, is.Panel, is.Kind, is.Message)
	}
}

func TestSceneReport(t *testing.T) {
	r := NewSceneReport("clip.mp4", 12*time.Second, 1, segments(0, .4, .9), 0.65)
	var buf bytes.Buffer
	if err := WriteSceneReport(r, "", &buf); err != nil {
		t.Fatalf("WriteSceneReport failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "skipped_frames: 1") {
		t.Errorf("Report should mention skipped frames:\n%s", out)
	}
	if strings.Count(out, "dramatic: true") != 1 {
		t.Errorf("Expected exactly one dramatic scene:\n%s", out)
	}
}

func TestFindLatestStoryboard(t *testing.T) {
	root := t.TempDir()
	files := []string{
		filepath.Join(root, "job-a", StoryboardName),
		filepath.Join(root, "job-b", StoryboardName),
		filepath.Join(root, "job-c", StoryboardName),
	}

	for i, f := range files {
		if err := os.MkdirAll(filepath.Dir(f), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(f, []byte("version: \"1.0\"\n"), 0644); err != nil {
			t.Fatal(err)
		}
		modTime := time.Now().Add(time.Duration(i) * time.Hour)
		os.Chtimes(f, modTime, modTime)
	}

	latest, err := FindLatestStoryboard(root)
	if err != nil {
		t.Fatalf("FindLatestStoryboard failed: %v", err)
	}
	if latest != files[len(files)-1] {
		t.Errorf("Expected latest to be %s, got %s", files[len(files)-1], latest)
	}

	direct, err := FindLatestStoryboard(files[0])
	if err != nil || direct != files[0] {
		t.Errorf("A file path should resolve to itself, got %s (%v)", direct, err)
	}

	if _, err := FindLatestStoryboard(t.TempDir()); err == nil {
		t.Error("Expected error for empty directory")
	}
}
