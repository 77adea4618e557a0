package transcript

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/ivlev/video2comic/internal/comic"
)

// Subtitles reads an SRT or WebVTT file on first use.
type Subtitles struct {
	path string

	once  sync.Once
	lines []comic.DialogueLine
	err   error
}

func NewSubtitles(path string) *Subtitles {
	return &Subtitles{path: path}
}

func (s *Subtitles) Lines(_ context.Context, r comic.TimeRange) ([]comic.DialogueLine, error) {
	s.once.Do(func() {
		f, err := os.Open(s.path)
		if err != nil {
			s.err = fmt.Errorf("%w: %v", comic.ErrTranscriptUnavailable, err)
			return
		}
		defer f.Close()
		s.lines, s.err = Parse(f)
		if s.err != nil {
			s.err = fmt.Errorf("%w: %s: %v", comic.ErrTranscriptUnavailable, s.path, s.err)
		}
	})
	if s.err != nil {
		return nil, s.err
	}
	return overlapping(s.lines, r), nil
}

// Parse reads SRT or WebVTT cues. Cue numbers, VTT headers, NOTE blocks and
// cue settings are ignored; multi-line cue text is joined with spaces.
// A leading "NAME:" becomes the speaker.
func Parse(r io.Reader) ([]comic.DialogueLine, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	var (
		lines []comic.DialogueLine
		cur   *comic.DialogueLine
		text  []string
		skip  bool
	)
	flush := func() {
		if cur != nil && len(text) > 0 {
			cur.Text = strings.Join(text, " ")
			cur.Speaker, cur.Text = splitSpeaker(cur.Text)
			lines = append(lines, *cur)
		}
		cur, text, skip = nil, nil, false
	}

	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(strings.TrimPrefix(sc.Text(), "\ufeff"))
		switch {
		case line == "":
			flush()
		case skip:
		case cur == nil && (strings.HasPrefix(line, "WEBVTT") || strings.HasPrefix(line, "NOTE") || strings.HasPrefix(line, "STYLE")):
			skip = true
		case strings.Contains(line, "-->"):
			rng, err := parseCueTiming(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			cur = &comic.DialogueLine{Range: rng}
			text = nil
		case cur != nil:
			text = append(text, stripTags(line))
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	flush()
	return lines, nil
}

func parseCueTiming(line string) (comic.TimeRange, error) {
	parts := strings.SplitN(line, "-->", 2)
	start, err := parseTimestamp(parts[0])
	if err != nil {
		return comic.TimeRange{}, err
	}
	endField := strings.Fields(parts[1])
	if len(endField) == 0 {
		return comic.TimeRange{}, fmt.Errorf("missing end time in %q", line)
	}
	end, err := parseTimestamp(endField[0])
	if err != nil {
		return comic.TimeRange{}, err
	}
	if end < start {
		return comic.TimeRange{}, fmt.Errorf("cue ends before it starts: %q", line)
	}
	return comic.TimeRange{Start: start, End: end}, nil
}

// parseTimestamp accepts hh:mm:ss,mmm, hh:mm:ss.mmm and the VTT short form mm:ss.mmm.
func parseTimestamp(value string) (time.Duration, error) {
	value = strings.ReplaceAll(strings.TrimSpace(value), ",", ".")
	main, frac, _ := strings.Cut(value, ".")
	hms := strings.Split(main, ":")
	if len(hms) == 2 {
		hms = append([]string{"0"}, hms...)
	}
	if len(hms) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}

	var parts [3]int
	for i, p := range hms {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid timestamp %q", value)
		}
		parts[i] = n
	}
	millis := 0
	if frac != "" {
		for len(frac) < 3 {
			frac += "0"
		}
		n, err := strconv.Atoi(frac[:3])
		if err != nil {
			return 0, fmt.Errorf("invalid timestamp %q", value)
		}
		millis = n
	}
	return time.Duration(parts[0])*time.Hour +
		time.Duration(parts[1])*time.Minute +
		time.Duration(parts[2])*time.Second +
		time.Duration(millis)*time.Millisecond, nil
}

func stripTags(s string) string {
	var b strings.Builder
	depth := 0
	for _, r := range s {
		switch {
		case r == '<':
			depth++
		case r == '>' && depth > 0:
			depth--
		case depth == 0:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

func splitSpeaker(text string) (speaker, rest string) {
	name, after, ok := strings.Cut(text, ":")
	if !ok || len(name) > 24 || strings.ToUpper(name) != name || strings.ContainsAny(name, "()[]") ||
		strings.IndexFunc(name, unicode.IsLetter) < 0 {
		return "", text
	}
	return strings.TrimSpace(name), strings.TrimSpace(after)
}
