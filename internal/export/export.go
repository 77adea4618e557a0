package export

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ivlev/video2comic/internal/config"
)

const (
	ContentTypePNG  = "image/png"
	ContentTypePDF  = "application/pdf"
	ContentTypeZip  = "application/zip"
	ContentTypeYAML = "application/yaml"

	PDFName     = "comic.pdf"
	ArchiveName = "comic.zip"
)

// Artifact is one exported file, named relative to the job directory.
type Artifact struct {
	Name        string
	ContentType string
	Data        []byte
}

// PageName is the file name of a rendered page, 1-based.
func PageName(index int) string {
	return fmt.Sprintf("page-%03d.png", index+1)
}

func PreviewName(index int) string {
	return fmt.Sprintf("preview-%03d.png", index+1)
}

// Packager turns rendered pages into the downloadable bundle.
type Packager struct {
	cfg config.ExportConfig
	log *zap.Logger
}

func NewPackager(cfg config.ExportConfig, log *zap.Logger) *Packager {
	return &Packager{cfg: cfg, log: log}
}

// Package assembles every artifact enabled in the configuration. pages are
// PNG-encoded and ordered by page index; storyboard may be nil.
func (p *Packager) Package(ctx context.Context, jobID uuid.UUID, pages [][]byte, storyboard []byte) ([]Artifact, error) {
	artifacts := make([]Artifact, 0, len(pages)+4)
	for i, data := range pages {
		artifacts = append(artifacts, Artifact{Name: PageName(i), ContentType: ContentTypePNG, Data: data})
	}
	if storyboard != nil {
		artifacts = append(artifacts, Artifact{Name: "storyboard.yaml", ContentType: ContentTypeYAML, Data: storyboard})
	}

	var pdf []byte
	if p.cfg.PDF || p.cfg.Previews {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var err error
		pdf, err = p.PDF(jobID, pages)
		if err != nil {
			return nil, fmt.Errorf("export pdf: %w", err)
		}
		if p.cfg.PDF {
			artifacts = append(artifacts, Artifact{Name: PDFName, ContentType: ContentTypePDF, Data: pdf})
		}
	}

	if p.cfg.Previews {
		previews, err := p.Previews(ctx, pdf)
		if err != nil {
			// Previews are a convenience; the comic itself is complete.
			p.log.Warn("preview generation failed", zap.String("job_id", jobID.String()), zap.Error(err))
		} else {
			artifacts = append(artifacts, previews...)
		}
	}

	if p.cfg.Zip {
		archive, err := Zip(ctx, artifacts)
		if err != nil {
			return nil, fmt.Errorf("export zip: %w", err)
		}
		artifacts = append(artifacts, Artifact{Name: ArchiveName, ContentType: ContentTypeZip, Data: archive})
	}

	p.log.Debug("export packaged",
		zap.String("job_id", jobID.String()),
		zap.Int("pages", len(pages)),
		zap.Int("artifacts", len(artifacts)),
	)
	return artifacts, nil
}

// ShareURL is where the colophon QR code points, empty when sharing is off.
func (p *Packager) ShareURL(jobID uuid.UUID) string {
	if p.cfg.ShareBaseURL == "" {
		return ""
	}
	base := p.cfg.ShareBaseURL
	for len(base) > 0 && base[len(base)-1] == '/' {
		base = base[:len(base)-1]
	}
	return base + "/" + jobID.String()
}
