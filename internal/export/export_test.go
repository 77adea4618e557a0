package export

import (
	"archive/zip"
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ivlev/video2comic/internal/config"
)

func pagePNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testPages(t *testing.T) [][]byte {
	return [][]byte{
		pagePNG(t, 124, 175, color.White),
		pagePNG(t, 124, 175, color.Black),
	}
}

func TestPDFIsDeterministic(t *testing.T) {
	p := NewPackager(config.Default().Export, zaptest.NewLogger(t))
	id := uuid.MustParse("7f1c8f52-1d2e-4d8c-9a47-2b0e3c1f5a10")
	pages := testPages(t)

	first, err := p.PDF(id, pages)
	require.NoError(t, err)
	second, err := p.PDF(id, pages)
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(first, []byte("%PDF-")))
	assert.Equal(t, first, second)
}

func TestPDFNoPages(t *testing.T) {
	p := NewPackager(config.Default().Export, zaptest.NewLogger(t))
	_, err := p.PDF(uuid.New(), nil)
	assert.Error(t, err)
}

func TestPDFColophon(t *testing.T) {
	cfg := config.Default().Export
	cfg.ShareBaseURL = "https://comics.example.org/"
	p := NewPackager(cfg, zaptest.NewLogger(t))
	id := uuid.MustParse("7f1c8f52-1d2e-4d8c-9a47-2b0e3c1f5a10")

	assert.Equal(t, "https://comics.example.org/7f1c8f52-1d2e-4d8c-9a47-2b0e3c1f5a10", p.ShareURL(id))

	withQR, err := p.PDF(id, testPages(t))
	require.NoError(t, err)

	plain, err := NewPackager(config.Default().Export, zaptest.NewLogger(t)).PDF(id, testPages(t))
	require.NoError(t, err)
	assert.Greater(t, len(withQR), len(plain))
}

func TestZip(t *testing.T) {
	artifacts := []Artifact{
		{Name: "page-001.png", ContentType: ContentTypePNG, Data: []byte("png")},
		{Name: "storyboard.yaml", ContentType: ContentTypeYAML, Data: []byte("version: 1\n")},
	}

	data, err := Zip(context.Background(), artifacts)
	require.NoError(t, err)
	again, err := Zip(context.Background(), artifacts)
	require.NoError(t, err)
	assert.Equal(t, data, again)

	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Len(t, r.File, 2)
	assert.Equal(t, "page-001.png", r.File[0].Name)
	assert.Equal(t, zip.Store, r.File[0].Method)
	assert.Equal(t, zip.Deflate, r.File[1].Method)

	f, err := r.File[1].Open()
	require.NoError(t, err)
	defer f.Close()
	body, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "version: 1\n", string(body))
}

func TestZipCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Zip(ctx, []Artifact{{Name: "a.png"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPackage(t *testing.T) {
	cfg := config.Default().Export
	cfg.Previews = false
	p := NewPackager(cfg, zaptest.NewLogger(t))

	artifacts, err := p.Package(context.Background(), uuid.New(), testPages(t), []byte("version: 1\n"))
	require.NoError(t, err)

	var names []string
	for _, a := range artifacts {
		names = append(names, a.Name)
	}
	assert.Equal(t, []string{"page-001.png", "page-002.png", "storyboard.yaml", PDFName, ArchiveName}, names)
}

func TestPackagePagesOnly(t *testing.T) {
	p := NewPackager(config.ExportConfig{}, zaptest.NewLogger(t))
	artifacts, err := p.Package(context.Background(), uuid.New(), testPages(t), nil)
	require.NoError(t, err)
	require.Len(t, artifacts, 2)
	assert.Equal(t, ContentTypePNG, artifacts[1].ContentType)
}

func TestThumbnail(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 640, 900))
	thumb := thumbnail(img, 320)
	assert.Equal(t, image.Pt(320, 450), thumb.Bounds().Size())

	small := image.NewRGBA(image.Rect(0, 0, 100, 100))
	assert.Same(t, small, thumbnail(small, 320).(*image.RGBA))
}

func TestPreviews(t *testing.T) {
	cfg := config.Default().Export
	cfg.PreviewWidth = 100
	p := NewPackager(cfg, zaptest.NewLogger(t))

	pdf, err := p.PDF(uuid.New(), testPages(t))
	require.NoError(t, err)

	previews, err := p.Previews(context.Background(), pdf)
	require.NoError(t, err)
	require.Len(t, previews, 2)
	assert.Equal(t, "preview-002.png", previews[1].Name)

	cfgImg, err := png.DecodeConfig(bytes.NewReader(previews[0].Data))
	require.NoError(t, err)
	assert.Equal(t, 100, cfgImg.Width)
}
