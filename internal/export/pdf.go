package export

import (
	"bytes"
	"errors"
	"fmt"
	"image/png"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"
)

// A4 width in points; page height follows the rendered aspect ratio.
const pageWidthPt = 595.28

// Fixed document dates keep repeated exports byte-identical.
var documentDate = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// PDF lays every page out full-bleed, one per PDF page, and appends a
// colophon with a QR code when a share URL is configured.
func (p *Packager) PDF(jobID uuid.UUID, pages [][]byte) ([]byte, error) {
	if len(pages) == 0 {
		return nil, errors.New("no pages")
	}
	first, err := png.DecodeConfig(bytes.NewReader(pages[0]))
	if err != nil {
		return nil, fmt.Errorf("page 1: %w", err)
	}
	size := fpdf.SizeType{Wd: pageWidthPt, Ht: pageWidthPt * float64(first.Height) / float64(first.Width)}

	doc := fpdf.NewCustom(&fpdf.InitType{OrientationStr: "P", UnitStr: "pt", Size: size})
	doc.SetCreationDate(documentDate)
	doc.SetModificationDate(documentDate)
	doc.SetCatalogSort(true)
	doc.SetCompression(true)
	doc.SetAutoPageBreak(false, 0)
	doc.SetMargins(0, 0, 0)
	doc.SetTitle("video2comic "+jobID.String(), false)
	doc.SetCreator("video2comic", false)

	opts := fpdf.ImageOptions{ImageType: "PNG"}
	for i, data := range pages {
		name := PageName(i)
		doc.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
		if err := doc.Error(); err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
		doc.AddPage()
		doc.ImageOptions(name, 0, 0, size.Wd, size.Ht, false, opts, 0, "")
	}

	if url := p.ShareURL(jobID); url != "" {
		if err := addColophon(doc, size, url); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func addColophon(doc *fpdf.Fpdf, size fpdf.SizeType, url string) error {
	code, err := qrcode.Encode(url, qrcode.Medium, 256)
	if err != nil {
		return fmt.Errorf("qr code: %w", err)
	}
	opts := fpdf.ImageOptions{ImageType: "PNG"}
	doc.RegisterImageOptionsReader("colophon-qr", opts, bytes.NewReader(code))
	if err := doc.Error(); err != nil {
		return err
	}

	doc.AddPage()
	side := size.Wd / 3
	x := (size.Wd - side) / 2
	y := size.Ht/2 - side
	doc.ImageOptions("colophon-qr", x, y, side, side, false, opts, 0, "")

	doc.SetFont("Helvetica", "", 14)
	doc.SetXY(0, y+side+24)
	doc.CellFormat(size.Wd, 18, "Read online", "", 1, "C", false, 0, "")
	doc.SetFont("Helvetica", "", 9)
	doc.CellFormat(size.Wd, 14, url, "", 1, "C", false, 0, url)
	return doc.Error()
}
