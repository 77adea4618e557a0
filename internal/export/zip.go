package export

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
)

// Zip bundles the artifacts in the given order with fixed timestamps.
func Zip(ctx context.Context, artifacts []Artifact) ([]byte, error) {
	var buf bytes.Buffer
	zipWriter := zip.NewWriter(&buf)

	for _, a := range artifacts {
		if err := ctx.Err(); err != nil {
			zipWriter.Close()
			return nil, err
		}
		if err := addToZip(zipWriter, a); err != nil {
			zipWriter.Close()
			return nil, fmt.Errorf("add %s to zip: %w", a.Name, err)
		}
	}

	if err := zipWriter.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func addToZip(zipWriter *zip.Writer, a Artifact) error {
	header := &zip.FileHeader{
		Name:     a.Name,
		Method:   zip.Deflate,
		Modified: documentDate,
	}
	// PNG and PDF payloads are already compressed.
	if a.ContentType == ContentTypePNG || a.ContentType == ContentTypePDF {
		header.Method = zip.Store
	}

	writer, err := zipWriter.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = writer.Write(a.Data)
	return err
}
