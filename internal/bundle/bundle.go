package bundle

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/toricodesthings/doc-conversion-service/internal/domain"
)

var ErrEmpty = errors.New("bundle: nothing to package")

// Package frames conversion output for download. A single item is returned
// unchanged; several items are deflated into a zip named archiveName whose
// entries keep the order of items.
func Package(items []domain.Artifact, archiveName string) (domain.Artifact, error) {
	switch len(items) {
	case 0:
		return domain.Artifact{}, ErrEmpty
	case 1:
		return items[0], nil
	}

	data, err := Zip(items)
	if err != nil {
		return domain.Artifact{}, err
	}
	return domain.Artifact{Name: archiveName, MediaType: domain.MediaTypeZip, Data: data}, nil
}

// Zip writes items into an in-memory deflate archive.
func Zip(items []domain.Artifact) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	now := time.Now()

	seen := make(map[string]bool, len(items))
	for _, it := range items {
		if seen[it.Name] {
			_ = zw.Close()
			return nil, fmt.Errorf("bundle: duplicate entry %q", it.Name)
		}
		seen[it.Name] = true

		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     it.Name,
			Method:   zip.Deflate,
			Modified: now,
		})
		if err != nil {
			_ = zw.Close()
			return nil, fmt.Errorf("bundle: create %s: %w", it.Name, err)
		}
		if _, err := w.Write(it.Data); err != nil {
			_ = zw.Close()
			return nil, fmt.Errorf("bundle: write %s: %w", it.Name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("bundle: finalize: %w", err)
	}
	return buf.Bytes(), nil
}
