// Package validate holds the upload and parameter checks that run before any
// conversion is attempted. Every failure is a domain.KindValidation error.
package validate

import (
	"fmt"
	"strings"

	"github.com/toricodesthings/doc-conversion-service/internal/domain"
)

// Extensions is a set of lowercased extensions without the leading dot.
type Extensions map[string]bool

var (
	PDFExtensions   = Extensions{"pdf": true}
	ImageExtensions = Extensions{"jpg": true, "jpeg": true, "png": true}
)

const (
	MinQuality = 1
	MaxQuality = 100
)

// Allowed reports whether filename has a dot and its lowercased suffix after
// the last dot is in exts. Content is never sniffed.
func Allowed(filename string, exts Extensions) bool {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 {
		return false
	}
	return exts[strings.ToLower(filename[idx+1:])]
}

// Upload rejects a missing document or filename with missingMsg and a
// disallowed extension with badExtMsg.
func Upload(doc *domain.SourceDocument, exts Extensions, missingMsg, badExtMsg string) error {
	if doc == nil || doc.Filename == "" {
		return domain.ValidationError(missingMsg)
	}
	if !Allowed(doc.Filename, exts) {
		return domain.ValidationError(badExtMsg)
	}
	return nil
}

// DPIRange bounds the rasterisation resolution.
type DPIRange struct {
	Min int
	Max int
}

// RenderParams rejects out-of-range values instead of clamping them.
func RenderParams(dpi, quality int, r DPIRange) error {
	if dpi < r.Min || dpi > r.Max {
		return domain.ValidationError(fmt.Sprintf("DPI must be between %d and %d.", r.Min, r.Max))
	}
	if quality < MinQuality || quality > MaxQuality {
		return domain.ValidationError(fmt.Sprintf("JPEG quality must be between %d and %d.", MinQuality, MaxQuality))
	}
	return nil
}
