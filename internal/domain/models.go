package domain

import "github.com/toricodesthings/doc-conversion-service/internal/quality"

// Media types of the artifacts produced by the conversions.
const (
	MediaTypeJPEG = "image/jpeg"
	MediaTypePDF  = "application/pdf"
	MediaTypeZip  = "application/zip"
	MediaTypeText = "text/plain; charset=utf-8"
)

// MaxImagePixels caps the decoded size of any uploaded raster image. Headers
// claiming more pixels are rejected before the pixel data is decoded.
const MaxImagePixels = 2 * 89_478_485

// SourceDocument is an uploaded PDF or image. Filename is the name declared by
// the client and is only used for validation and to derive output names.
type SourceDocument struct {
	Filename string
	Data     []byte
}

// Artifact is a named byte buffer destined for download.
type Artifact struct {
	Name      string
	MediaType string
	Data      []byte
}

// ExtractedText is the outcome of an OCR run. Text is exactly what the engine
// produced.
type ExtractedText struct {
	Text         string
	Language     string
	ArtifactName string
	Quality      quality.Report
}
