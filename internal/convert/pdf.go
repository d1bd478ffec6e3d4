package convert

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/gen2brain/go-fitz"
	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	"github.com/toricodesthings/doc-conversion-service/internal/domain"
)

const (
	DefaultDPI     = 200
	DefaultQuality = 90
	defaultWorkers = 4
)

// RenderOptions controls PDF rasterisation. Zero values fall back to defaults.
type RenderOptions struct {
	DPI     int
	Quality int
	// Workers bounds concurrent JPEG encoders; rasterisation itself is serial.
	Workers int
}

func (o RenderOptions) withDefaults() RenderOptions {
	if o.DPI <= 0 {
		o.DPI = DefaultDPI
	}
	if o.Quality <= 0 {
		o.Quality = DefaultQuality
	}
	if o.Workers <= 0 {
		o.Workers = defaultWorkers
	}
	return o
}

// PDFRenderer rasterises PDF pages with MuPDF.
type PDFRenderer struct{}

func NewPDFRenderer() *PDFRenderer {
	return &PDFRenderer{}
}

// Render returns one JPEG per page in document order. A document without pages
// yields an empty slice and no error.
func (r *PDFRenderer) Render(ctx context.Context, pdf []byte, opts RenderOptions) ([][]byte, error) {
	opts = opts.withDefaults()

	if err := checkPDFMagic(pdf); err != nil {
		return nil, err
	}

	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return nil, domain.DocumentParseError("could not open PDF", err)
	}
	defer doc.Close()

	n := doc.NumPage()
	if n < 0 {
		return nil, domain.DocumentParseError("could not read page tree", nil)
	}
	pages := make([][]byte, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)

	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}

		img, err := doc.ImageDPI(i, float64(opts.DPI))
		if err != nil {
			_ = g.Wait()
			return nil, domain.ConversionError(fmt.Sprintf("could not render page %d", i+1), err)
		}

		i := i // per-iteration copy (go directive < 1.22)
		g.Go(func() error {
			data, err := encodeJPEG(img, opts.Quality)
			if err != nil {
				return domain.ConversionError(fmt.Sprintf("could not encode page %d", i+1), err)
			}
			pages[i] = data
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return pages, nil
}

// checkPDFMagic catches HTML error pages and other non-PDF payloads before
// MuPDF tries to repair them. The header may be preceded by up to 1KiB of junk.
func checkPDFMagic(pdf []byte) error {
	if len(pdf) == 0 {
		return domain.DocumentParseError("PDF is empty", nil)
	}
	head := pdf[:min(len(pdf), 1024)]
	if !bytes.Contains(head, []byte("%PDF-")) {
		preview := string(pdf[:min(len(pdf), 8)])
		return domain.DocumentParseError(fmt.Sprintf("file is not a PDF (starts with %q)", preview), nil)
	}
	return nil
}

// encodeJPEG flattens img onto white so no alpha reaches the encoder.
func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	b := img.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(canvas, canvas.Bounds(), img, b.Min, draw.Over)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
