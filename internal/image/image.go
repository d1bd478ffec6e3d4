package image

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	stdimage "image"
	_ "image/jpeg"
	"image/png"

	"golang.org/x/image/draw"

	"github.com/toricodesthings/doc-conversion-service/internal/domain"
	"github.com/toricodesthings/doc-conversion-service/internal/ocr"
)

var fastPNG = png.Encoder{CompressionLevel: png.BestSpeed}

// ErrTooManyPixels is returned for images whose header exceeds
// domain.MaxImagePixels.
var ErrTooManyPixels = errors.New("image exceeds pixel limit")

// Normalize decodes a JPEG or PNG upload and re-encodes it as an opaque RGB
// PNG, so palette, grayscale, CMYK and transparent inputs all reach the OCR
// engine in the same colour mode. Transparent areas become white.
func Normalize(data []byte) ([]byte, error) {
	cfg, _, err := stdimage.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > domain.MaxImagePixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrTooManyPixels, cfg.Width, cfg.Height)
	}

	src, _, err := stdimage.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	b := src.Bounds()
	rgb := stdimage.NewRGBA(stdimage.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgb, rgb.Bounds(), stdimage.White, stdimage.Point{}, draw.Src)
	draw.Draw(rgb, rgb.Bounds(), src, b.Min, draw.Over)

	var buf bytes.Buffer
	if err := fastPNG.Encode(&buf, rgb); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// ProcessImageOCR normalises an uploaded image and runs it through engine.
// The recognised text is returned untouched; an empty string is a valid result.
// Every failure is a domain.KindOCR error.
func ProcessImageOCR(ctx context.Context, engine ocr.Engine, data []byte, lang string) (ocr.Result, error) {
	if lang == "" {
		lang = ocr.DefaultLanguage
	}
	if err := ocr.ValidateLanguage(lang); err != nil {
		return ocr.Result{}, domain.OCRError("language not available", err)
	}

	normalized, err := Normalize(data)
	if errors.Is(err, ErrTooManyPixels) {
		return ocr.Result{}, domain.OCRError("image is too large", err)
	}
	if err != nil {
		return ocr.Result{}, domain.OCRError("image could not be read", err)
	}

	res, err := engine.Recognize(ctx, ocr.Input{Image: normalized, Language: lang})
	if err != nil {
		return ocr.Result{}, domain.OCRError(fmt.Sprintf("%s engine failed", engine.Name()), err)
	}
	if res.Language == "" {
		res.Language = lang
	}
	return res, nil
}
