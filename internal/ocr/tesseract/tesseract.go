// Package tesseract provides the libtesseract-backed OCR engine. It lives in
// its own package so that only binaries that need cgo OCR link against it.
package tesseract

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/toricodesthings/doc-conversion-service/internal/ocr"
)

// Engine implements ocr.Engine with a fresh gosseract client per call.
type Engine struct {
	tessdataPrefix string
	clientFactory  func() *gosseract.Client
}

// New returns an engine. tessdataPrefix overrides where trained models are
// looked up; empty means the library default.
func New(tessdataPrefix string) *Engine {
	return &Engine{tessdataPrefix: tessdataPrefix, clientFactory: gosseract.NewClient}
}

func (e *Engine) Name() string { return "tesseract" }

func (e *Engine) Recognize(ctx context.Context, in ocr.Input) (ocr.Result, error) {
	if err := ctx.Err(); err != nil {
		return ocr.Result{}, err
	}

	lang := in.Language
	if lang == "" {
		lang = ocr.DefaultLanguage
	}
	if err := ocr.ValidateLanguage(lang); err != nil {
		return ocr.Result{}, err
	}

	c := e.clientFactory()
	defer c.Close()

	if e.tessdataPrefix != "" {
		if err := c.SetTessdataPrefix(e.tessdataPrefix); err != nil {
			return ocr.Result{}, fmt.Errorf("set tessdata prefix: %w", err)
		}
	}
	if err := c.SetLanguage(strings.Split(lang, "+")...); err != nil {
		return ocr.Result{}, fmt.Errorf("set language: %w", err)
	}
	if err := c.SetImageFromBytes(in.Image); err != nil {
		return ocr.Result{}, fmt.Errorf("set image: %w", err)
	}

	text, err := c.Text()
	if err != nil {
		return ocr.Result{}, fmt.Errorf("recognize text: %w", err)
	}
	return ocr.Result{Text: text, Language: lang}, nil
}
