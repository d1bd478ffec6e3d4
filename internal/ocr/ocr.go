package ocr

import (
	"context"
	"fmt"
	"regexp"
)

const DefaultLanguage = "eng"

// Input is a single image submitted for recognition.
type Input struct {
	// Image is PNG-encoded RGB pixel data.
	Image []byte
	// Language is a Tesseract model name, or several joined with "+".
	Language string
}

// Result carries the engine's raw text output.
type Result struct {
	Text     string
	Language string
}

// Engine turns one image into text. Implementations must return the text
// exactly as the recogniser produced it.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, in Input) (Result, error)
}

var languagePattern = regexp.MustCompile(`^[A-Za-z0-9_]+(\+[A-Za-z0-9_]+)*$`)

// ValidateLanguage checks that lang is syntactically a Tesseract language spec.
// Whether the model is installed is only known to the engine.
func ValidateLanguage(lang string) error {
	if len(lang) > 64 || !languagePattern.MatchString(lang) {
		return fmt.Errorf("unsupported language %q", lang)
	}
	return nil
}
