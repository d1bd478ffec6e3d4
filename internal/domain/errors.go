package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so the HTTP boundary can decide how to surface it.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindDocumentParse Kind = "document_parse"
	KindConversion    Kind = "conversion"
	KindOCR           Kind = "ocr"
	KindNotFound      Kind = "not_found"
	KindStorage       Kind = "storage"
	KindInternal      Kind = "internal"
)

// Error is a categorized failure. Message is safe to show to users; Err, when
// present, carries the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func ValidationError(message string) *Error {
	return NewError(KindValidation, message, nil)
}

func DocumentParseError(message string, err error) *Error {
	return NewError(KindDocumentParse, message, err)
}

func ConversionError(message string, err error) *Error {
	return NewError(KindConversion, message, err)
}

func OCRError(message string, err error) *Error {
	return NewError(KindOCR, message, err)
}

func NotFoundError(message string) *Error {
	return NewError(KindNotFound, message, nil)
}

func StorageError(message string, err error) *Error {
	return NewError(KindStorage, message, err)
}

// KindOf reports the Kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// IsValidation is shorthand for KindOf(err) == KindValidation.
func IsValidation(err error) bool {
	return KindOf(err) == KindValidation
}
