// Package ocr turns cropped frame images into text.
//
// Two engines are available behind the TextRecognizer interface:
//
//   - vision: Google Cloud Vision TEXT_DETECTION. Credentials come from
//     GOOGLE_CREDENTIALS (inline JSON), GOOGLE_APPLICATION_CREDENTIALS (file)
//     or application default credentials, in that order.
//   - tesseract: a local Tesseract install through gosseract. Only compiled
//     with the "tesseract" build tag since it needs cgo and libtesseract.
//
// A Scanner drives a frame source through a recognizer and yields one
// normalised line per frame.
package ocr

import (
	"context"
	"fmt"
	"image"
	"strings"
)

// Engine names accepted by NewRecognizer.
const (
	EngineVision    = "vision"
	EngineTesseract = "tesseract"
)

// TextRecognizer extracts the text shown in an image.
type TextRecognizer interface {
	// Recognize returns the raw text found in img. An image with no text
	// returns "" and a nil error.
	Recognize(ctx context.Context, img image.Image) (string, error)

	Close() error
}

// Options configures a recognizer.
type Options struct {
	// Language is a hint for the engine, e.g. "en" for Vision or "eng" for Tesseract.
	Language string

	// RequestsPerSecond throttles remote engines. Zero disables throttling.
	RequestsPerSecond float64
}

// NewRecognizer creates the recognizer registered under engine.
func NewRecognizer(ctx context.Context, engine string, opts Options) (TextRecognizer, error) {
	const op = "NewRecognizer"

	switch strings.ToLower(strings.TrimSpace(engine)) {
	case EngineVision, "":
		recognizer, err := NewVisionRecognizer(ctx, opts)
		if err != nil {
			return nil, err
		}
		return recognizer, nil
	case EngineTesseract:
		return NewTesseractRecognizer(opts)
	default:
		return nil, WrapOCRError(op, ErrUnknownEngine, fmt.Sprintf("engine %q", engine))
	}
}
