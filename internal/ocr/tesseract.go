//go:build tesseract

package ocr

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/otiai10/gosseract/v2"
	"github.com/rs/zerolog"

	"diyscan/internal/frames"
	"diyscan/internal/logger"
)

// TesseractRecognizer implements TextRecognizer with a local Tesseract install.
type TesseractRecognizer struct {
	mu     sync.Mutex
	client *gosseract.Client
	log    zerolog.Logger
}

// NewTesseractRecognizer creates a gosseract client. Language defaults to "eng".
func NewTesseractRecognizer(opts Options) (TextRecognizer, error) {
	const op = "NewTesseractRecognizer"

	lang := opts.Language
	if lang == "" || lang == "en" {
		lang = "eng"
	}

	client := gosseract.NewClient()
	if err := client.SetLanguage(lang); err != nil {
		client.Close()
		return nil, WrapOCRError(op, err, fmt.Sprintf("language %q", lang))
	}
	// One cropped row of text.
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_LINE); err != nil {
		client.Close()
		return nil, WrapOCRError(op, err, "setting page segmentation mode")
	}

	return &TesseractRecognizer{
		client: client,
		log:    logger.WithComponent("ocr.tesseract"),
	}, nil
}

// Recognize runs Tesseract over img. The client is not safe for concurrent
// use, so calls are serialised.
func (t *TesseractRecognizer) Recognize(ctx context.Context, img image.Image) (string, error) {
	const op = "Recognize"

	if img == nil {
		return "", WrapOCRError(op, ErrNilImage, "")
	}
	if err := ctx.Err(); err != nil {
		return "", WrapOCRError(op, err, "")
	}

	content, err := frames.EncodePNG(img)
	if err != nil {
		return "", WrapOCRError(op, err, "")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.client.SetImageFromBytes(content); err != nil {
		return "", WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("loading image: %v", err))
	}
	text, err := t.client.Text()
	if err != nil {
		return "", WrapOCRError(op, ErrOCRFailed, err.Error())
	}

	t.log.Debug().Int("chars", len(text)).Msg("Frame recognised")
	return text, nil
}

func (t *TesseractRecognizer) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.client.Close()
}
