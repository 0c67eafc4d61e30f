package ocr

import (
	"errors"
	"fmt"
)

// Recognition errors
var (
	// ErrOCRFailed is returned when the recognition backend rejects or fails a request.
	ErrOCRFailed = errors.New("text recognition failed")

	// ErrMissingCredentials is returned when the Vision client cannot find
	// GOOGLE_CREDENTIALS, GOOGLE_APPLICATION_CREDENTIALS or default credentials.
	ErrMissingCredentials = errors.New("missing Google Cloud credentials: set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS environment variable")

	// ErrEngineUnavailable is returned for an engine not compiled into this binary.
	ErrEngineUnavailable = errors.New("OCR engine not available in this build")

	// ErrUnknownEngine is returned for an unrecognised engine name.
	ErrUnknownEngine = errors.New("unknown OCR engine")

	// ErrImageTooLarge is returned when an encoded frame exceeds the request limit.
	ErrImageTooLarge = errors.New("frame image exceeds the maximum request size")

	// ErrNilImage is returned when Recognize is called without an image.
	ErrNilImage = errors.New("no image to recognise")
)

// OCRError wraps errors with the recognition step that failed.
type OCRError struct {
	// Op is the operation that failed (e.g. "Recognize", "NewVisionRecognizer").
	Op string

	Err error

	Details string
}

func (e *OCRError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("ocr: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("ocr: %s failed: %v", e.Op, e.Err)
}

func (e *OCRError) Unwrap() error {
	return e.Err
}

func (e *OCRError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// WrapOCRError wraps err as an *OCRError unless it already is one.
func WrapOCRError(op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var ocrErr *OCRError
	if errors.As(err, &ocrErr) {
		return err
	}

	return &OCRError{Op: op, Err: err, Details: details}
}
