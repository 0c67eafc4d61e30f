//go:build !tesseract

package ocr

// NewTesseractRecognizer reports ErrEngineUnavailable; build with
// `-tags tesseract` to link gosseract.
func NewTesseractRecognizer(Options) (TextRecognizer, error) {
	return nil, WrapOCRError("NewTesseractRecognizer", ErrEngineUnavailable, "rebuild with -tags tesseract")
}
