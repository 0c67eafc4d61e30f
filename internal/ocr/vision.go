package ocr

import (
	"context"
	"fmt"
	"image"
	"os"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	"diyscan/internal/frames"
	"diyscan/internal/logger"
)

// MaxImageBytes is the Vision API limit for inline image content.
const MaxImageBytes = 20 * 1024 * 1024

// imageAnnotator is the part of the Vision client the recognizer uses.
type imageAnnotator interface {
	BatchAnnotateImages(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error)
	Close() error
}

// VisionRecognizer implements TextRecognizer with Google Cloud Vision.
type VisionRecognizer struct {
	client   imageAnnotator
	limiter  *rate.Limiter
	language string
	log      zerolog.Logger
}

// NewVisionRecognizer creates a Vision client with credentials from the environment.
func NewVisionRecognizer(ctx context.Context, opts Options) (*VisionRecognizer, error) {
	const op = "NewVisionRecognizer"

	var client *vision.ImageAnnotatorClient
	var err error

	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
		if err != nil {
			return nil, WrapOCRError(op, err, "failed to create client with GOOGLE_CREDENTIALS")
		}
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsFile(credFile))
		if err != nil {
			return nil, WrapOCRError(op, err, "failed to create client with GOOGLE_APPLICATION_CREDENTIALS")
		}
	} else {
		client, err = vision.NewImageAnnotatorClient(ctx)
		if err != nil {
			return nil, WrapOCRError(op, ErrMissingCredentials, "no credentials found in environment")
		}
	}

	return newVisionRecognizer(client, opts), nil
}

func newVisionRecognizer(client imageAnnotator, opts Options) *VisionRecognizer {
	r := &VisionRecognizer{
		client:   client,
		language: opts.Language,
		log:      logger.WithComponent("ocr.vision"),
	}
	if opts.RequestsPerSecond > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return r
}

// Recognize sends img to TEXT_DETECTION and returns the full detected text.
func (v *VisionRecognizer) Recognize(ctx context.Context, img image.Image) (string, error) {
	const op = "Recognize"

	if img == nil {
		return "", WrapOCRError(op, ErrNilImage, "")
	}

	content, err := frames.EncodePNG(img)
	if err != nil {
		return "", WrapOCRError(op, err, "")
	}
	if len(content) > MaxImageBytes {
		return "", WrapOCRError(op, ErrImageTooLarge, fmt.Sprintf("image size: %d bytes", len(content)))
	}

	if v.limiter != nil {
		if err := v.limiter.Wait(ctx); err != nil {
			return "", WrapOCRError(op, err, "waiting for request slot")
		}
	}

	req := &visionpb.AnnotateImageRequest{
		Image: &visionpb.Image{Content: content},
		Features: []*visionpb.Feature{
			{Type: visionpb.Feature_TEXT_DETECTION},
		},
	}
	if v.language != "" {
		req.ImageContext = &visionpb.ImageContext{LanguageHints: []string{v.language}}
	}

	start := time.Now()
	resp, err := v.client.BatchAnnotateImages(ctx, &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{req},
	})
	if err != nil {
		return "", WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("Vision API call failed: %v", err))
	}
	if len(resp.GetResponses()) == 0 {
		return "", WrapOCRError(op, ErrOCRFailed, "no response from Vision API")
	}

	imageResp := resp.GetResponses()[0]
	if imageResp.GetError() != nil {
		return "", WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("Vision API error: %s", imageResp.GetError().GetMessage()))
	}

	text := detectedText(imageResp)
	v.log.Debug().
		Int("bytes", len(content)).
		Dur("duration", time.Since(start)).
		Int("chars", len(text)).
		Msg("Frame recognised")

	return text, nil
}

// detectedText prefers the full annotation; the first text annotation holds
// the same text for plain TEXT_DETECTION responses.
func detectedText(resp *visionpb.AnnotateImageResponse) string {
	if full := resp.GetFullTextAnnotation(); full != nil && full.GetText() != "" {
		return full.GetText()
	}
	if annotations := resp.GetTextAnnotations(); len(annotations) > 0 {
		return annotations[0].GetDescription()
	}
	return ""
}

// Close closes the underlying Vision client.
func (v *VisionRecognizer) Close() error {
	if v.client != nil {
		return v.client.Close()
	}
	return nil
}
