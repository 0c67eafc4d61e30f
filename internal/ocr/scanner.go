package ocr

import (
	"context"
	"image"
	"iter"
	"strings"

	"github.com/rs/zerolog"

	"diyscan/internal/frames"
	"diyscan/internal/logger"
	"diyscan/internal/textnorm"
)

// FrameSource yields processed frames. *frames.DirSource implements it.
type FrameSource interface {
	Frames(ctx context.Context) iter.Seq2[frames.Frame, error]
}

// ScanStats counts what happened to each frame of a scan.
type ScanStats struct {
	Frames     int `json:"frames"`
	Recognized int `json:"recognized"`
	Blank      int `json:"blank"`
	Failed     int `json:"failed"`
}

// Scanner runs every frame of a source through a recognizer.
type Scanner struct {
	Source     FrameSource
	Recognizer TextRecognizer

	stats   ScanStats
	lastErr error
	log     zerolog.Logger
}

// NewScanner creates a scanner over source using recognizer.
func NewScanner(source FrameSource, recognizer TextRecognizer) *Scanner {
	return &Scanner{
		Source:     source,
		Recognizer: recognizer,
		log:        logger.WithComponent("scanner"),
	}
}

// Lines yields one normalised line per frame, in frame order. Frames that
// could not be read or recognised yield "" so the sequence stays aligned
// with the frames; the failure is logged and counted. Cancelling ctx ends
// the sequence after the current frame.
func (s *Scanner) Lines(ctx context.Context) iter.Seq[string] {
	return func(yield func(string) bool) {
		for frame, err := range s.Source.Frames(ctx) {
			if ctx.Err() != nil {
				s.log.Warn().Err(ctx.Err()).Int("frames", s.stats.Frames).Msg("Scan interrupted")
				return
			}
			s.stats.Frames++

			if err != nil {
				s.stats.Failed++
				s.lastErr = err
				s.log.Warn().Err(err).Int("frame", frame.Index).Msg("Skipping unreadable frame")
				if !yield("") {
					return
				}
				continue
			}

			line, err := s.recognize(ctx, frame.Image)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.stats.Failed++
				s.lastErr = err
				s.log.Warn().
					Err(err).
					Int("frame", frame.Index).
					Str("path", frame.Path).
					Msg("Text recognition failed")
				line = ""
			} else if line == "" {
				s.stats.Blank++
			} else {
				s.stats.Recognized++
			}

			if !yield(line) {
				return
			}
		}

		s.log.Info().
			Int("frames", s.stats.Frames).
			Int("recognized", s.stats.Recognized).
			Int("blank", s.stats.Blank).
			Int("failed", s.stats.Failed).
			Msg("Scan finished")
	}
}

func (s *Scanner) recognize(ctx context.Context, img image.Image) (string, error) {
	text, err := s.Recognizer.Recognize(ctx, img)
	if err != nil {
		return "", err
	}
	return NormalizeText(text), nil
}

// Err returns the most recent frame failure, or nil.
func (s *Scanner) Err() error {
	return s.lastErr
}

// Stats returns the counts gathered so far.
func (s *Scanner) Stats() ScanStats {
	return s.stats
}

// NormalizeText folds recognised text onto one line, collapses runs of
// whitespace and lower-cases it.
func NormalizeText(text string) string {
	return textnorm.Normalize(strings.Join(strings.Fields(text), " "))
}
