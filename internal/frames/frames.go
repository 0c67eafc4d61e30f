// Package frames reads extracted video frames and isolates the on-screen
// text row that names the item being shown.
//
// Frames are expected as image files in one directory (for example the output
// of `ffmpeg -i scan.mp4 frames/%06d.png`); they are visited in file-name
// order. Each frame is cropped to the configured Region and converted to
// grayscale before being handed to a text recognizer.
package frames

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"

	"diyscan/internal/logger"
)

var (
	// ErrInvalidRegion is returned for a region with no area.
	ErrInvalidRegion = errors.New("invalid frame region")

	// ErrRegionOutOfBounds is returned when the region misses the frame entirely.
	ErrRegionOutOfBounds = errors.New("frame region outside image bounds")

	// ErrNoFrames is returned when the frame directory holds no images.
	ErrNoFrames = errors.New("no frame images found")
)

// Region is the pixel rectangle holding the item name, in frame coordinates.
// Top and Left are inclusive, Bottom and Right exclusive.
type Region struct {
	Top    int `mapstructure:"top"`
	Bottom int `mapstructure:"bottom"`
	Left   int `mapstructure:"left"`
	Right  int `mapstructure:"right"`
}

// DefaultRegion is the name row of a 1280x720 recipe list capture.
func DefaultRegion() Region {
	return Region{Top: 490, Bottom: 540, Left: 0, Right: 1280}
}

// Validate checks that the region has a positive area.
func (r Region) Validate() error {
	if r.Top < 0 || r.Left < 0 {
		return fmt.Errorf("%w: negative origin (%d, %d)", ErrInvalidRegion, r.Left, r.Top)
	}
	if r.Bottom <= r.Top || r.Right <= r.Left {
		return fmt.Errorf("%w: %dx%d", ErrInvalidRegion, r.Right-r.Left, r.Bottom-r.Top)
	}
	return nil
}

// Rect returns the region as an image rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.Left, r.Top, r.Right, r.Bottom)
}

// Frame is one processed frame.
type Frame struct {
	Index int
	Path  string
	Image image.Image
}

// Process crops img to region and converts it to grayscale.
func Process(img image.Image, region Region) (image.Image, error) {
	if err := region.Validate(); err != nil {
		return nil, err
	}
	if !region.Rect().Overlaps(img.Bounds()) {
		return nil, fmt.Errorf("%w: region %v, image %v", ErrRegionOutOfBounds, region.Rect(), img.Bounds())
	}
	return imaging.Grayscale(imaging.Crop(img, region.Rect())), nil
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".bmp": true,
	".gif": true, ".tif": true, ".tiff": true,
}

// DirSource reads frames from the image files of a directory.
type DirSource struct {
	dir    string
	region Region

	// Step samples every Step-th frame; values below 1 mean every frame.
	Step int

	log zerolog.Logger
}

// NewDirSource creates a source over dir cropping to region.
func NewDirSource(dir string, region Region) (*DirSource, error) {
	if err := region.Validate(); err != nil {
		return nil, err
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("NewDirSource: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("NewDirSource: %s is not a directory", dir)
	}

	return &DirSource{
		dir:    dir,
		region: region,
		Step:   1,
		log:    logger.WithComponent("frames"),
	}, nil
}

// Paths lists the frame files in visiting order, after sampling.
func (s *DirSource) Paths() ([]string, error) {
	const op = "Paths"

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read frame directory: %w", op, err)
	}

	step := max(s.Step, 1)

	var paths []string
	n := 0
	for _, entry := range entries {
		if entry.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		if n%step == 0 {
			paths = append(paths, filepath.Join(s.dir, entry.Name()))
		}
		n++
	}

	if len(paths) == 0 {
		return nil, fmt.Errorf("%s: %w in %s", op, ErrNoFrames, s.dir)
	}
	return paths, nil
}

// Frames yields processed frames in order. A frame that cannot be read or
// cropped is yielded with its error and iteration continues; a listing
// failure or a done ctx is yielded once and ends the sequence.
func (s *DirSource) Frames(ctx context.Context) iter.Seq2[Frame, error] {
	return func(yield func(Frame, error) bool) {
		paths, err := s.Paths()
		if err != nil {
			yield(Frame{Index: -1}, err)
			return
		}

		s.log.Info().
			Str("dir", s.dir).
			Int("frames", len(paths)).
			Int("step", max(s.Step, 1)).
			Msg("Reading frames")

		for i, path := range paths {
			if err := ctx.Err(); err != nil {
				yield(Frame{Index: i, Path: path}, err)
				return
			}

			frame := Frame{Index: i, Path: path}
			img, err := imaging.Open(path)
			if err == nil {
				frame.Image, err = Process(img, s.region)
			}
			if err != nil {
				err = fmt.Errorf("frame %s: %w", filepath.Base(path), err)
			}
			if !yield(frame, err) {
				return
			}
		}
	}
}
