// Package pixelmatch is the reference biometric.Matcher: a simplified
// image-sampling encoder. It detects a single high-contrast region in the
// sample, normalizes it to a fixed-size grayscale patch, and samples a grid
// of luminance values as the encoding. It is deliberately not a recognition
// model; it exists to exercise the capability contract and can be swapped
// for a stronger matcher without touching the attendance gate.
package pixelmatch

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"log/slog"
	"math"
	"strings"

	_ "image/jpeg"
	_ "image/png"

	"rollcall/internal/biometric"
	dErrors "rollcall/pkg/domain-errors"
)

// Version names the encoding scheme. Encodings from other versions score 0.
const Version = "pixelgrid-v1"

const (
	// Normalized patch size and sampling grid, matching the reference scheme:
	// 100x100 grayscale, sampled every 10px with a 10px inset (64 values).
	normSize    = 100
	sampleStep  = 10
	sampleInset = 10

	// Detection grid: the image is split into detectGrid x detectGrid cells;
	// cells whose luminance spread exceeds contrastFloor are candidate
	// subject area, grouped into connected regions.
	detectGrid     = 8
	contrastFloor  = 24.0
	minRegionCells = 2

	// Samples smaller than this per axis cannot hold an identifiable subject.
	minSampleDim = 32
)

// Encoder implements biometric.Matcher. Stateless apart from configuration;
// safe for concurrent use.
type Encoder struct {
	threshold float64
	logger    *slog.Logger
}

type Option func(*Encoder)

// WithThreshold overrides the similarity threshold (reference: 0.8).
func WithThreshold(t float64) Option {
	return func(e *Encoder) { e.threshold = t }
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Encoder) { e.logger = logger }
}

// New constructs the reference encoder.
func New(opts ...Option) *Encoder {
	e := &Encoder{threshold: biometric.DefaultThreshold}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Threshold returns the configured similarity threshold.
func (e *Encoder) Threshold() float64 { return e.threshold }

// Enroll derives an encoding from a base64 image sample.
func (e *Encoder) Enroll(ctx context.Context, sample string) (biometric.Encoding, error) {
	if err := ctx.Err(); err != nil {
		return biometric.Encoding{}, err
	}

	gray, err := decodeSample(sample)
	if err != nil {
		return biometric.Encoding{}, err
	}

	if err := ctx.Err(); err != nil {
		return biometric.Encoding{}, err
	}

	regions := detectRegions(gray)
	switch {
	case len(regions) == 0:
		return biometric.Encoding{}, dErrors.New(dErrors.CodeNoSubjectDetected,
			"no identifiable subject found in the sample")
	case len(regions) > 1:
		return biometric.Encoding{}, dErrors.Newf(dErrors.CodeAmbiguousSample,
			"%d candidate subjects found; exactly one is required", len(regions))
	}

	patch := normalize(gray, regions[0])
	values := sampleGrid(patch)

	if e.logger != nil {
		e.logger.DebugContext(ctx, "sample encoded",
			"region", regions[0].String(),
			"values", len(values),
		)
	}
	return biometric.Encoding{Version: Version, Values: values}, nil
}

// Verify encodes the sample and compares it to the stored encoding.
// Enrollment failures are reported uniformly as a non-match; context expiry
// propagates so the caller can report a timeout instead of a mismatch.
func (e *Encoder) Verify(ctx context.Context, sample string, stored biometric.Encoding) (bool, error) {
	candidate, err := e.Enroll(ctx, sample)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if e.logger != nil {
			e.logger.DebugContext(ctx, "verification sample unusable", "error", err)
		}
		return false, nil
	}
	return biometric.Similarity(candidate, stored) >= e.threshold, nil
}

// decodeSample turns base64 image data (optionally a data URL) into grayscale.
func decodeSample(sample string) (*image.Gray, error) {
	trimmed := strings.TrimSpace(sample)
	if trimmed == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "sample is empty")
	}
	if strings.HasPrefix(trimmed, "data:image") {
		_, after, ok := strings.Cut(trimmed, ",")
		if !ok {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "malformed data URL sample")
		}
		trimmed = after
	}

	raw, err := base64.StdEncoding.DecodeString(trimmed)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "sample is not valid base64")
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "sample is not a decodable image")
	}
	return toGray(img), nil
}

func toGray(img image.Image) *image.Gray {
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray.Set(x, y, img.At(x, y))
		}
	}
	return gray
}

// detectRegions finds candidate subject regions: connected groups of
// detection cells whose luminance spread clears the contrast floor.
func detectRegions(gray *image.Gray) []image.Rectangle {
	bounds := gray.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w < minSampleDim || h < minSampleDim {
		return nil
	}

	cellW, cellH := w/detectGrid, h/detectGrid
	active := [detectGrid][detectGrid]bool{}
	for cy := range detectGrid {
		for cx := range detectGrid {
			rect := image.Rect(
				bounds.Min.X+cx*cellW,
				bounds.Min.Y+cy*cellH,
				bounds.Min.X+(cx+1)*cellW,
				bounds.Min.Y+(cy+1)*cellH,
			)
			if luminanceSpread(gray, rect) >= contrastFloor {
				active[cy][cx] = true
			}
		}
	}

	// Group active cells into 4-connected components.
	seen := [detectGrid][detectGrid]bool{}
	var regions []image.Rectangle
	for cy := range detectGrid {
		for cx := range detectGrid {
			if !active[cy][cx] || seen[cy][cx] {
				continue
			}
			cells, rect := floodFill(&active, &seen, cx, cy, bounds, cellW, cellH)
			if cells >= minRegionCells {
				regions = append(regions, rect)
			}
		}
	}
	return regions
}

// floodFill walks one connected component of active cells, returning its cell
// count and pixel bounding box.
func floodFill(active, seen *[detectGrid][detectGrid]bool, startX, startY int, bounds image.Rectangle, cellW, cellH int) (int, image.Rectangle) {
	type cell struct{ x, y int }
	stack := []cell{{startX, startY}}
	seen[startY][startX] = true

	count := 0
	var rect image.Rectangle
	for len(stack) > 0 {
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		count++

		cellRect := image.Rect(
			bounds.Min.X+c.x*cellW,
			bounds.Min.Y+c.y*cellH,
			bounds.Min.X+(c.x+1)*cellW,
			bounds.Min.Y+(c.y+1)*cellH,
		)
		if rect.Empty() {
			rect = cellRect
		} else {
			rect = rect.Union(cellRect)
		}

		for _, n := range []cell{{c.x - 1, c.y}, {c.x + 1, c.y}, {c.x, c.y - 1}, {c.x, c.y + 1}} {
			if n.x < 0 || n.x >= detectGrid || n.y < 0 || n.y >= detectGrid {
				continue
			}
			if active[n.y][n.x] && !seen[n.y][n.x] {
				seen[n.y][n.x] = true
				stack = append(stack, n)
			}
		}
	}
	return count, rect
}

// luminanceSpread is the standard deviation of luminance within rect.
func luminanceSpread(gray *image.Gray, rect image.Rectangle) float64 {
	n := rect.Dx() * rect.Dy()
	if n == 0 {
		return 0
	}
	sum := 0.0
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			sum += float64(gray.GrayAt(x, y).Y)
		}
	}
	mean := sum / float64(n)

	variance := 0.0
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			d := float64(gray.GrayAt(x, y).Y) - mean
			variance += d * d
		}
	}
	return math.Sqrt(variance / float64(n))
}

// normalize crops the region and resizes it to normSize x normSize using
// nearest-neighbor sampling. Nearest-neighbor keeps the pipeline fully
// deterministic across platforms.
func normalize(gray *image.Gray, region image.Rectangle) *image.Gray {
	out := image.NewGray(image.Rect(0, 0, normSize, normSize))
	rw, rh := region.Dx(), region.Dy()
	for y := range normSize {
		srcY := region.Min.Y + y*rh/normSize
		for x := range normSize {
			srcX := region.Min.X + x*rw/normSize
			out.SetGray(x, y, gray.GrayAt(srcX, srcY))
		}
	}
	return out
}

// sampleGrid reads the fixed grid of luminance values from the normalized patch.
func sampleGrid(patch *image.Gray) []float64 {
	var values []float64
	for y := sampleInset; y < normSize-sampleInset; y += sampleStep {
		for x := sampleInset; x < normSize-sampleInset; x += sampleStep {
			values = append(values, float64(patch.GrayAt(x, y).Y))
		}
	}
	return values
}
