package biometric

import (
	"math"
	"strconv"
	"strings"

	dErrors "rollcall/pkg/domain-errors"
)

// Encoding is the opaque, comparable token derived from a sample. It is what
// the roster stores; raw samples are never persisted. Version names the
// encoder scheme that produced the values; encodings are only comparable
// within one version.
type Encoding struct {
	Version string
	Values  []float64
}

// IsZero reports whether the encoding is absent (subject never enrolled).
func (e Encoding) IsZero() bool {
	return e.Version == "" && len(e.Values) == 0
}

// String renders the encoding for storage: "version:v1,v2,...". Values keep
// two decimals so the round-trip is exact for encoder output.
func (e Encoding) String() string {
	var sb strings.Builder
	sb.WriteString(e.Version)
	sb.WriteByte(':')
	for i, v := range e.Values {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(v, 'f', 2, 64))
	}
	return sb.String()
}

// ParseEncoding reverses String.
//
// Errors: CodeInvalidInput when the text is empty or malformed.
func ParseEncoding(s string) (Encoding, error) {
	if s == "" {
		return Encoding{}, dErrors.New(dErrors.CodeInvalidInput, "encoding cannot be empty")
	}
	version, rest, ok := strings.Cut(s, ":")
	if !ok || version == "" {
		return Encoding{}, dErrors.New(dErrors.CodeInvalidInput, "encoding is missing its version prefix")
	}
	enc := Encoding{Version: version}
	if rest == "" {
		return Encoding{}, dErrors.New(dErrors.CodeInvalidInput, "encoding has no values")
	}
	for part := range strings.SplitSeq(rest, ",") {
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return Encoding{}, dErrors.Newf(dErrors.CodeInvalidInput, "encoding value %q is not numeric", part)
		}
		enc.Values = append(enc.Values, v)
	}
	return enc, nil
}

// Similarity scores two encodings in [0, 1]. Symmetric. Mismatched versions
// or shapes score 0 rather than erroring: an incomparable pair can never
// verify, but it is not a caller fault.
//
// The score is the mean per-value closeness 1 - |a-b|/255, floored at zero,
// matching the 8-bit luminance domain the reference encoder samples from.
func Similarity(a, b Encoding) float64 {
	if a.IsZero() || b.IsZero() {
		return 0
	}
	if a.Version != b.Version || len(a.Values) != len(b.Values) {
		return 0
	}
	total := 0.0
	for i := range a.Values {
		diff := math.Abs(a.Values[i] - b.Values[i])
		total += math.Max(0, 1-diff/255)
	}
	return total / float64(len(a.Values))
}
