package biometric

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "rollcall/pkg/domain-errors"
)

func TestEncodingRoundTrip(t *testing.T) {
	enc := Encoding{Version: "pixelgrid-v1", Values: []float64{0, 12.25, 255, 128.5}}

	parsed, err := ParseEncoding(enc.String())
	require.NoError(t, err)
	assert.Equal(t, enc.Version, parsed.Version)
	assert.Equal(t, enc.Values, parsed.Values)
}

func TestParseEncoding_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"no version prefix", "1.00,2.00"},
		{"empty version", ":1.00,2.00"},
		{"no values", "pixelgrid-v1:"},
		{"non-numeric value", "pixelgrid-v1:1.00,abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseEncoding(tt.input)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		})
	}
}

func TestSimilarity(t *testing.T) {
	base := Encoding{Version: "pixelgrid-v1", Values: []float64{10, 20, 30, 40}}

	t.Run("identical encodings score 1", func(t *testing.T) {
		assert.Equal(t, 1.0, Similarity(base, base))
	})

	t.Run("symmetric", func(t *testing.T) {
		other := Encoding{Version: "pixelgrid-v1", Values: []float64{12, 18, 35, 40}}
		assert.Equal(t, Similarity(base, other), Similarity(other, base))
	})

	t.Run("bounded to [0,1]", func(t *testing.T) {
		far := Encoding{Version: "pixelgrid-v1", Values: []float64{255, 255, 255, 255}}
		s := Similarity(base, far)
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, 1.0)
	})

	t.Run("empty encoding scores 0", func(t *testing.T) {
		assert.Zero(t, Similarity(base, Encoding{}))
		assert.Zero(t, Similarity(Encoding{}, base))
	})

	t.Run("shape mismatch scores 0 rather than erroring", func(t *testing.T) {
		short := Encoding{Version: "pixelgrid-v1", Values: []float64{10, 20}}
		assert.Zero(t, Similarity(base, short))
	})

	t.Run("version mismatch scores 0", func(t *testing.T) {
		other := Encoding{Version: "pixelgrid-v2", Values: []float64{10, 20, 30, 40}}
		assert.Zero(t, Similarity(base, other))
	})

	t.Run("opposite extremes score 0", func(t *testing.T) {
		black := Encoding{Version: "pixelgrid-v1", Values: []float64{0, 0}}
		white := Encoding{Version: "pixelgrid-v1", Values: []float64{255, 255}}
		assert.Zero(t, Similarity(black, white))
	})
}
