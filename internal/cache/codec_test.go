package cache

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestEncodeValue_SmallValuesStayPlainJSON(t *testing.T) {
	raw, err := encodeValue(map[string]string{"a": "b"}, 1024)
	require.NoError(t, err)
	assert.False(t, strings.HasPrefix(raw, compressedPrefix))
	assert.Equal(t, `{"a":"b"}`, raw)
}

func TestEncodeValue_LargeValuesCompressed(t *testing.T) {
	big := strings.Repeat("fever and body ache ", 200)
	raw, err := encodeValue(big, 1024)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(raw, compressedPrefix))

	var out string
	require.NoError(t, decodeValue(raw, &out))
	assert.Equal(t, big, out)
}

func TestCodec_RoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		threshold := rapid.IntRange(1, 2048).Draw(t, "threshold")
		value := rapid.SliceOfN(rapid.String(), 0, 50).Draw(t, "value")

		raw, err := encodeValue(value, threshold)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		var out []string
		if err := decodeValue(raw, &out); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(value) == 0 && len(out) == 0 {
			return
		}
		if len(value) != len(out) {
			t.Fatalf("length mismatch: %d != %d", len(value), len(out))
		}
		for i := range value {
			if value[i] != out[i] {
				t.Fatalf("element %d mismatch", i)
			}
		}
	})
}
