package cache

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// compressedPrefix marks a gzip+base64 payload so decode can auto-detect.
// Raw JSON can never start with it because "gz64:" is not valid JSON.
const compressedPrefix = "gz64:"

// encodeValue JSON-serializes v, applying gzip+base64 when the serialized
// form reaches threshold bytes. threshold <= 0 disables compression.
func encodeValue(v any, threshold int) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("cache encode: %w", err)
	}
	if threshold <= 0 || len(raw) < threshold {
		return string(raw), nil
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return "", fmt.Errorf("cache compress: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("cache compress: %w", err)
	}
	return compressedPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// decodeValue reverses encodeValue into dest.
func decodeValue(s string, dest any) error {
	if strings.HasPrefix(s, compressedPrefix) {
		packed, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(s, compressedPrefix))
		if err != nil {
			return fmt.Errorf("cache decode base64: %w", err)
		}
		zr, err := gzip.NewReader(bytes.NewReader(packed))
		if err != nil {
			return fmt.Errorf("cache decode gzip: %w", err)
		}
		defer zr.Close()
		raw, err := io.ReadAll(zr)
		if err != nil {
			return fmt.Errorf("cache decode gzip: %w", err)
		}
		if err := json.Unmarshal(raw, dest); err != nil {
			return fmt.Errorf("cache decode json: %w", err)
		}
		return nil
	}
	if err := json.Unmarshal([]byte(s), dest); err != nil {
		return fmt.Errorf("cache decode json: %w", err)
	}
	return nil
}
