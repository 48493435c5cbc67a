// Package codec encodes the encounter blob columns. Rows written before
// compression was introduced hold plain JSON text; newer rows hold gzip
// compressed JSON. The writer's version, stored in each row's misc column,
// decides which one a row uses.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
	"golang.org/x/mod/semver"
)

var (
	ErrDecode     = errors.New("failed to decode column")
	ErrDecompress = errors.New("failed to decompress column")
)

const (
	compressionSince = "v1.14.0"
	// 1.13.5 builds carrying build metadata already wrote compressed columns
	compressedPatchPrefix = "1.13.5+"
)

// UsesCompression reports whether rows written by version store compressed
// columns. Unparsable or empty versions use plain JSON.
func UsesCompression(version string) bool {
	version = strings.TrimPrefix(strings.TrimSpace(version), "v")
	if version == "" {
		return false
	}
	if strings.HasPrefix(version, compressedPatchPrefix) {
		return true
	}
	v := "v" + version
	if !semver.IsValid(v) {
		return false
	}
	return semver.Compare(v, compressionSince) >= 0
}

type miscVersion struct {
	Version string `json:"version"`
}

// VersionFromMisc extracts the writer version from a misc column. Missing or
// malformed metadata yields "".
func VersionFromMisc(misc []byte) string {
	if len(misc) == 0 {
		return ""
	}
	var m miscVersion
	if err := json.Unmarshal(misc, &m); err != nil {
		return ""
	}
	return m.Version
}

// EncodeColumn serializes v for a row written by version.
func EncodeColumn(version string, v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal column: %w", err)
	}
	if !UsesCompression(version) {
		return raw, nil
	}
	return Compress(raw)
}

// DecodeColumn parses a column of a row written by version into v. A NULL or
// empty column leaves v untouched.
func DecodeColumn(version string, data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	if UsesCompression(version) {
		raw, err := Decompress(data)
		if err != nil {
			return err
		}
		data = raw
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return nil
}

func Compress(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.DefaultCompression)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip writer: %w", err)
	}
	if _, err := zw.Write(raw); err != nil {
		return nil, fmt.Errorf("failed to compress column: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress column: %w", err)
	}
	return buf.Bytes(), nil
}

func Decompress(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecompress, err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecompress, err)
	}
	return raw, nil
}
