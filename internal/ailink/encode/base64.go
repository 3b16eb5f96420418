package encode

import (
	"encoding/base64"
	"fmt"
	"strings"
)

func DecodeBase64String(value string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(value)
}

func EncodeBase64String(value []byte) string {
	return base64.StdEncoding.EncodeToString(value)
}

// DataURL encodes data as a base64 data URL.
func DataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + EncodeBase64String(data)
}

// ParseDataURL splits a base64 data URL into its media type and payload.
func ParseDataURL(value string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(value, "data:")
	if !ok {
		return "", nil, fmt.Errorf("not a data url")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("data url missing payload")
	}
	mimeType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return "", nil, fmt.Errorf("data url is not base64 encoded")
	}
	data, err := DecodeBase64String(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode data url: %w", err)
	}
	return mimeType, data, nil
}

// IsImageReference reports whether value is a data URL or an http(s) URL.
func IsImageReference(value string) bool {
	return strings.HasPrefix(value, "data:image/") ||
		strings.HasPrefix(value, "https://") ||
		strings.HasPrefix(value, "http://")
}
