package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ByteSize unmarshals from either a plain JSON number or a string with a
// K/M/G magnitude suffix (base 1024), e.g. "512K" or "2M". Suffix parsing
// happens once at configuration load, never per policy resolution.
type ByteSize int64

func (b *ByteSize) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		*b = ByteSize(value)
	case string:
		n, err := ParseSize(value)
		if err != nil {
			return err
		}
		*b = ByteSize(n)
	default:
		return fmt.Errorf("invalid byte size: %v", v)
	}
	return nil
}

// ParseSize parses a byte count with an optional K/M/G suffix (base 1024).
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size")
	}

	mult := int64(1)
	switch s[len(s)-1] {
	case 'K', 'k':
		mult = 1 << 10
		s = s[:len(s)-1]
	case 'M', 'm':
		mult = 1 << 20
		s = s[:len(s)-1]
	case 'G', 'g':
		mult = 1 << 30
		s = s[:len(s)-1]
	}

	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative size %q", s)
	}
	return n * mult, nil
}
