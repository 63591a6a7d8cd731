// Package config reads typed values out of string-keyed configuration maps
// such as layer and optimizer settings.
package config

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

var (
	// ErrMissingConfigKey is returned when a required key is absent.
	ErrMissingConfigKey = errors.New("missing config key")
	// ErrInvalidConfig is returned when a value cannot be parsed.
	ErrInvalidConfig = errors.New("invalid config value")
)

// Map is a string-to-string configuration mapping.
type Map map[string]string

// String returns the first present key among keys. Alternate spellings of the
// same setting may be passed; the error names the first one.
func (m Map) String(keys ...string) (string, error) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return strings.TrimSpace(v), nil
		}
	}
	return "", fmt.Errorf("%q: %w", keys[0], ErrMissingConfigKey)
}

// Int parses a required integer value.
func (m Map) Int(keys ...string) (int, error) {
	s, err := m.String(keys...)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%q=%q: %w", keys[0], s, ErrInvalidConfig)
	}
	return v, nil
}

// PositiveInt parses a required integer value that must be greater than zero.
func (m Map) PositiveInt(keys ...string) (int, error) {
	v, err := m.Int(keys...)
	if err != nil {
		return 0, err
	}
	if v <= 0 {
		return 0, fmt.Errorf("%q=%d must be positive: %w", keys[0], v, ErrInvalidConfig)
	}
	return v, nil
}

// Float parses a required float value.
func (m Map) Float(keys ...string) (float64, error) {
	s, err := m.String(keys...)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%q=%q: %w", keys[0], s, ErrInvalidConfig)
	}
	return v, nil
}

// Keys returns the map's keys in sorted order.
func (m Map) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
