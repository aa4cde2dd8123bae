package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Key namespaces, one per cached endpoint.
const (
	NamespaceSoil    = "soil"
	NamespaceDisease = "disease"
	NamespaceWeather = "weather"
)

// FieldsKey derives a key from a set of named fields.
// Format: <namespace>_<hash>
// where hash is the hex of the first 16 bytes of SHA-256(canonical JSON(fields)).
//
// The fields are treated as a set of (name, value) pairs: names are sorted
// before hashing, so the order in which a request listed them never affects the
// key. Absent optional fields should be present with a nil value so that
// "missing" and "zero" stay distinct.
func FieldsKey(namespace string, fields map[string]any) (string, error) {
	canonical, err := canonicalize(fields)
	if err != nil {
		return "", fmt.Errorf("cache: failed to canonicalize fields: %w", err)
	}
	return namespace + "_" + digest(canonical), nil
}

// ContentKey derives a key from raw content bytes.
// Format: <namespace>_<hash>
// Identical bytes always produce the same key; any byte difference produces a
// different one.
func ContentKey(namespace string, content []byte) string {
	return namespace + "_" + digest(content)
}

// CoordinateKey derives a key from a latitude/longitude pair.
// Format: <namespace>_<lat>_<lon>
// Each coordinate is rounded to 2 decimal places (about 1.1 km) so nearby
// lookups share an entry.
func CoordinateKey(namespace string, lat, lon float64) string {
	return namespace + "_" + formatCoordinate(RoundCoordinate(lat)) + "_" + formatCoordinate(RoundCoordinate(lon))
}

// RoundCoordinate rounds v to 2 decimal places. Rounding is exact on the binary
// value with ties to even, so 80.625 rounds to 80.62 and 2.675 to 2.67.
func RoundCoordinate(v float64) float64 {
	rounded, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 2, 64), 64)
	if err != nil {
		return v
	}
	return rounded
}

// formatCoordinate prints the shortest decimal that round-trips, always with a
// fractional part: 80.6, 80.0, -0.0.
func formatCoordinate(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func digest(b []byte) string {
	hash := sha256.Sum256(b)
	return hex.EncodeToString(hash[:16])
}

// canonicalize produces a deterministic JSON representation of the input.
// Maps are sorted by key to ensure consistent ordering.
func canonicalize(v any) ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}

	switch val := v.(type) {
	case map[string]any:
		return canonicalizeMap(val)
	case []any:
		return canonicalizeSlice(val)
	default:
		return json.Marshal(v)
	}
}

func canonicalizeMap(m map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := []byte("{")
	for i, k := range keys {
		if i > 0 {
			result = append(result, ',')
		}

		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		result = append(result, keyBytes...)
		result = append(result, ':')

		valBytes, err := canonicalize(m[k])
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	result = append(result, '}')

	return result, nil
}

func canonicalizeSlice(s []any) ([]byte, error) {
	result := []byte("[")
	for i, v := range s {
		if i > 0 {
			result = append(result, ',')
		}

		valBytes, err := canonicalize(v)
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	result = append(result, ']')

	return result, nil
}
