// pkg/serialkit/parsers.go
package serialkit

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

var errInvalidUTF8 = errors.New("response is not valid UTF-8")

// ParseRaw returns the response unchanged
func ParseRaw(raw []byte) ([]byte, error) {
	return raw, nil
}

// ParseString decodes a UTF-8 response and trims surrounding whitespace
func ParseString(raw []byte) (string, error) {
	if !utf8.Valid(raw) {
		return "", errInvalidUTF8
	}
	return strings.TrimSpace(string(raw)), nil
}

// ParseLines splits a UTF-8 response into trimmed, non-empty lines
func ParseLines(raw []byte) ([]string, error) {
	if !utf8.Valid(raw) {
		return nil, errInvalidUTF8
	}

	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// ParseKeyValue reads "key=value" lines into a map. Blank lines are
// skipped; any other line without '=' or with an empty key is an error.
func ParseKeyValue(raw []byte) (map[string]string, error) {
	lines, err := ParseLines(raw)
	if err != nil {
		return nil, err
	}

	result := make(map[string]string, len(lines))
	for _, line := range lines {
		key, value, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("malformed key/value line %q", line)
		}
		result[key] = strings.TrimSpace(value)
	}
	return result, nil
}

var namedParsers = map[string]ParseFunc[any]{
	"raw":    erase[[]byte](ParseRaw),
	"string": erase[string](ParseString),
	"lines":  erase[[]string](ParseLines),
	"kv":     erase[map[string]string](ParseKeyValue),
}

// NamedParser looks up a stock parser by name: raw, string, lines or kv
func NamedParser(name string) (ParseFunc[any], bool) {
	if name == "" {
		name = "raw"
	}
	parse, ok := namedParsers[strings.ToLower(name)]
	return parse, ok
}

func erase[T any](parse ParseFunc[T]) ParseFunc[any] {
	return func(raw []byte) (any, error) {
		value, err := parse(raw)
		if err != nil {
			return nil, err
		}
		return value, nil
	}
}
