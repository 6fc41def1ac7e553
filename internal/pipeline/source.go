package pipeline

import (
	"os"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// readSource reads a source file. Text sources lose a leading UTF-8 byte order mark;
// a UTF-16 BOM selects UTF-16 decoding. Anything else passes through untouched.
func readSource(path string, text bool) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil || !text {
		return data, err
	}
	out, _, err := transform.Bytes(unicode.BOMOverride(encoding.Nop.NewDecoder()), data)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReadText reads a text file the same way transforms read their sources.
func ReadText(path string) ([]byte, error) {
	return readSource(path, true)
}
