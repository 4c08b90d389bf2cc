package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrInvalidArgs is returned for an argument that is not valid UTF-8. JSON
// would replace the bad bytes with U+FFFD, so such args are refused instead.
var ErrInvalidArgs = errors.New("store: args are not valid UTF-8")

// marshalArgs converts an argument list to JSON TEXT for storage.
// The encoding is deterministic, so equal lists always produce equal TEXT and
// CountMatching can compare the column directly. A nil list is stored as [].
func marshalArgs(args []string) (string, error) {
	if args == nil {
		args = []string{}
	}
	for i, arg := range args {
		if !utf8.ValidString(arg) {
			return "", fmt.Errorf("marshal args[%d]: %w", i, ErrInvalidArgs)
		}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false) // keep <, >, & literal so paths round-trip byte for byte
	if err := enc.Encode(args); err != nil {
		return "", fmt.Errorf("marshal args: %w", err)
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// unmarshalArgs parses JSON TEXT back to an argument list.
// Returns an empty (non-nil) slice for "" and "[]".
func unmarshalArgs(data string) ([]string, error) {
	if data == "" || data == "[]" {
		return []string{}, nil
	}

	var args []string
	if err := json.Unmarshal([]byte(data), &args); err != nil {
		return nil, fmt.Errorf("unmarshal args: %w", err)
	}
	if args == nil {
		args = []string{}
	}
	return args, nil
}
