// Package commands contains CLI command implementations for the application.
package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// IOTuple is the terminal a command talks to. Tests swap in buffers.
type IOTuple struct {
	Reader io.Reader
	Writer io.Writer
}

// DefaultIO wires a command to stdin and stdout.
func DefaultIO() IOTuple {
	return IOTuple{Reader: os.Stdin, Writer: os.Stdout}
}

// writeJSON prints result as indented JSON. Encoding failures go to stderr so that
// stdout stays parseable.
func writeJSON(writer io.Writer, result any) {
	enc := json.NewEncoder(writer)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "failed to marshal JSON: %v\n", err)
	}
}

// splitScopes turns "secret:read:bot1, secret:write:bot1" into a scope list.
func splitScopes(raw string) []string {
	var scopes []string
	for part := range strings.SplitSeq(raw, ",") {
		if scope := strings.TrimSpace(part); scope != "" {
			scopes = append(scopes, scope)
		}
	}
	return scopes
}

func validateDays(days int) error {
	if days < 0 {
		return fmt.Errorf("days must be a positive number, got: %d", days)
	}
	return nil
}
