package analysis

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LoadGuidelines reads the team guidelines file appended to the audit
// instructions. A missing file yields an empty string, not an error.
func LoadGuidelines(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("reading guidelines file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// SaveGuidelines writes content to the guidelines file, creating parent
// directories as needed.
func SaveGuidelines(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating guidelines directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing guidelines file: %w", err)
	}
	return nil
}

// ClearGuidelines removes the guidelines file. Removing a missing file is
// not an error.
func ClearGuidelines(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing guidelines file: %w", err)
	}
	return nil
}

// withGuidelines appends team guidelines to the system prompt. The response
// schema rules stay authoritative.
func withGuidelines(system, guidelines string) string {
	if guidelines == "" {
		return system
	}
	var sb strings.Builder
	sb.WriteString(system)
	sb.WriteString("\nTeam guidelines (follow them when refactoring, without changing the JSON format above):\n")
	sb.WriteString(guidelines)
	sb.WriteString("\n")
	return sb.String()
}
