package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnsureDir creates a directory (and parents) if it does not exist
func EnsureDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("directory path cannot be empty")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// ValidateFile checks that a downloaded file exists and is at least minBytes
// long. Truncated or empty downloads must never reach a caller.
func ValidateFile(path string, minBytes int64) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("downloaded file is missing: %s", path)
	}
	if info.IsDir() {
		return fmt.Errorf("expected a file, got a directory: %s", path)
	}
	if info.Size() < minBytes {
		return fmt.Errorf("file too small (%d bytes, need %d): %s", info.Size(), minBytes, path)
	}
	return nil
}

// RemoveQuietly deletes a file, ignoring a missing path.
func RemoveQuietly(path string) {
	if path == "" {
		return
	}
	_ = os.Remove(path)
}

// FindByStem returns the first file in dir whose name starts with stem
// followed by a dot, regardless of extension. yt-dlp decides the final
// extension, the caller only knows the identifier.
func FindByStem(dir, stem string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, stem+".*"))
	if err != nil {
		return "", fmt.Errorf("bad glob for %s: %w", stem, err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no file found for %s in %s", stem, dir)
	}
	return matches[0], nil
}

// FormatDuration renders seconds as mm:ss or h:mm:ss
func FormatDuration(seconds int) string {
	if seconds <= 0 {
		return "--:--"
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// SanitizeFilename strips characters that are unsafe in filenames
func SanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "_", "\\", "_", ":", "_", "*", "_",
		"?", "_", "\"", "_", "<", "_", ">", "_", "|", "_",
	)
	return replacer.Replace(name)
}
