package utils

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var unsafeFilenameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

const maxFilenameLength = 255

// SanitizeFilename replaces characters that are unsafe on common
// filesystems and bounds the length, keeping the extension.
func SanitizeFilename(name string) string {
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, " .")
	if len(name) > maxFilenameLength {
		ext := filepath.Ext(name)
		if len(ext) >= maxFilenameLength {
			ext = ""
		}
		name = name[:maxFilenameLength-len(ext)] + ext
	}
	if name == "" {
		return "unnamed_file"
	}
	return name
}

// FilenameFromDisposition extracts the filename parameter of a
// Content-Disposition header value.
func FilenameFromDisposition(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return params["filename"]
}

// FilenameFromURL returns the last path element of rawURL, unescaped.
func FilenameFromURL(rawURL string) string {
	info, err := ParseURL(rawURL)
	if err != nil {
		return ""
	}
	return info.LastSegment()
}

// EnsureDir creates the parent directory of path if it doesn't exist
func EnsureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0755)
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// PartPath returns the in-progress path used while writing outputPath.
func PartPath(outputPath string) string {
	return outputPath + ".part"
}

// CreatePartialFile creates or truncates the in-progress file for outputPath.
func CreatePartialFile(outputPath string) (*os.File, error) {
	if err := EnsureDir(outputPath); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.OpenFile(PartPath(outputPath), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create partial file: %w", err)
	}
	return f, nil
}

// AtomicRename moves the finished in-progress file into place.
func AtomicRename(oldPath, newPath string) error {
	return os.Rename(oldPath, newPath)
}
