package contract

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/fatih/color"
)

// Outcome label constants.
const (
	OKValue      = "OK"      // OK value
	SkippedValue = "SKIPPED" // Skipped value
)

// Color variables for console output.
var (
	OKColor      = color.New(color.FgGreen, color.Bold) // OKColor marks a repository that produced metrics.
	SkippedColor = color.New(color.FgYellow)            // SkippedColor marks a repository that was skipped.
	HeaderColor  = color.New(color.FgCyan, color.Bold)  // HeaderColor is used for phase banners.
)

// unsafeNameChars matches every character not allowed in a filesystem-safe name.
var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// GetPlainLabel returns a plain text label for an outcome.
func GetPlainLabel(succeeded bool) string {
	if succeeded {
		return OKValue
	}
	return SkippedValue
}

// GetColorLabel returns a colored text label for console output.
func GetColorLabel(succeeded bool) string {
	text := GetPlainLabel(succeeded)
	if succeeded {
		return OKColor.Sprint(text)
	}
	return SkippedColor.Sprint(text)
}

// SanitizeName maps a repository full name to a filesystem-safe directory name.
// "spring-projects/spring-boot" becomes "spring-projects_spring-boot".
// Distinct names can sanitize alike ("a/b_c" and "a_b/c"); use ArtifactName
// for paths that must stay unique within a batch.
func SanitizeName(name string) string {
	return unsafeNameChars.ReplaceAllString(name, "_")
}

// artifactHashLen is the number of hex digits appended by ArtifactName.
const artifactHashLen = 8

// ArtifactName is SanitizeName made collision-free. Names whose only unsafe
// character is the single owner/repo slash and that contain no underscore map
// back unambiguously and are returned as sanitized. Any other name gets a short
// hash of the original appended.
func ArtifactName(name string) string {
	safe := SanitizeName(name)
	unsafe := unsafeNameChars.FindAllString(name, -1)
	if !strings.Contains(name, "_") && (len(unsafe) == 0 || (len(unsafe) == 1 && unsafe[0] == "/")) {
		return safe
	}
	sum := sha256.Sum256([]byte(name))
	return safe + "-" + hex.EncodeToString(sum[:])[:artifactHashLen]
}

// YearsBetween returns the number of whole years elapsed from start to end.
func YearsBetween(start, end time.Time) int {
	if start.IsZero() || !end.After(start) {
		return 0
	}
	years := end.Year() - start.Year()
	if start.AddDate(years, 0, 0).After(end) {
		years--
	}
	return max(years, 0)
}

// SelectOutputFile returns the appropriate file handle for output, based on the provided
// file path. An empty path selects os.Stdout.
func SelectOutputFile(filePath string) (*os.File, error) {
	if filePath == "" {
		return os.Stdout, nil
	}
	return os.Create(filePath)
}

// LogFatal logs an error and exits the program.
func LogFatal(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Fatal %s: %v\n", msg, err)
	os.Exit(1)
}

// LogWarn logs a warning message to stderr.
func LogWarn(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Warn %s: %v\n", msg, err)
}

// GetCacheDBFilePath returns the path to the SQLite DB file for the release-count cache.
func GetCacheDBFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".ckscan_cache.db"
	}
	return filepath.Join(homeDir, ".ckscan_cache.db")
}

// GetRunsDBFilePath returns the path to the SQLite DB file for run history.
func GetRunsDBFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".ckscan_runs.db"
	}
	return filepath.Join(homeDir, ".ckscan_runs.db")
}

// TruncateName truncates a name to a maximum width with ellipsis prefix.
// Requires maxWidth > 3 to ensure there's space for both the "..." prefix and at least one character of content.
func TruncateName(name string, maxWidth int) string {
	runes := []rune(name)
	if len(runes) > maxWidth && maxWidth > 3 {
		return "..." + string(runes[len(runes)-maxWidth+3:])
	}
	return name
}

// ParseBoolString parses a string value into a boolean.
// Accepts "yes", "no", "true", "false", "1", "0" (case-insensitive).
// Returns an error for invalid values.
func ParseBoolString(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "true", "1":
		return true, nil
	case "no", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean string: %s (expected yes/no/true/false/1/0)", s)
	}
}
