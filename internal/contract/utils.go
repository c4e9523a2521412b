package contract

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/huangsam/repohealth/schema"
)

// Color variables for console output.
var (
	RatingAColor = color.New(color.FgGreen, color.Bold)
	RatingBColor = color.New(color.FgCyan)
	RatingCColor = color.New(color.FgYellow)
	RatingDColor = color.New(color.FgRed, color.Bold)

	PassedColor = color.New(color.FgGreen)
	FailedColor = color.New(color.FgRed)
	ErrorColor  = color.New(color.FgMagenta, color.Bold)
	MutedColor  = color.New(color.Faint)
)

// GetPlainLabel returns the rating letter of a global score in upper case.
// This is the core logic used for CSV, JSON, and table printing.
func GetPlainLabel(score int) string {
	return strings.ToUpper(schema.Rating(score))
}

// GetColorLabel returns a colored rating label for console output (table).
func GetColorLabel(score int) string {
	text := GetPlainLabel(score)

	switch text {
	case "A":
		return RatingAColor.Sprint(text)
	case "B":
		return RatingBColor.Sprint(text)
	case "C":
		return RatingCColor.Sprint(text)
	default:
		return RatingDColor.Sprint(text)
	}
}

// GetStatusLabel returns a colored outcome status for console output.
func GetStatusLabel(status schema.OutcomeStatus) string {
	text := string(status)
	switch status {
	case schema.PassedStatus:
		return PassedColor.Sprint(text)
	case schema.FailedStatus:
		return FailedColor.Sprint(text)
	case schema.ErrorStatus:
		return ErrorColor.Sprint(text)
	default:
		return MutedColor.Sprint(text)
	}
}

// SelectOutputFile returns the appropriate file handle for output, based on the provided
// file path. It returns os.Stdout when no path is given.
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

// TruncateText truncates text to a maximum width with an ellipsis suffix.
// Requires maxWidth > 3 to leave room for the ellipsis and one character.
func TruncateText(text string, maxWidth int) string {
	runes := []rune(text)
	if len(runes) > maxWidth && maxWidth > 3 {
		return string(runes[:maxWidth-3]) + "..."
	}
	return text
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
