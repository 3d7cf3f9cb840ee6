package httpserver

import (
	"regexp"
	"strconv"

	"github.com/praxos/assistant-core/pkg/textx"
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult represents the result of validation
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

var validResourceID = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateResourceID validates a path identifier (message, project and job
// ids share the same alphabet).
func ValidateResourceID(field, id string) ValidationResult {
	if id == "" {
		return ValidationResult{
			Valid: false,
			Errors: []ValidationError{
				{Field: field, Code: "REQUIRED", Message: field + " is required"},
			},
		}
	}
	if len(id) > 100 {
		return ValidationResult{
			Valid: false,
			Errors: []ValidationError{
				{Field: field, Code: "TOO_LONG", Message: field + " is too long (max 100 characters)"},
			},
		}
	}
	if !validResourceID.MatchString(id) {
		return ValidationResult{
			Valid: false,
			Errors: []ValidationError{
				{Field: field, Code: "INVALID_FORMAT", Message: field + " contains invalid characters"},
			},
		}
	}
	return ValidationResult{Valid: true}
}

// ParseLimit parses a limit query parameter; empty means the default.
func ParseLimit(raw string, def, max int) (int, ValidationResult) {
	if raw == "" {
		return def, ValidationResult{Valid: true}
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > max {
		return 0, ValidationResult{
			Valid: false,
			Errors: []ValidationError{
				{Field: "limit", Code: "INVALID_FORMAT", Message: "limit must be between 1 and " + strconv.Itoa(max)},
			},
		}
	}
	return n, ValidationResult{Valid: true}
}

// SanitizeText normalizes inbound free text before it reaches the model or a
// Postgres text column.
func SanitizeText(input string) string {
	return textx.SanitizeText(input)
}
