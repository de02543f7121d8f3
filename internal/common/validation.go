package common

import (
	"fmt"
	"slices"

	"cvtailor/internal/errors"
	"cvtailor/internal/formatters"
)

// ValidateOutputFormat checks format against the configured formats. An empty
// configuration allows every format the formatter registry can render.
func ValidateOutputFormat(format string, supportedFormats []string) error {
	allowed := GetSupportedFormats(supportedFormats)
	if slices.Contains(allowed, format) {
		return nil
	}

	return errors.NewValidationError(errors.ErrCodeInvalidFormat,
		fmt.Sprintf("unsupported output format '%s', supported formats: %v", format, allowed), nil)
}

// GetSupportedFormats returns the configured formats that have a formatter,
// in configuration order
func GetSupportedFormats(supportedFormats []string) []string {
	renderable := formatters.NewFormatterRegistry().GetSupportedFormats()
	if len(supportedFormats) == 0 {
		return renderable
	}

	formats := make([]string, 0, len(supportedFormats))
	for _, f := range supportedFormats {
		if slices.Contains(renderable, f) && !slices.Contains(formats, f) {
			formats = append(formats, f)
		}
	}
	return formats
}
