package types

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// NameValidationConfig contains configuration for attribute and class name validation.
type NameValidationConfig struct {
	ReservedPrefixes  []string
	MaxLength         int
	AllowControlChars bool
	AllowWhitespace   bool
}

// DefaultNameValidationConfig returns a NameValidationConfig with default values.
func DefaultNameValidationConfig() NameValidationConfig {
	return NameValidationConfig{
		MaxLength:         256,
		AllowControlChars: false,
		AllowWhitespace:   false,
		ReservedPrefixes:  nil,
	}
}

// NameValidator validates attribute names according to configured rules.
type NameValidator struct {
	config NameValidationConfig
}

// NewNameValidator creates a new NameValidator with the given configuration.
func NewNameValidator(config NameValidationConfig) *NameValidator {
	return &NameValidator{config: config}
}

// Validate checks if a name is valid. Failures wrap ErrConfiguration since
// names are only bound while attributes are being defined.
func (v *NameValidator) Validate(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrConfiguration)
	}

	if v.config.MaxLength > 0 && len(name) > v.config.MaxLength {
		return fmt.Errorf("%w: name length %d exceeds maximum %d bytes",
			ErrConfiguration, len(name), v.config.MaxLength)
	}

	if !utf8.ValidString(name) {
		return fmt.Errorf("%w: name contains invalid UTF-8", ErrConfiguration)
	}

	for i, r := range name {
		if !v.config.AllowControlChars && (r < 32 || r == 127) {
			return fmt.Errorf("%w: name %q contains control character at position %d", ErrConfiguration, name, i)
		}

		if !v.config.AllowWhitespace && unicode.IsSpace(r) {
			return fmt.Errorf("%w: name %q contains whitespace at position %d", ErrConfiguration, name, i)
		}
	}

	for _, prefix := range v.config.ReservedPrefixes {
		if strings.HasPrefix(name, prefix) {
			return fmt.Errorf("%w: name %q uses reserved prefix %q", ErrConfiguration, name, prefix)
		}
	}

	return nil
}

// ValidateName validates a name using the default validator.
func ValidateName(name string) error {
	return DefaultNameValidator.Validate(name)
}

// DefaultNameValidator is the default name validator instance.
var DefaultNameValidator = NewNameValidator(DefaultNameValidationConfig())
