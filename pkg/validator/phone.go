package validator

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrInvalidLength indicates the phone number is not 11 digits
	ErrInvalidLength = errors.New("phone number must be exactly 11 digits")

	// ErrInvalidPrefix indicates the phone number doesn't start with a valid Nigerian mobile prefix
	ErrInvalidPrefix = errors.New("phone number must start with 070, 080, 081, 090 or 091")

	// ErrInvalidFormat indicates the phone number contains invalid characters
	ErrInvalidFormat = errors.New("phone number can only contain digits")

	// ErrEmptyPhone indicates the phone number is empty
	ErrEmptyPhone = errors.New("phone number cannot be empty")
)

// validPrefixes contains the Nigerian mobile prefixes accepted for passenger
// and next-of-kin numbers
var validPrefixes = []string{
	"070",
	"080",
	"081",
	"090",
	"091",
}

// phoneRegex matches digits only
var phoneRegex = regexp.MustCompile(`^\d+$`)

// PhoneValidator handles phone number validation
type PhoneValidator struct{}

// NewPhoneValidator creates a new phone validator instance
func NewPhoneValidator() *PhoneValidator {
	return &PhoneValidator{}
}

// Validate validates a Nigerian mobile number.
// Accepts formats: 08031234567, 0803 123 4567, 0803-123-4567, +2348031234567
func (v *PhoneValidator) Validate(phone string) error {
	normalized, err := v.Normalize(phone)
	if err != nil {
		return err
	}

	if len(normalized) != 11 {
		return ErrInvalidLength
	}

	for _, prefix := range validPrefixes {
		if strings.HasPrefix(normalized, prefix) {
			return nil
		}
	}

	return ErrInvalidPrefix
}

// Normalize strips separators and converts the international +234 form to the
// local 0-prefixed form
func (v *PhoneValidator) Normalize(phone string) (string, error) {
	cleaned := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(phone))
	if cleaned == "" {
		return "", ErrEmptyPhone
	}

	if strings.HasPrefix(cleaned, "+234") {
		cleaned = "0" + cleaned[4:]
	} else if strings.HasPrefix(cleaned, "234") && len(cleaned) == 13 {
		cleaned = "0" + cleaned[3:]
	}

	if !phoneRegex.MatchString(cleaned) {
		return "", ErrInvalidFormat
	}

	return cleaned, nil
}
