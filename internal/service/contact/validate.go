package contact

import (
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/agromic/agrobot/backend/internal/model/contact"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^\+?[0-9\s-]+$`)
)

const (
	minNameLength    = 3
	minMessageLength = 10
	minPhoneDigits   = 10
	maxPhoneDigits   = 15
)

// Validate checks every field and returns the errors keyed by field name.
// A nil result means the inquiry is valid.
func Validate(inq contact.Inquiry) contact.FieldErrors {
	errs := contact.FieldErrors{}

	if name := strings.TrimSpace(inq.Name); name == "" {
		errs["name"] = "Full name is required"
	} else if utf8.RuneCountInString(name) < minNameLength {
		errs["name"] = "Full name must be at least 3 characters"
	}

	if email := strings.TrimSpace(inq.Email); email == "" {
		errs["email"] = "Email is required"
	} else if !emailPattern.MatchString(email) {
		errs["email"] = "Enter a valid email address"
	}

	if phone := strings.TrimSpace(inq.Phone); phone == "" {
		errs["phone"] = "Phone number is required"
	} else if n := countDigits(phone); !phonePattern.MatchString(phone) || n < minPhoneDigits || n > maxPhoneDigits {
		errs["phone"] = "Enter a valid phone number (10-15 digits)"
	}

	if inq.InquiryType == "" {
		errs["inquiryType"] = "Select an inquiry type"
	} else if !slices.Contains(contact.InquiryTypes, inq.InquiryType) {
		errs["inquiryType"] = "Unknown inquiry type"
	}

	if inq.CropType != "" && !slices.Contains(contact.CropTypes, inq.CropType) {
		errs["cropType"] = "Unknown crop type"
	}

	if msg := strings.TrimSpace(inq.Message); msg != "" && utf8.RuneCountInString(msg) < minMessageLength {
		errs["message"] = "Message must be at least 10 characters"
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}
