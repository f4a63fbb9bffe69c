// Package identity provides the stable identity attributes used to resolve
// synced records to local recipients.
package identity

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// nonDigitRegex matches any non-digit character
var nonDigitRegex = regexp.MustCompile(`\D`)

// NormalizeE164 normalizes a phone number to E.164 format.
// It strips all non-digit characters and ensures proper country code handling.
// Returns "" when the input holds no digits.
func NormalizeE164(phone string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ""
	}

	hasPlus := strings.HasPrefix(phone, "+")
	digits := nonDigitRegex.ReplaceAllString(phone, "")
	if digits == "" {
		return ""
	}

	if len(digits) == 10 && !hasPlus {
		return "+1" + digits
	}

	if len(digits) == 11 && digits[0] == '1' {
		return "+" + digits
	}

	return "+" + digits
}

// ParseServiceID parses a service identifier. The nil UUID is rejected since
// it never names a registered account.
func ParseServiceID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse service id: %w", err)
	}
	if id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("parse service id: nil uuid")
	}
	return id, nil
}
