package domain

import (
	"strings"

	dErrors "marketroles/pkg/domain-errors"
)

// GsrnNumber identifies an accounting (metering) point: 18 digits, Danish
// points are prefixed 57, last digit is a GS1 mod-10 check digit.
type GsrnNumber string

// GlnNumber identifies a market participant: 13 digits with a GS1 check digit.
type GlnNumber string

const (
	gsrnLength = 18
	glnLength  = 13
	gsrnPrefix = "57"
)

// ParseGsrnNumber validates s at a trust boundary.
func ParseGsrnNumber(s string) (GsrnNumber, error) {
	s = strings.TrimSpace(s)
	if len(s) != gsrnLength || !allDigits(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "gsrn number must be 18 digits")
	}
	if !strings.HasPrefix(s, gsrnPrefix) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "gsrn number must start with 57")
	}
	if !validCheckDigit(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "gsrn number has invalid check digit")
	}
	return GsrnNumber(s), nil
}

// ParseGlnNumber validates s at a trust boundary.
func ParseGlnNumber(s string) (GlnNumber, error) {
	s = strings.TrimSpace(s)
	if len(s) != glnLength || !allDigits(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "gln number must be 13 digits")
	}
	if !validCheckDigit(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "gln number has invalid check digit")
	}
	return GlnNumber(s), nil
}

func (g GsrnNumber) String() string { return string(g) }
func (g GlnNumber) String() string  { return string(g) }

// validCheckDigit applies the GS1 mod-10 algorithm: weights 3,1,3,... from the
// digit left of the check digit, check digit makes the sum a multiple of 10.
func validCheckDigit(s string) bool {
	sum := 0
	body := s[:len(s)-1]
	for i := len(body) - 1; i >= 0; i-- {
		d := int(body[i] - '0')
		if (len(body)-1-i)%2 == 0 {
			sum += d * 3
		} else {
			sum += d
		}
	}
	check := (10 - sum%10) % 10
	return check == int(s[len(s)-1]-'0')
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}
