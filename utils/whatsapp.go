package utils

import (
	"errors"
	"net/url"
	"strings"
	"unicode"
)

const (
	DefaultCountryCode = "62"
	minWhatsAppDigits  = 10
)

var ErrInvalidPhone = errors.New("phone number is invalid or empty")

// FormatWhatsAppNumber strips everything but digits and rewrites the number
// into international form: a leading 0 becomes the country code, and the code
// is prepended when missing.
func FormatWhatsAppNumber(phone, countryCode string) string {
	if countryCode == "" {
		countryCode = DefaultCountryCode
	}
	var b strings.Builder
	for _, r := range phone {
		if unicode.IsDigit(r) && r < unicode.MaxASCII {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return ""
	}
	if strings.HasPrefix(digits, "0") {
		return countryCode + digits[1:]
	}
	if !strings.HasPrefix(digits, countryCode) {
		return countryCode + digits
	}
	return digits
}

// WhatsAppLink builds a wa.me deep link with a prefilled message.
func WhatsAppLink(phone, countryCode, message string) (string, error) {
	number := FormatWhatsAppNumber(phone, countryCode)
	if len(number) < minWhatsAppDigits {
		return "", ErrInvalidPhone
	}
	link := "https://wa.me/" + number
	if message != "" {
		// spaces as %20 rather than +
		link += "?text=" + strings.ReplaceAll(url.QueryEscape(message), "+", "%20")
	}
	return link, nil
}
