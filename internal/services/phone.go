package services

import (
	"regexp"
	"strings"

	"github.com/markjakearzadon/shoegame-gobackend/internal/apperr"
)

var (
	phonePattern = regexp.MustCompile(`^2547\d{8}$`)
	payToPattern = regexp.MustCompile(`^\d{4,12}$`)
)

// NormalizePhone converts 07XXXXXXXX, 7XXXXXXXX, +2547XXXXXXXX and
// 2547XXXXXXXX into 2547XXXXXXXX.
func NormalizePhone(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "+")
	switch {
	case strings.HasPrefix(s, "0"):
		s = "254" + s[1:]
	case strings.HasPrefix(s, "7"):
		s = "254" + s
	}
	if !phonePattern.MatchString(s) {
		return "", apperr.Validation("phone must be in format 2547XXXXXXXX")
	}
	return s, nil
}

// ValidatePayTo checks a merchant shortcode override (4 to 12 digits).
func ValidatePayTo(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if !payToPattern.MatchString(s) {
		return "", apperr.Validation("Invalid payTo format")
	}
	return s, nil
}

// maskPhone keeps the last four digits for logging.
func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return "****" + phone[len(phone)-4:]
}
