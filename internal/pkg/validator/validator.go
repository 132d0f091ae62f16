package validator

import (
	"errors"
	"net/mail"
	"sort"
	"strings"

	"github.com/samber/lo"
)

var ErrInvalidEmail = errors.New("invalid email format")

// ValidateEmail accepts a bare address with a dotted domain.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrInvalidEmail
	}

	at := strings.LastIndex(email, "@")
	domain := email[at+1:]
	if !strings.Contains(domain, ".") || strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return ErrInvalidEmail
	}
	return nil
}

// MissingFields returns the sorted names of fields with a blank value.
func MissingFields(fields map[string]string) []string {
	missing := lo.Keys(lo.PickBy(fields, func(_ string, v string) bool {
		return strings.TrimSpace(v) == ""
	}))
	sort.Strings(missing)
	return missing
}
