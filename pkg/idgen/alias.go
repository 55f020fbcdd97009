package idgen

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var ErrInvalidAlias = errors.New("invalid alias")

var aliasRE = regexp.MustCompile(`^[A-Za-z0-9_-]{3,32}$`)

// Aliases share the URL space with API and ops routes.
var reserved = map[string]struct{}{
	"admin":   {},
	"api":     {},
	"health":  {},
	"login":   {},
	"metrics": {},
	"static":  {},
	"www":     {},
}

// ValidateAlias enforces allowed chars, length, and the reserved list.
func ValidateAlias(alias string) error {
	if !aliasRE.MatchString(alias) {
		return fmt.Errorf("%w: must be 3-32 chars of letters, numbers, '-' and '_'", ErrInvalidAlias)
	}
	if _, ok := reserved[strings.ToLower(alias)]; ok {
		return fmt.Errorf("%w: %q is reserved", ErrInvalidAlias, alias)
	}

	// Block purely numeric aliases to avoid confusion with ID-based systems
	allDigits := true
	for _, r := range alias {
		if r < '0' || r > '9' {
			allDigits = false
			break
		}
	}
	if allDigits {
		return fmt.Errorf("%w: must not be purely numeric", ErrInvalidAlias)
	}
	return nil
}
