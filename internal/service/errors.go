package service

import (
	"errors"
	"fmt"

	"github.com/Siddarth2230/linklytics/internal/repository"
)

var (
	// ErrValidation is wrapped by every malformed-input error below.
	ErrValidation = errors.New("validation error")

	ErrInvalidURL       = fmt.Errorf("%w: invalid URL", ErrValidation)
	ErrInvalidExpiry    = fmt.Errorf("%w: expireAt must be in the future", ErrValidation)
	ErrInvalidMaxClicks = fmt.Errorf("%w: maxClicks must not be negative", ErrValidation)
	ErrEmptyPassword    = fmt.Errorf("%w: password must not be empty", ErrValidation)
	ErrMissingOwner     = fmt.Errorf("%w: owner required", ErrValidation)

	ErrAliasTaken   = errors.New("alias taken")
	ErrNotFound     = errors.New("short code not found")
	ErrRateLimited  = errors.New("too many links created, try again in a minute")
	ErrGenExhausted = errors.New("failed to generate unique short code after retries")

	// ErrStoreUnavailable is the repository's transient-failure error, re-exported
	// so callers need not import the repository package.
	ErrStoreUnavailable = repository.ErrUnavailable
)

func storeErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
