// Package policy decides whether a resolution request may pass a link's
// access controls. Expired and ClickExhausted are computed from the clock and
// the counter on every call; nothing is stored.
package policy

import (
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/Siddarth2230/linklytics/internal/models"
)

type Verdict int

const (
	Allowed Verdict = iota
	Expired
	ClickExhausted
	PasswordRequired
)

func (v Verdict) String() string {
	switch v {
	case Allowed:
		return "allowed"
	case Expired:
		return "expired"
	case ClickExhausted:
		return "click_exhausted"
	case PasswordRequired:
		return "password_required"
	}
	return "unknown"
}

// Decision is the outcome of Evaluate. WrongPassword is only ever set along
// with PasswordRequired, so terminal verdicts say nothing about the password.
type Decision struct {
	Verdict       Verdict
	WrongPassword bool
}

// Evaluate checks, in order: expiry, click exhaustion, password gate.
// The first failing check wins.
func Evaluate(link *models.Link, now time.Time, password *string) Decision {
	if link.ExpireAt != nil && now.After(*link.ExpireAt) {
		return Decision{Verdict: Expired}
	}
	if link.MaxClicks > 0 && link.ClickCount >= link.MaxClicks {
		return Decision{Verdict: ClickExhausted}
	}
	if link.PasswordSecret != nil {
		if password == nil {
			return Decision{Verdict: PasswordRequired}
		}
		if !PasswordMatches(*link.PasswordSecret, *password) {
			return Decision{Verdict: PasswordRequired, WrongPassword: true}
		}
	}
	return Decision{Verdict: Allowed}
}

var ErrEmptyPassword = errors.New("password must not be empty")

// HashPassword returns a salted bcrypt secret for pw. A cost outside bcrypt's
// range falls back to bcrypt.DefaultCost.
func HashPassword(pw string, cost int) (string, error) {
	if pw == "" {
		return "", ErrEmptyPassword
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(pw), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func PasswordMatches(secret, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(secret), []byte(pw)) == nil
}
