package auth

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidPhoneFormat = errors.New("invalid phone number format")
	ErrInvalidCredentials = errors.New("invalid phone number or access code")
	ErrTrialExhausted     = errors.New("free trial exhausted")
	ErrInvalidToken       = errors.New("invalid token")
	ErrExpiredToken       = errors.New("token has expired")
)

// MembershipExpiredError reports a matched account whose membership has
// lapsed, carrying the expiry so the caller can show it to the user.
type MembershipExpiredError struct {
	Expiry time.Time
}

func (e *MembershipExpiredError) Error() string {
	return fmt.Sprintf("membership expired on %s", e.Expiry.Format("2006-01-02"))
}
