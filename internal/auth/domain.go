// Package auth issues and validates role-scoped tokens and guards HTTP
// routes by principal kind.
package auth

import (
	"errors"

	"github.com/google/uuid"
)

// Kind is the closed set of principal roles. A principal's kind is
// resolved once at login and carried in the token; nothing downstream
// re-derives it from strings.
type Kind string

const (
	KindAdmin   Kind = "admin"
	KindMember  Kind = "member"
	KindStore   Kind = "store"
	KindCompany Kind = "company"
)

// Valid reports whether the kind is one of the known roles.
func (k Kind) Valid() bool {
	switch k {
	case KindAdmin, KindMember, KindStore, KindCompany:
		return true
	}
	return false
}

// Principal is the authenticated caller attached to a request.
type Principal struct {
	ID   uuid.UUID
	Kind Kind
}

// ErrInvalidCredentials is returned for any login failure. The cause
// (unknown account, wrong password, disabled principal) is deliberately
// not distinguished.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// ErrLocked is returned while an account is locked out after repeated
// login failures.
var ErrLocked = errors.New("auth: account temporarily locked")

// ErrInvalidToken is returned for unparseable or tampered tokens.
var ErrInvalidToken = errors.New("auth: invalid token")

// ErrExpiredToken is returned for well-formed but expired tokens.
var ErrExpiredToken = errors.New("auth: token expired")

// ErrTokenReused is returned when a rotated refresh token is presented
// again.
var ErrTokenReused = errors.New("auth: refresh token already used")

// ErrOTPInvalid is returned for a wrong or exhausted one-time code.
var ErrOTPInvalid = errors.New("auth: invalid one-time code")

// ErrOTPExpired is returned when no code is pending for the address.
var ErrOTPExpired = errors.New("auth: one-time code expired")
