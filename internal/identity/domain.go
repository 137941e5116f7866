// Package identity stores the member, store, and company accounts the
// rest of the system hangs off.
package identity

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Member is a diner account. CompanyID is set only while an affiliation
// is approved.
type Member struct {
	ID           uuid.UUID
	Name         string
	Email        string
	Account      string
	PasswordHash string
	CompanyID    *uuid.UUID
	Banned       bool
	CreatedAt    time.Time
}

// Store is a restaurant account. Price is the unit meal price every bill
// at the store is valued at.
type Store struct {
	ID           uuid.UUID
	Name         string
	BizNum       string
	Account      string
	PasswordHash string
	Price        int64
	FCMToken     string
	Enabled      bool
	CreatedAt    time.Time
}

// Company is a customer organisation account.
type Company struct {
	ID           uuid.UUID
	Name         string
	BizNum       string
	Account      string
	PasswordHash string
	Enabled      bool
	CreatedAt    time.Time
}

// Admin is an operator account. Admins are provisioned directly in the
// database, never through signup.
type Admin struct {
	ID           uuid.UUID
	Account      string
	PasswordHash string
	CreatedAt    time.Time
}

// ErrAdminNotFound is returned when no admin matches.
var ErrAdminNotFound = errors.New("identity: admin not found")

// ErrMemberNotFound is returned when no member matches.
var ErrMemberNotFound = errors.New("identity: member not found")

// ErrStoreNotFound is returned when no store matches.
var ErrStoreNotFound = errors.New("identity: store not found")

// ErrCompanyNotFound is returned when no company matches.
var ErrCompanyNotFound = errors.New("identity: company not found")

// ErrDuplicateAccount is returned when the login account is already taken.
var ErrDuplicateAccount = errors.New("identity: account already registered")
