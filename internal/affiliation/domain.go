package affiliation

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Request is one member's application to join one company, optionally
// scoped to a store context. A request starts pending and resolves to
// approved or rejected; Off marks soft deletion and is terminal.
type Request struct {
	ID        int64
	MemberID  uuid.UUID
	CompanyID uuid.UUID
	StoreID   *uuid.UUID
	Approved  bool
	Rejected  bool
	Off       bool
	CreatedAt time.Time
}

// Pending reports whether the request is still awaiting a decision.
func (r Request) Pending() bool {
	return !r.Approved && !r.Rejected && !r.Off
}

// Applicant is a pending request joined with the applying member,
// as shown on the company dashboard.
type Applicant struct {
	ApplyID    int64
	MemberID   uuid.UUID
	MemberName string
	AppliedAt  time.Time
}

// CompanyStatus is the result of a company lookup.
type CompanyStatus int

const (
	// CompanyActive means the company exists and accepts applications.
	CompanyActive CompanyStatus = iota + 1
	// CompanyDisabled means the company exists but has been deactivated.
	CompanyDisabled
	// CompanyUnknown means no company matches the identifier.
	CompanyUnknown
)

// CompanyInfo is the slice of a company record the ledger needs.
type CompanyInfo struct {
	ID      uuid.UUID
	Name    string
	Enabled bool
}

// StoreInfo is the slice of a store record the ledger needs.
type StoreInfo struct {
	ID      uuid.UUID
	Name    string
	Enabled bool
}

// ErrCompanyNotFound is returned when the referenced company does not exist.
var ErrCompanyNotFound = errors.New("affiliation: company not found")

// ErrStoreNotFound is returned when the referenced store does not exist.
var ErrStoreNotFound = errors.New("affiliation: store not found")

// ErrApplyNotFound is returned when no request matches the expected state.
// Approving or retiring an already resolved request fails with this error;
// the query filters on the prior state, so repeated calls are not replayed.
var ErrApplyNotFound = errors.New("affiliation: apply not found")

// ErrDuplicateApply is returned when the member already has a pending
// request. Only a pending request blocks; approval releases the slot, so
// an affiliated member may apply elsewhere without quitting first.
var ErrDuplicateApply = errors.New("affiliation: member already has a pending request")

// ErrMemberNotFound is returned when the referenced member does not exist.
var ErrMemberNotFound = errors.New("affiliation: member not found")

// ErrNoCompany is returned when quitting without a current affiliation.
var ErrNoCompany = errors.New("affiliation: member has no company")
