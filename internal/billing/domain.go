package billing

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Bill is one recorded expense event tying a member (or anonymous visitor)
// to a store on a date, billed to a company. Bills are immutable once
// created.
type Bill struct {
	ID        int64
	StoreID   uuid.UUID
	CompanyID uuid.UUID
	MemberID  *uuid.UUID // nil marks a visitor entry
	Date      string     // YYYYMMDD
	CreatedAt time.Time
}

// Visitor reports whether the bill is an anonymous walk-in entry.
func (b Bill) Visitor() bool {
	return b.MemberID == nil
}

// VisitorLabel is the grouping label used for visitor bills.
const VisitorLabel = "visitor"

// MaxVisitors bounds the synthetic visitor bills one submission may create.
const MaxVisitors = 10

// ScopeKind selects the ownership dimension of an aggregation query.
type ScopeKind string

const (
	ScopeStore   ScopeKind = "store"
	ScopeCompany ScopeKind = "company"
	ScopeMember  ScopeKind = "member"
)

// Scope restricts an aggregation to one store, company, or member.
type Scope struct {
	Kind ScopeKind
	ID   uuid.UUID
}

// Validate checks the scope kind.
func (s Scope) Validate() error {
	switch s.Kind {
	case ScopeStore, ScopeCompany, ScopeMember:
		return nil
	}
	return fmt.Errorf("%w: unknown scope %q", ErrInvalidScope, s.Kind)
}

// PeriodKind selects the time granularity of an aggregation query.
type PeriodKind string

const (
	PeriodDay   PeriodKind = "day"
	PeriodMonth PeriodKind = "month"
	PeriodYear  PeriodKind = "year"
)

var (
	dayPattern   = regexp.MustCompile(`^\d{8}$`)
	monthPattern = regexp.MustCompile(`^\d{6}$`)
	yearPattern  = regexp.MustCompile(`^\d{4}$`)
)

// Period is a validated time window: an exact day, a month prefix, or a
// year prefix over the YYYYMMDD bill date.
type Period struct {
	Kind  PeriodKind
	Value string
}

// Day builds an exact-day period.
func Day(value string) Period { return Period{Kind: PeriodDay, Value: value} }

// Month builds a month-prefix period.
func Month(value string) Period { return Period{Kind: PeriodMonth, Value: value} }

// Year builds a year-prefix period.
func Year(value string) Period { return Period{Kind: PeriodYear, Value: value} }

// Validate rejects malformed period values instead of silently matching
// nothing, which is what raw substring filters would do.
func (p Period) Validate() error {
	switch p.Kind {
	case PeriodDay:
		if !dayPattern.MatchString(p.Value) {
			return fmt.Errorf("%w: day must be YYYYMMDD, got %q", ErrInvalidPeriod, p.Value)
		}
	case PeriodMonth:
		if !monthPattern.MatchString(p.Value) {
			return fmt.Errorf("%w: month must be YYYYMM, got %q", ErrInvalidPeriod, p.Value)
		}
	case PeriodYear:
		if !yearPattern.MatchString(p.Value) {
			return fmt.Errorf("%w: year must be YYYY, got %q", ErrInvalidPeriod, p.Value)
		}
	default:
		return fmt.Errorf("%w: unknown period kind %q", ErrInvalidPeriod, p.Kind)
	}
	return nil
}

// GroupKey selects the dimension grouped totals are broken down by.
type GroupKey string

const (
	GroupByStore   GroupKey = "store"
	GroupByMember  GroupKey = "member"
	GroupByCompany GroupKey = "company"
)

// Validate checks the group key.
func (g GroupKey) Validate() error {
	switch g {
	case GroupByStore, GroupByMember, GroupByCompany:
		return nil
	}
	return fmt.Errorf("%w: unknown group key %q", ErrInvalidScope, g)
}

// Summary is the total price and row count over one scope and window.
// An empty window yields {0, 0}, never null.
type Summary struct {
	Total int64 `json:"total"`
	Count int64 `json:"count"`
}

// GroupTotal is one row of a grouped aggregation.
type GroupTotal struct {
	Label string `json:"label"`
	Total int64  `json:"total"`
}

// PivotDays is the number of day columns a monthly pivot always carries.
// Months with fewer days keep trailing all-zero columns.
const PivotDays = 31

// PivotRow is one entity row of the monthly visit pivot.
type PivotRow struct {
	Label  string           `json:"label"`
	Cells  [PivotDays]int64 `json:"cells"`
	Count  int64            `json:"count"`
	Amount int64            `json:"amount"`
}

// Pivot is the day-of-month by entity visit matrix for one month.
type Pivot struct {
	Month      string            `json:"month"`
	Days       [PivotDays]string `json:"days"`
	Rows       []PivotRow        `json:"rows"`
	GrandTotal int64             `json:"grandTotal"`
}

// BillDetail is one line of a member's monthly statement.
type BillDetail struct {
	StoreName   string `json:"storeName"`
	MemberName  string `json:"memberName"`
	CompanyName string `json:"companyName"`
	Price       int64  `json:"price"`
	Date        string `json:"date"`
}

// StoreInfo is the slice of a store record billing needs.
type StoreInfo struct {
	ID       uuid.UUID
	Name     string
	Price    int64
	FCMToken string
	Enabled  bool
}

// MemberInfo is the slice of a member record billing needs.
type MemberInfo struct {
	ID        uuid.UUID
	Name      string
	CompanyID *uuid.UUID
}

// ErrStoreNotFound is returned when the billed store does not exist.
var ErrStoreNotFound = errors.New("billing: store not found")

// ErrMemberNotFound is returned when the billing member does not exist.
var ErrMemberNotFound = errors.New("billing: member not found")

// ErrNoCompany is returned when the member has no company to bill.
var ErrNoCompany = errors.New("billing: member has no company")

// ErrInvalidDate is returned for malformed bill dates.
var ErrInvalidDate = errors.New("billing: date must be YYYYMMDD")

// ErrInvalidPeriod is returned for malformed aggregation windows.
var ErrInvalidPeriod = errors.New("billing: invalid period")

// ErrInvalidScope is returned for unknown scope or group dimensions.
var ErrInvalidScope = errors.New("billing: invalid scope")

// ErrVisitorCount is returned when the visitor count is not an integer
// within [0, MaxVisitors].
var ErrVisitorCount = fmt.Errorf("billing: visitor count must be an integer between 0 and %d", MaxVisitors)
