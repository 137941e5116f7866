package billing

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RepositoryPort defines the data access surface of bill ingestion.
type RepositoryPort interface {
	FindStore(ctx context.Context, storeID uuid.UUID) (StoreInfo, error)
	FindMember(ctx context.Context, memberID uuid.UUID) (MemberInfo, error)
	CompanyName(ctx context.Context, companyID uuid.UUID) (string, error)
	CreateWithVisitors(ctx context.Context, bill Bill, visitors int) (Bill, error)
	Sum(ctx context.Context, scope Scope, period Period) (Summary, error)
}

// Notification is the payload handed to the push delivery queue after a
// bill is recorded.
type Notification struct {
	StoreID     uuid.UUID `json:"storeId"`
	FCMToken    string    `json:"fcmToken"`
	CompanyID   uuid.UUID `json:"companyId"`
	CompanyName string    `json:"companyName"`
	MemberName  string    `json:"memberName"`
	ExtraCount  int       `json:"extraCount"`
	Date        string    `json:"date"`
	TodayCount  int64     `json:"todayCount"`
	TodayTotal  int64     `json:"todayTotal"`
}

// NotifyEnqueuer submits notifications to the background queue. Delivery
// is best effort; enqueue failures never fail bill creation.
type NotifyEnqueuer interface {
	EnqueueBillNotify(ctx context.Context, n Notification) error
}

// NewBillInput carries one bill submission.
type NewBillInput struct {
	MemberID   uuid.UUID
	StoreID    uuid.UUID
	Date       string
	ExtraCount string // optional visitor count, as submitted
}

// Service records bills and fans out visitor entries.
type Service struct {
	repo     RepositoryPort
	enqueuer NotifyEnqueuer
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs a Service instance. enqueuer may be nil when no
// push delivery is configured.
func NewService(repo RepositoryPort, enqueuer NotifyEnqueuer, logger *slog.Logger) *Service {
	return &Service{repo: repo, enqueuer: enqueuer, logger: logger, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// NewBill records one expense entry for the member, plus one visitor bill
// per counted guest. The member must be affiliated with a company; the
// company on the bill is always the member's current one.
func (s *Service) NewBill(ctx context.Context, in NewBillInput) (Bill, error) {
	if !dayPattern.MatchString(in.Date) {
		return Bill{}, ErrInvalidDate
	}
	visitors, err := ParseVisitorCount(in.ExtraCount)
	if err != nil {
		return Bill{}, err
	}

	member, err := s.repo.FindMember(ctx, in.MemberID)
	if err != nil {
		return Bill{}, err
	}
	if member.CompanyID == nil {
		return Bill{}, ErrNoCompany
	}
	store, err := s.repo.FindStore(ctx, in.StoreID)
	if err != nil {
		return Bill{}, err
	}

	bill, err := s.repo.CreateWithVisitors(ctx, Bill{
		StoreID:   store.ID,
		CompanyID: *member.CompanyID,
		MemberID:  &member.ID,
		Date:      in.Date,
	}, visitors)
	if err != nil {
		return Bill{}, err
	}

	s.notify(ctx, bill, store, member, visitors)
	return bill, nil
}

// notify enqueues the push notification with the day's refreshed totals.
// Failures are logged and swallowed; the bill is already committed.
func (s *Service) notify(ctx context.Context, bill Bill, store StoreInfo, member MemberInfo, visitors int) {
	if s.enqueuer == nil {
		return
	}
	summary, err := s.repo.Sum(ctx, Scope{Kind: ScopeStore, ID: store.ID}, Day(bill.Date))
	if err != nil {
		s.logger.Warn("bill notify: day summary", slog.Any("error", err))
		return
	}
	companyName, err := s.repo.CompanyName(ctx, bill.CompanyID)
	if err != nil {
		s.logger.Warn("bill notify: company name", slog.Any("error", err))
	}
	n := Notification{
		StoreID:     store.ID,
		FCMToken:    store.FCMToken,
		CompanyID:   bill.CompanyID,
		CompanyName: companyName,
		MemberName:  member.Name,
		ExtraCount:  visitors,
		Date:        bill.Date,
		TodayCount:  summary.Count,
		TodayTotal:  summary.Total,
	}
	if err := s.enqueuer.EnqueueBillNotify(ctx, n); err != nil {
		s.logger.Warn("bill notify: enqueue", slog.Any("error", err))
	}
}

// ParseVisitorCount validates a submitted visitor count. Blank means no
// visitors.
func ParseVisitorCount(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 || n > MaxVisitors {
		return 0, ErrVisitorCount
	}
	return n, nil
}
