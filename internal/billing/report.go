package billing

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/google/uuid"
)

// ReportRepositoryPort is the read-only surface the aggregation engine
// queries. It never mutates the bill set.
type ReportRepositoryPort interface {
	Sum(ctx context.Context, scope Scope, period Period) (Summary, error)
	GroupedTotals(ctx context.Context, scope Scope, period Period, groupBy GroupKey) ([]GroupTotal, error)
	PivotCells(ctx context.Context, scope Scope, month Period, entity GroupKey) ([]PivotCell, error)
	MemberMonthBills(ctx context.Context, memberID uuid.UUID, month Period) ([]BillDetail, error)
}

// ReportService computes deterministic summaries over the bill set. Every
// call is parameterised by an explicit scope and window; the service holds
// no per-request state.
type ReportService struct {
	repo ReportRepositoryPort
}

// NewReportService constructs a ReportService.
func NewReportService(repo ReportRepositoryPort) *ReportService {
	return &ReportService{repo: repo}
}

// Sum totals prices and counts bills over one scope and window. An empty
// window yields a zero summary rather than null.
func (s *ReportService) Sum(ctx context.Context, scope Scope, period Period) (Summary, error) {
	if err := scope.Validate(); err != nil {
		return Summary{}, err
	}
	if err := period.Validate(); err != nil {
		return Summary{}, err
	}
	return s.repo.Sum(ctx, scope, period)
}

// GroupedTotals breaks the window's total down by the requested dimension,
// ordered by label ascending. The ordering is part of the contract; the
// storage engine's grouping order is not relied on.
func (s *ReportService) GroupedTotals(ctx context.Context, scope Scope, period Period, groupBy GroupKey) ([]GroupTotal, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if err := period.Validate(); err != nil {
		return nil, err
	}
	if err := groupBy.Validate(); err != nil {
		return nil, err
	}
	return s.repo.GroupedTotals(ctx, scope, period, groupBy)
}

// MonthlyPivot builds the day-of-month visit matrix for one month. Rows
// are companies when the scope is a store and members when the scope is a
// company. All 31 day columns are always present; days past the end of a
// short month stay zero.
func (s *ReportService) MonthlyPivot(ctx context.Context, scope Scope, month Period) (Pivot, error) {
	if err := month.Validate(); err != nil {
		return Pivot{}, err
	}
	if month.Kind != PeriodMonth {
		return Pivot{}, fmt.Errorf("%w: pivot requires a month window", ErrInvalidPeriod)
	}

	var entity GroupKey
	switch scope.Kind {
	case ScopeStore:
		entity = GroupByCompany
	case ScopeCompany:
		entity = GroupByMember
	default:
		return Pivot{}, fmt.Errorf("%w: pivot scope must be store or company", ErrInvalidScope)
	}

	cells, err := s.repo.PivotCells(ctx, scope, month, entity)
	if err != nil {
		return Pivot{}, err
	}

	pivot := Pivot{Month: month.Value}
	for i := range pivot.Days {
		pivot.Days[i] = fmt.Sprintf("%02d", i+1)
	}

	rows := make(map[string]*PivotRow)
	for _, cell := range cells {
		if len(cell.Date) != 8 {
			continue
		}
		day, err := strconv.Atoi(cell.Date[6:8])
		if err != nil || day < 1 || day > PivotDays {
			continue
		}
		row, ok := rows[cell.Label]
		if !ok {
			row = &PivotRow{Label: cell.Label}
			rows[cell.Label] = row
		}
		row.Cells[day-1] += cell.Count
		row.Count += cell.Count
		row.Amount += cell.Amount
	}

	labels := make([]string, 0, len(rows))
	for label := range rows {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	pivot.Rows = make([]PivotRow, 0, len(labels))
	for _, label := range labels {
		row := rows[label]
		pivot.GrandTotal += row.Amount
		pivot.Rows = append(pivot.Rows, *row)
	}
	return pivot, nil
}

// MemberMonthDetail lists one member's bills within the month.
func (s *ReportService) MemberMonthDetail(ctx context.Context, memberID uuid.UUID, month Period) ([]BillDetail, error) {
	if err := month.Validate(); err != nil {
		return nil, err
	}
	if month.Kind != PeriodMonth {
		return nil, fmt.Errorf("%w: detail requires a month window", ErrInvalidPeriod)
	}
	return s.repo.MemberMonthBills(ctx, memberID, month)
}
