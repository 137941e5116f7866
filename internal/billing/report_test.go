package billing

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReportRepo struct {
	summary Summary
	grouped []GroupTotal
	cells   []PivotCell
	details []BillDetail

	lastScope  Scope
	lastPeriod Period
	lastGroup  GroupKey
}

func (f *fakeReportRepo) Sum(_ context.Context, scope Scope, period Period) (Summary, error) {
	f.lastScope, f.lastPeriod = scope, period
	return f.summary, nil
}

func (f *fakeReportRepo) GroupedTotals(_ context.Context, scope Scope, period Period, groupBy GroupKey) ([]GroupTotal, error) {
	f.lastScope, f.lastPeriod, f.lastGroup = scope, period, groupBy
	return f.grouped, nil
}

func (f *fakeReportRepo) PivotCells(_ context.Context, scope Scope, month Period, entity GroupKey) ([]PivotCell, error) {
	f.lastScope, f.lastPeriod, f.lastGroup = scope, month, entity
	return f.cells, nil
}

func (f *fakeReportRepo) MemberMonthBills(_ context.Context, _ uuid.UUID, month Period) ([]BillDetail, error) {
	f.lastPeriod = month
	return f.details, nil
}

func TestSumValidatesWindow(t *testing.T) {
	svc := NewReportService(&fakeReportRepo{})
	scope := Scope{Kind: ScopeStore, ID: uuid.New()}

	_, err := svc.Sum(context.Background(), scope, Month("2024-06"))
	assert.ErrorIs(t, err, ErrInvalidPeriod)

	_, err = svc.Sum(context.Background(), scope, Day("202406"))
	assert.ErrorIs(t, err, ErrInvalidPeriod)

	_, err = svc.Sum(context.Background(), Scope{Kind: "warehouse", ID: uuid.New()}, Month("202406"))
	assert.ErrorIs(t, err, ErrInvalidScope)
}

func TestSumEmptyWindowIsZero(t *testing.T) {
	repo := &fakeReportRepo{summary: Summary{}}
	svc := NewReportService(repo)

	got, err := svc.Sum(context.Background(), Scope{Kind: ScopeCompany, ID: uuid.New()}, Year("1999"))
	require.NoError(t, err)
	assert.Equal(t, Summary{Total: 0, Count: 0}, got)
}

func TestGroupedTotalsValidatesGroupKey(t *testing.T) {
	svc := NewReportService(&fakeReportRepo{})
	scope := Scope{Kind: ScopeStore, ID: uuid.New()}

	_, err := svc.GroupedTotals(context.Background(), scope, Month("202406"), GroupKey("weekday"))
	assert.ErrorIs(t, err, ErrInvalidScope)
}

func TestGroupedTotalsPassesWindowThrough(t *testing.T) {
	repo := &fakeReportRepo{grouped: []GroupTotal{
		{Label: "acme", Total: 3000},
		{Label: "globex", Total: 1000},
	}}
	svc := NewReportService(repo)
	scope := Scope{Kind: ScopeStore, ID: uuid.New()}

	got, err := svc.GroupedTotals(context.Background(), scope, Month("202406"), GroupByCompany)
	require.NoError(t, err)
	assert.Equal(t, repo.grouped, got)
	assert.Equal(t, GroupByCompany, repo.lastGroup)
	assert.Equal(t, Period{Kind: PeriodMonth, Value: "202406"}, repo.lastPeriod)
}

func TestMonthlyPivotSpreadsCellsByDay(t *testing.T) {
	// One member visits on the 1st once and on the 2nd twice at a
	// 1000-per-visit store.
	repo := &fakeReportRepo{cells: []PivotCell{
		{Label: "kim", Date: "20240601", Count: 1, Amount: 1000},
		{Label: "kim", Date: "20240602", Count: 2, Amount: 2000},
	}}
	svc := NewReportService(repo)

	pivot, err := svc.MonthlyPivot(context.Background(), Scope{Kind: ScopeCompany, ID: uuid.New()}, Month("202406"))
	require.NoError(t, err)

	assert.Equal(t, "202406", pivot.Month)
	assert.Equal(t, GroupByMember, repo.lastGroup)
	require.Len(t, pivot.Rows, 1)

	row := pivot.Rows[0]
	assert.Equal(t, "kim", row.Label)
	assert.Equal(t, int64(1), row.Cells[0])
	assert.Equal(t, int64(2), row.Cells[1])
	assert.Equal(t, int64(0), row.Cells[2])
	assert.Equal(t, int64(3), row.Count)
	assert.Equal(t, int64(3000), row.Amount)
	assert.Equal(t, int64(3000), pivot.GrandTotal)
}

func TestMonthlyPivotAlwaysCarriesThirtyOneDays(t *testing.T) {
	svc := NewReportService(&fakeReportRepo{})

	pivot, err := svc.MonthlyPivot(context.Background(), Scope{Kind: ScopeStore, ID: uuid.New()}, Month("202402"))
	require.NoError(t, err)

	assert.Empty(t, pivot.Rows)
	assert.Zero(t, pivot.GrandTotal)
	assert.Equal(t, "01", pivot.Days[0])
	assert.Equal(t, "31", pivot.Days[30])
}

func TestMonthlyPivotRowsSortByLabel(t *testing.T) {
	repo := &fakeReportRepo{cells: []PivotCell{
		{Label: "globex", Date: "20240610", Count: 1, Amount: 500},
		{Label: "acme", Date: "20240603", Count: 1, Amount: 700},
		{Label: VisitorLabel, Date: "20240603", Count: 2, Amount: 1400},
	}}
	svc := NewReportService(repo)

	pivot, err := svc.MonthlyPivot(context.Background(), Scope{Kind: ScopeCompany, ID: uuid.New()}, Month("202406"))
	require.NoError(t, err)
	require.Len(t, pivot.Rows, 3)
	assert.Equal(t, "acme", pivot.Rows[0].Label)
	assert.Equal(t, "globex", pivot.Rows[1].Label)
	assert.Equal(t, VisitorLabel, pivot.Rows[2].Label)
	assert.Equal(t, int64(2600), pivot.GrandTotal)
}

func TestMonthlyPivotRejectsWrongWindowAndScope(t *testing.T) {
	svc := NewReportService(&fakeReportRepo{})

	_, err := svc.MonthlyPivot(context.Background(), Scope{Kind: ScopeStore, ID: uuid.New()}, Day("20240601"))
	assert.ErrorIs(t, err, ErrInvalidPeriod)

	_, err = svc.MonthlyPivot(context.Background(), Scope{Kind: ScopeMember, ID: uuid.New()}, Month("202406"))
	assert.ErrorIs(t, err, ErrInvalidScope)
}

func TestMonthlyPivotSkipsMalformedCellDates(t *testing.T) {
	repo := &fakeReportRepo{cells: []PivotCell{
		{Label: "acme", Date: "20240640", Count: 1, Amount: 100},
		{Label: "acme", Date: "bogus", Count: 1, Amount: 100},
		{Label: "acme", Date: "20240615", Count: 1, Amount: 100},
	}}
	svc := NewReportService(repo)

	pivot, err := svc.MonthlyPivot(context.Background(), Scope{Kind: ScopeCompany, ID: uuid.New()}, Month("202406"))
	require.NoError(t, err)
	require.Len(t, pivot.Rows, 1)
	assert.Equal(t, int64(1), pivot.Rows[0].Count)
	assert.Equal(t, int64(100), pivot.GrandTotal)
}

func TestMemberMonthDetailRequiresMonthWindow(t *testing.T) {
	svc := NewReportService(&fakeReportRepo{})

	_, err := svc.MemberMonthDetail(context.Background(), uuid.New(), Day("20240601"))
	assert.ErrorIs(t, err, ErrInvalidPeriod)

	_, err = svc.MemberMonthDetail(context.Background(), uuid.New(), Month("20240"))
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}
