package billinghttp

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/billus/billus-server/internal/auth"
	"github.com/billus/billus-server/internal/billing"
)

type fakeReportRepo struct {
	cells []billing.PivotCell
	scope billing.Scope
}

func (f *fakeReportRepo) Sum(_ context.Context, scope billing.Scope, _ billing.Period) (billing.Summary, error) {
	f.scope = scope
	return billing.Summary{}, nil
}

func (f *fakeReportRepo) GroupedTotals(_ context.Context, scope billing.Scope, _ billing.Period, _ billing.GroupKey) ([]billing.GroupTotal, error) {
	f.scope = scope
	return nil, nil
}

func (f *fakeReportRepo) PivotCells(ctx context.Context, scope billing.Scope, _ billing.Period, _ billing.GroupKey) ([]billing.PivotCell, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.scope = scope
	return f.cells, nil
}

func (f *fakeReportRepo) MemberMonthBills(_ context.Context, _ uuid.UUID, _ billing.Period) ([]billing.BillDetail, error) {
	return nil, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func authedRequest(t *testing.T, target string, principal auth.Principal) *http.Request {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, target, nil)
	return r.WithContext(auth.ContextWithPrincipal(r.Context(), principal))
}

func TestRequestScopeFollowsPrincipal(t *testing.T) {
	storeID := uuid.New()

	// Non-admin callers are scoped to themselves; query parameters cannot
	// widen the window.
	r := authedRequest(t, "/reports/sum?scope=company&id="+uuid.NewString(),
		auth.Principal{ID: storeID, Kind: auth.KindStore})
	scope, err := requestScope(r)
	require.NoError(t, err)
	assert.Equal(t, billing.Scope{Kind: billing.ScopeStore, ID: storeID}, scope)

	companyID := uuid.New()
	r = authedRequest(t, "/reports/sum", auth.Principal{ID: companyID, Kind: auth.KindCompany})
	scope, err = requestScope(r)
	require.NoError(t, err)
	assert.Equal(t, billing.Scope{Kind: billing.ScopeCompany, ID: companyID}, scope)
}

func TestRequestScopeAdminNeedsExplicitTarget(t *testing.T) {
	r := authedRequest(t, "/reports/sum?scope=store&id=not-a-uuid",
		auth.Principal{ID: uuid.New(), Kind: auth.KindAdmin})
	_, err := requestScope(r)
	assert.ErrorIs(t, err, billing.ErrInvalidScope)

	target := uuid.New()
	r = authedRequest(t, "/reports/sum?scope=store&id="+target.String(),
		auth.Principal{ID: uuid.New(), Kind: auth.KindAdmin})
	scope, err := requestScope(r)
	require.NoError(t, err)
	assert.Equal(t, billing.Scope{Kind: billing.ScopeStore, ID: target}, scope)
}

func TestPivotSurvivesCallerCancel(t *testing.T) {
	storeID := uuid.New()
	repo := &fakeReportRepo{cells: []billing.PivotCell{
		{Label: "acme", Date: "20240601", Count: 2, Amount: 18000},
	}}
	h := NewHandler(testLogger(), nil, billing.NewReportService(repo))

	r := authedRequest(t, "/reports/pivot?month=202406",
		auth.Principal{ID: storeID, Kind: auth.KindStore})
	ctx, cancel := context.WithCancel(r.Context())
	cancel()
	r = r.WithContext(ctx)

	// The winning caller of a collapsed pivot build may disconnect; the
	// computation keeps running for the others.
	w := httptest.NewRecorder()
	h.pivot(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	var pivot billing.Pivot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pivot))
	assert.Equal(t, "202406", pivot.Month)
	require.Len(t, pivot.Rows, 1)
	assert.Equal(t, int64(18000), pivot.GrandTotal)
}

func TestPivotRejectsMalformedMonth(t *testing.T) {
	h := NewHandler(testLogger(), nil, billing.NewReportService(&fakeReportRepo{}))

	r := authedRequest(t, "/reports/pivot?month=2024-06",
		auth.Principal{ID: uuid.New(), Kind: auth.KindStore})
	w := httptest.NewRecorder()
	h.pivot(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
