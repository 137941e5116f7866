// Package billinghttp exposes bill ingestion and reporting over HTTP. It
// sits beside the billing core so the export package can depend on the
// domain types without a cycle.
package billinghttp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/billus/billus-server/internal/auth"
	"github.com/billus/billus-server/internal/billing"
	"github.com/billus/billus-server/internal/billing/export"
	"github.com/billus/billus-server/internal/platform/httpx"
)

// Handler coordinates HTTP requests for bills and reports.
type Handler struct {
	logger   *slog.Logger
	ingest   *billing.Service
	reports  *billing.ReportService
	validate *validator.Validate
	pivots   singleflight.Group
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, ingest *billing.Service, reports *billing.ReportService) *Handler {
	return &Handler{logger: logger, ingest: ingest, reports: reports, validate: validator.New()}
}

// MountRoutes registers bill and report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireKind(auth.KindMember))
		r.Post("/bills", h.createBill)
	})
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireKind(auth.KindStore, auth.KindCompany, auth.KindMember, auth.KindAdmin))
		r.Get("/reports/sum", h.sum)
		r.Get("/reports/grouped", h.grouped)
		r.Get("/reports/grouped.csv", h.groupedCSV)
	})
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireKind(auth.KindStore, auth.KindCompany, auth.KindAdmin))
		r.Get("/reports/pivot", h.pivot)
		r.Get("/reports/pivot.csv", h.pivotCSV)
	})
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireKind(auth.KindCompany, auth.KindMember, auth.KindAdmin))
		r.Get("/reports/member-detail", h.memberDetail)
	})
}

type createBillRequest struct {
	StoreID    string `json:"storeId" validate:"required,uuid"`
	Date       string `json:"date" validate:"required,len=8,numeric"`
	ExtraCount string `json:"extraCount" validate:"omitempty,numeric"`
}

type billResponse struct {
	ID       int64  `json:"id"`
	StoreID  string `json:"storeId"`
	Date     string `json:"date"`
	Visitors int    `json:"visitors"`
}

func (h *Handler) createBill(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	var req createBillRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "storeId and date are required")
		return
	}
	storeID, _ := uuid.Parse(req.StoreID)

	visitors, err := billing.ParseVisitorCount(req.ExtraCount)
	if err != nil {
		h.respondError(w, err)
		return
	}
	bill, err := h.ingest.NewBill(r.Context(), billing.NewBillInput{
		MemberID:   principal.ID,
		StoreID:    storeID,
		Date:       req.Date,
		ExtraCount: req.ExtraCount,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, billResponse{
		ID:       bill.ID,
		StoreID:  bill.StoreID.String(),
		Date:     bill.Date,
		Visitors: visitors,
	})
}

// requestScope resolves the aggregation scope from the caller. Store,
// company, and member principals are always scoped to themselves; admins
// pass scope and id explicitly.
func requestScope(r *http.Request) (billing.Scope, error) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		return billing.Scope{}, httpx.ErrUnauthorized
	}
	switch principal.Kind {
	case auth.KindStore:
		return billing.Scope{Kind: billing.ScopeStore, ID: principal.ID}, nil
	case auth.KindCompany:
		return billing.Scope{Kind: billing.ScopeCompany, ID: principal.ID}, nil
	case auth.KindMember:
		return billing.Scope{Kind: billing.ScopeMember, ID: principal.ID}, nil
	case auth.KindAdmin:
		id, err := uuid.Parse(r.URL.Query().Get("id"))
		if err != nil {
			return billing.Scope{}, billing.ErrInvalidScope
		}
		return billing.Scope{Kind: billing.ScopeKind(r.URL.Query().Get("scope")), ID: id}, nil
	}
	return billing.Scope{}, httpx.ErrForbidden
}

// requestPeriod reads period=day|month|year plus value=...; defaults to a
// month window.
func requestPeriod(r *http.Request) billing.Period {
	kind := billing.PeriodKind(r.URL.Query().Get("period"))
	if kind == "" {
		kind = billing.PeriodMonth
	}
	return billing.Period{Kind: kind, Value: r.URL.Query().Get("value")}
}

func (h *Handler) sum(w http.ResponseWriter, r *http.Request) {
	scope, err := requestScope(r)
	if err != nil {
		h.respondError(w, err)
		return
	}
	summary, err := h.reports.Sum(r.Context(), scope, requestPeriod(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) groupedTotals(r *http.Request) ([]billing.GroupTotal, error) {
	scope, err := requestScope(r)
	if err != nil {
		return nil, err
	}
	groupBy := billing.GroupKey(r.URL.Query().Get("groupBy"))
	return h.reports.GroupedTotals(r.Context(), scope, requestPeriod(r), groupBy)
}

func (h *Handler) grouped(w http.ResponseWriter, r *http.Request) {
	totals, err := h.groupedTotals(r)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if totals == nil {
		totals = []billing.GroupTotal{}
	}
	httpx.JSON(w, http.StatusOK, totals)
}

func (h *Handler) groupedCSV(w http.ResponseWriter, r *http.Request) {
	totals, err := h.groupedTotals(r)
	if err != nil {
		h.respondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="grouped-totals.csv"`)
	if err := export.WriteGroupedTotalsCSV(w, r.URL.Query().Get("value"), totals); err != nil {
		h.logger.Error("write grouped csv", slog.Any("error", err))
	}
}

func (h *Handler) buildPivot(r *http.Request) (billing.Pivot, error) {
	scope, err := requestScope(r)
	if err != nil {
		return billing.Pivot{}, err
	}
	month := billing.Month(r.URL.Query().Get("month"))
	if err := month.Validate(); err != nil {
		return billing.Pivot{}, err
	}

	// Concurrent dashboard refreshes ask for the same matrix; collapse
	// them into one computation. The shared call must outlive whichever
	// caller happens to start it, so it runs detached from that request's
	// cancellation.
	ctx := context.WithoutCancel(r.Context())
	key := string(scope.Kind) + ":" + scope.ID.String() + ":" + month.Value
	v, err, _ := h.pivots.Do(key, func() (any, error) {
		return h.reports.MonthlyPivot(ctx, scope, month)
	})
	if err != nil {
		return billing.Pivot{}, err
	}
	return v.(billing.Pivot), nil
}

func (h *Handler) pivot(w http.ResponseWriter, r *http.Request) {
	pivot, err := h.buildPivot(r)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, pivot)
}

func (h *Handler) pivotCSV(w http.ResponseWriter, r *http.Request) {
	pivot, err := h.buildPivot(r)
	if err != nil {
		h.respondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="monthly-pivot.csv"`)
	if err := export.WritePivotCSV(w, pivot); err != nil {
		h.logger.Error("write pivot csv", slog.Any("error", err))
	}
}

func (h *Handler) memberDetail(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	memberID := principal.ID
	if principal.Kind != auth.KindMember {
		id, err := uuid.Parse(r.URL.Query().Get("memberId"))
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "memberId must be a UUID")
			return
		}
		memberID = id
	}
	details, err := h.reports.MemberMonthDetail(r.Context(), memberID, billing.Month(r.URL.Query().Get("month")))
	if err != nil {
		h.respondError(w, err)
		return
	}
	if details == nil {
		details = []billing.BillDetail{}
	}
	httpx.JSON(w, http.StatusOK, details)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, billing.ErrStoreNotFound), errors.Is(err, billing.ErrMemberNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, billing.ErrInvalidDate), errors.Is(err, billing.ErrInvalidPeriod),
		errors.Is(err, billing.ErrInvalidScope), errors.Is(err, billing.ErrVisitorCount),
		errors.Is(err, billing.ErrNoCompany):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("billing request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
