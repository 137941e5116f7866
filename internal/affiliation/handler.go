package affiliation

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/billus/billus-server/internal/auth"
	"github.com/billus/billus-server/internal/platform/httpx"
)

// Handler exposes the affiliation ledger over HTTP.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers member and company facing affiliation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireKind(auth.KindMember))
		r.Post("/apply", h.apply)
		r.Post("/quit", h.quit)
		r.Get("/companies/{companyID}", h.lookupCompany)
	})
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireKind(auth.KindCompany))
		r.Get("/pending", h.pending)
		r.Post("/approve", h.approve)
		r.Post("/reject", h.reject)
		r.Post("/retire", h.retire)
	})
}

// MountAdminRoutes registers the administrative disable endpoints.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Use(auth.RequireKind(auth.KindAdmin))
	r.Post("/companies/{companyID}/disable", h.disableCompany)
	r.Post("/stores/{storeID}/disable", h.disableStore)
}

type applyRequest struct {
	CompanyID string `json:"companyId" validate:"required,uuid"`
}

type memberActionRequest struct {
	MemberID string `json:"memberId" validate:"required,uuid"`
}

type applicantResponse struct {
	ApplyID    int64     `json:"applyId"`
	MemberID   string    `json:"memberId"`
	MemberName string    `json:"memberName"`
	AppliedAt  time.Time `json:"appliedAt"`
}

func (h *Handler) apply(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	var req applyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "companyId must be a UUID")
		return
	}
	companyID, _ := uuid.Parse(req.CompanyID)

	if err := h.service.ApplyToCompany(r.Context(), principal.ID, companyID); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]string{"status": "applied"})
}

func (h *Handler) quit(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	if err := h.service.QuitCompany(r.Context(), principal.ID); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "quit"})
}

func (h *Handler) lookupCompany(w http.ResponseWriter, r *http.Request) {
	companyID, err := uuid.Parse(chi.URLParam(r, "companyID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "companyID must be a UUID")
		return
	}
	status, err := h.service.LookupCompany(r.Context(), companyID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	labels := map[CompanyStatus]string{
		CompanyActive:   "active",
		CompanyDisabled: "disabled",
		CompanyUnknown:  "unknown",
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": labels[status]})
}

func (h *Handler) pending(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	applicants, err := h.service.PendingRequests(r.Context(), principal.ID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]applicantResponse, 0, len(applicants))
	for _, a := range applicants {
		out = append(out, applicantResponse{
			ApplyID:    a.ApplyID,
			MemberID:   a.MemberID.String(),
			MemberName: a.MemberName,
			AppliedAt:  a.AppliedAt,
		})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	h.memberAction(w, r, h.service.ApproveMember, "approved")
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	h.memberAction(w, r, h.service.RejectApply, "rejected")
}

func (h *Handler) retire(w http.ResponseWriter, r *http.Request) {
	h.memberAction(w, r, h.service.DisableMember, "retired")
}

func (h *Handler) memberAction(w http.ResponseWriter, r *http.Request,
	action func(ctx context.Context, companyID, memberID uuid.UUID) error, status string) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	var req memberActionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "memberId must be a UUID")
		return
	}
	memberID, _ := uuid.Parse(req.MemberID)

	if err := action(r.Context(), principal.ID, memberID); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": status})
}

func (h *Handler) disableCompany(w http.ResponseWriter, r *http.Request) {
	companyID, err := uuid.Parse(chi.URLParam(r, "companyID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "companyID must be a UUID")
		return
	}
	if err := h.service.DisableCompany(r.Context(), companyID); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "disabled"})
}

func (h *Handler) disableStore(w http.ResponseWriter, r *http.Request) {
	storeID, err := uuid.Parse(chi.URLParam(r, "storeID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "storeID must be a UUID")
		return
	}
	if err := h.service.DisableStore(r.Context(), storeID); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "disabled"})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrCompanyNotFound), errors.Is(err, ErrStoreNotFound),
		errors.Is(err, ErrMemberNotFound), errors.Is(err, ErrApplyNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicateApply):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrNoCompany):
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
	default:
		h.logger.Error("affiliation request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
