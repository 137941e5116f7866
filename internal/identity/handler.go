package identity

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/billus/billus-server/internal/auth"
	"github.com/billus/billus-server/internal/platform/httpx"
)

// Handler exposes account signup and directory routes.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers signup and directory routes. Signups are public;
// directory and token routes require a principal.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/signup/member", h.signupMember)
	r.Post("/signup/store", h.signupStore)
	r.Post("/signup/company", h.signupCompany)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireKind(auth.KindMember))
		r.Get("/companies", h.listCompanies)
		r.Get("/stores", h.listStores)
	})
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireKind(auth.KindStore))
		r.Post("/stores/fcm-token", h.updateFCMToken)
	})
}

type signupMemberRequest struct {
	Name     string `json:"name" validate:"required,max=64"`
	Email    string `json:"email" validate:"required,email"`
	Account  string `json:"account" validate:"required,min=4,max=32"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type signupStoreRequest struct {
	Name     string `json:"name" validate:"required,max=64"`
	BizNum   string `json:"bizNum" validate:"required,max=32"`
	Account  string `json:"account" validate:"required,min=4,max=32"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Price    int64  `json:"price" validate:"required,gt=0"`
	FCMToken string `json:"fcmToken"`
}

type signupCompanyRequest struct {
	Name     string `json:"name" validate:"required,max=64"`
	BizNum   string `json:"bizNum" validate:"required,max=32"`
	Account  string `json:"account" validate:"required,min=4,max=32"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type accountResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (h *Handler) signupMember(w http.ResponseWriter, r *http.Request) {
	var req signupMemberRequest
	if !h.decode(w, r, &req) {
		return
	}
	member, err := h.service.RegisterMember(r.Context(), RegisterMemberInput{
		Name:     req.Name,
		Email:    req.Email,
		Account:  req.Account,
		Password: req.Password,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, accountResponse{ID: member.ID.String(), Name: member.Name})
}

func (h *Handler) signupStore(w http.ResponseWriter, r *http.Request) {
	var req signupStoreRequest
	if !h.decode(w, r, &req) {
		return
	}
	store, err := h.service.RegisterStore(r.Context(), RegisterStoreInput{
		Name:     req.Name,
		BizNum:   req.BizNum,
		Account:  req.Account,
		Password: req.Password,
		Price:    req.Price,
		FCMToken: req.FCMToken,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, accountResponse{ID: store.ID.String(), Name: store.Name})
}

func (h *Handler) signupCompany(w http.ResponseWriter, r *http.Request) {
	var req signupCompanyRequest
	if !h.decode(w, r, &req) {
		return
	}
	company, err := h.service.RegisterCompany(r.Context(), RegisterCompanyInput{
		Name:     req.Name,
		BizNum:   req.BizNum,
		Account:  req.Account,
		Password: req.Password,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, accountResponse{ID: company.ID.String(), Name: company.Name})
}

type directoryEntry struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price int64  `json:"price,omitempty"`
}

func (h *Handler) listCompanies(w http.ResponseWriter, r *http.Request) {
	companies, err := h.service.ListCompanies(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	entries := make([]directoryEntry, 0, len(companies))
	for _, c := range companies {
		entries = append(entries, directoryEntry{ID: c.ID.String(), Name: c.Name})
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) listStores(w http.ResponseWriter, r *http.Request) {
	stores, err := h.service.ListStores(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	entries := make([]directoryEntry, 0, len(stores))
	for _, s := range stores {
		entries = append(entries, directoryEntry{ID: s.ID.String(), Name: s.Name, Price: s.Price})
	}
	httpx.JSON(w, http.StatusOK, entries)
}

type fcmTokenRequest struct {
	Token string `json:"token" validate:"required"`
}

func (h *Handler) updateFCMToken(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	var req fcmTokenRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.UpdateStoreToken(r.Context(), principal.ID, req.Token); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return false
	}
	if err := h.validate.Struct(target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrDuplicateAccount):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrMemberNotFound), errors.Is(err, ErrStoreNotFound),
		errors.Is(err, ErrCompanyNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	default:
		h.logger.Error("identity request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
