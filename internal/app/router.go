package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/billus/billus-server/internal/affiliation"
	"github.com/billus/billus-server/internal/auth"
	billinghttp "github.com/billus/billus-server/internal/billing/http"
	"github.com/billus/billus-server/internal/identity"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	AuthMiddleware     *auth.Middleware
	AuthHandler        *auth.Handler
	IdentityHandler    *identity.Handler
	AffiliationHandler *affiliation.Handler
	BillingHandler     *billinghttp.Handler
}

// NewRouter constructs the chi.Router.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}
	r.Use(chimw.Logger)
	r.Use(params.AuthMiddleware.Authenticate)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", params.AuthHandler.MountRoutes)
		params.IdentityHandler.MountRoutes(r)
		r.Route("/affiliation", params.AffiliationHandler.MountRoutes)
		r.Route("/admin", params.AffiliationHandler.MountAdminRoutes)
		params.BillingHandler.MountRoutes(r)
	})

	return r
}
