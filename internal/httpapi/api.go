package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/rs/cors"

	"kingsbuilder.org/internal/auth"
	"kingsbuilder.org/internal/estate"
	"kingsbuilder.org/internal/obs"
)

// ReadyProbe checks downstream readiness (database ping).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer over the auth and estate services.
type API struct {
	mux         *http.ServeMux
	readyProbe  ReadyProbe
	version     string
	auth        *auth.Service
	estate      *estate.Service
	corsOrigins []string
	rateBurst   int
	ratePerSec  float64
	maxBody     int64
}

func New(rp ReadyProbe, version string, authSvc *auth.Service, estateSvc *estate.Service) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,
		auth:       authSvc,
		estate:     estateSvc,
		rateBurst:  50,
		ratePerSec: 25,
		maxBody:    1 << 20,
	}

	a.mux.HandleFunc("/health", a.Health)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/api/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/api/v1/auth/refresh", a.handleRefresh)
	a.mux.HandleFunc("/api/v1/auth/me", a.handleMe)

	a.mux.HandleFunc("/api/v1/users", a.handleUsersCollection)
	a.mux.HandleFunc("/api/v1/users/", a.handleUserResource)

	a.mux.HandleFunc("/api/v1/builders", a.handleBuildersCollection)
	a.mux.HandleFunc("/api/v1/builders/", a.handleBuilderResource)
	a.mux.HandleFunc("/api/v1/projects", a.handleProjectsCollection)
	a.mux.HandleFunc("/api/v1/projects/", a.handleProjectResource)
	a.mux.HandleFunc("/api/v1/inventory", a.handleInventoryCollection)
	a.mux.HandleFunc("/api/v1/inventory/", a.handleInventoryResource)
	a.mux.HandleFunc("/api/v1/customers", a.handleCustomersCollection)
	a.mux.HandleFunc("/api/v1/customers/", a.handleCustomerResource)
	a.mux.HandleFunc("/api/v1/bookings", a.handleBookingsCollection)
	a.mux.HandleFunc("/api/v1/bookings/", a.handleBookingResource)
	a.mux.HandleFunc("/api/v1/payments", a.handlePaymentsCollection)
	a.mux.HandleFunc("/api/v1/payments/", a.handlePaymentResource)
	a.mux.HandleFunc("/api/v1/installments", a.handleInstallmentsCollection)
	a.mux.HandleFunc("/api/v1/installments/", a.handleInstallmentResource)
	a.mux.HandleFunc("/api/v1/transfers", a.handleTransfersCollection)
	a.mux.HandleFunc("/api/v1/transfers/", a.handleTransferResource)

	a.mux.HandleFunc("/api/v1/reports/summary", a.handleSummary)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// WithCORSOrigins restricts cross-origin access to the given origins. Empty
// keeps CORS disabled.
func (a *API) WithCORSOrigins(origins []string) *API {
	a.corsOrigins = origins
	return a
}

// WithRateLimit overrides the per-IP token bucket settings.
func (a *API) WithRateLimit(perSec float64, burst int) *API {
	a.ratePerSec = perSec
	a.rateBurst = burst
	return a
}

// Handler assembles the middleware chain around the mux.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = MaxBodyBytes(h, a.maxBody)
	if len(a.corsOrigins) > 0 {
		h = cors.New(cors.Options{
			AllowedOrigins:   a.corsOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           600,
		}).Handler(h)
	}
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"service": "kingsbuilder-api",
		"version": a.version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}
