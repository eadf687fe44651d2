package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/kafkasder-git/panel/internal/csrf"
	"github.com/kafkasder-git/panel/internal/guard"
	"github.com/kafkasder-git/panel/internal/obs"
	"github.com/kafkasder-git/panel/internal/policy"
	"github.com/kafkasder-git/panel/internal/session"
)

const (
	sessionCookie = "panel_session"
	csrfHeader    = "X-CSRF-Token"

	defaultMaxBody       = int64(1 << 20)
	defaultRateBurst     = 50
	defaultRatePerSecond = 25
)

// ReadyProbe is a simple readiness check (for example a DB ping).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Config carries the collaborators the HTTP layer is built from.
type Config struct {
	Version    string
	ReadyProbe ReadyProbe

	Sessions *session.Manager
	Guard    *guard.Guard
	CSRF     *csrf.Guard
	Registry *guard.Registry
}

// API is the HTTP layer of the panel access core.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	sessions *session.Manager
	guard    *guard.Guard
	csrf     *csrf.Guard
	registry *guard.Registry

	members       *memberDirectory
	donations     *donationBook
	beneficiaries *beneficiaryRegistry
}

// New wires routes into the mux and their permissions into the guard's
// resource registry.
func New(cfg Config) *API {
	a := &API{
		mux:           http.NewServeMux(),
		readyProbe:    cfg.ReadyProbe,
		version:       cfg.Version,
		sessions:      cfg.Sessions,
		guard:         cfg.Guard,
		csrf:          cfg.CSRF,
		registry:      cfg.Registry,
		members:       newMemberDirectory(),
		donations:     newDonationBook(),
		beneficiaries: newBeneficiaryRegistry(),
	}

	// Public surface.
	a.registry.Public(http.MethodGet, "/healthz")
	a.registry.Public(http.MethodGet, "/readyz")
	a.registry.Public(http.MethodGet, "/v1/info")
	a.registry.Public(http.MethodGet, "/metrics")
	a.registry.Public(http.MethodPost, "/v1/auth/login")
	a.registry.Public(http.MethodPost, "/v1/auth/refresh")
	a.registry.Public(http.MethodPost, "/v1/auth/logout")
	a.registry.Public(http.MethodGet, "/v1/auth/session")

	// Protected resources; the guard enforces the annotations before any
	// of these handlers run.
	a.registry.Protect(http.MethodGet, "/v1/members", policy.PermMembersView)
	a.registry.Protect(http.MethodPost, "/v1/members", policy.PermMembersEdit)
	a.registry.Protect(http.MethodGet, "/v1/donations", policy.PermDonationsView)
	a.registry.Protect(http.MethodPost, "/v1/donations/approve", policy.PermDonationsApprove)
	a.registry.Protect(http.MethodGet, "/v1/beneficiaries", policy.PermBeneficiariesView)
	a.registry.Protect(http.MethodPost, "/v1/beneficiaries", policy.PermBeneficiariesEdit)

	a.mux.HandleFunc("/healthz", a.handleHealthz)
	a.mux.HandleFunc("/readyz", a.handleReady)
	a.mux.HandleFunc("/v1/info", a.handleInfo)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/v1/auth/refresh", a.handleRefresh)
	a.mux.HandleFunc("/v1/auth/logout", a.handleLogout)
	a.mux.HandleFunc("/v1/auth/session", a.handleSession)

	a.mux.HandleFunc("/v1/members", a.handleMembers)
	a.mux.HandleFunc("/v1/donations", a.handleListDonations)
	a.mux.HandleFunc("/v1/donations/approve", a.handleApproveDonation)
	a.mux.HandleFunc("/v1/beneficiaries", a.handleBeneficiaries)

	return a
}

// Handler returns the fully wrapped handler chain.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withGuard(h)
	h = obs.Instrument(h)
	h = RateLimit(h, defaultRateBurst, defaultRatePerSecond)
	h = MaxBodyBytes(h, defaultMaxBody)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return h
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "panel-api",
		"version": a.version,
	})
}

func (a *API) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "panel-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}
