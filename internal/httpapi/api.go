// Package httpapi exposes the workflow core over HTTP. Handlers stay
// thin: they decode, call the engine, and map the engine's error taxonomy
// to status codes without losing the machine-readable code.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/sbnctech/murmurant-sub011/internal/audit"
	"github.com/sbnctech/murmurant-sub011/internal/obs"
	"github.com/sbnctech/murmurant-sub011/internal/workflow"
)

// ReadyProbe reports readiness (for example a DB ping).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	engine     *workflow.Engine
	trail      audit.Reader
	readyProbe ReadyProbe
	version    string
}

func New(engine *workflow.Engine, trail audit.Reader, rp ReadyProbe, version string) *API {
	a := &API{
		mux:        http.NewServeMux(),
		engine:     engine,
		trail:      trail,
		readyProbe: rp,
		version:    version,
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/events", a.handleCollection(workflow.KindEvent))
	a.mux.HandleFunc("/v1/events/", a.handleResource(workflow.KindEvent, "/v1/events/"))
	a.mux.HandleFunc("/v1/minutes", a.handleCollection(workflow.KindMinutes))
	a.mux.HandleFunc("/v1/minutes/", a.handleResource(workflow.KindMinutes, "/v1/minutes/"))
	a.mux.HandleFunc("/v1/plans", a.handleCollection(workflow.KindTransitionPlan))
	a.mux.HandleFunc("/v1/plans/", a.handleResource(workflow.KindTransitionPlan, "/v1/plans/"))
	a.mux.HandleFunc("/v1/cases", a.handleCollection(workflow.KindSupportCase))
	a.mux.HandleFunc("/v1/cases/", a.handleResource(workflow.KindSupportCase, "/v1/cases/"))

	a.mux.HandleFunc("/v1/audit", a.handleAuditList)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the full middleware chain around the mux.
func (a *API) Handler() http.Handler {
	h := a.withAuth(a.mux)
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, 50, 25)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "club-core",
		"version": a.version,
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

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "club-core",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}
