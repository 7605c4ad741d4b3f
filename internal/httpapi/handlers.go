package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sbnctech/murmurant-sub011/internal/audit"
	"github.com/sbnctech/murmurant-sub011/internal/auth"
	"github.com/sbnctech/murmurant-sub011/internal/delegation"
	"github.com/sbnctech/murmurant-sub011/internal/workflow"
)

type createEventRequest struct {
	Title       string     `json:"title"`
	CommitteeID string     `json:"committee_id"`
	ChairID     string     `json:"chair_id"`
	StartsAt    *time.Time `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at"`
}

type createMinutesRequest struct {
	Title       string `json:"title"`
	CommitteeID string `json:"committee_id"`
	Content     string `json:"content"`
}

type createPlanRequest struct {
	Title string `json:"title"`
}

type createCaseRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type transitionRequest struct {
	Action string `json:"action"`
	Note   string `json:"note"`
}

type assignmentRequest struct {
	MemberID    string `json:"member_id"`
	CommitteeID string `json:"committee_id"`
	Role        string `json:"role"`
}

func (a *API) handleCollection(kind workflow.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.createEntity(w, r, kind)
	}
}

// handleResource dispatches "/v1/<collection>/{id}" and its sub-resources.
func (a *API) handleResource(kind workflow.Kind, prefix string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, prefix)
		if rest == "" || strings.Count(rest, "/") > 1 {
			writeError(w, r, http.StatusNotFound, workflow.CodeNotFound, "resource not found")
			return
		}

		id, sub, _ := strings.Cut(rest, "/")
		if id == "" {
			writeError(w, r, http.StatusNotFound, workflow.CodeNotFound, "resource not found")
			return
		}

		switch sub {
		case "":
			if r.Method != http.MethodGet {
				methodNotAllowed(w, r, http.MethodGet)
				return
			}
			a.getEntity(w, r, kind, id)
		case "transitions":
			if r.Method != http.MethodPost {
				methodNotAllowed(w, r, http.MethodPost)
				return
			}
			a.applyTransition(w, r, kind, id)
		case "clone":
			if kind != workflow.KindEvent {
				writeError(w, r, http.StatusNotFound, workflow.CodeNotFound, "resource not found")
				return
			}
			if r.Method != http.MethodPost {
				methodNotAllowed(w, r, http.MethodPost)
				return
			}
			a.cloneEvent(w, r, id)
		case "revisions":
			if kind != workflow.KindMinutes {
				writeError(w, r, http.StatusNotFound, workflow.CodeNotFound, "resource not found")
				return
			}
			if r.Method != http.MethodPost {
				methodNotAllowed(w, r, http.MethodPost)
				return
			}
			a.createMinutesRevision(w, r, id)
		case "assignments":
			if kind != workflow.KindTransitionPlan {
				writeError(w, r, http.StatusNotFound, workflow.CodeNotFound, "resource not found")
				return
			}
			if r.Method != http.MethodPost {
				methodNotAllowed(w, r, http.MethodPost)
				return
			}
			a.addPlanAssignment(w, r, id)
		default:
			writeError(w, r, http.StatusNotFound, workflow.CodeNotFound, "resource not found")
		}
	}
}

func (a *API) createEntity(w http.ResponseWriter, r *http.Request, kind workflow.Kind) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, auth.CodeUnauthenticated, "authentication required")
		return
	}

	var ent workflow.Entity
	switch kind {
	case workflow.KindEvent:
		var req createEventRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		if strings.TrimSpace(req.Title) == "" {
			writeError(w, r, http.StatusBadRequest, "bad_request", "title is required")
			return
		}
		ent = workflow.NewEvent(req.Title, req.CommitteeID, req.ChairID, req.StartsAt, req.EndsAt)
	case workflow.KindMinutes:
		var req createMinutesRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		if strings.TrimSpace(req.Title) == "" {
			writeError(w, r, http.StatusBadRequest, "bad_request", "title is required")
			return
		}
		ent = workflow.NewMinutes(req.Title, req.CommitteeID, req.Content)
	case workflow.KindTransitionPlan:
		var req createPlanRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		if strings.TrimSpace(req.Title) == "" {
			writeError(w, r, http.StatusBadRequest, "bad_request", "title is required")
			return
		}
		ent = workflow.NewTransitionPlan(req.Title)
	case workflow.KindSupportCase:
		var req createCaseRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		if strings.TrimSpace(req.Title) == "" {
			writeError(w, r, http.StatusBadRequest, "bad_request", "title is required")
			return
		}
		ent = workflow.NewSupportCase(req.Title, req.Body, p.MemberID, time.Now().UTC())
	default:
		writeError(w, r, http.StatusNotFound, workflow.CodeNotFound, "resource not found")
		return
	}

	created, err := a.engine.Create(r.Context(), p, ent)
	if err != nil {
		handleWorkflowError(w, r, err)
		return
	}
	w.Header().Set("Location", locationFor(kind, created.ID))
	writeJSON(w, http.StatusCreated, created)
}

func (a *API) getEntity(w http.ResponseWriter, r *http.Request, kind workflow.Kind, id string) {
	p, _ := auth.PrincipalFromContext(r.Context())
	ent, err := a.engine.Get(r.Context(), p, kind, id)
	if err != nil {
		handleWorkflowError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ent)
}

func (a *API) applyTransition(w http.ResponseWriter, r *http.Request, kind workflow.Kind, id string) {
	p, _ := auth.PrincipalFromContext(r.Context())
	var req transitionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Action) == "" {
		writeError(w, r, http.StatusBadRequest, "bad_request", "action is required")
		return
	}

	ent, err := a.engine.Attempt(r.Context(), p, workflow.Request{
		Kind:   kind,
		ID:     id,
		Action: workflow.ActionName(req.Action),
		Note:   req.Note,
	})
	if err != nil {
		handleWorkflowError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ent)
}

func (a *API) cloneEvent(w http.ResponseWriter, r *http.Request, id string) {
	p, _ := auth.PrincipalFromContext(r.Context())
	src, err := a.engine.Get(r.Context(), p, workflow.KindEvent, id)
	if err != nil {
		handleWorkflowError(w, r, err)
		return
	}
	created, err := a.engine.Create(r.Context(), p, workflow.CloneEvent(src))
	if err != nil {
		handleWorkflowError(w, r, err)
		return
	}
	w.Header().Set("Location", locationFor(workflow.KindEvent, created.ID))
	writeJSON(w, http.StatusCreated, created)
}

func (a *API) createMinutesRevision(w http.ResponseWriter, r *http.Request, id string) {
	p, _ := auth.PrincipalFromContext(r.Context())
	src, err := a.engine.Get(r.Context(), p, workflow.KindMinutes, id)
	if err != nil {
		handleWorkflowError(w, r, err)
		return
	}
	rev, ok := workflow.CreateMinutesRevision(src)
	if !ok {
		writeError(w, r, http.StatusConflict, workflow.CodeInvalidTransition,
			"revisions can only be created from published minutes")
		return
	}
	created, err := a.engine.Create(r.Context(), p, rev)
	if err != nil {
		handleWorkflowError(w, r, err)
		return
	}
	w.Header().Set("Location", locationFor(workflow.KindMinutes, created.ID))
	writeJSON(w, http.StatusCreated, created)
}

func (a *API) addPlanAssignment(w http.ResponseWriter, r *http.Request, id string) {
	p, _ := auth.PrincipalFromContext(r.Context())
	var req assignmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	ent, err := a.engine.AddPlanAssignment(r.Context(), p, id, workflow.PlanAssignment{
		MemberID:    req.MemberID,
		CommitteeID: req.CommitteeID,
		Role:        req.Role,
	})
	if err != nil {
		handleWorkflowError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ent)
}

func (a *API) handleAuditList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	p, _ := auth.PrincipalFromContext(r.Context())
	if err := auth.RequireCapability(p, auth.CapAuditView); err != nil {
		handleWorkflowError(w, r, err)
		return
	}

	q := audit.Query{
		ObjectType: strings.TrimSpace(r.URL.Query().Get("object_type")),
		ObjectID:   strings.TrimSpace(r.URL.Query().Get("object_id")),
		ActorID:    strings.TrimSpace(r.URL.Query().Get("actor_id")),
	}
	var err error
	if q.Since, err = parseTimeParam(r.URL.Query().Get("since")); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", "since must be RFC 3339")
		return
	}
	if q.Until, err = parseTimeParam(r.URL.Query().Get("until")); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", "until must be RFC 3339")
		return
	}
	if q.Limit, err = parsePositiveInt(r.URL.Query().Get("limit"), 100, 1, 1000); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	entries, err := a.trail.List(r.Context(), q)
	if err != nil {
		handleWorkflowError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": entries,
		"as_of": time.Now().UTC(),
	})
}

// --- helpers ---

func locationFor(kind workflow.Kind, id string) string {
	switch kind {
	case workflow.KindEvent:
		return "/v1/events/" + id
	case workflow.KindMinutes:
		return "/v1/minutes/" + id
	case workflow.KindTransitionPlan:
		return "/v1/plans/" + id
	case workflow.KindSupportCase:
		return "/v1/cases/" + id
	}
	return "/"
}

func parseTimeParam(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func parsePositiveInt(raw string, def, min, max int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("limit must be an integer")
	}
	if val < min || val > max {
		return 0, errors.New("limit must be between 1 and 1000")
	}
	return val, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

// handleWorkflowError maps the engine's error taxonomy to HTTP statuses.
// The machine-readable code always survives into the body.
func handleWorkflowError(w http.ResponseWriter, r *http.Request, err error) {
	code := workflow.Code(err)
	switch code {
	case auth.CodeUnauthenticated:
		writeError(w, r, http.StatusUnauthorized, code, err.Error())
	case auth.CodeMissingCapability, auth.CodeImpersonationReadOnly,
		delegation.CodeNoAssignAuthority, delegation.CodeOutOfScope:
		writeError(w, r, http.StatusForbidden, code, err.Error())
	case workflow.CodeNotFound:
		writeError(w, r, http.StatusNotFound, code, err.Error())
	case workflow.CodeUnknownAction, workflow.CodeGuardFailed:
		writeError(w, r, http.StatusBadRequest, code, err.Error())
	case workflow.CodeInvalidTransition, workflow.CodeConflict:
		writeError(w, r, http.StatusConflict, code, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, workflow.CodeInternal, "internal error")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	payload := map[string]any{
		"error": msg,
		"code":  code,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, status, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
