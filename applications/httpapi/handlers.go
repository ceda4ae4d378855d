package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/ops-intel/orchestrator/infrastructure/apperrors"
	"github.com/ops-intel/orchestrator/infrastructure/logging"
	"github.com/ops-intel/orchestrator/internal/asset"
	"github.com/ops-intel/orchestrator/internal/compose"
	"github.com/ops-intel/orchestrator/internal/tracer"
)

// askRequest is the POST /ops/ask body.
type askRequest struct {
	Question string `json:"question"`
}

func (s *Server) askResponder() func(ctx context.Context, req *askRequest) (compose.Response, error) {
	return func(ctx context.Context, req *askRequest) (compose.Response, error) {
		if req.Question == "" {
			return compose.Response{}, apperrors.Of(apperrors.CodeValidationError, "question is required")
		}
		tenantID := logging.GetTenantID(ctx)
		return s.services.Pipeline.Ask(ctx, req.Question, tenantID)
	}
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	handleJSON(s.services.Logger, s.askResponder())(w, r)
}

// handleAskStream runs the same pipeline but streams the final response as
// a single server-sent event, the seam a future incremental-stage-by-stage
// stream would extend (spec §6's "/ops/ask/stream (SSE)"; today's Stage
// Pipeline only yields a result once every stage has finished, so one
// event is all there is to send).
func (s *Server) handleAskStream(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Question == "" {
		writeAppError(w, apperrors.Of(apperrors.CodeValidationError, "question is required"))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeAppError(w, apperrors.Of(apperrors.CodeInternalError, "streaming unsupported"))
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	tenantID := logging.GetTenantID(r.Context())
	resp, err := s.services.Pipeline.Ask(r.Context(), req.Question, tenantID)
	if err != nil {
		writeSSE(w, "error", struct {
			Error string `json:"error"`
		}{Error: err.Error()})
		flusher.Flush()
		return
	}
	writeSSE(w, "complete", resp)
	flusher.Flush()
}

func writeSSE(w http.ResponseWriter, event string, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		return
	}
	_, _ = w.Write([]byte("event: " + event + "\n"))
	_, _ = w.Write([]byte("data: "))
	_, _ = w.Write(body)
	_, _ = w.Write([]byte("\n\n"))
}

func (s *Server) handleGetTrace(w http.ResponseWriter, r *http.Request) {
	traceID := mux.Vars(r)["trace_id"]
	trace, err := s.services.Traces.Get(r.Context(), traceID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trace)
}

func (s *Server) handleSearchTraces(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := tracer.SearchFilter{
		Query:    q.Get("q"),
		TenantID: q.Get("tenant_id"),
		Limit:    queryInt(q.Get("limit"), 50),
		Offset:   queryInt(q.Get("offset"), 0),
	}
	if from := q.Get("from"); from != "" {
		if t, err := time.Parse(time.RFC3339, from); err == nil {
			filter.From = t
		}
	}
	if to := q.Get("to"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			filter.To = t
		}
	}
	traces, err := s.services.Traces.Search(r.Context(), filter)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, traces)
}

func queryInt(v string, def int) int {
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func (s *Server) handleListAssets(w http.ResponseWriter, r *http.Request) {
	typ := asset.Type(mux.Vars(r)["type"])
	filter := asset.ListFilter{
		Scope:    r.URL.Query().Get("scope"),
		Name:     r.URL.Query().Get("name"),
		TenantID: r.URL.Query().Get("tenant_id"),
	}
	assets, err := s.services.Assets.List(r.Context(), typ, filter)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assets)
}

type createDraftRequest struct {
	Name     string          `json:"name"`
	Scope    string          `json:"scope"`
	TenantID string          `json:"tenant_id"`
	Content  json.RawMessage `json:"content"`
	ToolType string          `json:"tool_type,omitempty"`
	Actor    string          `json:"actor"`
}

func (s *Server) handleCreateDraft(w http.ResponseWriter, r *http.Request) {
	typ := asset.Type(mux.Vars(r)["type"])
	var req createDraftRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	draft := asset.Asset{
		Type:      typ,
		Name:      req.Name,
		Scope:     req.Scope,
		TenantID:  req.TenantID,
		Content:   req.Content,
		ToolType:  req.ToolType,
		CreatedBy: req.Actor,
	}
	created, err := s.services.Assets.CreateDraft(r.Context(), draft)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

type updateDraftRequest struct {
	Content  *json.RawMessage `json:"content,omitempty"`
	ToolType *string          `json:"tool_type,omitempty"`
	Actor    string           `json:"actor"`
}

func (s *Server) handleUpdateDraft(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var req updateDraftRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	updated, err := s.services.Assets.UpdateDraft(r.Context(), vars["asset_id"], asset.Patch{Content: req.Content, ToolType: req.ToolType}, req.Actor)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

type publishRequest struct {
	Actor string `json:"actor"`
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var req publishRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	key := asset.Key{Type: asset.Type(vars["type"]), Scope: vars["scope"], Name: vars["name"]}
	published, err := s.services.Assets.Publish(r.Context(), key, vars["asset_id"], req.Actor)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, published)
}

type rollbackRequest struct {
	TargetVersion int    `json:"target_version"`
	Actor         string `json:"actor"`
}

func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var req rollbackRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	key := asset.Key{Type: asset.Type(vars["type"]), Scope: vars["scope"], Name: vars["name"]}
	rolled, err := s.services.Assets.Rollback(r.Context(), key, vars["asset_id"], req.TargetVersion, req.Actor)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rolled)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
