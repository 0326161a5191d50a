package leads

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	httpmiddleware "github.com/wolfman30/roofing-leads/internal/http/middleware"
	"github.com/wolfman30/roofing-leads/pkg/logging"
)

const maxBodyBytes = 64 << 10

// Handler handles HTTP requests for leads
type Handler struct {
	pipeline *Pipeline
	repo     Repository
	logger   *logging.Logger
}

// NewHandler creates a new leads handler. repo may be nil when no primary
// store is configured.
func NewHandler(pipeline *Pipeline, repo Repository, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		pipeline: pipeline,
		repo:     repo,
		logger:   logger,
	}
}

// SubmitResponse is the body of every POST /api/leads response.
type SubmitResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	LeadID    string `json:"leadId,omitempty"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

// SubmitLead handles POST /api/leads requests
func (h *Handler) SubmitLead(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.logger.Info("failed to read lead body", "error", err)
		writeJSON(w, http.StatusBadRequest, SubmitResponse{Error: MessageMalformed})
		return
	}

	out := h.pipeline.Submit(r.Context(), Request{Body: body, Header: r.Header})

	if out.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(out.RetryAfter/time.Second)))
	}
	writeJSON(w, out.Status, SubmitResponse{
		Success:   out.Success,
		Message:   out.Message,
		Error:     out.Error,
		LeadID:    out.LeadID,
		Duplicate: out.Duplicate,
	})
}

// HealthResponse reports persistence availability.
type HealthResponse struct {
	Status        string `json:"status"`
	Database      string `json:"database"`
	BackupWebhook bool   `json:"backupWebhook"`
	Timestamp     string `json:"timestamp"`
}

// Health handles GET /api/leads requests
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:        "ok",
		Database:      "not_configured",
		BackupWebhook: h.pipeline.BackupConfigured(),
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	}
	if h.repo != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.repo.Ping(ctx); err != nil {
			h.logger.Warn("lead store ping failed", "error", err)
			resp.Database = "disconnected"
		} else {
			resp.Database = "connected"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListLeadsResponse is the response for listing leads
type ListLeadsResponse struct {
	Leads  []*Lead `json:"leads"`
	Count  int     `json:"count"`
	Offset int     `json:"offset"`
	Limit  int     `json:"limit"`
}

// ListLeads handles GET /admin/leads requests
func (h *Handler) ListLeads(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		http.Error(w, "lead store not configured", http.StatusServiceUnavailable)
		return
	}

	filter := ListFilter{
		Limit:  50,
		Offset: 0,
		State:  r.URL.Query().Get("state"),
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 && limit <= 100 {
			filter.Limit = limit
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil && offset >= 0 {
			filter.Offset = offset
		}
	}

	leads, err := h.repo.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list leads", "error", err)
		http.Error(w, "failed to list leads", http.StatusInternalServerError)
		return
	}
	h.logger.Info("admin listed leads", "admin", adminSubject(r), "state", filter.State, "count", len(leads))

	writeJSON(w, http.StatusOK, ListLeadsResponse{
		Leads:  leads,
		Count:  len(leads),
		Offset: filter.Offset,
		Limit:  filter.Limit,
	})
}

// GetLead handles GET /admin/leads/{leadID} requests
func (h *Handler) GetLead(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		http.Error(w, "lead store not configured", http.StatusServiceUnavailable)
		return
	}
	lead, err := h.repo.GetByID(r.Context(), chi.URLParam(r, "leadID"))
	if err != nil {
		if errors.Is(err, ErrLeadNotFound) {
			http.Error(w, "lead not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to load lead", "error", err)
		http.Error(w, "failed to load lead", http.StatusInternalServerError)
		return
	}
	h.logger.Info("admin viewed lead", "admin", adminSubject(r), "lead_id", lead.ID)
	writeJSON(w, http.StatusOK, lead)
}

// adminSubject names who is reading contact details, for the access log.
func adminSubject(r *http.Request) string {
	if claims, ok := httpmiddleware.AdminClaimsFromContext(r.Context()); ok && claims.Subject != "" {
		return claims.Subject
	}
	return "unknown"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
