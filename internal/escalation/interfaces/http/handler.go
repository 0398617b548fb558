package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"servicedesk-cloud/internal/audit"
	"servicedesk-cloud/internal/auth"
	escapp "servicedesk-cloud/internal/escalation/application"
	escalation "servicedesk-cloud/internal/escalation/domain"
	"servicedesk-cloud/internal/escalation/interfaces"
)

// Handler provides escalation HTTP endpoints.
type Handler struct {
	service *escapp.Service
	auditor audit.Logger
	logger  *log.Logger
}

// NewHandler constructs a handler.
func NewHandler(service *escapp.Service, auditor audit.Logger, logger *log.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("escalation handler: nil service")
	}
	return &Handler{service: service, auditor: auditor, logger: logger}, nil
}

// ServeHTTP handles /api/v1/escalations and subroutes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/escalations":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleHistory(w, r)
	case r.URL.Path == "/api/v1/escalations/pending":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handlePending(w, r)
	case r.URL.Path == "/api/v1/escalations/run":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleRun(w, r)
	case r.URL.Path == "/api/v1/escalations/export.xlsx":
		h.handleExport(w, r, "xlsx")
	case r.URL.Path == "/api/v1/escalations/export.pdf":
		h.handleExport(w, r, "pdf")
	case strings.HasPrefix(r.URL.Path, "/api/v1/escalations/"):
		h.handleStatus(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	ticketID := r.URL.Query().Get("ticket_id")
	if ticketID == "" {
		http.Error(w, "ticket_id is required", http.StatusBadRequest)
		return
	}
	history, err := h.service.History(r.Context(), ticketID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, history)
}

func (h *Handler) handlePending(w http.ResponseWriter, r *http.Request) {
	pending, err := h.service.PendingForDelivery(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, pending)
}

func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	results, err := h.service.ProcessAllPending(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.audit(r, "escalation.sweep", "sweep", "", nil)
	writeJSON(w, summarize(results))
}

type statusRequest struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	SentAt       string `json:"sent_at"`
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/escalations/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[1] != "status" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	notificationID := parts[0]

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	status := escalation.DeliveryStatus(req.Status)
	if !status.Settled() {
		http.Error(w, "status must be sent or failed", http.StatusBadRequest)
		return
	}
	sentAt := time.Now().UTC()
	if req.SentAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.SentAt)
		if err != nil {
			http.Error(w, "sent_at must be RFC3339", http.StatusBadRequest)
			return
		}
		sentAt = parsed
	}

	err := h.service.UpdateStatus(r.Context(), notificationID, status, sentAt, req.ErrorMessage)
	if err != nil {
		switch {
		case errors.Is(err, escalation.ErrNotFound):
			w.WriteHeader(http.StatusNotFound)
		case errors.Is(err, escalation.ErrAlreadySettled):
			http.Error(w, "notification already settled", http.StatusConflict)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}
	h.audit(r, "escalation.status", "notification", notificationID, map[string]string{"status": req.Status})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request, format string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ticketID := r.URL.Query().Get("ticket_id")
	if ticketID == "" {
		http.Error(w, "ticket_id is required", http.StatusBadRequest)
		return
	}
	history, err := h.service.History(r.Context(), ticketID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var (
		body        []byte
		contentType string
		filename    string
	)
	switch format {
	case "xlsx":
		body, err = interfaces.BuildHistoryXLSX(ticketID, history)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		filename = "escalations-" + ticketID + ".xlsx"
	case "pdf":
		body, err = interfaces.BuildHistoryPDF(ticketID, history)
		contentType = "application/pdf"
		filename = "escalations-" + ticketID + ".pdf"
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	_, _ = w.Write(body)
}

func (h *Handler) audit(r *http.Request, action, resourceType, resourceID string, metadata map[string]string) {
	if h.auditor == nil {
		return
	}
	var raw json.RawMessage
	if len(metadata) > 0 {
		if data, err := json.Marshal(metadata); err == nil {
			raw = data
		}
	}
	entry := audit.Entry{
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Metadata:     raw,
		IP:           r.RemoteAddr,
		UserAgent:    r.UserAgent(),
	}
	if err := h.auditor.Log(r.Context(), entry); err != nil && h.logger != nil {
		h.logger.Printf("audit write failed: action=%s err=%v", action, err)
	}
}

type sweepSummary struct {
	Tickets int `json:"tickets"`
	Fired   int `json:"fired"`
	Failed  int `json:"failed"`
}

func summarize(results []escapp.TicketResult) sweepSummary {
	summary := sweepSummary{Tickets: len(results)}
	for _, result := range results {
		summary.Fired += len(result.Fired)
		if result.Err != nil {
			summary.Failed++
		}
	}
	return summary
}

func writeJSON(w http.ResponseWriter, value any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(value)
}
