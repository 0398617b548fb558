package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"servicedesk-cloud/internal/audit"
	directory "servicedesk-cloud/internal/directory/domain"
	directorymem "servicedesk-cloud/internal/directory/infrastructure/memory"
	escapp "servicedesk-cloud/internal/escalation/application"
	escalation "servicedesk-cloud/internal/escalation/domain"
	escmem "servicedesk-cloud/internal/escalation/infrastructure/memory"
	"servicedesk-cloud/internal/escalation/recipients"
	sla "servicedesk-cloud/internal/sla/domain"
	slamem "servicedesk-cloud/internal/sla/infrastructure/memory"
)

type recordingAuditor struct {
	entries []audit.Entry
}

func (r *recordingAuditor) Log(_ context.Context, entry audit.Entry) error {
	r.entries = append(r.entries, entry)
	return nil
}

func newTestHandler(t *testing.T) (*Handler, *escapp.Service, *recordingAuditor) {
	t.Helper()
	store := slamem.NewTrackingStore()
	rules := escmem.NewRuleRepository()
	notificationLog := escmem.NewNotificationLog()
	dir := directorymem.NewDirectory()

	store.PutRule(sla.Rule{ID: "sla-1", Name: "P2 Response", AvgTATMinutes: 60, MaxTATMinutes: 120})
	store.PutTracking(sla.Tracking{ID: "trk-1", TicketID: "tkt-1", SlaRuleID: "sla-1", ElapsedMinutes: 130})
	dir.PutUser(directory.User{ID: "user-eng", Name: "Priya", Email: "priya@example.com", Role: directory.RoleEngineer, Active: true})
	dir.PutTicket(directory.Ticket{ID: "tkt-1", Subject: "VPN down", Priority: "P2", Status: "open", AssignedEngineerID: "user-eng"})
	rules.Add(escalation.Rule{
		ID:            "esc-rule-1",
		SlaRuleID:     "sla-1",
		Level:         1,
		Trigger:       escalation.TriggerBreached,
		Reference:     escalation.ReferenceMaxTAT,
		RecipientType: escalation.RecipientAssignedEngineer,
		Enabled:       true,
	})

	resolver, err := recipients.NewResolver(dir, recipients.WithSelector(recipients.NewRoundRobinSelector()))
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	service, err := escapp.NewService(store, rules, notificationLog, dir, resolver, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	auditor := &recordingAuditor{}
	handler, err := NewHandler(service, auditor, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	return handler, service, auditor
}

func TestHandlerRunThenHistory(t *testing.T) {
	handler, _, auditor := newTestHandler(t)

	runReq := httptest.NewRequest(http.MethodPost, "/api/v1/escalations/run", nil)
	runResp := httptest.NewRecorder()
	handler.ServeHTTP(runResp, runReq)
	if runResp.Code != http.StatusOK {
		t.Fatalf("run status = %d body=%s", runResp.Code, runResp.Body.String())
	}
	var summary struct {
		Tickets int `json:"tickets"`
		Fired   int `json:"fired"`
		Failed  int `json:"failed"`
	}
	if err := json.Unmarshal(runResp.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.Tickets != 1 || summary.Fired != 1 || summary.Failed != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(auditor.entries) != 1 || auditor.entries[0].Action != "escalation.sweep" {
		t.Fatalf("sweep not audited: %+v", auditor.entries)
	}

	histReq := httptest.NewRequest(http.MethodGet, "/api/v1/escalations?ticket_id=tkt-1", nil)
	histResp := httptest.NewRecorder()
	handler.ServeHTTP(histResp, histReq)
	if histResp.Code != http.StatusOK {
		t.Fatalf("history status = %d", histResp.Code)
	}
	var history []escalation.Notification
	if err := json.Unmarshal(histResp.Body.Bytes(), &history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(history) != 1 || history[0].Level != 1 {
		t.Fatalf("unexpected history: %+v", history)
	}
}

func TestHandlerRunCountsEveryFiredNotification(t *testing.T) {
	store := slamem.NewTrackingStore()
	notificationLog := escmem.NewNotificationLog()
	dir := directorymem.NewDirectory()

	store.PutRule(sla.Rule{ID: "sla-1", Name: "P2 Response", AvgTATMinutes: 60, MaxTATMinutes: 120})
	store.PutTracking(sla.Tracking{ID: "trk-1", TicketID: "tkt-1", SlaRuleID: "sla-1", ElapsedMinutes: 130})
	dir.PutUser(directory.User{ID: "user-eng", Name: "Priya", Email: "priya@example.com", Role: directory.RoleEngineer, Active: true})
	dir.PutUser(directory.User{ID: "user-coord", Name: "Dana", Email: "dana@example.com", Role: directory.RoleCoordinator, Active: true})
	dir.PutTicket(directory.Ticket{ID: "tkt-1", Subject: "VPN down", Priority: "P2", Status: "open", AssignedEngineerID: "user-eng"})
	rules := escmem.NewRuleRepository(
		escalation.Rule{
			ID: "esc-rule-1", SlaRuleID: "sla-1", Level: 1,
			Trigger: escalation.TriggerBreached, Reference: escalation.ReferenceMaxTAT,
			RecipientType: escalation.RecipientAssignedEngineer, Enabled: true,
		},
		escalation.Rule{
			ID: "esc-rule-2", SlaRuleID: "sla-1", Level: 2,
			Trigger: escalation.TriggerBreached, Reference: escalation.ReferenceMaxTAT,
			RecipientType: escalation.RecipientCoordinator, Enabled: true,
		},
	)

	resolver, err := recipients.NewResolver(dir, recipients.WithSelector(recipients.NewRoundRobinSelector()))
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	service, err := escapp.NewService(store, rules, notificationLog, dir, resolver, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	handler, err := NewHandler(service, &recordingAuditor{}, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/escalations/run", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("run status = %d body=%s", resp.Code, resp.Body.String())
	}
	var summary struct {
		Tickets int `json:"tickets"`
		Fired   int `json:"fired"`
		Failed  int `json:"failed"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.Tickets != 1 || summary.Fired != 2 || summary.Failed != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestHandlerHistoryRequiresTicketID(t *testing.T) {
	handler, _, _ := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/escalations", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.Code)
	}
}

func TestHandlerStatusUpdate(t *testing.T) {
	handler, service, auditor := newTestHandler(t)

	fired, err := service.ProcessTicket(context.Background(), "tkt-1")
	if err != nil || len(fired) != 1 {
		t.Fatalf("seed notification: fired=%d err=%v", len(fired), err)
	}
	id := fired[0].ID

	body := bytes.NewBufferString(`{"status":"sent"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/escalations/"+id+"/status", body)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("status = %d body=%s", resp.Code, resp.Body.String())
	}
	if len(auditor.entries) != 1 || auditor.entries[0].ResourceID != id {
		t.Fatalf("status update not audited: %+v", auditor.entries)
	}

	// Settling twice conflicts.
	again := httptest.NewRequest(http.MethodPost, "/api/v1/escalations/"+id+"/status", bytes.NewBufferString(`{"status":"failed"}`))
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, again)
	if resp.Code != http.StatusConflict {
		t.Fatalf("resettle status = %d, want 409", resp.Code)
	}
}

func TestHandlerStatusRejectsPending(t *testing.T) {
	handler, _, _ := newTestHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/escalations/esc-x/status", bytes.NewBufferString(`{"status":"pending"}`))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.Code)
	}
}

func TestHandlerStatusUnknownNotification(t *testing.T) {
	handler, _, _ := newTestHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/escalations/esc-missing/status", bytes.NewBufferString(`{"status":"sent"}`))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.Code)
	}
}

func TestHandlerExportXLSX(t *testing.T) {
	handler, service, _ := newTestHandler(t)
	if _, err := service.ProcessTicket(context.Background(), "tkt-1"); err != nil {
		t.Fatalf("seed notification: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/escalations/export.xlsx?ticket_id=tkt-1", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d", resp.Code)
	}
	if got := resp.Header().Get("Content-Type"); got != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Fatalf("content type = %q", got)
	}
	if resp.Body.Len() == 0 {
		t.Fatal("empty export body")
	}
}

func TestHandlerMethodNotAllowed(t *testing.T) {
	handler, _, _ := newTestHandler(t)
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/escalations", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", resp.Code)
	}
}
