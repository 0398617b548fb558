package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	directory "servicedesk-cloud/internal/directory/domain"
	escapp "servicedesk-cloud/internal/escalation/application"
	escalation "servicedesk-cloud/internal/escalation/domain"
)

type stubSource struct {
	pending  []escapp.PendingNotification
	statuses map[string]escalation.DeliveryStatus
	errs     map[string]string
}

func newStubSource(pending ...escapp.PendingNotification) *stubSource {
	return &stubSource{
		pending:  pending,
		statuses: make(map[string]escalation.DeliveryStatus),
		errs:     make(map[string]string),
	}
}

func (s *stubSource) PendingForDelivery(_ context.Context) ([]escapp.PendingNotification, error) {
	return s.pending, nil
}

func (s *stubSource) UpdateStatus(_ context.Context, notificationID string, status escalation.DeliveryStatus, _ time.Time, errorMessage string) error {
	s.statuses[notificationID] = status
	s.errs[notificationID] = errorMessage
	return nil
}

type failingSource struct{}

func (failingSource) PendingForDelivery(_ context.Context) ([]escapp.PendingNotification, error) {
	return nil, errors.New("db down")
}

func (failingSource) UpdateStatus(_ context.Context, _ string, _ escalation.DeliveryStatus, _ time.Time, _ string) error {
	return nil
}

func pendingItem(id string) escapp.PendingNotification {
	return escapp.PendingNotification{
		Notification: escalation.Notification{
			ID:          id,
			TrackingID:  "trk-1",
			RuleID:      "esc-rule-1",
			Level:       2,
			Trigger:     escalation.TriggerBreached,
			Recipients:  []escalation.Recipient{{Name: "Priya", Email: "priya@example.com", Type: escalation.RecipientAssignedEngineer}},
			RepeatCount: 1,
			Status:      escalation.StatusPending,
			CreatedAt:   time.Date(2026, time.March, 10, 9, 30, 0, 0, time.UTC),
		},
		Ticket: directory.Ticket{ID: "tkt-1", Subject: "VPN down", Priority: "P2", Status: "open"},
	}
}

func TestWorkerDeliversAndSettles(t *testing.T) {
	payloadCh := make(chan webhookPayload, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var payload webhookPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		payloadCh <- payload
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	channel, err := NewWebhookChannel(server.URL)
	if err != nil {
		t.Fatalf("new channel: %v", err)
	}
	source := newStubSource(pendingItem("esc-n1"))
	worker, err := NewWorker(source, channel, nil, nil)
	if err != nil {
		t.Fatalf("new worker: %v", err)
	}

	worker.RunOnce(context.Background())

	select {
	case payload := <-payloadCh:
		if payload.MsgType != "text" {
			t.Fatalf("msgtype = %q", payload.MsgType)
		}
		content := payload.Text.Content
		if !strings.Contains(content, "VPN down") || !strings.Contains(content, "priya@example.com") {
			t.Fatalf("content missing ticket context: %q", content)
		}
		if !strings.Contains(content, "Breached") {
			t.Fatalf("content missing trigger label: %q", content)
		}
	default:
		t.Fatal("webhook not called")
	}

	if source.statuses["esc-n1"] != escalation.StatusSent {
		t.Fatalf("status = %s, want sent", source.statuses["esc-n1"])
	}
}

func TestWorkerMarksFailedOnWebhookError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	channel, err := NewWebhookChannel(server.URL)
	if err != nil {
		t.Fatalf("new channel: %v", err)
	}
	source := newStubSource(pendingItem("esc-n2"))
	worker, err := NewWorker(source, channel, nil, nil)
	if err != nil {
		t.Fatalf("new worker: %v", err)
	}

	worker.RunOnce(context.Background())

	if source.statuses["esc-n2"] != escalation.StatusFailed {
		t.Fatalf("status = %s, want failed", source.statuses["esc-n2"])
	}
	if source.errs["esc-n2"] == "" {
		t.Fatal("error message not recorded")
	}
}

func TestWorkerSurvivesSourceError(t *testing.T) {
	channel, err := NewWebhookChannel("http://localhost:0")
	if err != nil {
		t.Fatalf("new channel: %v", err)
	}
	worker, err := NewWorker(failingSource{}, channel, nil, nil)
	if err != nil {
		t.Fatalf("new worker: %v", err)
	}
	// Must not panic.
	worker.RunOnce(context.Background())
}

func TestTemplateReminderLine(t *testing.T) {
	tpl, err := NewTemplate("")
	if err != nil {
		t.Fatalf("new template: %v", err)
	}

	item := pendingItem("esc-n3")
	item.Notification.RepeatCount = 3
	content, err := tpl.Render(buildTemplateData(item))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(content, "Reminder: #3") {
		t.Fatalf("reminder line missing: %q", content)
	}

	first, err := tpl.Render(buildTemplateData(pendingItem("esc-n4")))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(first, "Reminder") {
		t.Fatalf("reminder line on first notification: %q", first)
	}
}
