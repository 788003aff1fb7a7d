package notify

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSlackNotifier_Send(t *testing.T) {
	var body []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier := NewSlackNotifier(server.URL)
	err := notifier.Send(Notification{
		Title:   "Task completed",
		Message: "All steps for all targets completed.",
		Type:    NotifySuccess,
		Task:    "upgrade",
	})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	var msg SlackMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		t.Fatalf("payload did not decode: %v", err)
	}
	if msg.Text != "Task completed" {
		t.Errorf("text = %q, want %q", msg.Text, "Task completed")
	}
	if len(msg.Attachments) != 1 {
		t.Fatalf("attachments = %d, want 1", len(msg.Attachments))
	}
	a := msg.Attachments[0]
	if a.Title != "upgrade" || a.Color != "good" || a.Footer != "cargo-for-each" {
		t.Errorf("attachment = %+v, want task title, good color, cargo-for-each footer", a)
	}
}

func TestSlackNotifier_RejectsBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	if err := NewSlackNotifier(server.URL).Send(Notification{Title: "x"}); err == nil {
		t.Error("Send() error = nil, want error for non-200 response")
	}
}

func TestSlackColor(t *testing.T) {
	tests := []struct {
		typ  NotificationType
		want string
	}{
		{NotifySuccess, "good"},
		{NotifyWarning, "warning"},
		{NotifyError, "danger"},
		{NotifyInfo, "#439FE0"},
	}

	for _, tt := range tests {
		if got := SlackColor(tt.typ); got != tt.want {
			t.Errorf("SlackColor(%v) = %s, want %s", tt.typ, got, tt.want)
		}
	}
}

func TestIconForType(t *testing.T) {
	tests := []struct {
		typ  NotificationType
		want string
	}{
		{NotifySuccess, "dialog-positive"},
		{NotifyWarning, "dialog-warning"},
		{NotifyError, "dialog-error"},
		{NotifyInfo, "dialog-information"},
	}

	for _, tt := range tests {
		if got := IconForType(tt.typ); got != tt.want {
			t.Errorf("IconForType(%v) = %s, want %s", tt.typ, got, tt.want)
		}
	}
}

type recordingNotifier struct {
	calls int
	err   error
}

func (r *recordingNotifier) Send(Notification) error {
	r.calls++
	return r.err
}

func TestMultiNotifier_SendsToAll(t *testing.T) {
	first := &recordingNotifier{}
	second := &recordingNotifier{}

	if err := NewMultiNotifier(first, second).Send(Notification{Title: "x"}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if first.calls != 1 || second.calls != 1 {
		t.Errorf("calls = %d, %d, want 1, 1", first.calls, second.calls)
	}
}

func TestMultiNotifier_KeepsGoingAfterError(t *testing.T) {
	failing := &recordingNotifier{err: errors.New("boom")}
	second := &recordingNotifier{}

	err := NewMultiNotifier(failing, second).Send(Notification{Title: "x"})
	if err == nil {
		t.Error("Send() error = nil, want the sink error")
	}
	if second.calls != 1 {
		t.Errorf("second sink calls = %d, want 1", second.calls)
	}
}

func TestFromEnvironment(t *testing.T) {
	t.Setenv(WebhookVar, "")
	if got := len(FromEnvironment().notifiers); got != 1 {
		t.Errorf("sinks without webhook = %d, want 1", got)
	}

	t.Setenv(WebhookVar, "https://hooks.example.invalid/x")
	if got := len(FromEnvironment().notifiers); got != 2 {
		t.Errorf("sinks with webhook = %d, want 2", got)
	}
}
