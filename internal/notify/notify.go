// Package notify reports finished task runs to the operator. Fleet runs
// take long enough that nobody sits in front of the terminal waiting, so
// the run commands can push a desktop notification and, when a webhook is
// configured, a Slack message.
package notify

import "os"

// WebhookVar configures the optional Slack sink.
const WebhookVar = "CARGO_FOR_EACH_SLACK_WEBHOOK"

// NotificationType classifies an outcome.
type NotificationType int

const (
	NotifyInfo NotificationType = iota
	NotifySuccess
	NotifyWarning
	NotifyError
)

// Notification is one outcome report.
type Notification struct {
	Title   string
	Message string
	Type    NotificationType
	// Task is the task the run belonged to.
	Task string
}

// Notifier is a single notification sink.
type Notifier interface {
	Send(n Notification) error
}

// MultiNotifier fans a notification out to several sinks. Every sink is
// attempted; the last error wins.
type MultiNotifier struct {
	notifiers []Notifier
}

func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

func (m *MultiNotifier) Send(n Notification) error {
	var lastErr error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(n); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// FromEnvironment builds the default sink set: the desktop, plus Slack
// when a webhook URL is configured.
func FromEnvironment() *MultiNotifier {
	sinks := []Notifier{NewDesktopNotifier()}
	if url := os.Getenv(WebhookVar); url != "" {
		sinks = append(sinks, NewSlackNotifier(url))
	}
	return NewMultiNotifier(sinks...)
}
