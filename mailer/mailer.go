// Package mailer is the outbound messaging collaborator: scheduled reports
// and chase follow-ups both go out through the Messenger seam.
package mailer

import (
	"context"
	"sync"
)

// Messenger sends a single plain-text message to one recipient. Send
// failures are reported to the caller, which decides whether to retry.
type Messenger interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Recorder is an in-memory Messenger for tests and local development.
// Safe for concurrent sends.
type Recorder struct {
	mu      sync.Mutex
	Sent    []RecordedMessage
	FailFor map[string]error
}

// RecordedMessage captures one message handed to a Recorder.
type RecordedMessage struct {
	To      string
	Subject string
	Body    string
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Send(_ context.Context, to, subject, body string) error {
	if err, ok := r.FailFor[to]; ok {
		return err
	}
	r.mu.Lock()
	r.Sent = append(r.Sent, RecordedMessage{To: to, Subject: subject, Body: body})
	r.mu.Unlock()
	return nil
}
