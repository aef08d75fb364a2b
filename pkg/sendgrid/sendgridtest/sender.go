// Package sendgridtest provides an in-memory email sender for tests.
package sendgridtest

import (
	"context"
	"sync"

	"github.com/teevo/fulfilment-backend/pkg/sendgrid"
)

// Sender records every message and optionally fails.
type Sender struct {
	mu       sync.Mutex
	messages []sendgrid.Message
	Err      error
}

func (s *Sender) Send(_ context.Context, msg sendgrid.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.messages = append(s.messages, msg)
	return nil
}

// Messages returns a copy of the recorded messages.
func (s *Sender) Messages() []sendgrid.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sendgrid.Message(nil), s.messages...)
}

// To returns the recorded messages addressed to recipient.
func (s *Sender) To(recipient string) []sendgrid.Message {
	var out []sendgrid.Message
	for _, msg := range s.Messages() {
		if msg.To == recipient {
			out = append(out, msg)
		}
	}
	return out
}
