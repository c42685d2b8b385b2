// Package memory records published events in-process for tests and local runs.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/ovalfantasy/ovalsync/internal/scrape"
)

// Publisher stores published payloads for inspection.
type Publisher struct {
	mu       sync.RWMutex
	messages []PublishedMessage
}

// PublishedMessage captures one publish call.
type PublishedMessage struct {
	Topic   string
	Payload any
}

// New returns a memory Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish records the message and returns a pseudo ID.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, PublishedMessage{Topic: topic, Payload: payload})
	return fmt.Sprintf("memory-%d", len(p.messages)), nil
}

// Messages returns the recorded publishes.
func (p *Publisher) Messages() []PublishedMessage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]PublishedMessage, len(p.messages))
	copy(out, p.messages)
	return out
}

// Events returns the recorded scrape events of the given type.
func (p *Publisher) Events(eventType string) []scrape.Event {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []scrape.Event
	for _, m := range p.messages {
		if ev, ok := m.Payload.(scrape.Event); ok && ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}
