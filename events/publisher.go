// Package events provides the EventPublisher port (§4.17) and a development
// default that logs and fans events out to in-process subscribers. Hosts
// wanting Kafka/SQS/etc. delivery provide their own core.EventPublisher.
package events

import (
	"context"
	"sync"

	"github.com/fireflyframework/fireflyframework-starter-data-sub000/core"
)

// Subscriber receives events published to a topic it has registered for.
type Subscriber func(ctx context.Context, topic string, payload interface{})

// LoggingPublisher is the in-process default core.EventPublisher: it logs
// every publish at Info level and, when subscribers are registered for a
// topic, fans the payload out to them synchronously. Fire-and-forget means
// "does not block the caller on a broker round trip", not "asynchronous
// goroutine" — subscribers run inline on the publishing goroutine, matching
// the teacher's synchronous logging style elsewhere in the core.
type LoggingPublisher struct {
	logger core.Logger

	mu   sync.RWMutex
	subs map[string][]Subscriber
}

// NewLoggingPublisher builds the default EventPublisher.
func NewLoggingPublisher(logger core.Logger) *LoggingPublisher {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if cal, ok := logger.(core.ComponentAwareLogger); ok {
		logger = cal.WithComponent("events")
	}
	return &LoggingPublisher{logger: logger, subs: make(map[string][]Subscriber)}
}

// Subscribe registers fn to be invoked for every Publish call on topic.
func (p *LoggingPublisher) Subscribe(topic string, fn Subscriber) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subs[topic] = append(p.subs[topic], fn)
}

// Publish implements core.EventPublisher.
func (p *LoggingPublisher) Publish(ctx context.Context, topic string, payload interface{}) {
	p.logger.Info("event published", map[string]interface{}{"topic": topic})

	p.mu.RLock()
	subs := append([]Subscriber(nil), p.subs[topic]...)
	p.mu.RUnlock()

	for _, sub := range subs {
		sub(ctx, topic, payload)
	}
}

var _ core.EventPublisher = (*LoggingPublisher)(nil)
