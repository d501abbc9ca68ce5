package util

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	logger "github.com/hearthguard/sentinel/logging"
)

// Topic names the in-process event streams the engine publishes.
type Topic string

const (
	TopicDecisionRecorded     Topic = "decision.recorded"
	TopicEventScored          Topic = "event.scored"
	TopicAlertRaised          Topic = "alert.raised"
	TopicIncidentOpened       Topic = "incident.opened"
	TopicIncidentTransitioned Topic = "incident.transitioned"
	TopicOverrideRecorded     Topic = "override.recorded"
	TopicOverrideEscalated    Topic = "override.escalated"
	TopicKillSwitchActivated  Topic = "killswitch.activated"
	TopicPipelineDrops        Topic = "pipeline.drops"
	TopicPolicyChanged        Topic = "policy.changed"
)

// Event represents an event in the system
type Event struct {
	Topic   Topic
	Payload interface{}
}

// EventHandler is a function that handles an event
type EventHandler func(context.Context, Event) error

// EventBus manages event subscriptions and publications
type EventBus struct {
	subscribers map[Topic][]EventHandler
	mu          sync.RWMutex
	errorChan   chan error
}

// NewEventBus creates a new EventBus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[Topic][]EventHandler),
		errorChan:   make(chan error, 100),
	}
}

// Subscribe adds a new subscriber for a topic
func (eb *EventBus) Subscribe(topic Topic, handler EventHandler) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[topic] = append(eb.subscribers[topic], handler)
}

// Publish sends an event to all subscribers
func (eb *EventBus) Publish(ctx context.Context, topic Topic, payload interface{}) {
	eb.mu.RLock()
	handlers, exists := eb.subscribers[topic]
	eb.mu.RUnlock()

	if !exists {
		return
	}

	event := Event{
		Topic:   topic,
		Payload: payload,
	}

	for _, handler := range handlers {
		go func(h EventHandler) {
			if err := h(ctx, event); err != nil {
				select {
				case eb.errorChan <- fmt.Errorf("event handler error: %w", err):
				default:
					logger.Error("Error channel full, logging event handler error",
						zap.Error(err),
						zap.String("topic", string(topic)))
				}
			}
		}(handler)
	}
}

// Start begins processing events and handling errors
func (eb *EventBus) Start(ctx context.Context) {
	go eb.processErrors(ctx)
}

// processErrors handles errors from event handlers
func (eb *EventBus) processErrors(ctx context.Context) {
	for {
		select {
		case err := <-eb.errorChan:
			logger.Error("Event handler error", zap.Error(err))
		case <-ctx.Done():
			return
		}
	}
}
