// util/event_bus.go

package util

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	logger "github.com/daaef/fainzy-cms/logging"
)

// Event represents an event in the system
type Event struct {
	Type    string
	Payload interface{}
}

// EventHandler is a function that handles an event
type EventHandler func(context.Context, Event) error

// EventBus manages event subscriptions and publications. In the default
// asynchronous mode handlers run on their own goroutines and their failures
// only reach the error channel, never the publisher: publishing is
// fire-and-forget. The synchronous mode runs handlers inline so tests can
// observe side effects deterministically.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
	errorChan   chan error
	synchronous bool
}

// NewEventBus creates an asynchronous EventBus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[string][]EventHandler),
		errorChan:   make(chan error, 100), // Buffer size can be adjusted
	}
}

// NewSyncEventBus creates an EventBus that runs handlers inline
func NewSyncEventBus() *EventBus {
	bus := NewEventBus()
	bus.synchronous = true
	return bus
}

// Subscribe adds a new subscriber for a specific event type
func (eb *EventBus) Subscribe(eventType string, handler EventHandler) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], handler)
}

// Publish sends an event to all subscribers
func (eb *EventBus) Publish(ctx context.Context, eventType string, payload interface{}) {
	eb.mu.RLock()
	handlers, exists := eb.subscribers[eventType]
	eb.mu.RUnlock()

	if !exists {
		return
	}

	event := Event{
		Type:    eventType,
		Payload: payload,
	}

	for _, handler := range handlers {
		if eb.synchronous {
			eb.dispatch(handler, ctx, event)
			continue
		}
		go eb.dispatch(handler, ctx, event)
	}
}

func (eb *EventBus) dispatch(handler EventHandler, ctx context.Context, event Event) {
	if err := handler(ctx, event); err != nil {
		select {
		case eb.errorChan <- fmt.Errorf("event handler error: %w", err):
		default:
			// If error channel is full, log the error
			logger.Error("Error channel full, logging event handler error",
				zap.Error(err),
				zap.String("eventType", event.Type))
		}
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
