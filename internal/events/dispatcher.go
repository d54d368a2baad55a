// Package events distributes domain change notifications to observers such
// as the WebSocket hub.
package events

import (
	"context"
	"log"
	"sync"
)

// Event is a domain event dispatched to observers.
type Event struct {
	// Type is the event type, e.g. "collection:updated".
	Type string

	// Payload is the typed event body. It may be nil.
	Payload any

	Context context.Context
}

// Observer receives dispatched events.
type Observer interface {
	// OnEvent is called for every event the observer accepts.
	OnEvent(event Event) error

	// GetName returns a human-readable name used in logs.
	GetName() string

	// ShouldHandle reports whether the observer wants events of this type.
	ShouldHandle(eventType string) bool
}

// EventDispatcher fans events out to registered observers.
// Safe for concurrent use.
type EventDispatcher struct {
	observers []Observer
	mu        sync.RWMutex
}

// NewEventDispatcher creates an empty dispatcher.
func NewEventDispatcher() *EventDispatcher {
	return &EventDispatcher{
		observers: make([]Observer, 0),
	}
}

// Register adds an observer.
func (d *EventDispatcher) Register(observer Observer) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.observers = append(d.observers, observer)
	log.Printf("[EventDispatcher] Registered observer: %s", observer.GetName())
}

// Unregister removes an observer.
func (d *EventDispatcher) Unregister(observer Observer) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, obs := range d.observers {
		if obs == observer {
			d.observers = append(d.observers[:i], d.observers[i+1:]...)
			log.Printf("[EventDispatcher] Unregistered observer: %s", observer.GetName())
			return
		}
	}
}

func (d *EventDispatcher) snapshot() []Observer {
	d.mu.RLock()
	defer d.mu.RUnlock()
	observers := make([]Observer, len(d.observers))
	copy(observers, d.observers)
	return observers
}

// Dispatch notifies observers sequentially in registration order. A failing
// observer is logged and does not stop the others.
func (d *EventDispatcher) Dispatch(event Event) {
	for _, observer := range d.snapshot() {
		if !observer.ShouldHandle(event.Type) {
			continue
		}
		if err := observer.OnEvent(event); err != nil {
			log.Printf("[EventDispatcher] Observer %s failed to handle event %s: %v",
				observer.GetName(), event.Type, err)
		}
	}
}

// DispatchAsync notifies each observer on its own goroutine.
func (d *EventDispatcher) DispatchAsync(event Event) {
	for _, observer := range d.snapshot() {
		if !observer.ShouldHandle(event.Type) {
			continue
		}
		go func(obs Observer) {
			if err := obs.OnEvent(event); err != nil {
				log.Printf("[EventDispatcher] Observer %s failed to handle event %s: %v",
					obs.GetName(), event.Type, err)
			}
		}(observer)
	}
}

// Publish builds a typed event and dispatches it synchronously. A nil
// dispatcher is a no-op.
func Publish[T any](d *EventDispatcher, ctx context.Context, eventType string, payload T) {
	if d == nil {
		return
	}
	d.Dispatch(NewTypedEvent(eventType, payload, ctx))
}

// ObserverCount returns the number of registered observers.
func (d *EventDispatcher) ObserverCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.observers)
}

// Clear removes all observers.
func (d *EventDispatcher) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.observers = make([]Observer, 0)
	log.Printf("[EventDispatcher] Cleared all observers")
}

// NewTypedEvent creates an event carrying payload.
func NewTypedEvent[T any](eventType string, payload T, ctx context.Context) Event {
	return Event{
		Type:    eventType,
		Payload: payload,
		Context: ctx,
	}
}

// GetTypedData extracts the payload of an event as T.
func GetTypedData[T any](event Event) (T, bool) {
	var zero T
	if event.Payload == nil {
		return zero, false
	}
	typed, ok := event.Payload.(T)
	return typed, ok
}

// FuncObserver adapts a function to the Observer interface.
type FuncObserver struct {
	Name  string
	Types []string // empty means every type
	Fn    func(Event) error
}

// OnEvent calls Fn.
func (o *FuncObserver) OnEvent(event Event) error {
	if o.Fn == nil {
		return nil
	}
	return o.Fn(event)
}

// GetName returns the observer's name.
func (o *FuncObserver) GetName() string {
	return o.Name
}

// ShouldHandle matches event types against Types.
func (o *FuncObserver) ShouldHandle(eventType string) bool {
	if len(o.Types) == 0 {
		return true
	}
	for _, t := range o.Types {
		if t == eventType {
			return true
		}
	}
	return false
}
