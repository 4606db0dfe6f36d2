// Package events carries the engine's domain events to in-process
// subscribers (notification dispatcher, audit trail). The engine only emits
// events; delivery to push/email/UI is the dispatcher's problem.
package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeCheckedIn             Type = "attendance.checked_in"
	TypeCheckedOut            Type = "attendance.checked_out"
	TypeGeofenceEntered       Type = "attendance.geofence_entered"
	TypeGeofenceLeft          Type = "attendance.geofence_left"
	TypeVerificationTriggered Type = "verification.triggered"
	TypeVerificationResolved  Type = "verification.resolved"
	TypeFraudAlertRaised      Type = "fraud.alert_raised"
)

type Event struct {
	ID         string
	Type       Type
	EmployeeID uint
	OccurredAt time.Time
	Payload    any
}

type CheckedInPayload struct {
	SessionID  uint
	GeofenceID uint
	Lat        float64
	Lng        float64
	Flagged    bool
}

type CheckedOutPayload struct {
	SessionID  uint
	TotalHours float64
	Flagged    bool
}

type VerificationTriggeredPayload struct {
	SessionID   uint
	TriggeredBy string
	ExpiresAt   time.Time
}

type VerificationResolvedPayload struct {
	SessionID uint
	Status    string // verified, failed or expired
	Score     *float64
}

type FraudAlertRaisedPayload struct {
	AlertID  uint
	RuleType string
	Severity string
}

type Handler func(ctx context.Context, event Event)

// Publisher is the side services depend on to emit events.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// Bus is a minimal in-process pub/sub. Handlers run on their own goroutine
// so a slow subscriber cannot stall a request path.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
}

func NewBus() *Bus {
	return &Bus{}
}

func (b *Bus) Subscribe(handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, handler)
}

func (b *Bus) Publish(ctx context.Context, event Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	// Handlers outlive the publishing call. Request-scoped contexts (fiber
	// recycles its RequestCtx after the response) must not reach them, so
	// keep the values but drop cancellation and deadline.
	ctx = context.WithoutCancel(ctx)
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, handler := range handlers {
		go func(h Handler) {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("event handler panicked", "event", event.Type, "panic", r)
				}
			}()
			h(ctx, event)
		}(handler)
	}
}

func New(eventType Type, employeeID uint, payload any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		EmployeeID: employeeID,
		OccurredAt: time.Now(),
		Payload:    payload,
	}
}
