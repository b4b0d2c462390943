// Package events publishes account enforcement changes for the notification system.
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
	TypeEnforcement      Type = "enforcement"
	TypeSuspensionExpiry Type = "suspension-expired"
	TypeReversal         Type = "reversal"
)

type Event struct {
	ID             string     `json:"id"`
	Type           Type       `json:"type"`
	UserID         string     `json:"userId"`
	Action         string     `json:"action"`
	Status         string     `json:"status"`
	EffectiveUntil *time.Time `json:"effectiveUntil,omitempty"`
	Reason         string     `json:"reason,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

func NewEvent(t Type, userID, action, status string) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      t,
		UserID:    userID,
		Action:    action,
		Status:    status,
		CreatedAt: time.Now().UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, evt *Event) error
	Close() error
}

// LogPublisher only logs events. Used when no broker is configured.
type LogPublisher struct {
	Logger *slog.Logger
}

func (p *LogPublisher) Publish(ctx context.Context, evt *Event) error {
	p.Logger.Info("enforcement event", "id", evt.ID, "type", evt.Type, "user", evt.UserID, "action", evt.Action, "status", evt.Status)
	return nil
}

func (p *LogPublisher) Close() error {
	return nil
}

// MemPublisher keeps published events in memory, for tests.
type MemPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *MemPublisher) Publish(ctx context.Context, evt *Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, *evt)
	return nil
}

func (p *MemPublisher) Close() error {
	return nil
}

func (p *MemPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}
