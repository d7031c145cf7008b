package events

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"
)

const (
	TypeWorkflowCreated = "workflow.created"
	TypeWorkflowDeleted = "workflow.deleted"
	TypeProfileUpdated  = "profile.updated"
	TypeBadgeUnlocked   = "badge.unlocked"
)

const subscriberBuffer = 16

type GuestEvent struct {
	GuestID string         `json:"guestId"`
	Type    string         `json:"type"`
	Ts      string         `json:"ts"`
	Payload map[string]any `json:"payload"`
}

// New stamps an event with the current UTC time.
func New(guestID, eventType string, payload map[string]any) GuestEvent {
	return GuestEvent{
		GuestID: guestID,
		Type:    NormalizeType(eventType),
		Ts:      time.Now().UTC().Format(time.RFC3339Nano),
		Payload: payload,
	}
}

type Publisher interface {
	Publish(event GuestEvent)
}

// Broker fans guest events out to the live streams open for that guest.
type Broker struct {
	mu     sync.RWMutex
	guests map[string][]*stream
}

type stream struct {
	events chan GuestEvent
}

func NormalizeType(eventType string) string {
	return strings.TrimSpace(strings.ToLower(eventType))
}

func NewBroker() *Broker {
	return &Broker{guests: map[string][]*stream{}}
}

// Subscribe opens a stream of guestID's events. The channel is closed once
// ctx is done.
func (b *Broker) Subscribe(ctx context.Context, guestID string) <-chan GuestEvent {
	st := &stream{events: make(chan GuestEvent, subscriberBuffer)}

	b.mu.Lock()
	b.guests[guestID] = append(b.guests[guestID], st)
	b.mu.Unlock()

	context.AfterFunc(ctx, func() { b.detach(guestID, st) })
	return st.events
}

func (b *Broker) detach(guestID string, st *stream) {
	b.mu.Lock()
	defer b.mu.Unlock()
	remaining := slices.DeleteFunc(b.guests[guestID], func(s *stream) bool { return s == st })
	if len(remaining) == 0 {
		delete(b.guests, guestID)
	} else {
		b.guests[guestID] = remaining
	}
	close(st.events)
}

// Publish delivers event to every open stream of its guest. It never blocks;
// a stream whose buffer is full misses the event.
func (b *Broker) Publish(event GuestEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, st := range b.guests[event.GuestID] {
		select {
		case st.events <- event:
		default:
		}
	}
}

func (b *Broker) SubscriberCount(guestID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.guests[guestID])
}
