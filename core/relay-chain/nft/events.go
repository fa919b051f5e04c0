package nft

import (
	"fmt"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

type EventType string

const (
	EventOwnershipTransferred EventType = "OwnershipTransferred"
	EventApprovalGranted      EventType = "ApprovalGranted"
	EventPauseChanged         EventType = "PauseChanged"
)

// Event is a notification emitted after a successful mutation.
//
// OwnershipTransferred uses From, To and TokenID; From is NoIdentity for a
// mint and To is NoIdentity for a burn. ApprovalGranted uses Owner, Approved
// and TokenID. PauseChanged uses From (the admin) and Paused.
type Event struct {
	Sequence  uint64         `json:"sequence"`
	Type      EventType      `json:"type"`
	From      common.Address `json:"from"`
	To        common.Address `json:"to"`
	Owner     common.Address `json:"owner"`
	Approved  common.Address `json:"approved"`
	TokenID   uint64         `json:"token_id"`
	Paused    bool           `json:"paused"`
	Timestamp time.Time      `json:"timestamp"`
	Hash      common.Hash    `json:"hash"`
}

// emitEvent stamps and appends an event to the log, dropping the oldest
// entries beyond the event window. Callers hold c.mu and must pass the
// result to publish once the lock is released.
func (c *Collection) emitEvent(event Event) Event {
	event.Sequence = c.nextSeq
	c.nextSeq++
	event.Timestamp = time.Now()
	event.Hash = c.eventHash(event)
	c.events = append(c.events, event)
	if over := len(c.events) - c.eventWindow; over > 0 {
		c.events = c.events[over:]
	}
	return event
}

func (c *Collection) eventHash(event Event) common.Hash {
	data := fmt.Sprintf("%s_%s_%d_%s_%s_%s_%s_%d_%t",
		c.symbol, event.Type, event.Sequence,
		event.From.Hex(), event.To.Hex(), event.Owner.Hex(), event.Approved.Hex(),
		event.TokenID, event.Paused)
	return crypto.Keccak256Hash([]byte(data))
}

// publish delivers events to subscribers. It must not be called with c.mu
// held: subscribers are free to query the collection.
func (c *Collection) publish(events ...Event) {
	c.subMu.RLock()
	subs := make([]func(Event), 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		subs = append(subs, fn)
	}
	c.subMu.RUnlock()

	for _, event := range events {
		for _, fn := range subs {
			fn(event)
		}
	}
}

// Subscribe registers fn to receive every event emitted from now on, in
// emission order. The returned function removes the subscription.
func (c *Collection) Subscribe(fn func(Event)) (unsubscribe func()) {
	c.subMu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = fn
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		delete(c.subscribers, id)
		c.subMu.Unlock()
	}
}

// GetEvents returns the events still held in memory, oldest first.
func (c *Collection) GetEvents() []Event {
	c.mu.RLock()
	defer c.mu.RUnlock()

	// Return a copy to prevent external modification
	events := make([]Event, len(c.events))
	copy(events, c.events)
	return events
}

// GetEventsByType returns events filtered by type
func (c *Collection) GetEventsByType(eventType EventType) []Event {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var filtered []Event
	for _, event := range c.events {
		if event.Type == eventType {
			filtered = append(filtered, event)
		}
	}
	return filtered
}

// EventsSince returns the in-memory events whose sequence is greater than
// seq. The log is ordered by sequence, so the start is found by search.
func (c *Collection) EventsSince(seq uint64) []Event {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i := sort.Search(len(c.events), func(i int) bool { return c.events[i].Sequence > seq })
	if i == len(c.events) {
		return nil
	}
	out := make([]Event, len(c.events)-i)
	copy(out, c.events[i:])
	return out
}

// LastSequence returns the sequence number of the most recent event, or 0
// if none was ever emitted.
func (c *Collection) LastSequence() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nextSeq - 1
}
