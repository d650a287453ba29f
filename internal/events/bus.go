// Package events fans finalized runtime events out to subscribers.
package events

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"price-oracle/internal/runtime"
)

// Record is an event as observed after its block finalized.
type Record struct {
	Height    uint64
	BlockHash common.Hash
	Index     int
	Event     runtime.Event
	Time      time.Time
}

// Bus delivers records to every subscriber. A subscriber whose buffer is full
// misses the record instead of stalling block production.
type Bus struct {
	logger zerolog.Logger
	buffer int

	mu     sync.RWMutex
	nextID int
	subs   map[int]chan Record
}

// NewBus constructs a bus with per-subscriber buffers of size buffer.
func NewBus(buffer int, logger zerolog.Logger) *Bus {
	if buffer <= 0 {
		buffer = 64
	}
	return &Bus{
		logger: logger.With().Str("component", "event_bus").Logger(),
		buffer: buffer,
		subs:   make(map[int]chan Record),
	}
}

// Subscribe returns a channel of records and a function that closes it.
func (b *Bus) Subscribe() (<-chan Record, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Record, b.buffer)
	b.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers rec to all current subscribers without blocking.
func (b *Bus) Publish(rec Record) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subs {
		select {
		case ch <- rec:
		default:
			b.logger.Warn().Int("subscriber", id).Uint64("height", rec.Height).Msg("subscriber buffer full, dropping event")
		}
	}
}

// Subscribers reports the number of active subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
