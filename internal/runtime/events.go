package runtime

import (
	"github.com/ethereum/go-ethereum/common"
)

// EventTypeNewPrice names the event deposited for every accepted price.
const EventTypeNewPrice = "oracle_new_price"

// Event is a notification deposited during dispatch.
type Event interface {
	Type() string
}

// EventNewPrice reports that Who added Price to the sample store.
type EventNewPrice struct {
	Price Sample
	Who   common.Address
}

// Type implements Event.
func (EventNewPrice) Type() string { return EventTypeNewPrice }

// EventSink receives events deposited by a dispatch.
type EventSink interface {
	Deposit(ev Event)
}

// EventBuffer collects events in deposit order.
type EventBuffer struct {
	events []Event
}

// Deposit implements EventSink.
func (b *EventBuffer) Deposit(ev Event) {
	b.events = append(b.events, ev)
}

// Events returns the deposited events.
func (b *EventBuffer) Events() []Event {
	return b.events
}
