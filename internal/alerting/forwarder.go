package alerting

import (
	"context"

	"github.com/rs/zerolog"

	"price-oracle/internal/events"
	"price-oracle/internal/runtime"
)

// AverageReader reports the current on-chain average.
type AverageReader interface {
	Average() (runtime.Sample, bool)
}

// Forwarder turns NewPrice records from the event bus into notifications.
type Forwarder struct {
	bus      *events.Bus
	notifier Notifier
	averages AverageReader
	logger   zerolog.Logger
}

// NewForwarder constructs a forwarder. averages may be nil.
func NewForwarder(bus *events.Bus, notifier Notifier, averages AverageReader, logger zerolog.Logger) *Forwarder {
	return &Forwarder{
		bus:      bus,
		notifier: notifier,
		averages: averages,
		logger:   logger.With().Str("component", "alert_forwarder").Logger(),
	}
}

// Run forwards records until ctx is cancelled. Delivery failures are logged
// and do not stop the loop.
func (f *Forwarder) Run(ctx context.Context) error {
	records, cancel := f.bus.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case rec, ok := <-records:
			if !ok {
				return nil
			}
			note, ok := f.notification(rec)
			if !ok {
				continue
			}
			if err := f.notifier.Notify(ctx, note); err != nil {
				f.logger.Warn().Err(err).Uint64("height", rec.Height).Msg("notification failed")
			}
		}
	}
}

func (f *Forwarder) notification(rec events.Record) (Notification, bool) {
	np, ok := rec.Event.(runtime.EventNewPrice)
	if !ok {
		return Notification{}, false
	}
	note := Notification{
		Height:    rec.Height,
		BlockHash: rec.BlockHash,
		Price:     uint32(np.Price),
		Who:       np.Who,
		Time:      rec.Time,
	}
	if f.averages != nil {
		if avg, has := f.averages.Average(); has {
			note.Average = uint32(avg)
			note.HasAverage = true
		}
	}
	return note, true
}
