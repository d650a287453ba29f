package runtime

import (
	"github.com/rs/zerolog"
)

// Module is the price oracle state transition. Every method that mutates
// state is reached only through Dispatch.
type Module struct {
	store  *SampleStore
	logger zerolog.Logger
}

// NewModule wraps store with the oracle's dispatch rules.
func NewModule(store *SampleStore, logger zerolog.Logger) *Module {
	if store == nil {
		store = NewSampleStore()
	}
	return &Module{
		store:  store,
		logger: logger.With().Str("component", "oracle_module").Logger(),
	}
}

// Dispatch executes call on behalf of origin. A returned error means state
// and sink were left untouched.
func (m *Module) Dispatch(origin Origin, call Call, sink EventSink) error {
	switch c := call.(type) {
	case SubmitPrice:
		return m.submitPrice(origin, c.Price, sink)
	case *SubmitPrice:
		return m.submitPrice(origin, c.Price, sink)
	default:
		return ErrUnknownCall.Wrapf("%T", call)
	}
}

func (m *Module) submitPrice(origin Origin, price Sample, sink EventSink) error {
	who, err := ensureSigned(origin)
	if err != nil {
		return err
	}

	m.logger.Info().Uint32("price", uint32(price)).Msg("adding to the average")
	avg := m.store.Record(price)
	m.logger.Info().Uint32("average", uint32(avg)).Msg("current average price")

	sink.Deposit(EventNewPrice{Price: price, Who: who})
	return nil
}

// Prices returns the stored samples in slot order.
func (m *Module) Prices() []Sample {
	return m.store.Prices()
}

// Average returns the average of the stored samples.
func (m *Module) Average() (Sample, bool) {
	return m.store.Average()
}
