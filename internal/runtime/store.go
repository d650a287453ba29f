package runtime

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MaxSamples bounds the number of samples kept in state.
const MaxSamples = 64

// Sample is a price quote in minor currency units (cents).
type Sample uint32

// USD renders the sample as a dollar amount with two decimals.
func (s Sample) USD() string {
	return decimal.New(int64(s), -2).StringFixed(2)
}

// SampleStore is the bounded price history owned by the oracle module.
// It is not safe for concurrent use; the chain serialises access.
type SampleStore struct {
	prices []Sample
}

// NewSampleStore returns an empty store.
func NewSampleStore() *SampleStore {
	return &SampleStore{prices: make([]Sample, 0, MaxSamples)}
}

// Restore replaces the contents with a previously persisted snapshot.
func (s *SampleStore) Restore(prices []Sample) error {
	if len(prices) > MaxSamples {
		return fmt.Errorf("snapshot holds %d samples, capacity is %d", len(prices), MaxSamples)
	}
	s.prices = append(make([]Sample, 0, MaxSamples), prices...)
	return nil
}

// Record adds price to the store and returns the resulting average.
//
// While the store has room the price is appended. Once full, the slot at
// price % MaxSamples is overwritten, so the evicted sample depends on the
// value being written and not on insertion order.
func (s *SampleStore) Record(price Sample) Sample {
	if len(s.prices) < MaxSamples {
		s.prices = append(s.prices, price)
	} else {
		s.prices[int(price%MaxSamples)] = price
	}

	avg, _ := Average(s.prices)
	return avg
}

// Prices returns a copy of the stored samples in slot order.
func (s *SampleStore) Prices() []Sample {
	out := make([]Sample, len(s.prices))
	copy(out, s.prices)
	return out
}

// Len reports the number of stored samples.
func (s *SampleStore) Len() int {
	return len(s.prices)
}

// Average computes the average over the current contents.
func (s *SampleStore) Average() (Sample, bool) {
	return Average(s.prices)
}
