package app

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"price-oracle/internal/runtime"
	"price-oracle/internal/storage"
)

// ReplayResult summarises a replay of persisted events.
type ReplayResult struct {
	Height  uint64
	Events  int
	Samples int
	Average *uint32
}

// Replay rebuilds the sample store from every persisted NewPrice event and
// checks it against the state recorded with the latest block.
func (a *App) Replay(ctx context.Context) (ReplayResult, error) {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return ReplayResult{}, err
	}
	if store == nil {
		return ReplayResult{}, errors.New("database not configured; cannot replay")
	}
	if closeStore != nil {
		defer closeStore()
	}

	latest, ok, err := store.LatestBlock(ctx)
	if err != nil {
		return ReplayResult{}, err
	}
	if !ok {
		return ReplayResult{}, errors.New("no persisted blocks")
	}

	evs, err := store.ListEventsThrough(ctx, latest.Height)
	if err != nil {
		return ReplayResult{}, err
	}

	result, err := replayEvents(latest, evs)
	if err != nil {
		a.Logger.Error().Err(err).Uint64("height", latest.Height).Msg("replay diverged")
		return result, err
	}
	a.Logger.Info().Uint64("height", result.Height).Int("events", result.Events).Int("samples", result.Samples).Msg("replay matches stored state")
	return result, nil
}

func replayEvents(block storage.BlockRecord, evs []storage.PriceEvent) (ReplayResult, error) {
	samples := runtime.NewSampleStore()
	for _, ev := range evs {
		samples.Record(runtime.Sample(ev.Price))
	}

	result := ReplayResult{Height: block.Height, Events: len(evs), Samples: samples.Len()}
	if avg, ok := samples.Average(); ok {
		v := uint32(avg)
		result.Average = &v
	}

	got := make([]uint32, 0, samples.Len())
	for _, p := range samples.Prices() {
		got = append(got, uint32(p))
	}
	if !slices.Equal(got, block.Prices) {
		return result, fmt.Errorf("replayed prices %v differ from stored %v at height %d", got, block.Prices, block.Height)
	}
	if (result.Average == nil) != (block.Average == nil) ||
		(result.Average != nil && *result.Average != *block.Average) {
		return result, fmt.Errorf("replayed average differs from stored average at height %d", block.Height)
	}
	return result, nil
}
