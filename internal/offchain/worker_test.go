package offchain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"price-oracle/internal/chain"
	"price-oracle/internal/runtime"
)

type stubFetcher struct {
	price runtime.Sample
	err   error
	calls int
}

func (f *stubFetcher) FetchPrice(context.Context) (runtime.Sample, error) {
	f.calls++
	return f.price, f.err
}

type stubSubmitter struct {
	err    error
	prices []runtime.Sample
}

func (s *stubSubmitter) Submit(_ context.Context, _ uint64, price runtime.Sample) ([]common.Hash, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.prices = append(s.prices, price)
	return []common.Hash{{0x01}}, nil
}

type stubReader struct{}

func (stubReader) Average() (runtime.Sample, bool) { return 0, false }

func TestWorkerSubmitsFetchedPrice(t *testing.T) {
	f := &stubFetcher{price: 10450}
	s := &stubSubmitter{}
	w := NewWorker(f, s, stubReader{}, 0, zerolog.Nop())

	out, ok := w.Process(context.Background(), chain.Head{Height: 1})
	require.True(t, ok)
	require.NoError(t, out.Err)
	require.Equal(t, []State{StateIdle, StateFetching, StateFetched, StateSubmitting, StateSubmitted, StateIdle}, out.Path)
	require.Equal(t, StateSubmitted, out.Terminal())
	require.Equal(t, []runtime.Sample{10450}, s.prices)
	require.Len(t, out.Submitted, 1)
	require.Equal(t, StateIdle, w.State())
}

func TestWorkerFetchFailureSkipsSubmission(t *testing.T) {
	f := &stubFetcher{err: ErrProtocol}
	s := &stubSubmitter{}
	w := NewWorker(f, s, nil, 0, zerolog.Nop())

	out, ok := w.Process(context.Background(), chain.Head{Height: 1})
	require.True(t, ok)
	require.ErrorIs(t, out.Err, ErrProtocol)
	require.Equal(t, StateFetchFailed, out.Terminal())
	require.Empty(t, s.prices)
}

func TestWorkerNoAccounts(t *testing.T) {
	w := NewWorker(&stubFetcher{price: 1}, &stubSubmitter{err: ErrNoSignerAvailable}, nil, 0, zerolog.Nop())

	out, ok := w.Process(context.Background(), chain.Head{Height: 1})
	require.True(t, ok)
	require.ErrorIs(t, out.Err, ErrNoSignerAvailable)
	require.Equal(t, StateNoAccountsAvailable, out.Terminal())
}

func TestWorkerSubmissionFailureIsNotSuccess(t *testing.T) {
	w := NewWorker(&stubFetcher{price: 1}, &stubSubmitter{err: ErrSubmissionFailed}, nil, 0, zerolog.Nop())

	out, ok := w.Process(context.Background(), chain.Head{Height: 1})
	require.True(t, ok)
	require.ErrorIs(t, out.Err, ErrSubmissionFailed)
	require.NotEqual(t, StateSubmitted, out.Terminal())
	require.Empty(t, out.Submitted)
	require.Equal(t, "submit_failed", pipelineResult(out.Terminal(), out.Err))
	require.Equal(t, "submitted", pipelineResult(StateSubmitted, nil))
}

func TestWorkerProcessesEachHeightOnce(t *testing.T) {
	f := &stubFetcher{price: 1}
	w := NewWorker(f, &stubSubmitter{}, nil, 0, zerolog.Nop())

	_, ok := w.Process(context.Background(), chain.Head{Height: 2})
	require.True(t, ok)
	_, ok = w.Process(context.Background(), chain.Head{Height: 2})
	require.False(t, ok)
	_, ok = w.Process(context.Background(), chain.Head{Height: 1})
	require.False(t, ok)
	_, ok = w.Process(context.Background(), chain.Head{Height: 3})
	require.True(t, ok)
	require.Equal(t, 2, f.calls)
}

func TestWorkerIgnoresCancellationOnceStarted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &stubSubmitter{}
	w := NewWorker(&stubFetcher{price: 9}, s, nil, 0, zerolog.Nop())
	out, ok := w.Process(ctx, chain.Head{Height: 1})
	require.True(t, ok)
	require.Equal(t, StateSubmitted, out.Terminal())
	require.Equal(t, []runtime.Sample{9}, s.prices)
}

func TestWorkerRunDrainsQueuedHeads(t *testing.T) {
	f := &stubFetcher{price: 5}
	s := &stubSubmitter{}
	w := NewWorker(f, s, nil, 4, zerolog.Nop())

	w.OnBlock(chain.Head{Height: 1})
	w.OnBlock(chain.Head{Height: 1})
	w.OnBlock(chain.Head{Height: 2})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	err := w.Run(ctx)
	require.True(t, errors.Is(err, context.DeadlineExceeded))

	w.mu.Lock()
	defer w.mu.Unlock()
	require.Equal(t, []runtime.Sample{5, 5}, s.prices)
	require.Equal(t, uint64(2), w.last)
}

func TestCanTransition(t *testing.T) {
	require.True(t, CanTransition(StateIdle, StateFetching))
	require.True(t, CanTransition(StateFetching, StateFetchFailed))
	require.True(t, CanTransition(StateSubmitting, StateNoAccountsAvailable))
	require.False(t, CanTransition(StateIdle, StateSubmitting))
	require.False(t, CanTransition(StateFetchFailed, StateSubmitting))
	require.False(t, CanTransition(StateSubmitted, StateFetching))
}
