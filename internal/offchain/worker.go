// Package offchain runs the non-deterministic half of the oracle: fetching a
// quote and submitting it as signed transactions. Nothing here touches chain
// state directly; prices re-enter only through the transaction pool.
package offchain

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"price-oracle/internal/chain"
	"price-oracle/internal/metrics"
	"price-oracle/internal/runtime"
)

// State is a step of the per-height pipeline.
type State int32

const (
	StateIdle State = iota
	StateFetching
	StateFetched
	StateFetchFailed
	StateSubmitting
	StateSubmitted
	StateNoAccountsAvailable
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateFetched:
		return "fetched"
	case StateFetchFailed:
		return "fetch_failed"
	case StateSubmitting:
		return "submitting"
	case StateSubmitted:
		return "submitted"
	case StateNoAccountsAvailable:
		return "no_accounts_available"
	default:
		return "unknown"
	}
}

var transitions = map[State][]State{
	StateIdle:                {StateFetching},
	StateFetching:            {StateFetched, StateFetchFailed},
	StateFetched:             {StateSubmitting},
	StateSubmitting:          {StateSubmitted, StateNoAccountsAvailable},
	StateFetchFailed:         {StateIdle},
	StateSubmitted:           {StateIdle},
	StateNoAccountsAvailable: {StateIdle},
}

// CanTransition reports whether the pipeline may move from one state to another.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// StateReader exposes finalized chain state for logging.
type StateReader interface {
	Average() (runtime.Sample, bool)
}

// Outcome summarises one traversal.
type Outcome struct {
	Height    uint64
	Path      []State
	Price     runtime.Sample
	Submitted []common.Hash
	Err       error
	Duration  time.Duration
}

// Terminal returns the last state reached before returning to idle.
func (o Outcome) Terminal() State {
	if len(o.Path) < 2 {
		return StateIdle
	}
	return o.Path[len(o.Path)-2]
}

// Worker runs one pipeline traversal per finalized height.
type Worker struct {
	fetcher   PriceFetcher
	submitter PriceSubmitter
	reader    StateReader
	logger    zerolog.Logger
	heads     chan chain.Head

	mu        sync.Mutex
	last      uint64
	processed bool
	state     atomic.Int32
}

// NewWorker constructs a worker. queue bounds how many heads may wait while a
// traversal is in progress; further heads are dropped.
func NewWorker(fetcher PriceFetcher, submitter PriceSubmitter, reader StateReader, queue int, logger zerolog.Logger) *Worker {
	if queue <= 0 {
		queue = 16
	}
	return &Worker{
		fetcher:   fetcher,
		submitter: submitter,
		reader:    reader,
		logger:    logger.With().Str("component", "offchain_worker").Logger(),
		heads:     make(chan chain.Head, queue),
	}
}

// OnBlock queues head for processing. It never blocks, so it can be used as a
// chain observer.
func (w *Worker) OnBlock(head chain.Head) {
	select {
	case w.heads <- head:
	default:
		w.logger.Warn().Uint64("height", head.Height).Msg("worker busy, skipping height")
	}
}

// Run processes queued heads until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case head := <-w.heads:
			w.Process(ctx, head)
		}
	}
}

// State reports the current pipeline state.
func (w *Worker) State() State {
	return State(w.state.Load())
}

// Process runs the traversal for head. A height at or below one already
// processed is skipped and reported with ok == false. Once started, a
// traversal is not cancelled by ctx; the fetcher's own timeout bounds it.
func (w *Worker) Process(ctx context.Context, head chain.Head) (out Outcome, ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.processed && head.Height <= w.last {
		w.logger.Debug().Uint64("height", head.Height).Msg("height already processed")
		return Outcome{Height: head.Height}, false
	}
	w.last = head.Height
	w.processed = true

	ctx = context.WithoutCancel(ctx)
	start := time.Now()
	out = Outcome{Height: head.Height, Path: []State{StateIdle}}
	logger := w.logger.With().Uint64("height", head.Height).Logger()

	if w.reader != nil {
		if avg, has := w.reader.Average(); has {
			logger.Info().Uint32("average", uint32(avg)).Msg("current on-chain average")
		} else {
			logger.Info().Msg("no on-chain average yet")
		}
	}
	logger.Debug().Str("hash", head.Hash.Hex()).Str("parent", head.ParentHash.Hex()).Msg("processing block")

	w.enter(&out, StateFetching)
	price, err := w.fetcher.FetchPrice(ctx)
	if err != nil {
		metrics.RecordFetch(fetchResult(err))
		logger.Warn().Err(err).Msg("error fetching price")
		out.Err = err
		w.enter(&out, StateFetchFailed)
		return w.finish(out, start), true
	}
	metrics.RecordFetch("ok")
	logger.Info().Uint32("cents", uint32(price)).Msg("got price")
	out.Price = price
	w.enter(&out, StateFetched)

	w.enter(&out, StateSubmitting)
	hashes, err := w.submitter.Submit(ctx, head.Height, price)
	out.Submitted = hashes
	if err != nil {
		logger.Warn().Err(err).Msg("nothing submitted")
		out.Err = err
		w.enter(&out, StateNoAccountsAvailable)
		return w.finish(out, start), true
	}
	w.enter(&out, StateSubmitted)
	return w.finish(out, start), true
}

func (w *Worker) enter(out *Outcome, next State) {
	prev := out.Path[len(out.Path)-1]
	if !CanTransition(prev, next) {
		w.logger.Error().Str("from", prev.String()).Str("to", next.String()).Msg("invalid pipeline transition")
	}
	out.Path = append(out.Path, next)
	w.state.Store(int32(next))
}

func (w *Worker) finish(out Outcome, start time.Time) Outcome {
	terminal := out.Path[len(out.Path)-1]
	w.enter(&out, StateIdle)
	out.Duration = time.Since(start)
	metrics.RecordPipeline(pipelineResult(terminal, out.Err), out.Duration)
	return out
}

func pipelineResult(terminal State, err error) string {
	if errors.Is(err, ErrSubmissionFailed) {
		return "submit_failed"
	}
	return terminal.String()
}

func fetchResult(err error) string {
	switch {
	case errors.Is(err, ErrNetwork):
		return "network_error"
	case errors.Is(err, ErrProtocol):
		return "protocol_error"
	case errors.Is(err, ErrParse):
		return "parse_error"
	default:
		return "error"
	}
}
