// Package txpool queues signed transactions until a block includes them.
package txpool

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"price-oracle/internal/tx"
)

var (
	// ErrPoolFull indicates the pool reached its configured capacity.
	ErrPoolFull = errors.New("txpool: pool is full")
	// ErrAlreadyKnown indicates the transaction is already pending.
	ErrAlreadyKnown = errors.New("txpool: transaction already known")
)

// DefaultMaxSize is used when no capacity is configured.
const DefaultMaxSize = 1024

// Pool is a FIFO of pending transactions. Admission does not check
// signatures; that happens when a block applies the transaction.
type Pool struct {
	maxSize int
	logger  zerolog.Logger

	mu      sync.Mutex
	pending []*tx.Transaction
	known   map[common.Hash]struct{}
}

// New constructs a pool holding at most maxSize transactions.
func New(maxSize int, logger zerolog.Logger) *Pool {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Pool{
		maxSize: maxSize,
		logger:  logger.With().Str("component", "txpool").Logger(),
		known:   make(map[common.Hash]struct{}),
	}
}

// Add queues t for inclusion and returns its hash.
func (p *Pool) Add(t *tx.Transaction) (common.Hash, error) {
	if t == nil {
		return common.Hash{}, fmt.Errorf("%w: nil transaction", tx.ErrInvalidParameter)
	}
	hash := t.Hash()

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.known[hash]; ok {
		return hash, ErrAlreadyKnown
	}
	if len(p.pending) >= p.maxSize {
		return hash, ErrPoolFull
	}

	p.pending = append(p.pending, t)
	p.known[hash] = struct{}{}
	p.logger.Debug().Str("hash", hash.Hex()).Str("signer", t.Signer.Hex()).Int("pending", len(p.pending)).Msg("transaction queued")
	return hash, nil
}

// Drain removes and returns up to max pending transactions in arrival order.
// max <= 0 drains everything.
func (p *Pool) Drain(max int) []*tx.Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.pending)
	if max > 0 && max < n {
		n = max
	}

	out := make([]*tx.Transaction, n)
	copy(out, p.pending[:n])
	p.pending = append(p.pending[:0:0], p.pending[n:]...)
	for _, t := range out {
		delete(p.known, t.Hash())
	}
	return out
}

// Len reports the number of pending transactions.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}
