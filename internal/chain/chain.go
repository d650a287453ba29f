// Package chain produces blocks by applying pooled transactions to the
// oracle runtime in order.
package chain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/rs/zerolog"

	"price-oracle/internal/events"
	"price-oracle/internal/metrics"
	"price-oracle/internal/runtime"
	"price-oracle/internal/storage"
	"price-oracle/internal/tx"
	"price-oracle/internal/txpool"
)

// Head identifies a finalized block.
type Head struct {
	Height     uint64
	Hash       common.Hash
	ParentHash common.Hash
}

// TxResult is the outcome of applying one transaction.
type TxResult struct {
	Hash common.Hash
	Err  error
}

// Block is a finalized block together with the state it produced.
type Block struct {
	Head
	Results    []TxResult
	Events     []runtime.Event
	Prices     []runtime.Sample
	Average    runtime.Sample
	HasAverage bool
	Time       time.Time
}

// Rejected counts transactions that failed to apply.
func (b Block) Rejected() int {
	n := 0
	for _, r := range b.Results {
		if r.Err != nil {
			n++
		}
	}
	return n
}

// Observer is notified after each block finalizes. It must not block.
type Observer func(head Head)

// Options parameterise the chain.
type Options struct {
	KeyType        tx.KeyType
	MaxTxsPerBlock int
}

// Chain owns the runtime state. Only ProduceBlock mutates it.
type Chain struct {
	opts     Options
	pool     *txpool.Pool
	verifier *tx.Verifier
	store    storage.BlockStore
	bus      *events.Bus
	logger   zerolog.Logger

	mu        sync.RWMutex
	samples   *runtime.SampleStore
	module    *runtime.Module
	head      Head
	observers []Observer

	// unsaved holds finalized blocks not yet written, oldest first.
	saveMu  sync.Mutex
	unsaved []pendingBlock
}

type pendingBlock struct {
	record storage.BlockRecord
	events []storage.PriceEvent
}

// New constructs a chain at genesis. store and bus are optional.
func New(opts Options, pool *txpool.Pool, store storage.BlockStore, bus *events.Bus, logger zerolog.Logger) *Chain {
	samples := runtime.NewSampleStore()
	return &Chain{
		opts:     opts,
		pool:     pool,
		verifier: tx.NewVerifier(opts.KeyType),
		store:    store,
		bus:      bus,
		logger:   logger.With().Str("component", "chain").Logger(),
		samples:  samples,
		module:   runtime.NewModule(samples, logger),
	}
}

// Subscribe registers an observer of finalized heads.
func (c *Chain) Subscribe(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, o)
}

// Restore loads the latest persisted block, if any.
func (c *Chain) Restore(ctx context.Context) error {
	if c.store == nil {
		return nil
	}

	rec, ok, err := c.store.LatestBlock(ctx)
	if err != nil {
		return fmt.Errorf("load latest block: %w", err)
	}
	if !ok {
		c.logger.Info().Msg("no persisted blocks; starting from genesis")
		return nil
	}

	prices := make([]runtime.Sample, len(rec.Prices))
	for i, p := range rec.Prices {
		prices[i] = runtime.Sample(p)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.samples.Restore(prices); err != nil {
		return err
	}
	c.head = Head{
		Height:     rec.Height,
		Hash:       common.HexToHash(rec.Hash),
		ParentHash: common.HexToHash(rec.ParentHash),
	}
	c.logger.Info().Uint64("height", rec.Height).Int("samples", len(prices)).Msg("restored chain state")
	return nil
}

// ProduceBlock drains the pool, applies each transaction in arrival order and
// finalizes the next block.
func (c *Chain) ProduceBlock(ctx context.Context) (Block, error) {
	c.mu.Lock()

	parent := c.head
	height := parent.Height + 1
	txs := c.pool.Drain(c.opts.MaxTxsPerBlock)

	var buf runtime.EventBuffer
	results := make([]TxResult, 0, len(txs))
	hashes := make([]common.Hash, 0, len(txs))
	for _, t := range txs {
		res := TxResult{Hash: t.Hash(), Err: c.apply(t, &buf)}
		if res.Err != nil {
			metrics.RecordDispatch("rejected")
			c.logger.Warn().Err(res.Err).Uint64("height", height).Str("tx", res.Hash.Hex()).Msg("transaction rejected")
		} else {
			metrics.RecordDispatch("applied")
		}
		results = append(results, res)
		hashes = append(hashes, res.Hash)
	}

	prices := c.samples.Prices()
	avg, hasAvg := c.samples.Average()
	head := Head{
		Height:     height,
		Hash:       blockHash(parent.Hash, height, hashes, prices),
		ParentHash: parent.Hash,
	}
	c.head = head
	observers := append([]Observer(nil), c.observers...)
	c.mu.Unlock()

	block := Block{
		Head:       head,
		Results:    results,
		Events:     buf.Events(),
		Prices:     prices,
		Average:    avg,
		HasAverage: hasAvg,
		Time:       time.Now().UTC(),
	}

	metrics.RecordBlock(height, len(prices), uint32(avg), hasAvg)
	c.logger.Info().
		Uint64("height", height).
		Str("hash", head.Hash.Hex()).
		Int("txs", len(txs)).
		Int("rejected", block.Rejected()).
		Int("samples", len(prices)).
		Msg("block finalized")

	var persistErr error
	if c.store != nil {
		if err := c.persist(ctx, block); err != nil {
			persistErr = fmt.Errorf("persist block %d: %w", height, err)
		}
	}

	c.publish(block)
	for _, o := range observers {
		o(head)
	}

	return block, persistErr
}

func (c *Chain) apply(t *tx.Transaction, sink runtime.EventSink) error {
	origin, call, err := c.verifier.Verify(t)
	if err != nil {
		if !errors.Is(err, runtime.ErrDispatchRejected) {
			err = runtime.ErrDispatchRejected.Wrap(err.Error())
		}
		return err
	}
	return c.module.Dispatch(origin, call, sink)
}

func (c *Chain) persist(ctx context.Context, b Block) error {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	c.unsaved = append(c.unsaved, toPending(b))
	for len(c.unsaved) > 0 {
		next := c.unsaved[0]
		if err := c.store.SaveBlock(ctx, next.record, next.events); err != nil {
			if len(c.unsaved) > 1 {
				c.logger.Warn().Int("unsaved", len(c.unsaved)).Uint64("from", next.record.Height).Msg("blocks waiting to be persisted")
			}
			return err
		}
		c.unsaved = c.unsaved[1:]
	}
	c.unsaved = nil
	return nil
}

// Unsaved reports how many finalized blocks have not reached the store.
func (c *Chain) Unsaved() int {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()
	return len(c.unsaved)
}

func toPending(b Block) pendingBlock {
	rec := storage.BlockRecord{
		Height:     b.Height,
		Hash:       b.Hash.Hex(),
		ParentHash: b.ParentHash.Hex(),
		TxCount:    len(b.Results),
		Rejected:   b.Rejected(),
		Prices:     make([]uint32, len(b.Prices)),
	}
	for i, p := range b.Prices {
		rec.Prices[i] = uint32(p)
	}
	if b.HasAverage {
		avg := uint32(b.Average)
		rec.Average = &avg
	}

	evs := make([]storage.PriceEvent, 0, len(b.Events))
	for i, ev := range b.Events {
		np, ok := ev.(runtime.EventNewPrice)
		if !ok {
			continue
		}
		evs = append(evs, storage.PriceEvent{
			Height: b.Height,
			Index:  i,
			Price:  uint32(np.Price),
			Origin: np.Who.Hex(),
		})
	}
	return pendingBlock{record: rec, events: evs}
}

func (c *Chain) publish(b Block) {
	if c.bus == nil {
		return
	}
	for i, ev := range b.Events {
		c.bus.Publish(events.Record{
			Height:    b.Height,
			BlockHash: b.Hash,
			Index:     i,
			Event:     ev,
			Time:      b.Time,
		})
	}
}

// Head returns the latest finalized head.
func (c *Chain) Head() Head {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.head
}

// Height returns the latest finalized height.
func (c *Chain) Height() uint64 {
	return c.Head().Height
}

// Prices returns the stored samples in slot order.
func (c *Chain) Prices() []runtime.Sample {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.module.Prices()
}

// Average returns the current average, if any sample exists.
func (c *Chain) Average() (runtime.Sample, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.module.Average()
}

// PendingTxs reports how many transactions await inclusion.
func (c *Chain) PendingTxs() int {
	return c.pool.Len()
}

type headerPayload struct {
	ParentHash common.Hash
	Height     uint64
	TxHashes   []common.Hash
	Prices     []runtime.Sample
}

func blockHash(parent common.Hash, height uint64, txs []common.Hash, prices []runtime.Sample) common.Hash {
	enc, _ := rlp.EncodeToBytes(&headerPayload{
		ParentHash: parent,
		Height:     height,
		TxHashes:   txs,
		Prices:     prices,
	})
	return crypto.Keccak256Hash(enc)
}
