package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	insertBlockSQL = `INSERT INTO blocks (
        height,
        hash,
        parent_hash,
        tx_count,
        rejected,
        prices,
        average
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7
    )
    ON CONFLICT (height) DO UPDATE
    SET
        hash        = EXCLUDED.hash,
        parent_hash = EXCLUDED.parent_hash,
        tx_count    = EXCLUDED.tx_count,
        rejected    = EXCLUDED.rejected,
        prices      = EXCLUDED.prices,
        average     = EXCLUDED.average;`

	insertPriceEventSQL = `INSERT INTO price_events (
        height,
        idx,
        price,
        origin
    ) VALUES (
        $1,$2,$3,$4
    )
    ON CONFLICT (height, idx) DO NOTHING;`

	blockColumns = `height,
        hash,
        parent_hash,
        tx_count,
        rejected,
        prices,
        average,
        created_at`

	latestBlockSQL = `SELECT ` + blockColumns + `
    FROM blocks
    ORDER BY height DESC
    LIMIT 1;`

	listRecentBlocksSQL = `SELECT ` + blockColumns + `
    FROM blocks
    ORDER BY height DESC
    LIMIT $1;`

	listBlocksBetweenSQL = `SELECT ` + blockColumns + `
    FROM blocks
    WHERE created_at >= $1
      AND created_at < $2
    ORDER BY height;`

	listRecentEventsSQL = `SELECT
        height,
        idx,
        price,
        origin,
        created_at
    FROM price_events
    ORDER BY height DESC, idx DESC
    LIMIT $1;`

	listEventsThroughSQL = `SELECT
        height,
        idx,
        price,
        origin,
        created_at
    FROM price_events
    WHERE height <= $1
    ORDER BY height, idx;`

	countBlocksSQL = `SELECT COUNT(*) FROM blocks;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// BlockStore persists finalized blocks and their events.
type BlockStore interface {
	SaveBlock(ctx context.Context, block BlockRecord, events []PriceEvent) error
	LatestBlock(ctx context.Context) (BlockRecord, bool, error)
	ListRecentBlocks(ctx context.Context, limit int) ([]BlockRecord, error)
	ListBlocksBetween(ctx context.Context, from, to time.Time) ([]BlockRecord, error)
	CountBlocks(ctx context.Context) (int64, error)
}

// EventStore exposes persisted NewPrice events.
type EventStore interface {
	ListRecentEvents(ctx context.Context, limit int) ([]PriceEvent, error)
	ListEventsThrough(ctx context.Context, height uint64) ([]PriceEvent, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to blocks and events.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// SaveBlock writes the block snapshot and its events in one transaction.
func (s *Store) SaveBlock(ctx context.Context, block BlockRecord, events []PriceEvent) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	return pgx.BeginFunc(ctx, pool, func(dbTx pgx.Tx) error {
		var average interface{}
		if block.Average != nil {
			average = int64(*block.Average)
		}

		if _, err := dbTx.Exec(ctx, insertBlockSQL,
			int64(block.Height),
			block.Hash,
			block.ParentHash,
			block.TxCount,
			block.Rejected,
			toInt64s(block.Prices),
			average,
		); err != nil {
			return fmt.Errorf("insert block: %w", err)
		}

		for _, ev := range events {
			if _, err := dbTx.Exec(ctx, insertPriceEventSQL,
				int64(ev.Height),
				ev.Index,
				int64(ev.Price),
				ev.Origin,
			); err != nil {
				return fmt.Errorf("insert price event: %w", err)
			}
		}
		return nil
	})
}

// LatestBlock returns the highest persisted block. ok is false when no block
// has been stored yet.
func (s *Store) LatestBlock(ctx context.Context) (BlockRecord, bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return BlockRecord{}, false, err
	}

	rows, err := pool.Query(ctx, latestBlockSQL)
	if err != nil {
		return BlockRecord{}, false, fmt.Errorf("latest block: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return BlockRecord{}, false, rows.Err()
	}
	block, err := scanBlock(rows)
	if err != nil {
		return BlockRecord{}, false, err
	}
	return block, true, nil
}

// ListRecentBlocks lists the most recent blocks ordered by descending height.
func (s *Store) ListRecentBlocks(ctx context.Context, limit int) ([]BlockRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentBlocksSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent blocks: %w", queryErr)
	}
	return collectBlocks(rows, limit)
}

// ListBlocksBetween lists blocks finalized within a time window.
func (s *Store) ListBlocksBetween(ctx context.Context, from, to time.Time) ([]BlockRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listBlocksBetweenSQL, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list blocks between: %w", queryErr)
	}
	return collectBlocks(rows, 0)
}

// CountBlocks counts stored blocks.
func (s *Store) CountBlocks(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countBlocksSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count blocks: %w", scanErr)
	}
	return count, nil
}

// ListRecentEvents lists the most recent NewPrice events.
func (s *Store) ListRecentEvents(ctx context.Context, limit int) ([]PriceEvent, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentEventsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent events: %w", queryErr)
	}
	return collectEvents(rows, limit)
}

// ListEventsThrough lists every event up to and including height in the
// order they were applied.
func (s *Store) ListEventsThrough(ctx context.Context, height uint64) ([]PriceEvent, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listEventsThroughSQL, int64(height))
	if queryErr != nil {
		return nil, fmt.Errorf("list events through %d: %w", height, queryErr)
	}
	return collectEvents(rows, 0)
}

func collectEvents(rows pgx.Rows, capacity int) ([]PriceEvent, error) {
	defer rows.Close()

	events := make([]PriceEvent, 0, capacity)
	for rows.Next() {
		var (
			height int64
			price  int64
			ev     PriceEvent
		)
		if err := rows.Scan(&height, &ev.Index, &price, &ev.Origin, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.Height = uint64(height)
		ev.Price = uint32(price)
		events = append(events, ev)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return events, nil
}

func collectBlocks(rows pgx.Rows, capacity int) ([]BlockRecord, error) {
	defer rows.Close()

	blocks := make([]BlockRecord, 0, capacity)
	for rows.Next() {
		block, scanErr := scanBlock(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		blocks = append(blocks, block)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return blocks, nil
}

func scanBlock(rows pgx.Rows) (BlockRecord, error) {
	var (
		height    int64
		hash      string
		parent    string
		txCount   int
		rejected  int
		prices    []int64
		average   sql.NullInt64
		createdAt time.Time
	)

	if err := rows.Scan(
		&height,
		&hash,
		&parent,
		&txCount,
		&rejected,
		&prices,
		&average,
		&createdAt,
	); err != nil {
		return BlockRecord{}, err
	}

	block := BlockRecord{
		Height:     uint64(height),
		Hash:       hash,
		ParentHash: parent,
		TxCount:    txCount,
		Rejected:   rejected,
		Prices:     make([]uint32, len(prices)),
		CreatedAt:  createdAt,
	}
	for i, p := range prices {
		block.Prices[i] = uint32(p)
	}
	if average.Valid {
		value := uint32(average.Int64)
		block.Average = &value
	}

	return block, nil
}

func toInt64s(values []uint32) []int64 {
	out := make([]int64, len(values))
	for i, v := range values {
		out[i] = int64(v)
	}
	return out
}
