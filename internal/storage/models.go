package storage

import (
	"time"
)

// BlockRecord is the persisted snapshot of a finalized block.
type BlockRecord struct {
	Height     uint64
	Hash       string
	ParentHash string
	TxCount    int
	Rejected   int
	Prices     []uint32
	Average    *uint32
	CreatedAt  time.Time
}

// PriceEvent is a persisted NewPrice event.
type PriceEvent struct {
	Height    uint64
	Index     int
	Price     uint32
	Origin    string
	CreatedAt time.Time
}
