package offchain

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"price-oracle/internal/metrics"
	"price-oracle/internal/runtime"
	"price-oracle/internal/tx"
)

// Accounts enumerates local signing accounts and signs with them.
type Accounts interface {
	tx.Signer
	Accounts() []common.Address
}

// Pool accepts signed transactions for later inclusion.
type Pool interface {
	Add(t *tx.Transaction) (common.Hash, error)
}

// PriceSubmitter turns a fetched price into pooled transactions.
type PriceSubmitter interface {
	Submit(ctx context.Context, height uint64, price runtime.Sample) ([]common.Hash, error)
}

// Submitter signs a SubmitPrice call with every local account and hands the
// results to the pool without waiting for inclusion.
type Submitter struct {
	keyType  tx.KeyType
	accounts Accounts
	pool     Pool
	logger   zerolog.Logger
}

// NewSubmitter constructs a submitter for keys of keyType.
func NewSubmitter(keyType tx.KeyType, accounts Accounts, pool Pool, logger zerolog.Logger) *Submitter {
	return &Submitter{
		keyType:  keyType,
		accounts: accounts,
		pool:     pool,
		logger:   logger.With().Str("component", "submitter").Logger(),
	}
}

// Submit returns the hashes of transactions the pool accepted. It fails with
// ErrNoSignerAvailable when there is no local account and with
// ErrSubmissionFailed when every account failed; failures for individual
// accounts are otherwise logged and skipped.
func (s *Submitter) Submit(ctx context.Context, height uint64, price runtime.Sample) ([]common.Hash, error) {
	var signers []common.Address
	if s.accounts != nil {
		signers = s.accounts.Accounts()
	}
	if len(signers) == 0 {
		s.logger.Error().Uint64("height", height).Msg("no local signer available")
		metrics.RecordSubmission("no_signer")
		return nil, ErrNoSignerAvailable
	}

	sent := make([]common.Hash, 0, len(signers))
	for _, signer := range signers {
		if ctx.Err() != nil {
			break
		}

		hash, err := s.submitAs(height, price, signer)
		if err != nil {
			metrics.RecordSubmission("failed")
			s.logger.Warn().Err(err).Str("signer", signer.Hex()).Uint64("height", height).Msg("submission failed")
			continue
		}
		metrics.RecordSubmission("sent")
		sent = append(sent, hash)
	}

	if len(sent) == 0 {
		s.logger.Error().Uint64("height", height).Int("accounts", len(signers)).Msg("no account could submit")
		return nil, fmt.Errorf("%w: %d accounts tried", ErrSubmissionFailed, len(signers))
	}
	s.logger.Info().Uint64("height", height).Uint32("price", uint32(price)).Int("sent", len(sent)).Msg("sent transactions")
	return sent, nil
}

func (s *Submitter) submitAs(height uint64, price runtime.Sample, signer common.Address) (common.Hash, error) {
	t, err := tx.New(s.keyType, height, runtime.SubmitPrice{Price: price}, signer)
	if err != nil {
		return common.Hash{}, err
	}
	if err := t.Sign(s.accounts); err != nil {
		return common.Hash{}, err
	}
	return s.pool.Add(t)
}

var _ PriceSubmitter = (*Submitter)(nil)
