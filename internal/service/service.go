package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"price-oracle/internal/chain"
	"price-oracle/internal/scheduler"
	"price-oracle/internal/storage"
)

// BlockProducer finalizes the next block.
type BlockProducer interface {
	ProduceBlock(ctx context.Context) (chain.Block, error)
}

// Runner is a long-lived component that stops when its context ends.
type Runner interface {
	Run(ctx context.Context) error
}

// Options configure the node service.
type Options struct {
	AdvisoryLockKey int64
}

type component struct {
	name   string
	runner Runner
}

// Service produces a block every slot and supervises the components that
// react to finalized blocks.
type Service struct {
	opts       Options
	scheduler  *scheduler.Scheduler
	producer   BlockProducer
	locker     storage.AdvisoryLocker
	components []component
	logger     zerolog.Logger
}

// New constructs the node service. locker may be nil.
func New(opts Options, sched *scheduler.Scheduler, producer BlockProducer, locker storage.AdvisoryLocker, logger zerolog.Logger) *Service {
	return &Service{
		opts:      opts,
		scheduler: sched,
		producer:  producer,
		locker:    locker,
		logger:    logger.With().Str("component", "service").Logger(),
	}
}

// Attach registers a component started alongside block production.
func (s *Service) Attach(name string, r Runner) {
	s.components = append(s.components, component{name: name, runner: r})
}

// Run blocks until ctx is cancelled or a component fails.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	for _, c := range s.components {
		wg.Add(1)
		go func(c component) {
			defer wg.Done()
			err := c.runner.Run(ctx)
			if err == nil || errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Error().Err(err).Str("runner", c.name).Msg("component stopped")
			errOnce.Do(func() {
				firstErr = fmt.Errorf("%s: %w", c.name, err)
				cancel()
			})
		}(c)
	}

	err := s.scheduler.Run(ctx, s.ProduceBlock)
	cancel()
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	return err
}

// ProduceBlock finalizes one block for slot, unless another node holds the
// production lock.
func (s *Service) ProduceBlock(ctx context.Context, slot time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("slot", slot).Msg("skip slot because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	block, err := s.producer.ProduceBlock(ctx)
	if err != nil {
		// The block is final in memory even when persisting it failed.
		s.logger.Error().Err(err).Uint64("height", block.Height).Msg("block produced with errors")
		return nil
	}
	s.logger.Debug().Time("slot", slot).Uint64("height", block.Height).Msg("slot complete")
	return nil
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.opts.AdvisoryLockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.opts.AdvisoryLockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
