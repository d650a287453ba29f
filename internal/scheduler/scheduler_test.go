package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNextSlotAligned(t *testing.T) {
	s := New(Options{Interval: time.Minute, AlignToSlot: true}, zerolog.Nop())
	now := time.Date(2024, 5, 1, 10, 30, 15, 0, time.UTC)

	if got, want := s.nextSlot(now), time.Date(2024, 5, 1, 10, 31, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
	boundary := time.Date(2024, 5, 1, 10, 31, 0, 0, time.UTC)
	if got := s.nextSlot(boundary); !got.Equal(boundary.Add(time.Minute)) {
		t.Fatalf("slot at boundary should advance, got %s", got)
	}
}

func TestNextSlotUnaligned(t *testing.T) {
	s := New(Options{Interval: 6 * time.Second}, zerolog.Nop())
	now := time.Date(2024, 5, 1, 10, 30, 15, 0, time.UTC)
	if got := s.nextSlot(now); !got.Equal(now.Add(6 * time.Second)) {
		t.Fatalf("unexpected slot %s", got)
	}
	if got := s.slotStart(now); !got.Equal(now) {
		t.Fatalf("unaligned slot start should be unchanged, got %s", got)
	}
}

func TestRunTicksUntilCancelled(t *testing.T) {
	s := New(Options{Interval: 10 * time.Millisecond}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	var ticks atomic.Int32
	err := s.Run(ctx, func(context.Context, time.Time) error {
		if ticks.Add(1) == 3 {
			cancel()
		}
		return errors.New("tick errors are logged, not fatal")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if ticks.Load() != 3 {
		t.Fatalf("expected 3 ticks, got %d", ticks.Load())
	}
}

func TestNewRejectsZeroInterval(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for zero interval")
		}
	}()
	New(Options{}, zerolog.Nop())
}
