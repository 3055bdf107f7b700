package janus

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Destroyer is the part of the media service the reconciler needs.
type Destroyer interface {
	DestroyRoom(ctx context.Context, roomID string) error
}

// Reconciler retries destroys for orphaned rooms until they succeed or
// MaxAttempts is reached.
type Reconciler struct {
	Ledger      Ledger
	Media       Destroyer
	Interval    time.Duration
	MaxAttempts int
}

func (r *Reconciler) Run(ctx context.Context) {
	interval := r.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep makes one pass over the ledger and returns how many rooms were
// cleared.
func (r *Reconciler) Sweep(ctx context.Context) int {
	orphans, err := r.Ledger.List(ctx)
	if err != nil {
		log.Error().Err(err).Str("module", "janus.reconciler").Msg("list orphans")
		return 0
	}
	cleared := 0
	for _, o := range orphans {
		if ctx.Err() != nil {
			break
		}
		if r.MaxAttempts > 0 && o.Attempts >= r.MaxAttempts {
			continue
		}
		if err := r.Media.DestroyRoom(ctx, o.RoomID); err != nil {
			log.Warn().Err(err).Str("module", "janus.reconciler").Str("room", o.RoomID).Int("attempts", o.Attempts+1).Msg("destroy retry failed")
			if err := r.Ledger.Attempted(ctx, o.RoomID); err != nil {
				log.Error().Err(err).Str("module", "janus.reconciler").Str("room", o.RoomID).Msg("bump attempts")
			}
			continue
		}
		if err := r.Ledger.Remove(ctx, o.RoomID); err != nil {
			log.Error().Err(err).Str("module", "janus.reconciler").Str("room", o.RoomID).Msg("remove orphan")
			continue
		}
		cleared++
		log.Info().Str("module", "janus.reconciler").Str("room", o.RoomID).Msg("orphan destroyed")
	}
	return cleared
}
