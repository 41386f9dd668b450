// Package sweeper runs the reconciliation loop that keeps every
// computer's stored availability state consistent with time.
package sweeper

import (
	"context"
	"errors"
	"log"
	"time"

	"labreserve-backend/config"
	"labreserve-backend/internal/eventbus"
	"labreserve-backend/internal/store"
)

// Sweeper re-evaluates computer states per lab. Two trigger modes feed the
// same idempotent sweep logic: lab-scoped events published by the
// reservation lifecycle, and a fixed-interval periodic pass that catches
// reservation boundaries elapsing with no mutation event.
type Sweeper struct {
	cfg   *config.Config
	store store.Store
	bus   *eventbus.Bus
	now   func() time.Time
}

// New creates a sweeper. The bus may be nil, in which case only the
// periodic mode runs.
func New(cfg *config.Config, st store.Store, bus *eventbus.Bus) *Sweeper {
	return &Sweeper{
		cfg:   cfg,
		store: st,
		bus:   bus,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Run starts the reconciliation loop and blocks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	if !s.cfg.Sweeper.Enabled {
		log.Println("Sweeper is disabled. Not starting.")
		return
	}
	log.Println("Starting reconciliation sweeper...")

	s.SweepAll(ctx)

	timer := time.NewTimer(s.cfg.Sweeper.Interval)
	defer timer.Stop()

	var events <-chan eventbus.Event
	if s.bus != nil {
		events = s.bus.Events()
	}

	for {
		select {
		case <-ctx.Done():
			log.Println("Sweeper shutting down.")
			return
		case e := <-events:
			if _, err := s.SweepLab(ctx, e.LabID, s.now()); err != nil {
				// Leave the lab to the next periodic pass.
				log.Printf("Event-driven sweep of lab %d failed (event %s): %v", e.LabID, e.ID, err)
			}
		case <-timer.C:
			s.SweepAll(ctx)
			timer.Reset(s.cfg.Sweeper.Interval)
		}
	}
}

// SweepAll runs one reconciliation pass over every lab. Each lab is an
// independent unit: a failure is logged and retried on the next cycle,
// never aborting the rest of the pass.
func (s *Sweeper) SweepAll(ctx context.Context) {
	now := s.now()
	labIDs, err := s.store.ListLabIDs(ctx)
	if err != nil {
		log.Printf("Sweep aborted, failed to list labs: %v", err)
		return
	}

	changed := 0
	failed := 0
	for _, labID := range labIDs {
		n, err := s.SweepLab(ctx, labID, now)
		if err != nil {
			failed++
			log.Printf("Sweep of lab %d at %s failed: %v", labID, now.Format(time.RFC3339), err)
			continue
		}
		changed += n
	}
	if changed > 0 || failed > 0 {
		log.Printf("Sweep finished: %d labs, %d state changes, %d failures", len(labIDs), changed, failed)
	}
}

// SweepLab reconciles one lab against a consistent snapshot taken at now.
// A write that loses a race with an explicit session/maintenance action is
// retried once against a fresh snapshot; the explicit action always wins.
// Returns the number of computers whose state changed.
func (s *Sweeper) SweepLab(ctx context.Context, labID int64, now time.Time) (int, error) {
	changed, err := s.store.ReconcileLab(ctx, labID, now)
	if errors.Is(err, store.ErrStateConflict) {
		log.Printf("Sweep of lab %d hit a concurrent state change, retrying once", labID)
		changed, err = s.store.ReconcileLab(ctx, labID, now)
	}
	return changed, err
}
