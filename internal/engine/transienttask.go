package engine

import (
	"context"
	"time"

	"github.com/raipay/chronik-sub000/internal/primitives"
)

// defaultTransientPollInterval is how long the background catchup task
// sleeps after finding itself within 10 of the index tip (spec §4.11: "if
// U+10 > T, sleep/exit").
const defaultTransientPollInterval = 5 * time.Second

// RunTransientCatchup drives spec §4.11's background task until ctx is
// cancelled: compute one block's transient record at a time while at
// least 10 blocks behind the index tip, otherwise sleep. It only ever takes
// e.mu's read lane — the live writer's write lane during connectBlock is
// what makes the two writers mutually exclusive, not an explicit handoff.
func (e *Engine) RunTransientCatchup(ctx context.Context) error {
	for {
		wrote, err := e.transientCatchupStep()
		if err != nil {
			return err
		}
		if wrote {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(defaultTransientPollInterval):
		}
	}
}

// transientCatchupStep computes and commits exactly one block's transient
// record if the transient tip is at least 10 blocks behind the index tip;
// it reports wrote == false when there's nothing to do right now.
func (e *Engine) transientCatchupStep() (wrote bool, err error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	tipHeight, err := e.blocks.Height()
	if err != nil {
		return false, err
	}
	tTip, err := e.transient.Tip()
	if err != nil {
		return false, err
	}
	if int64(tTip)+10 > int64(tipHeight) {
		return false, nil
	}

	next := tTip + 1
	if tTip == primitives.NoTip {
		next = 0
	}
	if err := e.writeTransientRecord(next); err != nil {
		return false, err
	}
	return true, nil
}
