// Copyright (c) 2026 AegisLabs.
// Please see LICENSE for details.

package aegis

import (
	"sync"
	"time"

	"github.com/AegisLabs/aegis/global"
)

// DefaultRefreshMargin is how long before a token's expiry its rotation
// job fires.
const DefaultRefreshMargin = 5 * time.Minute

// rotationKind selects what a rotation job does when it fires.
type rotationKind int

const (
	// rotateAccess exchanges the refresh token for a new pair.
	rotateAccess rotationKind = iota
	// rotateFull performs a full re-login; the fallback for when the
	// refresh token itself is about to expire.
	rotateFull
)

func (k rotationKind) String() string {
	if k == rotateFull {
		return "full re-authentication"
	}
	return "token refresh"
}

// Scheduler drives credential rotation from a single background
// goroutine. It arms exactly two single-shot jobs, computed once from the
// session present at Start: a token refresh at the access token's expiry
// minus the margin, and a full re-authentication at the refresh token's
// expiry minus the margin.
//
// The schedule is deliberately not re-derived after a successful rotation:
// both fire times are fixed at startup. Callers that need rotation beyond
// the initial refresh-token lifetime construct a new client.
type Scheduler struct {
	rotate func(rotationKind)
	margin time.Duration
	logger global.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
}

func newScheduler(rotate func(rotationKind), margin time.Duration, logger global.Logger) *Scheduler {
	if margin <= 0 {
		margin = DefaultRefreshMargin
	}
	return &Scheduler{
		rotate: rotate,
		margin: margin,
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// Start computes both fire times from the session and launches the timer
// goroutine. Fire times already in the past fire immediately.
func (s *Scheduler) Start(session *Session) {
	refreshIn := time.Until(session.AccessExpiresAt.Add(-s.margin))
	reauthIn := time.Until(session.RefreshExpiresAt.Add(-s.margin))
	if refreshIn < 0 {
		refreshIn = 0
	}
	if reauthIn < 0 {
		reauthIn = 0
	}

	if s.logger != nil {
		s.logger.Infof("Token refresh scheduled in %s, full re-authentication in %s",
			refreshIn.Round(time.Second), reauthIn.Round(time.Second))
	}

	go s.run(refreshIn, reauthIn)
}

// run waits on both timers and invokes the rotation callback as each
// fires. Rotation executes on this goroutine, so at most one rotation is
// ever in flight.
func (s *Scheduler) run(refreshIn, reauthIn time.Duration) {
	refreshTimer := time.NewTimer(refreshIn)
	reauthTimer := time.NewTimer(reauthIn)
	defer refreshTimer.Stop()
	defer reauthTimer.Stop()

	for pending := 2; pending > 0; pending-- {
		select {
		case <-refreshTimer.C:
			s.fire(rotateAccess)
		case <-reauthTimer.C:
			s.fire(rotateFull)
		case <-s.stopCh:
			return
		}
	}
}

func (s *Scheduler) fire(kind rotationKind) {
	if s.logger != nil {
		s.logger.Infof("Rotation job fired: %s", kind)
	}
	s.rotate(kind)
}

// Stop cancels any pending jobs. Idempotent, and safe to call from the
// rotation callback itself: it signals the timer goroutine rather than
// waiting for it, so a fatal rotation can trigger a full shutdown without
// deadlocking. Exclusion between an in-flight rotation and shutdown is the
// client's rotation mutex's job, not the scheduler's.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
}
