package auth

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// refresher runs the background token-refresh loop of spec §4.4: it
// sleeps until token_expiry - 30min, then re-authenticates; on
// failure it retries after 5 minutes. Grounded on the teacher's
// worker-goroutine shape (ctx.Done() select + time.NewTimer) used
// throughout internal/hft and internal/architecture/fx/workerpool.
type refresher struct {
	auth   *Authenticator
	logger *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

const (
	refreshLeadTime  = 30 * time.Minute
	refreshRetryWait = 5 * time.Minute
)

// StartRefresh starts the background refresh loop if AutoRefresh is
// set on the authenticator's credentials. It is a no-op otherwise.
// Calling it twice without an intervening StopRefresh is a no-op.
func (a *Authenticator) StartRefresh(ctx context.Context) {
	if !a.creds.AutoRefresh || a.refresher != nil {
		return
	}
	rctx, cancel := context.WithCancel(ctx)
	r := &refresher{auth: a, logger: a.logger, cancel: cancel}
	a.refresher = r

	r.wg.Add(1)
	go r.loop(rctx)
}

// StopRefresh stops the background refresh loop and waits for it to
// exit (spec §4.4 "Refresh is stopped on teardown").
func (a *Authenticator) StopRefresh() {
	if a.refresher == nil {
		return
	}
	a.refresher.cancel()
	a.refresher.wg.Wait()
	a.refresher = nil
}

func (r *refresher) loop(ctx context.Context) {
	defer r.wg.Done()
	for {
		wait := time.Until(r.auth.creds.TokenExpiry.Add(-refreshLeadTime))
		if wait < 0 {
			wait = 0
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		err := r.auth.Authenticate(ctx)
		if err != nil {
			if r.logger != nil {
				r.logger.Warn("auth: token refresh failed, retrying later", zap.Error(err), zap.Duration("retry_after", refreshRetryWait))
			}
			retryTimer := time.NewTimer(refreshRetryWait)
			select {
			case <-ctx.Done():
				retryTimer.Stop()
				return
			case <-retryTimer.C:
			}
			continue
		}
	}
}
