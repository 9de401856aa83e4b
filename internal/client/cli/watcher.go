package cli

import (
	"context"
	"time"
)

// StartIdentityWatcher polls the stored identity every interval and lets the
// cart reconcile when it changed, so a token saved by another process is
// picked up without restarting. It returns when ctx is done.
func (a *App) StartIdentityWatcher(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := a.cart.IdentityChanged(ctx); err != nil {
				a.logger.Warn(ctx, "identity check", "err", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
