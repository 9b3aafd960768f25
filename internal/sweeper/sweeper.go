package sweeper

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fathima-sithara/teamchat-service/internal/store"
)

// Run flips stale presence rows to offline on a fixed interval. It is the
// backstop for ungraceful disconnects the connection registry never saw.
func Run(ctx context.Context, presence *store.PresenceStore, interval time.Duration, log *zap.SugaredLogger) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := presence.CleanupStalePresence(ctx)
			if err != nil {
				log.Warnw("stale presence sweep failed", "err", err)
				continue
			}
			if n > 0 {
				log.Infow("stale presence swept", "flipped", n)
			}
		}
	}
}
