// Package workers holds the client's background loops.
package workers

import (
	"context"
	"time"

	"go.uber.org/zap"

	"habitSocialAPI/internal/apperr"
)

// Syncer is anything with a throttled background sync, such as the
// friends manager.
type Syncer interface {
	Sync(ctx context.Context) error
}

// StartFriendSyncWorker calls s.Sync every interval until ctx is done. The
// returned channel closes once the loop has exited.
func StartFriendSyncWorker(ctx context.Context, s Syncer, interval time.Duration, logger *zap.Logger) <-chan struct{} {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.Named("friend_sync")
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer ticker.Stop()
		log.Info("friend sync worker started", zap.Duration("interval", interval))
		for {
			select {
			case <-ctx.Done():
				log.Info("friend sync worker stopped")
				return
			case <-ticker.C:
				syncOnce(ctx, s, log)
			}
		}
	}()
	return done
}

func syncOnce(ctx context.Context, s Syncer, log *zap.Logger) {
	err := s.Sync(ctx)
	if err == nil {
		return
	}
	if apperr.KindOf(err) == apperr.KindAuth {
		log.Warn("friend sync unauthorized", zap.Error(err))
		return
	}
	log.Debug("friend sync failed", zap.Error(err))
}
