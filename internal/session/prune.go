package session

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// RunPruner deletes expired sessions every interval until ctx is done.
func RunPruner(ctx context.Context, store Store, interval time.Duration, logger logrus.FieldLogger) {
	log := logger.WithField("service", "session_prune")
	log.WithField("interval", interval).Info("starting")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("shutting_down")
			return
		case <-ticker.C:
			n, err := store.DeleteExpired(ctx)
			if err != nil {
				log.WithError(err).Warn("prune failed")
				continue
			}
			if n > 0 {
				log.WithField("deleted", n).Info("pruned expired sessions")
			}
		}
	}
}
