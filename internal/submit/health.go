package submit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"healthbench/internal/config"
)

// ErrUnreachable is returned by WaitReady when every health check failed.
var ErrUnreachable = errors.New("target unreachable")

// HealthChecker is implemented by transports that can tell whether the
// system behind them answers.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// WaitReady runs hc.CheckHealth up to cfg.Attempts times, cfg.Interval apart,
// and returns nil on the first success.
func WaitReady(ctx context.Context, hc HealthChecker, cfg config.HealthConfig, log *logrus.Entry) error {
	attempts := max(cfg.Attempts, 1)

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = hc.CheckHealth(ctx); err == nil {
			log.WithField("attempt", attempt).Info("target reachable")
			return nil
		}
		log.WithError(err).WithField("attempt", attempt).Warn("health check failed")
		if attempt == attempts {
			break
		}

		timer := time.NewTimer(cfg.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrUnreachable, attempts, err)
}
