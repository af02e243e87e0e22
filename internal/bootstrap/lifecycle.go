package bootstrap

import (
	"context"
	"net/http"
	"sync"
	"time"

	chclient "strategist/internal/adapters/clickhouse"
	"strategist/internal/adapters/kafka"
	pgclient "strategist/internal/adapters/postgres"
	redisclient "strategist/internal/adapters/redis"
	"strategist/pkg/errors"
	"strategist/pkg/logger"
)

// Lifecycle manages graceful shutdown of components
type Lifecycle struct {
	shutdownTimeout time.Duration
}

// NewLifecycle creates a new lifecycle manager
func NewLifecycle() *Lifecycle {
	return &Lifecycle{
		shutdownTimeout: 30 * time.Second,
	}
}

// Shutdown performs coordinated cleanup in order:
// 1. Metrics endpoint stops accepting scrapes
// 2. Background goroutines (janitor, metrics server) finish
// 3. Kafka producer flushes pending audit events
// 4. Error tracker and logs are flushed
// 5. Database connections close last
func (l *Lifecycle) Shutdown(
	wg *sync.WaitGroup,
	metricsServer *http.Server,
	kafkaProducer *kafka.Producer,
	pgClient *pgclient.Client,
	chClient *chclient.Client,
	redisClient *redisclient.Client,
	errorTracker errors.Tracker,
	log *logger.Logger,
) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), l.shutdownTimeout)
	defer shutdownCancel()

	log.Info("[1/5] Stopping metrics endpoint...")
	if metricsServer != nil {
		httpCtx, httpCancel := context.WithTimeout(shutdownCtx, 5*time.Second)
		if err := metricsServer.Shutdown(httpCtx); err != nil {
			log.Errorw("Metrics server shutdown failed", "error", err)
		} else {
			log.Info("✓ Metrics endpoint stopped")
		}
		httpCancel()
	}

	log.Info("[2/5] Waiting for background goroutines...")
	l.waitForGoroutines(wg, 5*time.Second, log)

	log.Info("[3/5] Closing Kafka producer...")
	if kafkaProducer != nil {
		if err := kafkaProducer.Close(); err != nil {
			log.Errorw("Kafka producer close failed", "error", err)
		} else {
			log.Info("✓ Kafka producer closed")
		}
	}

	log.Info("[4/5] Flushing error tracker and logs...")
	l.flushErrorTracker(shutdownCtx, errorTracker, log)
	if err := logger.Sync(); err != nil {
		log.Debugw("Log sync completed with warnings", "error", err)
	}

	log.Info("[5/5] Closing database connections...")
	l.closeDatabases(pgClient, chClient, redisClient, log)

	log.Info("✅ Graceful shutdown complete")
}

// waitForGoroutines waits for all goroutines with a timeout
func (l *Lifecycle) waitForGoroutines(wg *sync.WaitGroup, timeout time.Duration, log *logger.Logger) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("✓ All goroutines finished")
	case <-time.After(timeout):
		log.Warnw("⚠ Some goroutines did not finish within timeout", "timeout", timeout)
	}
}

func (l *Lifecycle) flushErrorTracker(ctx context.Context, tracker errors.Tracker, log *logger.Logger) {
	if tracker == nil {
		return
	}

	flushCtx, flushCancel := context.WithTimeout(ctx, 3*time.Second)
	defer flushCancel()

	if err := tracker.Flush(flushCtx); err != nil {
		log.Errorw("Error tracker flush failed", "error", err)
	}
}

// closeDatabases closes whichever connections were opened
func (l *Lifecycle) closeDatabases(
	pgClient *pgclient.Client,
	chClient *chclient.Client,
	redisClient *redisclient.Client,
	log *logger.Logger,
) {
	var dbErrors errors.MultiError

	if pgClient != nil {
		if err := pgClient.Close(); err != nil {
			dbErrors.Add(errors.Wrap(err, "postgres"))
		}
	}

	if chClient != nil {
		if err := chClient.Close(); err != nil {
			dbErrors.Add(errors.Wrap(err, "clickhouse"))
		}
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			dbErrors.Add(errors.Wrap(err, "redis"))
		}
	}

	if err := dbErrors.ToError(); err != nil {
		log.Errorw("Database close errors", "error", err)
	} else {
		log.Info("✓ Database connections closed")
	}
}
