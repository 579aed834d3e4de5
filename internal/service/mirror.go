package service

import (
	"context"
	"sync"
	"time"

	"github.com/billminder/billminder-go/internal/domain"
	"github.com/billminder/billminder-go/internal/infra/observability"
	"github.com/billminder/billminder-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

var mirrorTracer = otel.Tracer("service/mirror")

// Mirror pushes local mutations to the remote store without blocking
// the caller. Local state is the source of truth: pushes run on
// background goroutines capped by a semaphore, failures are logged and
// counted but never surfaced and never rolled back. There is no outbox;
// a dropped push stays dropped until the next mutation of the same row.
type Mirror struct {
	remote  port.RemoteStore
	sem     *semaphore.Weighted
	timeout time.Duration
	metrics *observability.Metrics
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NewMirror creates a mirror over remote. A nil remote produces a
// disabled mirror whose pushes are no-ops (local-only mode).
func NewMirror(remote port.RemoteStore, concurrency int64, timeout time.Duration, metrics *observability.Metrics, logger *zap.Logger) *Mirror {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Mirror{
		remote:  remote,
		sem:     semaphore.NewWeighted(concurrency),
		timeout: timeout,
		metrics: metrics,
		logger:  logger,
	}
}

// Enabled reports whether a remote store is configured.
func (m *Mirror) Enabled() bool {
	return m != nil && m.remote != nil
}

// PushBill mirrors one bill upsert.
func (m *Mirror) PushBill(bill domain.Bill) {
	m.push("upsert_bill", bill.ID, func(ctx context.Context) error {
		return m.remote.UpsertBill(ctx, &bill)
	})
}

// RemoveBill mirrors one bill deletion.
func (m *Mirror) RemoveBill(billID string) {
	m.push("delete_bill", billID, func(ctx context.Context) error {
		return m.remote.DeleteBill(ctx, billID)
	})
}

// PushProfile mirrors one profile upsert. Anonymous profiles are
// local-only and never leave the device.
func (m *Mirror) PushProfile(profile domain.UserProfile) {
	if profile.IsAnonymous {
		return
	}
	m.push("upsert_profile", profile.UID, func(ctx context.Context) error {
		return m.remote.UpsertProfile(ctx, &profile)
	})
}

func (m *Mirror) push(operation, id string, fn func(ctx context.Context) error) {
	if !m.Enabled() {
		return
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		// Detached from the request context: the caller has already
		// returned by the time this runs.
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()

		ctx, span := mirrorTracer.Start(ctx, "Mirror."+operation)
		defer span.End()

		if err := m.sem.Acquire(ctx, 1); err != nil {
			m.metrics.IncrSyncFailure(operation)
			m.logger.Warn("mirror push dropped, semaphore wait timed out",
				zap.String("operation", operation),
				zap.String("id", id),
				zap.Error(err),
			)
			return
		}
		defer m.sem.Release(1)

		if err := fn(ctx); err != nil {
			m.metrics.IncrSyncFailure(operation)
			m.logger.Warn("mirror push failed",
				zap.String("operation", operation),
				zap.String("id", id),
				zap.Error(err),
			)
			return
		}

		m.logger.Debug("mirror push OK",
			zap.String("operation", operation),
			zap.String("id", id),
		)
	}()
}

// Wait blocks until every in-flight push has finished. Used on
// shutdown and in tests.
func (m *Mirror) Wait() {
	m.wg.Wait()
}
