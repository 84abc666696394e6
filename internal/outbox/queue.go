package outbox

import (
	"context"
	"sync"
	"time"

	"github.com/dimitrije/toolshare/internal/config"
	"github.com/dimitrije/toolshare/internal/metrics"
	"github.com/dimitrije/toolshare/pkg/logger"
	"github.com/hibiken/asynq"
)

const (
	queueName     = "default"
	maxRetry      = 3
	effectTimeout = 30 * time.Second
)

// Queue is a Dispatcher that owns resources.
type Queue interface {
	Dispatcher
	IsAsync() bool
	Close() error
}

// NewQueue returns a Redis-backed queue when enabled and reachable, otherwise
// a SyncQueue running effects on background goroutines.
func NewQueue(cfg *config.RedisConfig, registry *Registry, m *metrics.Metrics) Queue {
	if !cfg.Enabled {
		logger.Infof("[Outbox] Sync queue initialized (Redis disabled)")
		return NewSyncQueue(registry)
	}

	queue, err := NewAsyncQueue(cfg, m)
	if err != nil {
		logger.Warnf("[Outbox] Redis unavailable, falling back to sync mode: %v", err)
		return NewSyncQueue(registry)
	}

	logger.Infof("[Outbox] Async queue initialized with Redis at %s", cfg.Addr)
	return queue
}

func redisOpt(cfg *config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// AsyncQueue enqueues effects as asynq tasks processed by a Worker.
type AsyncQueue struct {
	client  *asynq.Client
	metrics *metrics.Metrics
}

func NewAsyncQueue(cfg *config.RedisConfig, m *metrics.Metrics) (*AsyncQueue, error) {
	opt := redisOpt(cfg)
	client := asynq.NewClient(opt)

	inspector := asynq.NewInspector(opt)
	defer inspector.Close()

	if _, err := inspector.Queues(); err != nil {
		client.Close()
		return nil, err
	}

	return &AsyncQueue{client: client, metrics: m}, nil
}

func (q *AsyncQueue) Dispatch(ctx context.Context, effects ...Effect) {
	for _, e := range effects {
		task := asynq.NewTask(e.Kind, e.Payload)
		info, err := q.client.EnqueueContext(ctx, task,
			asynq.Queue(queueName),
			asynq.MaxRetry(maxRetry),
			asynq.Timeout(effectTimeout),
		)
		if err != nil {
			logger.Error().Err(err).Str("kind", e.Kind).Msg("failed to enqueue effect")
			if q.metrics != nil {
				q.metrics.OutboxFailuresTotal.WithLabelValues(e.Kind).Inc()
			}
			continue
		}
		logger.Debug().Str("task_id", info.ID).Str("kind", e.Kind).Msg("effect enqueued")
	}
}

func (q *AsyncQueue) IsAsync() bool {
	return true
}

func (q *AsyncQueue) Close() error {
	return q.client.Close()
}

// SyncQueue runs each effect on its own goroutine, detached from the request.
type SyncQueue struct {
	registry *Registry
	wg       sync.WaitGroup
}

func NewSyncQueue(registry *Registry) *SyncQueue {
	return &SyncQueue{registry: registry}
}

func (q *SyncQueue) Dispatch(ctx context.Context, effects ...Effect) {
	for _, e := range effects {
		q.wg.Add(1)
		go func(e Effect) {
			defer q.wg.Done()
			runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), effectTimeout)
			defer cancel()
			_ = q.registry.Run(runCtx, e)
		}(e)
	}
}

// Wait blocks until every dispatched effect has finished.
func (q *SyncQueue) Wait() {
	q.wg.Wait()
}

func (q *SyncQueue) IsAsync() bool {
	return false
}

func (q *SyncQueue) Close() error {
	q.wg.Wait()
	return nil
}
