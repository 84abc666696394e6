package outbox

import (
	"context"
	"fmt"

	"github.com/dimitrije/toolshare/internal/config"
	"github.com/dimitrije/toolshare/pkg/logger"
	"github.com/hibiken/asynq"
)

// Worker consumes effects enqueued by AsyncQueue.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

func NewWorker(cfg *config.RedisConfig, registry *Registry) *Worker {
	server := asynq.NewServer(redisOpt(cfg), asynq.Config{
		Concurrency: 5,
		Queues:      map[string]int{queueName: 1},
		Logger:      asynqLogger{},
		LogLevel:    asynq.WarnLevel,
	})

	return &Worker{server: server, mux: NewServeMux(registry)}
}

// NewServeMux routes every registered effect kind to the registry.
func NewServeMux(registry *Registry) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	for _, kind := range registry.Kinds() {
		mux.HandleFunc(kind, func(ctx context.Context, t *asynq.Task) error {
			return registry.Run(ctx, Effect{Kind: t.Type(), Payload: t.Payload()})
		})
	}
	return mux
}

func (w *Worker) Start() error {
	return w.server.Start(w.mux)
}

func (w *Worker) Shutdown() {
	w.server.Shutdown()
}

type asynqLogger struct{}

func (asynqLogger) Debug(args ...any) { logger.Debug().Msg(fmt.Sprint(args...)) }
func (asynqLogger) Info(args ...any)  { logger.Info().Msg(fmt.Sprint(args...)) }
func (asynqLogger) Warn(args ...any)  { logger.Warn().Msg(fmt.Sprint(args...)) }
func (asynqLogger) Error(args ...any) { logger.Error().Msg(fmt.Sprint(args...)) }
func (asynqLogger) Fatal(args ...any) { logger.Fatal().Msg(fmt.Sprint(args...)) }
