package scheduler

import (
	"context"
	"fmt"

	"cotizador_backend/internal/catalog/repository"
	"cotizador_backend/internal/catalog/service"
	"cotizador_backend/platform/config"
	"cotizador_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	catalog *service.Service
	log     *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, catalog *service.Service, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:  server,
		mux:     mux,
		catalog: catalog,
		log:     log,
	}

	mux.HandleFunc(TaskEmbeddingsInvalidate, w.handleEmbeddingsInvalidate)

	return w, nil
}

func (w *Worker) handleEmbeddingsInvalidate(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseEmbeddingsInvalidatePayload(task)
	if err != nil {
		return err
	}

	scope, err := scopeFromPayload(payload)
	if err != nil {
		return err
	}

	return w.catalog.InvalidateEmbeddings(ctx, scope)
}

func scopeFromPayload(payload EmbeddingsInvalidatePayload) (repository.Scope, error) {
	var scope repository.Scope
	if payload.OrganizationID != "" {
		id, err := uuid.Parse(payload.OrganizationID)
		if err != nil {
			return repository.Scope{}, fmt.Errorf("parse organization id: %w", err)
		}
		scope.OrganizationID = &id
	}
	if payload.UserID != "" {
		id, err := uuid.Parse(payload.UserID)
		if err != nil {
			return repository.Scope{}, fmt.Errorf("parse user id: %w", err)
		}
		scope.UserID = &id
	}
	if err := scope.Validate(); err != nil {
		return repository.Scope{}, err
	}
	return scope, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
