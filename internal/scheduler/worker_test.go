package scheduler

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"cotizador_backend/internal/catalog/cache"
	"cotizador_backend/internal/catalog/repository"
	"cotizador_backend/internal/catalog/service"
	"cotizador_backend/platform/logger"
)

type testConfig struct {
	redisURL string
	queue    string
}

func (c testConfig) GetRedisURL() string       { return c.redisURL }
func (c testConfig) GetRedisTLSInsecure() bool { return false }
func (c testConfig) GetAsynqQueueName() string { return c.queue }
func (c testConfig) GetAsynqConcurrency() int  { return 1 }

func TestEmbeddingsInvalidation_RoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig{redisURL: "redis://" + mr.Addr(), queue: "catalog"}
	log := logger.New("test")

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	orgID := uuid.MustParse("99999999-9999-9999-9999-999999999999")
	otherID := uuid.MustParse("aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa")
	scope := repository.Scope{OrganizationID: &orgID}
	otherScope := repository.Scope{OrganizationID: &otherID}
	mr.Set(cache.Key(scope), `{}`)
	mr.Set(cache.Key(otherScope), `{}`)

	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	payload := EmbeddingsInvalidatePayload{OrganizationID: orgID.String()}
	if err := client.ScheduleEmbeddingsInvalidation(context.Background(), payload); err != nil {
		t.Fatalf("schedule invalidation: %v", err)
	}

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: mr.Addr()})
	t.Cleanup(func() { _ = inspector.Close() })

	pending, err := inspector.ListPendingTasks(cfg.queue)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending task, got %d", len(pending))
	}
	if pending[0].Type != TaskEmbeddingsInvalidate {
		t.Fatalf("unexpected task type %q", pending[0].Type)
	}

	svc := service.New(nil, cache.New(rdb), log)
	worker, err := NewWorker(cfg, svc, log)
	if err != nil {
		t.Fatalf("new worker: %v", err)
	}

	task := asynq.NewTask(pending[0].Type, pending[0].Payload)
	if err := worker.handleEmbeddingsInvalidate(context.Background(), task); err != nil {
		t.Fatalf("handle invalidation: %v", err)
	}

	if mr.Exists(cache.Key(scope)) {
		t.Fatalf("expected snapshot %q to be deleted", cache.Key(scope))
	}
	if !mr.Exists(cache.Key(otherScope)) {
		t.Fatalf("other tenant's snapshot must survive")
	}
}

func TestHandleEmbeddingsInvalidate_RejectsBadPayload(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig{redisURL: "redis://" + mr.Addr(), queue: "catalog"}
	log := logger.New("test")

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	worker, err := NewWorker(cfg, service.New(nil, cache.New(rdb), log), log)
	if err != nil {
		t.Fatalf("new worker: %v", err)
	}

	task := asynq.NewTask(TaskEmbeddingsInvalidate, []byte(`{"organizationId": "not-a-uuid"}`))
	if err := worker.handleEmbeddingsInvalidate(context.Background(), task); err == nil {
		t.Fatalf("expected error for malformed payload")
	}
}
