package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"github.com/jitenkr2030/video-shiksha/config"
	"github.com/jitenkr2030/video-shiksha/models"
)

// StageHandler processes one delivered job id. A returned error triggers the
// queue's transport-level redelivery; application-level failures are written
// to the job ledger and return nil.
type StageHandler func(ctx context.Context, jobID string) error

// WorkQueue is the durable work queue abstraction: one at-least-once queue
// per stage type with visibility timeouts. The production implementation is
// Redis-backed asynq; tests use the channel dispatcher in memqueue.go.
type WorkQueue interface {
	Enqueue(ctx context.Context, stage, jobID string) error
	Subscribe(stage string, handler StageHandler)
	Run() error
	Close() error
}

const taskTypePrefix = "stage:"

type queuePayload struct {
	JobID string `json:"job_id"`
}

// stageQueueName maps a stage type to its asynq queue.
func stageQueueName(stage string) string {
	return strings.ToLower(stage)
}

// AsynqQueue is the production WorkQueue.
type AsynqQueue struct {
	client   *asynq.Client
	server   *asynq.Server
	mux      *asynq.ServeMux
	pipeline config.PipelineConfig
}

func NewAsynqQueue(redis config.Config, pipeline config.PipelineConfig) *AsynqQueue {
	opt := asynq.RedisClientOpt{
		Addr:     redis.Redis.Addr,
		Password: redis.Redis.Password,
	}
	concurrency := pipeline.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			stageQueueName(models.StageParse):    1,
			stageQueueName(models.StageScript):   2,
			stageQueueName(models.StageTTS):      2,
			stageQueueName(models.StageRender):   1,
			stageQueueName(models.StageSubtitle): 1,
		},
	})
	return &AsynqQueue{
		client:   asynq.NewClient(opt),
		server:   srv,
		mux:      asynq.NewServeMux(),
		pipeline: pipeline,
	}
}

func (q *AsynqQueue) Enqueue(ctx context.Context, stage, jobID string) error {
	payload, err := json.Marshal(queuePayload{JobID: jobID})
	if err != nil {
		return fmt.Errorf("marshal payload failed: %w", err)
	}
	task := asynq.NewTask(taskTypePrefix+stage, payload,
		asynq.Queue(stageQueueName(stage)),
		asynq.MaxRetry(3),
		// Transport timeout sits above the stage's own wall-clock limit so
		// the handler's timeout error wins.
		asynq.Timeout(q.pipeline.StageTimeout(stage)+time.Minute),
		asynq.Retention(24*time.Hour),
	)
	info, err := q.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("enqueue failed: %w", err)
	}
	log.Info().Str("stage", stage).Str("job_id", jobID).Str("queue_task_id", info.ID).Msg("job enqueued")
	return nil
}

func (q *AsynqQueue) Subscribe(stage string, handler StageHandler) {
	q.mux.HandleFunc(taskTypePrefix+stage, func(ctx context.Context, t *asynq.Task) error {
		var payload queuePayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("unmarshal payload failed: %v: %w", err, asynq.SkipRetry)
		}
		return handler(ctx, payload.JobID)
	})
}

func (q *AsynqQueue) Run() error {
	return q.server.Run(q.mux)
}

func (q *AsynqQueue) Close() error {
	q.server.Shutdown()
	return q.client.Close()
}
