package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	"github.com/digilearn/moodle-sync-api/internal/dto"
	"github.com/digilearn/moodle-sync-api/internal/models"
	"github.com/digilearn/moodle-sync-api/internal/observability"
	"github.com/digilearn/moodle-sync-api/internal/repository"
)

// ErrSyncInProgress indicates another invocation of the same pipeline still
// holds the run lock.
var ErrSyncInProgress = errors.New("sync already in progress")

const (
	lockKeyPrefix      = "moodle:sync:lock:"
	lastRunKeyPrefix   = "moodle:sync:last:"
	defaultLockTTL     = 30 * time.Minute
	lastRunCacheExpiry = 24 * time.Hour
	eventSubject       = "moodle.sync.completed"
)

// PipelineFunc is one sync pipeline invocation returning its counts.
type PipelineFunc func(ctx context.Context) (any, error)

// SyncRunner wraps pipeline invocations with a per-pipeline run lock, an
// audit row, metrics and a completion event. Pipeline errors are recorded
// and passed through unchanged.
type SyncRunner interface {
	Run(ctx context.Context, pipeline string, fn PipelineFunc) (dto.SyncRunResponse, any, error)
	RecentRuns(ctx context.Context, limit int) ([]dto.SyncRunResponse, error)
}

type syncRunner struct {
	runs    repository.SyncRunRepository
	redis   *redis.Client
	nats    *nats.Conn
	lockTTL time.Duration
	logger  zerolog.Logger
	tracer  trace.Tracer
	now     func() time.Time
}

// NewSyncRunner builds the run wrapper. redisClient and natsConn are
// optional; locking and event publishing are skipped when nil. A
// non-positive lockTTL falls back to the default.
func NewSyncRunner(runs repository.SyncRunRepository, redisClient *redis.Client, natsConn *nats.Conn, lockTTL time.Duration, logger zerolog.Logger) SyncRunner {
	if lockTTL <= 0 {
		lockTTL = defaultLockTTL
	}
	return &syncRunner{
		runs:    runs,
		redis:   redisClient,
		nats:    natsConn,
		lockTTL: lockTTL,
		logger:  logger.With().Str("component", "sync_runner").Logger(),
		tracer:  otel.Tracer("github.com/digilearn/moodle-sync-api/internal/service/runner"),
		now:     time.Now,
	}
}

type syncEvent struct {
	Pipeline   string    `json:"pipeline"`
	RunID      string    `json:"run_id"`
	Status     string    `json:"status"`
	FinishedAt time.Time `json:"finished_at"`
}

func (s *syncRunner) Run(ctx context.Context, pipeline string, fn PipelineFunc) (dto.SyncRunResponse, any, error) {
	release, err := s.acquireLock(ctx, pipeline)
	if err != nil {
		return dto.SyncRunResponse{}, nil, err
	}
	defer release()

	spanCtx, span := s.tracer.Start(ctx, "sync.run", trace.WithAttributes(
		attribute.String("sync.pipeline", pipeline),
	))
	defer span.End()

	run := models.SyncRun{
		RunID:     uuid.NewString(),
		Pipeline:  pipeline,
		Status:    models.SyncRunRunning,
		StartedAt: s.now(),
	}
	if err := s.runs.Create(spanCtx, &run); err != nil {
		return dto.SyncRunResponse{}, nil, err
	}
	span.SetAttributes(attribute.String("sync.run_id", run.RunID))

	result, runErr := fn(spanCtx)

	finished := s.now()
	run.FinishedAt = &finished
	if runErr != nil {
		run.Status = models.SyncRunFailed
		run.Error = runErr.Error()
	} else {
		run.Status = models.SyncRunSucceeded
		if payload, err := json.Marshal(result); err == nil {
			run.Result = datatypes.JSON(payload)
		}
	}
	if err := s.runs.Update(spanCtx, &run); err != nil {
		s.logger.Error().Err(err).Str("run_id", run.RunID).Msg("failed to finalize sync run record")
	}

	observability.SyncRuns().WithLabelValues(pipeline, run.Status).Inc()
	observability.SyncDuration().WithLabelValues(pipeline).Observe(finished.Sub(run.StartedAt).Seconds())

	s.publishEvent(run)
	s.cacheLastRun(run)

	s.logger.Info().
		Str("pipeline", pipeline).
		Str("run_id", run.RunID).
		Str("status", run.Status).
		Dur("elapsed", finished.Sub(run.StartedAt)).
		Msg("sync run finished")

	return toRunResponse(run), result, runErr
}

func (s *syncRunner) RecentRuns(ctx context.Context, limit int) ([]dto.SyncRunResponse, error) {
	runs, err := s.runs.ListRecent(ctx, limit)
	if err != nil {
		return nil, err
	}
	responses := make([]dto.SyncRunResponse, 0, len(runs))
	for _, run := range runs {
		responses = append(responses, toRunResponse(run))
	}
	return responses, nil
}

func (s *syncRunner) acquireLock(ctx context.Context, pipeline string) (func(), error) {
	if s.redis == nil {
		return func() {}, nil
	}

	key := lockKeyPrefix + pipeline
	ok, err := s.redis.SetNX(ctx, key, s.now().Format(time.RFC3339), s.lockTTL).Result()
	if err != nil {
		// A broken lock store must not block syncing entirely.
		s.logger.Warn().Err(err).Str("pipeline", pipeline).Msg("run lock unavailable, proceeding without it")
		return func() {}, nil
	}
	if !ok {
		return nil, ErrSyncInProgress
	}
	return func() {
		if err := s.redis.Del(context.Background(), key).Err(); err != nil {
			s.logger.Warn().Err(err).Str("pipeline", pipeline).Msg("failed to release run lock")
		}
	}, nil
}

func (s *syncRunner) publishEvent(run models.SyncRun) {
	if s.nats == nil {
		return
	}
	payload, err := json.Marshal(syncEvent{
		Pipeline:   run.Pipeline,
		RunID:      run.RunID,
		Status:     run.Status,
		FinishedAt: *run.FinishedAt,
	})
	if err != nil {
		return
	}
	if err := s.nats.Publish(eventSubject, payload); err != nil {
		s.logger.Warn().Err(err).Str("run_id", run.RunID).Msg("failed to publish sync event")
	}
}

// cacheLastRun keeps the most recent run per pipeline in redis so other
// services can read sync freshness without hitting the database.
func (s *syncRunner) cacheLastRun(run models.SyncRun) {
	if s.redis == nil {
		return
	}
	payload, err := json.Marshal(toRunResponse(run))
	if err != nil {
		return
	}
	key := lastRunKeyPrefix + run.Pipeline
	if err := s.redis.Set(context.Background(), key, payload, lastRunCacheExpiry).Err(); err != nil {
		s.logger.Warn().Err(err).Str("pipeline", run.Pipeline).Msg("failed to cache last run")
	}
}

func toRunResponse(run models.SyncRun) dto.SyncRunResponse {
	return dto.SyncRunResponse{
		RunID:      run.RunID,
		Pipeline:   run.Pipeline,
		Status:     run.Status,
		Result:     json.RawMessage(run.Result),
		Error:      run.Error,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
	}
}
