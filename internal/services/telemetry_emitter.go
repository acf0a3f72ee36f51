package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/SAP-F-2025/submission-service/internal/events"
	"github.com/SAP-F-2025/submission-service/internal/metrics"
	"github.com/SAP-F-2025/submission-service/internal/models"
	"github.com/SAP-F-2025/submission-service/internal/repositories"
	"github.com/SAP-F-2025/submission-service/internal/xapi"
)

const (
	verbAnswered  = "answered"
	verbCompleted = "completed"

	defaultTelemetryQueueSize = 1024
	defaultTelemetryWorkers   = 2
	defaultSinkTimeout        = 10 * time.Second
)

// TelemetrySink delivers one xAPI statement somewhere.
type TelemetrySink interface {
	Emit(ctx context.Context, stmt xapi.Statement) error
}

type TelemetryEmitterConfig struct {
	QueueSize   int
	Workers     int
	SinkTimeout time.Duration
}

type telemetryJob struct {
	verb  string
	build func() xapi.Statement
}

// TelemetryEmitter hands statements to background workers through a bounded queue.
// Emit calls never block and never fail; a full or closed queue drops the statement.
type TelemetryEmitter struct {
	builder *xapi.Builder
	sinks   []TelemetrySink
	logger  *slog.Logger

	queue       chan telemetryJob
	workers     int
	sinkTimeout time.Duration

	mu        sync.RWMutex
	closed    bool
	startOnce sync.Once
	wg        sync.WaitGroup
}

func NewTelemetryEmitter(builder *xapi.Builder, logger *slog.Logger, config TelemetryEmitterConfig, sinks ...TelemetrySink) *TelemetryEmitter {
	if config.QueueSize <= 0 {
		config.QueueSize = defaultTelemetryQueueSize
	}
	if config.Workers <= 0 {
		config.Workers = defaultTelemetryWorkers
	}
	if config.SinkTimeout <= 0 {
		config.SinkTimeout = defaultSinkTimeout
	}

	return &TelemetryEmitter{
		builder:     builder,
		sinks:       sinks,
		logger:      logger,
		queue:       make(chan telemetryJob, config.QueueSize),
		workers:     config.Workers,
		sinkTimeout: config.SinkTimeout,
	}
}

// EmitAnswered queues the statement for one graded question.
func (e *TelemetryEmitter) EmitAnswered(user *models.User, question *models.Question, assessment *models.Assessment, userAnswer json.RawMessage, correct bool) {
	e.enqueue(telemetryJob{
		verb: verbAnswered,
		build: func() xapi.Statement {
			return e.builder.Answered(user, question, assessment, userAnswer, correct)
		},
	})
}

// EmitCompleted queues the statement for a finished submission.
func (e *TelemetryEmitter) EmitCompleted(user *models.User, assessment *models.Assessment, score, maxScore float64, passed bool) {
	e.enqueue(telemetryJob{
		verb: verbCompleted,
		build: func() xapi.Statement {
			return e.builder.Completed(user, assessment, score, maxScore, passed)
		},
	})
}

func (e *TelemetryEmitter) enqueue(job telemetryJob) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		metrics.TelemetryEventsTotal.WithLabelValues(job.verb, metrics.TelemetryDropped).Inc()
		return
	}

	select {
	case e.queue <- job:
	default:
		metrics.TelemetryEventsTotal.WithLabelValues(job.verb, metrics.TelemetryDropped).Inc()
		e.logger.Warn("Telemetry queue full, dropping statement", "verb", job.verb)
	}
}

// Start launches the workers. Calling it more than once has no effect.
func (e *TelemetryEmitter) Start() {
	e.startOnce.Do(func() {
		for i := 0; i < e.workers; i++ {
			e.wg.Add(1)
			go e.worker()
		}
		e.logger.Info("Telemetry emitter started", "workers", e.workers, "queue_size", cap(e.queue))
	})
}

// Shutdown stops accepting statements and waits for queued ones to drain or ctx to expire.
func (e *TelemetryEmitter) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	close(e.queue)
	e.mu.Unlock()

	// Workers that were never started cannot drain the queue
	e.Start()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("telemetry shutdown timed out with %d statements queued: %w", len(e.queue), ctx.Err())
	}
}

func (e *TelemetryEmitter) worker() {
	defer e.wg.Done()
	for job := range e.queue {
		e.process(job)
	}
}

func (e *TelemetryEmitter) process(job telemetryJob) {
	defer func() {
		if r := recover(); r != nil {
			metrics.TelemetryEventsTotal.WithLabelValues(job.verb, metrics.TelemetryFailed).Inc()
			e.logger.Error("Telemetry statement panicked", "verb", job.verb, "panic", r)
		}
	}()

	stmt := job.build()

	ctx, cancel := context.WithTimeout(context.Background(), e.sinkTimeout)
	defer cancel()

	status := metrics.TelemetryDelivered
	for _, sink := range e.sinks {
		if err := sink.Emit(ctx, stmt); err != nil {
			status = metrics.TelemetryFailed
			e.logger.Error("Failed to deliver telemetry statement",
				"verb", job.verb,
				"statement_id", stmt.ID,
				"user_id", stmt.UserID,
				"error", err)
		}
	}
	metrics.TelemetryEventsTotal.WithLabelValues(job.verb, status).Inc()
}

// StatementSink stores statements and streams them as events. Either side is optional.
// Statements that reach the stream are marked processed in the store.
type StatementSink struct {
	repo      repositories.Repository
	publisher events.EventPublisher
	topic     string
}

func NewStatementSink(repo repositories.Repository, publisher events.EventPublisher, topic string) *StatementSink {
	return &StatementSink{repo: repo, publisher: publisher, topic: topic}
}

func (s *StatementSink) Emit(ctx context.Context, stmt xapi.Statement) error {
	record, err := stmt.ToModel()
	if err != nil {
		return fmt.Errorf("failed to convert statement: %w", err)
	}
	if err := s.persist(ctx, record); err != nil {
		return err
	}
	return s.publish(ctx, record)
}

func (s *StatementSink) persist(ctx context.Context, record *models.XAPIStatement) error {
	if s.repo == nil {
		return nil
	}
	if err := s.repo.XAPIStatement().Create(ctx, nil, record); err != nil {
		return fmt.Errorf("failed to store statement: %w", err)
	}
	return nil
}

func (s *StatementSink) publish(ctx context.Context, record *models.XAPIStatement) error {
	if s.publisher == nil {
		return nil
	}
	event := events.NewEvent(events.XAPIStatementAdded, record.UserID, record)
	if err := s.publisher.Publish(ctx, s.topic, event); err != nil {
		return fmt.Errorf("failed to publish statement: %w", err)
	}

	if s.repo != nil {
		if err := s.repo.XAPIStatement().MarkProcessed(ctx, nil, []string{record.ID}); err != nil {
			return fmt.Errorf("failed to mark statement processed: %w", err)
		}
		record.Processed = true
	}
	return nil
}
