package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/SAP-F-2025/submission-service/internal/cache"
	"github.com/SAP-F-2025/submission-service/internal/events"
	"github.com/SAP-F-2025/submission-service/internal/repositories"
	"github.com/SAP-F-2025/submission-service/internal/validator"
	"github.com/SAP-F-2025/submission-service/internal/xapi"
)

// ServiceManagerConfig holds configuration for the service manager
type ServiceManagerConfig struct {
	// Publisher receives submission events and streamed xAPI statements. Nil disables both.
	Publisher       events.EventPublisher
	StatementTopic  string
	SubmissionTopic string

	// Locker serializes re-grades. Nil falls back to an in-process locker.
	Locker         cache.Locker
	RegradeLockTTL time.Duration

	// XAPIBaseURL prefixes activity ids in generated statements
	XAPIBaseURL string
	Telemetry   TelemetryEmitterConfig
	// PersistStatements stores generated statements in the database in addition to streaming them
	PersistStatements bool
}

// serviceManager implements ServiceManager interface
type serviceManager struct {
	// Dependencies
	repo      repositories.Repository
	manager   repositories.RepositoryManager
	logger    *slog.Logger
	validator *validator.Validator
	config    ServiceManagerConfig

	// Service instances
	submissionService SubmissionService
	assessmentService AssessmentService
	xapiService       XAPIService
	telemetry         *TelemetryEmitter

	// Lifecycle management
	initialized bool
	shutdown    bool
	mu          sync.RWMutex
}

// NewServiceManager creates a new service manager with all dependencies.
// manager may be nil; it is shut down together with the services when set.
func NewServiceManager(repo repositories.Repository, manager repositories.RepositoryManager, logger *slog.Logger, validator *validator.Validator, config ServiceManagerConfig) ServiceManager {
	return &serviceManager{
		repo:      repo,
		manager:   manager,
		logger:    logger,
		validator: validator,
		config:    config,
	}
}

// Initialize sets up all services and their dependencies
func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}
	if sm.repo == nil {
		return fmt.Errorf("repository is required")
	}

	sm.logger.Info("Initializing service manager")

	locker := sm.config.Locker
	if locker == nil {
		locker = cache.NewLocalLocker()
	}

	var statementRepo repositories.Repository
	if sm.config.PersistStatements {
		statementRepo = sm.repo
	}
	sink := NewStatementSink(statementRepo, sm.config.Publisher, sm.config.StatementTopic)
	sm.telemetry = NewTelemetryEmitter(xapi.NewBuilder(sm.config.XAPIBaseURL), sm.logger, sm.config.Telemetry, sink)

	regrader := NewEssayRegrader(sm.repo, locker, sm.logger, EssayRegraderConfig{
		LockTTL:   sm.config.RegradeLockTTL,
		Publisher: sm.config.Publisher,
		Topic:     sm.config.SubmissionTopic,
	})

	sm.submissionService = NewSubmissionService(sm.repo, sm.logger, sm.validator, SubmissionDependencies{
		Telemetry: sm.telemetry,
		Regrader:  regrader,
		Publisher: sm.config.Publisher,
		Topic:     sm.config.SubmissionTopic,
	})
	sm.logger.Info("Submission service initialized")

	sm.assessmentService = NewAssessmentService(sm.repo, sm.logger, sm.validator)
	sm.logger.Info("Assessment service initialized")

	// Client statements are always stored, whatever PersistStatements says
	sm.xapiService = NewXAPIService(sm.repo, NewStatementSink(sm.repo, sm.config.Publisher, sm.config.StatementTopic), sm.logger, sm.validator)
	sm.logger.Info("xAPI service initialized")

	sm.telemetry.Start()

	sm.initialized = true
	sm.logger.Info("Service manager initialized successfully")
	return nil
}

// Service getters
func (sm *serviceManager) Submission() SubmissionService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.submissionService
}

func (sm *serviceManager) Assessment() AssessmentService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.assessmentService
}

func (sm *serviceManager) XAPI() XAPIService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.xapiService
}

// Health and lifecycle
func (sm *serviceManager) HealthCheck(ctx context.Context) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		return fmt.Errorf("service manager not initialized")
	}
	if sm.shutdown {
		return fmt.Errorf("service manager is shut down")
	}

	if err := sm.repo.Ping(ctx); err != nil {
		return fmt.Errorf("repository health check failed: %w", err)
	}
	return nil
}

// Shutdown drains telemetry first so queued statements can still reach the store and the broker.
func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown {
		return nil
	}

	sm.logger.Info("Shutting down service manager")

	var errs []error
	if sm.telemetry != nil {
		if err := sm.telemetry.Shutdown(ctx); err != nil {
			sm.logger.Error("Failed to drain telemetry", "error", err)
			errs = append(errs, err)
		}
	}

	if sm.config.Publisher != nil {
		if err := sm.config.Publisher.Close(); err != nil {
			sm.logger.Error("Failed to close event publisher", "error", err)
			errs = append(errs, err)
		}
	}

	if sm.manager != nil {
		if err := sm.manager.Shutdown(ctx); err != nil {
			sm.logger.Error("Failed to shutdown repository manager", "error", err)
			errs = append(errs, err)
		}
	}

	sm.shutdown = true
	sm.logger.Info("Service manager shut down completed")
	return errors.Join(errs...)
}
