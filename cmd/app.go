package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"gridpool/app/handler"
	"gridpool/internal/jobs"
	"gridpool/internal/service"
	"gridpool/pkg/autoscaler"
	"gridpool/pkg/capacity"
	"gridpool/pkg/config"
	"gridpool/pkg/interfaces"
	"gridpool/pkg/logger"
	"gridpool/pkg/notification"
	asynqqueue "gridpool/pkg/queue/asynq"
	mysqlstore "gridpool/pkg/store/mysql"
	redisstore "gridpool/pkg/store/redis"

	"github.com/gin-gonic/gin"
)

// Application manages the lifecycle of the entire application
type Application struct {
	// Infrastructure components
	config      *config.Config
	mysqlRepo   *mysqlstore.Repository
	redisClient *redisstore.RedisClient

	// Cluster manager binding
	clusterProvider interfaces.ClusterProvider

	// Notification pipeline
	notifier     *notification.WebhookNotifier
	queueManager *asynqqueue.Manager

	// Spot capacity advisor
	advisor *capacity.Advisor

	// Service layer
	historyService *service.HistoryService
	clusterService *service.ClusterService

	// Scaler
	scalerManager *autoscaler.Manager

	// Handler layer
	scalerHandler   *handler.ScalerHandler
	clusterHandler  *handler.ClusterHandler
	eventsHandler   *handler.EventsHandler
	capacityHandler *handler.CapacityHandler

	// HTTP server
	httpServer *http.Server
	ginEngine  *gin.Engine

	// Background tasks
	jobsManager *jobs.Manager

	// Context management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Background task cleanup functions
	cleanupFuncs []func()
}

// NewApplication creates a new Application instance
func NewApplication() *Application {
	ctx, cancel := context.WithCancel(context.Background())
	return &Application{
		ctx:          ctx,
		cancel:       cancel,
		cleanupFuncs: make([]func(), 0),
	}
}

// Initialize initializes all application components
func (app *Application) Initialize() error {
	var err error

	// Initialize components in order
	steps := []struct {
		name string
		fn   func() error
	}{
		{"Configuration", app.initConfig},
		{"Logging", app.initLogger},
		{"Redis", app.initRedis},
		{"MySQL", app.initMySQL},
		{"Cluster Provider", app.initClusterProvider},
		{"Capacity Advisor", app.initCapacity},
		{"Notification Queue", app.initQueue},
		{"Service Layer", app.initServices},
		{"Scaler", app.initScaler},
		{"Background Tasks", app.initJobs},
		{"Handler Layer", app.initHandlers},
		{"HTTP Server", app.initHTTPServer},
	}

	for _, step := range steps {
		logger.InfoCtx(app.ctx, "Initializing %s...", step.name)
		if err = step.fn(); err != nil {
			return fmt.Errorf("failed to initialize %s: %w", step.name, err)
		}
		logger.InfoCtx(app.ctx, "%s initialized successfully", step.name)
	}

	logger.InfoCtx(app.ctx, "Application initialization completed")
	return nil
}

// Start starts all application components
func (app *Application) Start() error {
	logger.InfoCtx(app.ctx, "Starting application components...")

	// 1. Start the notification delivery queue
	if app.queueManager != nil {
		if err := app.queueManager.Start(); err != nil {
			return fmt.Errorf("failed to start queue server: %w", err)
		}
		logger.InfoCtx(app.ctx, "Notification queue started")
	}

	// 2. Start background tasks
	if app.jobsManager != nil {
		logger.InfoCtx(app.ctx, "Starting background task manager")
		app.jobsManager.Start()
		app.wg.Add(1)
		go func() {
			defer app.wg.Done()
			app.jobsManager.Wait()
		}()
	}

	// 3. Start the scaling control loop
	if app.scalerManager != nil {
		if err := app.scalerManager.Start(app.ctx); err != nil {
			return fmt.Errorf("failed to start scaler: %w", err)
		}
		logger.InfoCtx(app.ctx, "Scaler control loop started")
	}

	// 4. Start HTTP server
	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		addr := fmt.Sprintf(":%d", app.config.Server.Port)
		logger.InfoCtx(app.ctx, "HTTP server listening on: %s", addr)
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.FatalCtx(app.ctx, "HTTP server error: %v", err)
		}
	}()

	logger.InfoCtx(app.ctx, "All components started successfully")
	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown(timeout time.Duration) error {
	logger.InfoCtx(app.ctx, "Starting graceful shutdown (timeout: %v)...", timeout)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// 1. Cancel all background tasks
	logger.InfoCtx(app.ctx, "Canceling background tasks...")
	app.cancel()
	if app.jobsManager != nil {
		app.jobsManager.Stop()
	}

	// 2. Stop the scaling control loop (no new cycles start)
	if app.scalerManager != nil {
		logger.InfoCtx(app.ctx, "Stopping scaler control loop...")
		if err := app.scalerManager.Stop(); err != nil {
			logger.WarnCtx(app.ctx, "Scaler stop: %v", err)
		}
	}

	// 3. Stop the notification queue (in-flight deliveries finish)
	if app.queueManager != nil {
		logger.InfoCtx(app.ctx, "Stopping notification queue...")
		app.queueManager.Stop()
	}

	// 4. Stop HTTP server (stop accepting new requests)
	logger.InfoCtx(app.ctx, "Shutting down HTTP server...")
	if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
		logger.ErrorCtx(app.ctx, "HTTP server shutdown error: %v", err)
	}

	// 5. Wait for all background tasks to complete
	logger.InfoCtx(app.ctx, "Waiting for background tasks to complete...")
	done := make(chan struct{})
	go func() {
		app.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.InfoCtx(app.ctx, "All background tasks completed")
	case <-shutdownCtx.Done():
		logger.WarnCtx(app.ctx, "Shutdown timeout, some tasks may not have completed")
	}

	// 6. Execute all cleanup functions (in reverse registration order)
	logger.InfoCtx(app.ctx, "Executing cleanup functions...")
	for i := len(app.cleanupFuncs) - 1; i >= 0; i-- {
		app.cleanupFuncs[i]()
	}

	// 7. Sync logs
	logger.Sync()

	logger.InfoCtx(app.ctx, "Graceful shutdown completed")
	return nil
}

// registerCleanup registers cleanup function
func (app *Application) registerCleanup(cleanup func()) {
	app.cleanupFuncs = append(app.cleanupFuncs, cleanup)
}
