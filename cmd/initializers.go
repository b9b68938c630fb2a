package main

import (
	"context"
	"fmt"
	"net/http"

	"gridpool/app/handler"
	"gridpool/app/router"
	"gridpool/internal/service"
	"gridpool/pkg/autoscaler"
	"gridpool/pkg/capacity"
	"gridpool/pkg/cluster"
	"gridpool/pkg/config"
	"gridpool/pkg/logger"
	"gridpool/pkg/notification"
	asynqqueue "gridpool/pkg/queue/asynq"
	mysqlstore "gridpool/pkg/store/mysql"
	redisstore "gridpool/pkg/store/redis"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

// initConfig initializes configuration
func (app *Application) initConfig() error {
	if err := config.Init(); err != nil {
		return err
	}
	app.config = config.GlobalConfig
	return nil
}

// initLogger initializes logging
func (app *Application) initLogger() error {
	if err := logger.Init(); err != nil {
		return err
	}
	for _, note := range config.AppliedDefaults() {
		logger.InfoCtx(app.ctx, "config default applied: %s", note)
	}
	app.registerCleanup(func() {
		logger.Sync()
	})
	return nil
}

// initRedis initializes Redis when enabled. Without Redis the scaler runs in
// single-instance mode: no cycle lock, no persisted state, no queue.
func (app *Application) initRedis() error {
	if !app.config.Redis.Enabled {
		logger.InfoCtx(app.ctx, "Redis not enabled, running in single-instance mode")
		return nil
	}

	client, err := redisstore.NewRedisClient(app.config)
	if err != nil {
		return err
	}

	app.redisClient = client
	app.registerCleanup(func() {
		client.Close()
		logger.InfoCtx(app.ctx, "Redis connection has been closed")
	})

	return nil
}

// initMySQL initializes MySQL when enabled
func (app *Application) initMySQL() error {
	if !app.config.MySQL.Enabled {
		logger.WarnCtx(app.ctx, "MySQL not enabled, scale event history will not be persisted")
		return nil
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		app.config.MySQL.User,
		app.config.MySQL.Password,
		app.config.MySQL.Host,
		app.config.MySQL.Port,
		app.config.MySQL.Database,
	)

	repo, err := mysqlstore.NewRepository(dsn)
	if err != nil {
		return err
	}

	app.mysqlRepo = repo
	app.registerCleanup(func() {
		repo.Close()
		logger.InfoCtx(app.ctx, "MySQL connection has been closed")
	})

	return nil
}

// initClusterProvider creates the configured cluster manager binding
func (app *Application) initClusterProvider() error {
	provider, err := cluster.NewProvider(app.config)
	if err != nil {
		return err
	}

	app.clusterProvider = provider
	logger.InfoCtx(app.ctx, "cluster provider ready: %s", provider.Name())
	return nil
}

// initCapacity initializes the spot capacity advisor when enabled
func (app *Application) initCapacity() error {
	if !app.config.Capacity.Enabled {
		logger.InfoCtx(app.ctx, "Capacity advisor not enabled")
		return nil
	}

	ec2Client, region, err := createEC2Client(app.ctx, &app.config.Capacity)
	if err != nil {
		return fmt.Errorf("failed to create EC2 client: %w", err)
	}

	checker := capacity.NewAWSSpotChecker(ec2Client, region)
	app.advisor = capacity.NewAdvisor(checker, app.config.Capacity.Templates)
	logger.InfoCtx(app.ctx, "capacity advisor covering %d templates in %s",
		len(app.config.Capacity.Templates), region)

	return nil
}

// createEC2Client creates an AWS EC2 client
func createEC2Client(ctx context.Context, capCfg *config.CapacityConfig) (*ec2.Client, string, error) {
	var opts []func(*awsconfig.LoadOptions) error

	// If region is configured
	if capCfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(capCfg.Region))
	}

	// If AK/SK is configured, otherwise the default credential chain applies
	if capCfg.AccessKeyID != "" && capCfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(capCfg.AccessKeyID, capCfg.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, "", err
	}

	return ec2.NewFromConfig(cfg), cfg.Region, nil
}

// initQueue initializes the webhook notifier and its delivery queue
func (app *Application) initQueue() error {
	if app.config.Notifications.WebhookURL == "" {
		logger.InfoCtx(app.ctx, "notifications not configured, scale events will not be delivered")
		return nil
	}

	app.notifier = notification.NewWebhookNotifier()

	queueManager, err := asynqqueue.NewManager(app.config)
	if err != nil {
		return err
	}
	queueManager.RegisterHandler(asynqqueue.TypeScaleEventNotify, asynqqueue.NewScaleEventHandler(app.notifier))

	app.queueManager = queueManager
	app.registerCleanup(func() {
		queueManager.Close()
		logger.InfoCtx(app.ctx, "Queue client has been closed")
	})

	return nil
}

// initServices initializes service layer
func (app *Application) initServices() error {
	var scaleEventRepo *mysqlstore.ScaleEventRepository
	if app.mysqlRepo != nil {
		scaleEventRepo = app.mysqlRepo.ScaleEvent
	}
	app.historyService = service.NewHistoryService(scaleEventRepo)

	app.clusterService = service.NewClusterService(app.clusterProvider, app.config)

	return nil
}

// initScaler builds the executor and the control loop manager
func (app *Application) initScaler() error {
	executor := autoscaler.NewExecutor(app.clusterProvider, app.historyService, app.queueManager, app.config)

	var redisClient *redis.Client
	var stateRepo *redisstore.ScalerStateRepository
	if app.redisClient != nil {
		redisClient = app.redisClient.GetClient()
		stateRepo = redisstore.NewScalerStateRepository(redisClient)
	}

	app.scalerManager = autoscaler.NewManager(
		app.config,
		app.clusterProvider,
		executor,
		redisClient,
		stateRepo,
		app.advisor,
	)

	return nil
}

// initHandlers initializes handler layer
func (app *Application) initHandlers() error {
	app.scalerHandler = handler.NewScalerHandler(app.scalerManager, app.config)
	app.clusterHandler = handler.NewClusterHandler(app.clusterService)
	app.eventsHandler = handler.NewEventsHandler(app.historyService)

	if app.advisor != nil {
		app.capacityHandler = handler.NewCapacityHandler(app.advisor)
	}

	return nil
}

// initHTTPServer initializes HTTP server
func (app *Application) initHTTPServer() error {
	// Initialize router
	r := router.NewRouter(app.scalerHandler, app.clusterHandler, app.eventsHandler, app.capacityHandler)

	// Set Gin mode
	gin.SetMode(app.config.Server.Mode)

	// Create Gin engine
	app.ginEngine = gin.New()
	app.ginEngine.Use(gin.Recovery())

	// Setup routes
	r.Setup(app.ginEngine)

	// Create HTTP server
	app.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", app.config.Server.Port),
		Handler: app.ginEngine,
	}

	return nil
}
