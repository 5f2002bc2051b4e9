package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/daaef/fainzy-cms/audit"
	"github.com/daaef/fainzy-cms/config"
	"github.com/daaef/fainzy-cms/controller"
	"github.com/daaef/fainzy-cms/dao"
	"github.com/daaef/fainzy-cms/db"
	logger "github.com/daaef/fainzy-cms/logging"
	"github.com/daaef/fainzy-cms/router"
	"github.com/daaef/fainzy-cms/service"
	"github.com/daaef/fainzy-cms/util"
)

func main() {
	// Initialize configuration
	if err := config.InitConfig(); err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}

	// Initialize logger
	logger.InitLogger(config.GetString("log.dir"))
	defer logger.Sync()

	// Initialize Neo4j
	if err := db.InitNeo4j(); err != nil {
		logger.Fatal("Failed to initialize Neo4j", zap.Error(err))
	}
	defer db.CloseNeo4j()

	// Initialize Redis
	if err := db.InitRedis(); err != nil {
		logger.Fatal("Failed to initialize Redis", zap.Error(err))
	}
	defer db.CloseRedis()

	// Audit entries live in Elasticsearch when a cluster is configured,
	// otherwise in process memory.
	var auditStore audit.Store
	if esURL := config.GetString("elasticsearch.url"); esURL != "" {
		esStore, err := audit.NewElasticsearchStore(esURL, config.GetString("audit.container"))
		if err != nil {
			logger.Fatal("Failed to initialize audit store", zap.Error(err))
		}
		auditStore = esStore
	} else {
		logger.Warn("No Elasticsearch URL configured, audit entries will not survive restarts")
		auditStore = audit.NewMemoryStore()
	}

	// Initialize EventBus carrying the deferred retention runs
	eventBus := util.NewEventBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eventBus.Start(ctx)

	// Initialize the capture orchestrator
	auditCfg := config.GetConfig().Audit
	trackedActions := make([]audit.Action, 0, len(auditCfg.TrackedActions))
	for _, action := range auditCfg.TrackedActions {
		trackedActions = append(trackedActions, audit.Action(action))
	}
	opts := audit.Options{
		Enabled:                 auditCfg.Enabled,
		Container:               auditCfg.Container,
		TrackedActions:          trackedActions,
		ExcludedFields:          auditCfg.ExcludedFields,
		ContainerExcludedFields: auditCfg.ContainerExcludedFields,
		ExcludedContainers:      auditCfg.ExcludedContainers,
		StatusField:             auditCfg.StatusField,
		PublishedValue:          auditCfg.PublishedValue,
		Retention: audit.Policy{
			WindowDays:  auditCfg.Retention.WindowDays,
			MinVersions: auditCfg.Retention.MinVersions,
			MaxDays:     auditCfg.Retention.MaxDays,
		},
		CleanupBatch: auditCfg.CleanupBatchSize,
	}

	recordDAO := dao.NewRecordDAO(db.Neo4jDriver)
	locker := db.NewRedisLocker(db.RedisClient)
	orchestrator := audit.NewOrchestrator(opts, auditStore, recordDAO, locker, eventBus)

	// Initialize services
	documentService := service.NewDocumentService(recordDAO, orchestrator)
	auditService := audit.NewService(auditStore)

	// Initialize controllers
	documentController := controller.NewDocumentController(documentService)
	auditController := controller.NewAuditController(auditService, orchestrator.Executor())

	engine := router.SetupRouter(documentController, auditController)

	// Set up the server
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", config.GetString("server.port")),
		Handler: engine,
	}

	// Start the server in a goroutine
	go func() {
		logger.Info("Starting server", zap.String("port", config.GetString("server.port")))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}
