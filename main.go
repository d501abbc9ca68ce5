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

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/hearthguard/sentinel/audit"
	"github.com/hearthguard/sentinel/config"
	"github.com/hearthguard/sentinel/controller"
	"github.com/hearthguard/sentinel/dao"
	"github.com/hearthguard/sentinel/db"
	"github.com/hearthguard/sentinel/ingest"
	logger "github.com/hearthguard/sentinel/logging"
	pdp_store "github.com/hearthguard/sentinel/pdp/store"
	"github.com/hearthguard/sentinel/risk"
	"github.com/hearthguard/sentinel/router"
	"github.com/hearthguard/sentinel/service"
	"github.com/hearthguard/sentinel/util"
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

	// Initialize EventBus
	eventBus := util.NewEventBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eventBus.Start(ctx)

	// Audit log: file-backed, with Elasticsearch archival when enabled
	auditRepos := []audit.Repository{}
	fileRepo, err := audit.NewFileRepository(config.GetString("audit.dir"))
	if err != nil {
		logger.Fatal("Failed to open audit log directory", zap.Error(err))
	}
	auditRepos = append(auditRepos, fileRepo)
	if config.GetBool("elasticsearch.enabled") {
		esRepo, esErr := audit.NewElasticsearchRepository(config.GetString("elasticsearch.url"))
		if esErr != nil {
			logger.Fatal("Failed to connect to Elasticsearch", zap.Error(esErr))
		}
		auditRepos = append(auditRepos, esRepo)
	}
	auditService := audit.NewLog(auditRepos...)
	if err := auditService.Reload(ctx); err != nil {
		logger.Fatal("Failed to reload audit chain state", zap.Error(err))
	}

	// Daily retention sweep: records past the retention window move to the
	// Elasticsearch archive. With no archive configured, everything stays in
	// the hot log.
	if config.GetBool("elasticsearch.enabled") {
		retention := time.Duration(config.GetInt("audit.retentionDays")) * 24 * time.Hour
		archive := auditRepos[len(auditRepos)-1]
		go func() {
			ticker := time.NewTicker(24 * time.Hour)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					moved, err := auditService.ArchiveExpired(ctx, time.Now().UTC().Add(-retention), archive)
					if err != nil {
						logger.Error("Audit retention sweep failed", zap.Error(err))
						continue
					}
					if moved > 0 {
						logger.Info("Archived expired audit records", zap.Int("records", moved))
					}
				}
			}
		}()
	}

	// Policy snapshot store, seeded from Neo4j
	store := pdp_store.NewStore()
	policyDAO := dao.NewPolicyDAO(db.Neo4jDriver)
	roles, policies, principals, err := policyDAO.LoadAll(ctx)
	if err != nil {
		logger.Fatal("Failed to load policy catalog", zap.Error(err))
	}
	if _, err := store.Load(roles, policies, principals); err != nil {
		logger.Fatal("Persisted policy catalog failed validation", zap.Error(err))
	}

	// Initialize services
	services := service.NewServices(service.Config{
		Pipeline: ingest.Config{
			QueueSize:          config.GetInt("pipeline.queueSize"),
			Workers:            config.GetInt("pipeline.workers"),
			SubmitTimeout:      config.GetDuration("pipeline.submitTimeout"),
			DropAlertThreshold: config.GetInt("pipeline.dropAlertThreshold"),
			DropAlertWindow:    config.GetDuration("pipeline.dropAlertWindow"),
		},
		Risk: risk.Config{
			BaseScores:         config.GetFloat64Map("risk.baseScores"),
			DefaultBaseScore:   config.GetFloat64("risk.defaultBaseScore"),
			Blacklist:          config.GetStringSlice("risk.blacklist"),
			Whitelist:          config.GetStringSlice("risk.whitelist"),
			WhitelistCeiling:   config.GetFloat64("risk.whitelistCeiling"),
			RepeatPenalty:      config.GetFloat64("risk.repeatPenalty"),
			DecayWindow:        config.GetDuration("risk.decayWindow"),
			AutoBlockThreshold: config.GetFloat64("risk.autoBlockThreshold"),
			EscalateThreshold:  config.GetFloat64("risk.escalateThreshold"),
		},
		CorrelationRules: service.DefaultCorrelationRules(
			config.GetInt("correlation.threshold"),
			config.GetDuration("correlation.window"),
		),
		OverrideWindow:    config.GetDuration("override.window"),
		OverrideThreshold: config.GetInt("override.escalateThreshold"),
	}, store, policyDAO, auditService, eventBus)

	services.Start(ctx)
	defer services.Stop()

	// Initialize controllers
	controllers := controller.NewControllers(services)

	gin.SetMode(gin.ReleaseMode)
	engine := router.SetupRouter(
		controllers,
		config.GetInt("ratelimit.requests"),
		config.GetDuration("ratelimit.duration"),
	)

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

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}
