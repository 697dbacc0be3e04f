package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/campusalert/internal/api"
	"github.com/charlesng35/campusalert/internal/app"
	"github.com/charlesng35/campusalert/internal/app/maintenance"
	"github.com/charlesng35/campusalert/internal/classifier"
	"github.com/charlesng35/campusalert/internal/database"
	"github.com/charlesng35/campusalert/internal/delivery"
	"github.com/charlesng35/campusalert/internal/dispatch"
	"github.com/charlesng35/campusalert/internal/middleware"
	"github.com/charlesng35/campusalert/internal/monitoring"
	"github.com/charlesng35/campusalert/internal/monitoring/checks"
	"github.com/charlesng35/campusalert/internal/realtime"
	"github.com/charlesng35/campusalert/internal/services"
	"github.com/charlesng35/campusalert/pkg/logger"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB        *gorm.DB
	Hub       *realtime.Hub
	Gateway   delivery.Gateway
	Engine    *dispatch.Engine
	Scheduler *maintenance.Scheduler
	Router    *gin.Engine
}

// bootstrapRuntime opens the database, builds the dispatch engine and its
// delivery gateway, starts the maintenance jobs and assembles the HTTP router.
func bootstrapRuntime(cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	// enable gin debug mod
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	clock := clockwork.NewRealClock()

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	stack.Hub = realtime.NewHub(logger.WithModule("realtime"))

	stack.Gateway, err = delivery.New(cfg.Delivery.Options(), stack.Hub)
	if err != nil {
		return nil, fmt.Errorf("initialise delivery gateway: %w", err)
	}
	log.Info("delivery gateway ready", zap.String("driver", cfg.Delivery.Driver))

	engineCfg, err := cfg.Dispatch.EngineConfig(clock, logger.WithModule("dispatch"))
	if err != nil {
		return nil, fmt.Errorf("dispatch config: %w", err)
	}
	stack.Engine, err = dispatch.NewEngine(stack.Gateway, engineCfg)
	if err != nil {
		return nil, fmt.Errorf("initialise dispatch engine: %w", err)
	}

	classifierCfg, err := cfg.Classifier.ClassifierOptions(clock)
	if err != nil {
		return nil, fmt.Errorf("classifier config: %w", err)
	}

	warningSvc, err := services.NewWarningService(stack.DB, stack.Engine, logger.WithModule("warnings"))
	if err != nil {
		return nil, fmt.Errorf("initialise warning service: %w", err)
	}
	profileSvc, err := services.NewProfileService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise profile service: %w", err)
	}
	relevanceSvc, err := services.NewRelevanceService(warningSvc, profileSvc, classifier.New(classifierCfg), services.RelevanceOptions{
		MinScore: cfg.Classifier.MinScore,
		Lookback: cfg.Classifier.Lookback,
		Clock:    clock,
	})
	if err != nil {
		return nil, fmt.Errorf("initialise relevance service: %w", err)
	}

	health := monitoring.NewHealthManager()
	health.RegisterLiveness(checks.Realtime(stack.Hub, cfg.Delivery.Stream))
	health.RegisterReadiness(checks.Database(stack.DB, 0))
	health.RegisterReadiness(checks.Dispatch(stack.Engine, 0))

	if cfg.Scheduler.Enabled {
		opts, err := cfg.Scheduler.Options(logger.WithModule("maintenance"))
		if err != nil {
			return nil, fmt.Errorf("scheduler config: %w", err)
		}
		stack.Scheduler, err = maintenance.NewScheduler(stack.Engine, opts...)
		if err != nil {
			return nil, fmt.Errorf("initialise maintenance scheduler: %w", err)
		}
		if err := stack.Scheduler.Start(); err != nil {
			return nil, fmt.Errorf("start maintenance jobs: %w", err)
		}
		health.RegisterReadiness(checks.Maintenance(stack.Scheduler, 0, clock.Now))
	} else {
		log.Warn("maintenance scheduler disabled; queued notifications will not be flushed")
	}

	var limiter *middleware.RateLimiter
	if rl := cfg.Server.RateLimit; rl.Requests > 0 && rl.Window > 0 {
		limiter = middleware.NewRateLimiter(rl.Requests, rl.Window, clock)
	}

	hub := stack.Hub
	if cfg.Delivery.Driver != "" && !strings.EqualFold(cfg.Delivery.Driver, delivery.DriverHub) {
		// Devices consume from the broker; the websocket stream is not served.
		hub = nil
	}

	stack.Router, err = api.NewRouter(api.Dependencies{
		Config:      cfg,
		Warnings:    warningSvc,
		Profiles:    profileSvc,
		Relevance:   relevanceSvc,
		Dispatch:    stack.Engine,
		Hub:         hub,
		Health:      health,
		RateLimiter: limiter,
		Logger:      logger.WithModule("http"),
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown stops background jobs and releases resources. Queued notifications
// are held in memory only and are lost.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Scheduler != nil {
		select {
		case <-s.Scheduler.Stop().Done():
		case <-ctx.Done():
			log.Warn("maintenance jobs still running at shutdown", zap.Error(ctx.Err()))
		}
	}

	if s.Engine != nil {
		if pending := s.Engine.Status().QueueDepth; pending > 0 {
			log.Warn("dropping queued notifications", zap.Int("pending", pending))
		}
	}

	if s.Hub != nil {
		s.Hub.Close()
	}

	if s.Gateway != nil {
		if err := s.Gateway.Close(); err != nil {
			log.Warn("delivery gateway shutdown", zap.Error(err))
		}
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.Options()
	db, err := database.OpenAndMigrate(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))))

	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
