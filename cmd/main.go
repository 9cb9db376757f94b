package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/modernmen/scheduling-core/internal/config"
	"github.com/modernmen/scheduling-core/internal/db"
	"github.com/modernmen/scheduling-core/internal/logging"
	"github.com/modernmen/scheduling-core/internal/model"
	"github.com/modernmen/scheduling-core/internal/repository"
	"github.com/modernmen/scheduling-core/internal/scheduling"
	"github.com/modernmen/scheduling-core/internal/service"
	"github.com/modernmen/scheduling-core/internal/timeclock"
)

func main() {
	// 1. Конфиги из env.
	dbCfg, err := config.LoadDBConfig()
	if err != nil {
		log.Fatalf("load db config: %v", err)
	}
	appCfg, err := config.LoadAppConfig()
	if err != nil {
		log.Fatalf("load app config: %v", err)
	}

	logger := logging.New(appCfg.LogLevel)

	loc, err := time.LoadLocation(appCfg.Timezone)
	if err != nil {
		log.Fatalf("load timezone %q: %v", appCfg.Timezone, err)
	}

	// 2. Подключаемся к БД через GORM.
	gormDB, err := db.NewGormDB(dbCfg)
	if err != nil {
		log.Fatalf("init db: %v", err)
	}

	// 3. Миграции моделей.
	if err := model.AutoMigrate(gormDB); err != nil {
		log.Fatalf("auto migrate: %v", err)
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		log.Fatalf("sql DB: %v", err)
	}
	defer sqlDB.Close()

	// 4. Репозитории (реализации на GORM).
	seriesRepo := repository.NewGormSeriesRepository(gormDB)
	occurrenceRepo := repository.NewGormOccurrenceRepository(gormDB)
	availabilityRepo := repository.NewGormAvailabilityRepository(gormDB)
	clockEventRepo := repository.NewGormClockEventRepository(gormDB)
	segmentRepo := repository.NewGormShiftSegmentRepository(gormDB)
	eventRepo := repository.NewGormEventRepository(gormDB)

	// 5. Движок планировщика.
	checker := scheduling.NewConflictChecker(availabilityRepo, occurrenceRepo)
	lifecycle := scheduling.NewLifecycleManager(seriesRepo, occurrenceRepo, eventRepo, logger)
	materializer := scheduling.NewMaterializer(seriesRepo, occurrenceRepo, eventRepo, checker, lifecycle, logger)
	reconciler := timeclock.NewReconciler(clockEventRepo, segmentRepo, logger)

	svc := service.NewSchedulingService(
		seriesRepo, eventRepo, clockEventRepo,
		checker, materializer, lifecycle, reconciler,
		logger,
	)

	// 6. Движок сам таймеров не держит: периодику даёт cron.
	c := cron.New(cron.WithLocation(loc))

	if _, err := c.AddFunc(appCfg.MaterializeSpec, func() {
		if err := svc.RunMaterializationSweep(context.Background(), appCfg.SweepHorizon); err != nil {
			logger.Error().Err(err).Msg("materialization sweep")
		}
	}); err != nil {
		log.Fatalf("schedule materialization sweep: %v", err)
	}

	if _, err := c.AddFunc(appCfg.ReconcileSpec, func() {
		// Пересчитываем вчерашний день: все его отметки уже на месте.
		yesterday := time.Now().In(loc).AddDate(0, 0, -1)
		if err := svc.RunReconciliationSweep(context.Background(), yesterday); err != nil {
			logger.Error().Err(err).Msg("reconciliation sweep")
		}
	}); err != nil {
		log.Fatalf("schedule reconciliation sweep: %v", err)
	}

	c.Start()
	logger.Info().
		Str("materialize_cron", appCfg.MaterializeSpec).
		Str("reconcile_cron", appCfg.ReconcileSpec).
		Msg("scheduling core started")

	// 7. Грейсфул-шатдаун по сигналу.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info().Msg("shutting down...")
	<-c.Stop().Done()
}
