package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"fitQuestAPI/internal/achievement"
	"fitQuestAPI/internal/config"
	"fitQuestAPI/internal/logger"
	"fitQuestAPI/internal/repository"
	"fitQuestAPI/services"
)

// app holds the services shared by every command.
type app struct {
	cfg          *config.Config
	repo         repository.Repository
	catalog      *achievement.Catalog
	xp           *services.XPService
	achievements *services.AchievementService
	streaks      *services.StreakService
	ingest       *services.IngestService
	progression  *services.ProgressionService
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	logger.InitLogger(cfg.LogLevel, cfg.LogFormat)

	catalog, err := achievement.Load(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}
	curve, err := catalog.Curve()
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"version":      catalog.Version,
		"achievements": len(catalog.Achievements),
	}).Info("Achievement catalog loaded")

	repo, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	now := time.Now
	a := &app{cfg: cfg, repo: repo, catalog: catalog}
	a.xp = services.NewXPService(repo, curve, now)
	a.achievements = services.NewAchievementService(repo, catalog, a.xp, now)
	a.streaks = services.NewStreakService(repo, catalog, a.xp, a.achievements, cfg.Location, now)
	a.ingest = services.NewIngestService(repo, catalog, a.xp, a.achievements, a.streaks, services.IngestOptions{
		DedupSize: cfg.DedupSize,
		DedupTTL:  cfg.DedupTTL,
		Location:  cfg.Location,
		Now:       now,
	})
	a.progression = services.NewProgressionService(repo, a.xp, a.achievements, cfg.Location, now)
	return a, nil
}

func openStore(ctx context.Context, cfg *config.Config) (repository.Repository, error) {
	if cfg.Store == config.StoreMemory {
		logrus.Warn("Using in-memory store, progression is lost on restart")
		return repository.NewMemory(), nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := repository.Connect(connectCtx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	pg := repository.NewPostgres(pool)
	if err := pg.Migrate(connectCtx); err != nil {
		pg.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	logrus.Info("Successfully connected to Postgres")
	return pg, nil
}

func (a *app) close() {
	logrus.Info("Closing store...")
	a.repo.Close()
}
