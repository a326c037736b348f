// Command server runs the challenge tracker API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/hundredk/challenge-tracker/internal/api"
	"github.com/hundredk/challenge-tracker/internal/api/dashboard"
	"github.com/hundredk/challenge-tracker/internal/api/feed"
	"github.com/hundredk/challenge-tracker/internal/api/middleware"
	"github.com/hundredk/challenge-tracker/internal/api/tracker"
	"github.com/hundredk/challenge-tracker/internal/cache"
	"github.com/hundredk/challenge-tracker/internal/config"
	"github.com/hundredk/challenge-tracker/internal/mattermost"
	"github.com/hundredk/challenge-tracker/internal/repository"
	"github.com/hundredk/challenge-tracker/internal/service/achievements"
	"github.com/hundredk/challenge-tracker/internal/service/actions"
	"github.com/hundredk/challenge-tracker/internal/service/aggregator"
	"github.com/hundredk/challenge-tracker/internal/service/leaderboard"
	"github.com/hundredk/challenge-tracker/internal/service/profiles"
	"github.com/hundredk/challenge-tracker/internal/service/projects"
	"github.com/hundredk/challenge-tracker/internal/service/scheduler"
	"github.com/hundredk/challenge-tracker/internal/service/social"
	"github.com/hundredk/challenge-tracker/internal/xapi"
	"github.com/hundredk/challenge-tracker/pkg/logger"
)

// Version is set at build time.
var Version = "dev"

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	// .env is optional; real environment variables take precedence.
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log := logger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	log.Info().
		Str("version", Version).
		Str("environment", cfg.Server.Environment).
		Msg("Starting challenge tracker")

	db, err := repository.NewDB(&cfg.Database, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close database")
		}
	}()

	if cfg.Database.MigrateOnStart {
		if err := db.Migrate(log); err != nil {
			return err
		}
	}

	redisCache := cache.New(&cfg.Database.Redis)
	defer func() {
		if err := redisCache.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close redis")
		}
	}()

	// Feed caching, rate limits and job locks fail open, so a missing Redis
	// degrades the service instead of stopping it.
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisCache.Health(pingCtx); err != nil {
		log.Warn().
			Err(err).
			Str("addr", cfg.Database.Redis.Addr()).
			Msg("Redis unreachable, starting without cache")
	} else {
		log.Info().Str("addr", cfg.Database.Redis.Addr()).Msg("Connected to Redis")
	}
	cancel()

	notifier := mattermost.NewClient(&cfg.Mattermost, log.WithComponent("mattermost"))

	// Repositories
	profileRepo := repository.NewProfileRepository(db)
	achievementRepo := repository.NewAchievementRepository(db)
	postRepo := repository.NewPostRepository(db)

	// Services
	zl := log.WithComponent("aggregator").GetLogger()
	statsService := aggregator.NewService(db, notifier, &zl)
	achievementService := achievements.NewService(statsService, achievementRepo, notifier, log.WithComponent("achievements"))
	actionService := actions.NewService(db, statsService, achievementService, log.WithComponent("actions"))
	projectService := projects.NewService(db, statsService, achievementService, log.WithComponent("projects"))
	profileService := profiles.NewService(profileRepo, log.WithComponent("profiles"))
	leaderboardService := leaderboard.NewService(profileRepo, achievementRepo, log.WithComponent("leaderboard"))

	var xClient xapi.Client
	if cfg.Social.BearerToken != "" {
		xClient = xapi.NewClient(&cfg.Social)
	} else {
		log.Warn().Msg("X bearer token not set, social feeds will be generated")
	}
	socialService := social.NewService(profileRepo, postRepo, xClient, redisCache, &cfg.Social, log.WithComponent("social"))

	sched := scheduler.NewService(
		&cfg.Scheduler,
		profileRepo,
		statsService,
		achievementService,
		notifier,
		redisCache,
		log.WithComponent("scheduler"),
	)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	router := api.NewRouter(api.Deps{
		Config:      cfg,
		Auth:        middleware.NewAuthenticator(&cfg.Auth),
		RateLimiter: middleware.NewRateLimiter(redisCache, cfg.RateLimit.Enabled, log.WithComponent("ratelimit")),
		Dashboard:   dashboard.NewHandler(statsService, achievementService, leaderboardService, profileService, log),
		Tracker:     tracker.NewHandler(profileService, actionService, projectService, log),
		Feed:        feed.NewHandler(socialService, log),
		Database:    db,
		Cache:       redisCache,
		Log:         log,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutting down server")
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("Server exited")
	return nil
}
