package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"gorm.io/gorm/logger"
	"video-branding-worker/config"
	"video-branding-worker/constant"
	"video-branding-worker/repository"
)

// SetupLogger returns a context carrying the process logger. Debug output is
// enabled in the develop environment.
func SetupLogger(cfg *config.Config) context.Context {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.App.Environment == constant.EnvironmentDevelop.String() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	// Log to standard output
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	ctx := logger.WithContext(context.Background())

	return ctx
}

// OpenRepository connects to Postgres and migrates the jobs table. The
// returned *sql.DB must be closed by the caller.
func OpenRepository(ctx context.Context, cfg *config.Config) (*sql.DB, repository.JobRepository, error) {
	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping postgres: %w", err)
	}

	level := logger.Warn
	if cfg.App.Environment == constant.EnvironmentDevelop.String() {
		level = logger.Info
	}
	repo, err := repository.NewRepo(db, level)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	if err := repo.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return db, repo, nil
}
