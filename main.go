package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/studyquestapp/studyquest/questengine"
	"github.com/studyquestapp/studyquest/questengine/database"
	"github.com/studyquestapp/studyquest/questengine/logger"
	"github.com/studyquestapp/studyquest/questengine/migration"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	customHandler := logger.NewHandler()
	slog.SetDefault(slog.New(customHandler))

	slog.Info("Starting StudyQuest engine",
		slog.String("version", version),
		slog.String("commit", commit))

	importLegacy := flag.Bool("import-legacy", false, "Import data from the legacy MongoDB deployment and exit")
	path := flag.String("config", "config.toml", "path to config")
	flag.Parse()

	cfg, err := questengine.LoadConfig(*path)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(-1)
	}
	customHandler.SetLevel(cfg.Log.Level)
	slog.Info("Configuration loaded successfully")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	app := questengine.New(*cfg, version, commit)

	if !cfg.Engine.UseMemoryStore {
		slog.Info("Initializing database connection...")
		dbStartTime := time.Now()

		db, err := database.New(ctx, cfg.DB)
		if err != nil {
			slog.Error("Database connection failed",
				slog.Any("error", err),
				slog.Duration("attempted_for", time.Since(dbStartTime)))
			os.Exit(-1)
		}
		app.DB = db

		if err := db.InitializeSchema(ctx); err != nil {
			slog.Error("Failed to initialize database schema", slog.Any("error", err))
			os.Exit(-1)
		}

		slog.Info("Database connected successfully",
			slog.String("database", cfg.DB.Database),
			slog.Duration("took", time.Since(dbStartTime)))
	}

	if *importLegacy {
		runLegacyImport(ctx, app, cfg)
		return
	}

	if err := app.Setup(ctx); err != nil {
		slog.Error("Failed to set up engine", slog.Any("error", err))
		os.Exit(-1)
	}

	app.Start(context.Background())

	slog.Info("Engine is running. Press CTRL-C to exit.")
	s := make(chan os.Signal, 1)
	signal.Notify(s, syscall.SIGINT, syscall.SIGTERM)
	<-s
	slog.Info("Shutting down engine...")
	app.Close()
}

func runLegacyImport(ctx context.Context, app *questengine.App, cfg *questengine.Config) {
	if app.DB == nil {
		slog.Error("Legacy import requires a database connection")
		os.Exit(-1)
	}
	if cfg.Legacy.MongoURI == "" {
		slog.Error("Legacy import requires legacy.mongo_uri in the config")
		os.Exit(-1)
	}

	importer, closeFn, err := migration.Connect(ctx, app.DB.BunDB(), cfg.Legacy.MongoURI, cfg.Legacy.MongoDatabase)
	if err != nil {
		slog.Error("Failed to connect to legacy deployment", slog.Any("error", err))
		os.Exit(-1)
	}
	defer closeFn()

	stats, err := importer.Run(ctx)
	if err != nil {
		slog.Error("Legacy import failed",
			slog.Any("error", err),
			slog.Int("profiles_imported", stats.Profiles),
			slog.Int("archives_imported", stats.Archives))
		os.Exit(-1)
	}
}
