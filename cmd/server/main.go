package main

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/iceinvein/mlem/internal/database/boltstore"
	"github.com/iceinvein/mlem/internal/database/sqlitestore"
	"github.com/iceinvein/mlem/internal/email"
	"github.com/iceinvein/mlem/internal/feed"
	"github.com/iceinvein/mlem/internal/handlers"
	"github.com/iceinvein/mlem/internal/identity"
	"github.com/iceinvein/mlem/internal/metrics"
	"github.com/iceinvein/mlem/internal/moderation"
	"github.com/iceinvein/mlem/internal/routing"
	"github.com/iceinvein/mlem/internal/tracing"
)

func main() {
	// Configure zerolog
	// Set log level from environment (default: info)
	logLevel := os.Getenv("LOG_LEVEL")
	switch logLevel {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info", "":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	// Use pretty console logging in development, JSON in production
	if os.Getenv("LOG_FORMAT") == "json" {
		// Production: JSON logs
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		// Development: pretty console logs
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	}

	log.Info().Msg("Starting mlem moderation server")

	ctx := context.Background()

	// Tracing is optional; if the collector is unreachable spans are dropped.
	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" {
		tp, err := tracing.Init(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize tracing")
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Failed to shut down tracer provider")
			}
		}()
		log.Info().Msg("Tracing initialized")
	}

	// Get port from env or use default
	port := os.Getenv("PORT")
	if port == "" {
		port = "18920"
	}

	// Database path with XDG fallback for development
	dbPath := os.Getenv("MLEM_DB_PATH")
	if dbPath == "" {
		dataDir := os.Getenv("XDG_DATA_HOME")
		if dataDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to get home directory")
			}
			dataDir = filepath.Join(home, ".local", "share")
		}
		dbPath = filepath.Join(dataDir, "mlem", "mlem.db")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		log.Fatal().Err(err).Str("path", dbPath).Msg("Failed to create data directory")
	}

	// Bolt is the primary backend; sessions, the feed, and the user directory
	// always live there. MLEM_DB_BACKEND=sqlite moves the moderation ledgers
	// to SQLite alongside it.
	store, err := boltstore.Open(boltstore.Options{
		Path: dbPath,
	})
	if err != nil {
		log.Fatal().Err(err).Str("path", dbPath).Msg("Failed to open database")
	}
	defer store.Close()

	log.Info().Str("path", dbPath).Msg("Database opened")

	var moderationStore moderation.Store = store.ModerationStore()
	if os.Getenv("MLEM_DB_BACKEND") == "sqlite" {
		sqlitePath := dbPath + ".sqlite"
		db, err := sqlitestore.Open(ctx, sqlitePath)
		if err != nil {
			log.Fatal().Err(err).Str("path", sqlitePath).Msg("Failed to open sqlite database")
		}
		defer db.Close()
		moderationStore = sqlitestore.NewModerationStore(db)
		log.Info().Str("path", sqlitePath).Msg("Using SQLite moderation backend")
	}

	// Staff roles come from a JSON config file; without one every caller is
	// a regular user and the moderation console is unusable.
	identityService, err := identity.NewService(os.Getenv("MLEM_MODERATORS_CONFIG"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load moderator config")
	}
	log.Info().Int("staff", len(identityService.ListStaff())).Msg("Identity service initialized")

	userStore := store.UserStore()
	feedStore := store.FeedStore()

	// Report listings and history views resolve handles repeatedly; cache
	// directory lookups with periodic expiry.
	directory := identity.NewCachedDirectory(userStore)
	stopCacheCleanup := directory.StartCleanupRoutine(identity.CacheTTL)
	defer stopCacheCleanup()

	moderationService := moderation.NewService(moderationStore, feedStore, identityService, directory)
	feedService := feed.NewService(feedStore, moderationService)

	// Email notifications are optional; without SMTP_HOST the sender no-ops.
	smtpPort := 587
	if raw := os.Getenv("SMTP_PORT"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			smtpPort = n
		}
	}
	sender := email.NewSender(email.Config{
		Host:       os.Getenv("SMTP_HOST"),
		Port:       smtpPort,
		User:       os.Getenv("SMTP_USER"),
		Pass:       os.Getenv("SMTP_PASS"),
		From:       os.Getenv("SMTP_FROM"),
		AdminEmail: os.Getenv("ADMIN_EMAIL"),
	})
	if sender.Enabled() {
		moderationService.SetNotifier(email.NewModerationNotifier(sender, directory))
		log.Info().Str("host", os.Getenv("SMTP_HOST")).Msg("Email notifications enabled")
	}

	// Periodic gauges for the reporting queues
	collectorCtx, cancelCollector := context.WithCancel(ctx)
	defer cancelCollector()
	metrics.StartCollector(collectorCtx, metrics.StatsSource{
		PendingContentReportCount: func() int {
			reports, err := moderationStore.ListContentReports(collectorCtx, moderation.ReportPending, 0)
			if err != nil {
				return 0
			}
			return len(reports)
		},
		PendingUserReportCount: func() int {
			reports, err := moderationStore.ListUserReports(collectorCtx, moderation.ReportPending, 0)
			if err != nil {
				return 0
			}
			return len(reports)
		},
	}, time.Minute)

	// Initialize handlers with all dependencies via constructor injection
	h := handlers.NewHandler(moderationService, feedService, identityService)

	// Setup router with middleware
	handler := routing.SetupRouter(routing.Config{
		Handlers: h,
		Sessions: store.SessionStore(),
		Logger:   log.Logger,
	})

	// Start HTTP server
	log.Info().
		Str("address", "0.0.0.0:"+port).
		Str("url", "http://localhost:"+port).
		Str("database", dbPath).
		Msg("Starting HTTP server")

	if err := http.ListenAndServe("0.0.0.0:"+port, handler); err != nil {
		log.Fatal().Err(err).Msg("Server failed to start")
	}
}
