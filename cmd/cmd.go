package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"travel-diary-backend/internal/classifier"
	"travel-diary-backend/internal/config"
	"travel-diary-backend/internal/events"
	"travel-diary-backend/internal/generation"
	"travel-diary-backend/internal/handlers"
	"travel-diary-backend/internal/metadata"
	"travel-diary-backend/internal/middleware"
	"travel-diary-backend/internal/prompt"
	"travel-diary-backend/internal/repository"
	"travel-diary-backend/internal/services"
	"travel-diary-backend/internal/storage"
	"travel-diary-backend/migrations"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// Execute runs the command line
func Execute() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "travel-diary",
		Short:         "Travel diary backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "Path to the configuration file")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start the HTTP server",
			RunE: func(cmd *cobra.Command, args []string) error {
				return Run(configPath)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply the database schema",
			RunE: func(cmd *cobra.Command, args []string) error {
				return migrate(cmd.Context(), configPath)
			},
		},
	)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Command failed")
	}
}

// Run starts the server and blocks until SIGINT or SIGTERM
func Run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	setupLogger(cfg.Log)

	ctx := context.Background()

	db, err := connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	diaryRepo := repository.NewDiaryRepository(db)
	photoRepo := repository.NewPhotoRepository(db)

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to create storage: %w", err)
	}

	var geocoder metadata.Geocoder = metadata.NopGeocoder{}
	if cfg.Geocoding.APIKey != "" {
		g, err := metadata.NewGoogleGeocoder(cfg.Geocoding.APIKey, cfg.Geocoding.Language, cfg.Geocoding.Timeout)
		if err != nil {
			return fmt.Errorf("failed to create geocoder: %w", err)
		}
		geocoder = g
	} else {
		log.Warn().Msg("Geocoding disabled, place names will be empty")
	}

	backend, err := generation.NewGeminiBackend(ctx, cfg.Generation.APIKey, cfg.Generation.Model)
	if err != nil {
		return fmt.Errorf("failed to create generation backend: %w", err)
	}
	generator := generation.NewClient(backend, generation.RetryConfig{
		MaxAttempts:    cfg.Generation.MaxAttempts,
		InitialBackoff: cfg.Generation.InitialBackoff,
		MaxBackoff:     cfg.Generation.MaxBackoff,
		AttemptTimeout: cfg.Generation.AttemptTimeout,
	})

	// Post-commit hooks
	wsHub := services.NewWSHub()
	dispatcher := events.NewDispatcher(cfg.Events.HandlerTimeout)
	dispatcher.Subscribe(wsHub, events.DiaryCreated, events.DiaryDeleted, events.PhotoTagged)
	if cfg.Classifier.URL != "" {
		notifier := classifier.NewNotifier(cfg.Classifier.URL, cfg.Classifier.Token, cfg.Classifier.Timeout)
		dispatcher.Subscribe(notifier, events.DiaryCreated)
	} else {
		log.Warn().Msg("Classifier URL not set, photos will not be tagged")
	}

	// Initialize services
	userService := services.NewUserService(userRepo, cfg.JWT.Secret)
	diaryService := services.NewDiaryService(
		diaryRepo,
		photoRepo,
		metadata.NewExtractor(geocoder),
		prompt.NewComposer(cfg.Generation.MaxImageEdge, cfg.Generation.MaxOutputTokens, cfg.Generation.Temperature),
		generator,
		store,
		dispatcher,
	)

	// Initialize handlers
	userHandler := handlers.NewUserHandler(userService)
	diaryHandler := handlers.NewDiaryHandler(diaryService, cfg.Server.MaxUploadBytes)
	photoHandler := handlers.NewPhotoHandler(diaryService, store)
	wsHandler := handlers.NewWebSocketHandler(wsHub, userService)

	// Setup router
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(corsMiddleware(cfg.Server.CORSOrigin))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		pingCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.Ping(pingCtx); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/users", userHandler.CreateUser)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(userService))
			r.Get("/users/me", userHandler.GetMe)
			r.Post("/diaries", diaryHandler.CreateDiary)
			r.Get("/diaries/recent", diaryHandler.GetRecentDiaries)
			r.Get("/diaries/random", diaryHandler.GetRandomDiaries)
			r.Get("/diaries/{diary_id}", diaryHandler.GetDiary)
			r.Delete("/diaries/{diary_id}", diaryHandler.DeleteDiary)
			r.Get("/photos/{photo_id}/diary", diaryHandler.GetDiaryByPhoto)
		})
	})

	r.Route("/internal", func(r chi.Router) {
		r.Use(middleware.ClassifierAuth(cfg.Classifier.Token))
		r.Put("/photos/{photo_id}/tag", photoHandler.TagPhoto)
	})

	r.Get("/uploads/{file_name}", photoHandler.ServePhoto)
	r.Get("/ws", wsHandler.HandleWebSocket)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Str("storage", cfg.Storage.Driver).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// in-flight hooks finish before the pool closes
	if err := dispatcher.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Event handlers did not finish")
	}

	log.Info().Msg("Server exited")
	return nil
}

func migrate(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	setupLogger(cfg.Log)

	db, err := connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.Exec(ctx, migrations.Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	log.Info().Str("database", cfg.Database.DBName).Msg("Schema applied")
	return nil
}

func connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	db, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	log.Info().Msg("Database connection established")

	return db, nil
}

// setupLogger configures zerolog logger
func setupLogger(cfg config.LogConfig) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.Format != "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	switch cfg.Level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// corsMiddleware handles CORS
func corsMiddleware(origin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
