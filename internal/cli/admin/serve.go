package admin

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/docstore-ai/docstore/internal/api/handlers"
	"github.com/docstore-ai/docstore/internal/config"
	"github.com/docstore-ai/docstore/internal/database"
	"github.com/docstore-ai/docstore/internal/jobs"
	"github.com/docstore-ai/docstore/internal/openai"
	"github.com/docstore-ai/docstore/internal/repository"
	"github.com/docstore-ai/docstore/internal/server"
	"github.com/docstore-ai/docstore/internal/service"
	"github.com/docstore-ai/docstore/internal/storage"
	"github.com/docstore-ai/docstore/internal/telemetry"
	"github.com/docstore-ai/docstore/internal/vectorllm"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the docstore API server and the embedding job worker",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().Bool("no-worker", false, "Do not start the embedding job worker")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize Sentry with tracing if a DSN is set
	if cfg.SentryDSN != "" {
		// Default to 10% sampling in production, 100% in development
		sampleRate := 0.1
		if cfg.Environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			TracesSampleRate: sampleRate,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := database.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Println("connected to database")

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	docRepo := repository.NewDocumentRepository(pool)
	embRepo := repository.NewEmbeddingRepository(pool)
	jobRepo := repository.NewEmbeddingJobRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	embeddingClient, processor, err := buildEmbeddingProvider(cfg)
	if err != nil {
		return err
	}

	documentSvc := service.NewDocumentService(docRepo, embRepo, jobRepo, txRunner)
	embeddingSvc := service.NewEmbeddingService(embeddingClient, docRepo, embRepo, txRunner, cfg.EmbeddingModel)
	if processor != nil {
		embeddingSvc = embeddingSvc.WithProcessor(processor)
	}
	searchSvc := service.NewSearchService(embeddingClient, embRepo, docRepo)

	if cfg.HasS3() {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
		documentSvc = documentSvc.WithArchive(s3Client)
	}

	var embeddingWorker *jobs.Worker
	noWorker, _ := cmd.Flags().GetBool("no-worker")
	if !noWorker {
		embeddingProcessor := jobs.NewEmbeddingWorker(jobRepo, embeddingSvc)
		pollInterval := time.Duration(cfg.WorkerPollIntervalSeconds) * time.Second
		embeddingWorker = jobs.NewWorker(embeddingProcessor, pollInterval)
		go embeddingWorker.Start(ctx)
		log.Println("embedding worker started")
	}

	router := server.NewRouter(server.RouterConfig{
		DocumentHandler:  handlers.NewDocumentHandler(documentSvc),
		EmbeddingHandler: handlers.NewEmbeddingHandler(embeddingSvc, searchSvc),
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	if embeddingWorker != nil {
		embeddingWorker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

// buildEmbeddingProvider selects the embedding backend. The vectorllm
// provider also serves as DocumentProcessor for chunked processing; the
// OpenAI provider supports direct generation only.
func buildEmbeddingProvider(cfg *config.Config) (service.EmbeddingClient, service.DocumentProcessor, error) {
	switch cfg.EmbeddingProvider {
	case "vectorllm":
		if !cfg.HasEmbedService() {
			return nil, nil, fmt.Errorf("DOCSTORE_EMBED_SERVICE_URL is required for the vectorllm provider")
		}
		client := vectorllm.NewClient(vectorllm.Config{
			BaseURL:         cfg.EmbedServiceURL,
			CallbackBaseURL: cfg.CallbackBaseURL,
			Timeout:         time.Duration(cfg.EmbedTimeoutSeconds) * time.Second,
			RateLimit:       cfg.EmbedRateLimit,
		})
		log.Printf("embedding provider: vectorllm (%s)", cfg.EmbedServiceURL)
		return client, client, nil
	case "openai":
		if !cfg.HasOpenAI() {
			return nil, nil, fmt.Errorf("DOCSTORE_OPENAI_API_KEY is required for the openai provider")
		}
		log.Println("embedding provider: openai")
		return openai.NewClient(cfg.OpenAIAPIKey), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown embedding provider %q", cfg.EmbeddingProvider)
	}
}

func runMigrations(databaseURL string) error {
	// golang-migrate needs a database/sql connection
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	upErr := m.Up()
	if upErr != nil && upErr != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", upErr)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else if upErr == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
