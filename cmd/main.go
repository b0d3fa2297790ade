package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"edudrive/internal/auth"
	"edudrive/internal/config"
	"edudrive/internal/handler"
	"edudrive/internal/preview"
	"edudrive/internal/ratelimit"
	"edudrive/internal/repository"
	"edudrive/internal/service"
	"edudrive/internal/service/s3"
)

func connectWithRetry(cfg *config.DatabaseConfig, maxAttempts int, delay time.Duration) (*sqlx.DB, error) {
	// Bootstrap through the postgres system database so a fresh deployment
	// creates its own database.
	dsn := cfg.GetDSN()
	pgDSN := strings.Replace(dsn, "dbname="+cfg.Name, "dbname=postgres", 1)
	pgDB, err := sqlx.Connect("postgres", pgDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres database: %v", err)
	}
	defer pgDB.Close()

	var exists bool
	err = pgDB.Get(&exists, "SELECT EXISTS(SELECT datname FROM pg_catalog.pg_database WHERE datname = $1)", cfg.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to check database existence: %v", err)
	}

	if !exists {
		log.Printf("Database %s does not exist, creating...", cfg.Name)
		_, err = pgDB.Exec(fmt.Sprintf("CREATE DATABASE %s", cfg.Name))
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %v", err)
		}
	}

	var db *sqlx.DB
	for i := 0; i < maxAttempts; i++ {
		db, err = sqlx.Connect("postgres", dsn)
		if err == nil {
			return db, nil
		}

		log.Printf("Failed to connect to database (attempt %d/%d): %v", i+1, maxAttempts, err)
		time.Sleep(delay)
	}

	return nil, fmt.Errorf("failed to connect after %d attempts: %v", maxAttempts, err)
}

func runMigrations(cfg *config.Config) error {
	databaseURL := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)

	var m *migrate.Migrate
	var err error

	for i := 0; i < 5; i++ {
		m, err = migrate.New("file://migrations", databaseURL)
		if err == nil {
			break
		}
		log.Printf("Failed to create migrate instance (attempt %d/5): %v", i+1, err)
		time.Sleep(time.Second * 5)
	}

	if err != nil {
		return fmt.Errorf("failed to create migrate instance after retries: %w", err)
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if dirty {
		log.Printf("Found dirty database state at version %d, attempting to force version", version)
		if err := m.Force(int(version)); err != nil {
			return fmt.Errorf("failed to force version: %w", err)
		}
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func main() {
	appConfig, err := config.NewConfig(".app.env")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := connectWithRetry(&appConfig.Database, 5, time.Second*5)
	if err != nil {
		log.Fatalf("Failed to connect to database after retries: %v", err)
	}
	defer db.Close()

	if err := runMigrations(appConfig); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	s3Config, err := s3.NewConfig(".s3.env")
	if err != nil {
		log.Fatalf("Failed to load S3 config: %v", err)
	}

	s3Client, err := s3.NewClient(s3Config)
	if err != nil {
		log.Fatalf("Failed to create S3 client: %v", err)
	}

	authConfig, err := auth.NewConfig(".auth.env")
	if err != nil {
		log.Fatalf("Failed to load auth config: %v", err)
	}
	verifier := auth.NewVerifier(authConfig)

	// Repositories
	driveDefaults := repository.DriveDefaults{
		StorageLimit:    appConfig.Storage.DefaultStorageLimit,
		BandwidthLimit:  appConfig.Storage.DefaultBandwidthLimit,
		BandwidthPeriod: appConfig.Storage.BandwidthPeriod,
		TrashRetention:  appConfig.Storage.TrashRetention,
	}
	driveRepo := repository.NewDriveRepository(db, driveDefaults)
	folderRepo := repository.NewFolderRepository(db)
	fileRepo := repository.NewFileRepository(db)
	trashRepo := repository.NewTrashRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)

	// Services
	limiter := ratelimit.NewLimiter(nil)
	quotaService := service.NewQuotaService(driveRepo, appConfig.Storage.BandwidthPeriod)
	accessService := service.NewAccessService(folderRepo, fileRepo)
	activityService := service.NewActivityService(activityRepo)
	folderService := service.NewFolderService(folderRepo, accessService, activityService)
	fileService := service.NewFileService(fileRepo, folderRepo, s3Client, quotaService, accessService, activityService,
		appConfig.Storage.DedupPolicy, appConfig.Storage.MaxFileSize)
	trashService := service.NewTrashService(trashRepo, s3Client, quotaService, accessService, activityService,
		appConfig.Storage.TrashRetention)
	syncService := service.NewSyncService(subjectRepo, folderRepo, fileRepo, folderService, s3Client, quotaService, activityService)
	previewService := preview.NewService(s3Client, db)

	// Handlers
	folderHandler := handler.NewFolderHandler(folderService, trashService, verifier, limiter)
	fileHandler := handler.NewFileHandler(fileService, trashService, verifier, limiter, appConfig.Storage.MaxFileSize)
	trashHandler := handler.NewTrashHandler(trashService, verifier)
	quotaHandler := handler.NewQuotaHandler(quotaService, verifier)
	activityHandler := handler.NewActivityHandler(activityService, verifier, limiter)
	syncHandler := handler.NewSyncHandler(syncService, verifier)
	previewHandler := preview.NewHandler(previewService, fileService, verifier)

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Minute))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Range"},
		ExposedHeaders:   []string{"Link", "Content-Disposition", "Content-Range", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(limiter.Middleware(auth.ActorOrIP(verifier)))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/files", fileHandler.Upload)
		r.Route("/files/{uuid}", func(r chi.Router) {
			r.Get("/", fileHandler.Download)
			r.Delete("/", fileHandler.Delete)
			r.Put("/rename", fileHandler.Rename)
			r.Put("/move", fileHandler.Move)
			r.Get("/preview", previewHandler.GetPreview)
		})

		r.Get("/folders", folderHandler.GetContent)
		r.Post("/folders", folderHandler.CreateFolder)
		r.Get("/folders/structure", folderHandler.GetStructure)
		r.Get("/folders/{id}", folderHandler.GetContent)
		r.Delete("/folders/{id}", folderHandler.DeleteFolder)
		r.Put("/folders/{id}/rename", folderHandler.RenameFolder)
		r.Put("/folders/{id}/move", folderHandler.MoveFolder)

		r.Route("/trash", func(r chi.Router) {
			r.Get("/", trashHandler.List)
			r.Post("/restore", trashHandler.Restore)
			r.Post("/delete", trashHandler.Purge)
			r.Post("/empty", trashHandler.Empty)
		})

		r.Route("/quota", func(r chi.Router) {
			r.Get("/", quotaHandler.GetQuota)
			r.Put("/limit", quotaHandler.UpdateLimit)
		})

		r.Get("/activity", activityHandler.Query)
		r.Post("/sync/subjects/{id}", syncHandler.SyncSubject)
	})

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", appConfig.Server.Port),
		Handler: r,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	go limiter.Sweep(bgCtx, 5*time.Minute)
	go previewService.CleanupLoop(bgCtx, 24*time.Hour)

	cleanupTicker := time.NewTicker(1 * time.Hour)
	go func() {
		defer cleanupTicker.Stop()
		for {
			select {
			case <-cleanupTicker.C:
				if err := trashService.AutoCleanup(bgCtx); err != nil {
					log.Printf("Error during trash auto cleanup: %v", err)
				}
			case <-bgCtx.Done():
				return
			}
		}
	}()

	go func() {
		log.Printf("Starting HTTP server on port %s", appConfig.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	<-quit
	log.Println("Shutting down server...")
	bgCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server forced to shutdown: %v", err)
	}

	if err := db.Close(); err != nil {
		log.Printf("Error closing database connection: %v", err)
	}

	log.Println("Server exited properly")
}
