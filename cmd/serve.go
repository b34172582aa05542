package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/student-portal/internal/auth"
	"github.com/example/student-portal/internal/config"
	"github.com/example/student-portal/internal/facematch"
	"github.com/example/student-portal/internal/handlers"
	"github.com/example/student-portal/internal/logging"
	"github.com/example/student-portal/internal/repository"
	"github.com/example/student-portal/internal/storage"
	"github.com/example/student-portal/internal/usecase"
)

const picturesPath = "/static/profile_pictures"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Bool("migrate", false, "Apply database migrations before serving")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	startCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	db, err := repository.Open(startCtx, cfg.DBDriver, cfg.DatabaseDSN, cfg.IsDevelopment(), logger)
	if err != nil {
		return err
	}
	if migrate, _ := cmd.Flags().GetBool("migrate"); migrate {
		if err := repository.Migrate(startCtx, db, logger); err != nil {
			return err
		}
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	if err := redisClient.Ping(startCtx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}

	store, staticDir, err := newStorage(cfg, logger)
	if err != nil {
		return err
	}

	engine, closeEngine, err := newFaceEngine(startCtx, &cfg.FaceEngine, logger)
	if err != nil {
		return err
	}
	defer closeEngine() //nolint:errcheck

	evaluator := facematch.NewEvaluator(cfg.FaceMatch(), engine, engine,
		facematch.WithOpener(store),
		facematch.WithLogger(logger),
	)

	tokens, err := auth.NewTokens(cfg.JWTSecret, cfg.JWTAudience, cfg.SessionTTL)
	if err != nil {
		return err
	}
	revoker := auth.NewRedisRevoker(redisClient)

	users := repository.NewUserRepository(db, logger)
	logs := repository.NewVerificationRepository(db, logger)
	cache := usecase.NewRedisCache(redisClient)

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.MaxMultipartMemory = handlers.MaxUploadSize
	router.Use(handlers.RequestLogger(logger), handlers.Recovery(logger))

	handlers.RegisterRoutes(router, handlers.Deps{
		Accounts:      usecase.NewAccountUseCase(users, store, logger),
		Profiles:      usecase.NewProfileUseCase(users, logs, store, evaluator, cache, logger),
		Pictures:      store,
		Tokens:        tokens,
		Revoker:       revoker,
		Auth:          auth.SessionMiddleware(tokens, revoker, logger),
		Logger:        logger,
		SecureCookies: cfg.IsProduction(),
		StaticDir:     staticDir,
	})

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           corsHandler.Handler(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	matchCfg := evaluator.Config()
	logger.Info("student portal listening",
		zap.String("addr", cfg.HTTPAddr),
		zap.String("face_engine", cfg.Engine),
		zap.String("storage", cfg.StorageBackend),
		zap.Float64("face_threshold", matchCfg.Threshold),
		zap.Int("face_max_faces", matchCfg.MaxFaces),
		zap.Bool("face_reject_multiple", matchCfg.RejectMultipleFaces),
	)
	return serveHTTP(ctx, server, cfg.ShutdownTimeout, logger, nil)
}

// newStorage returns the configured picture store and, for local storage,
// the directory to serve pictures from.
func newStorage(cfg *config.Config, logger *zap.Logger) (storage.Storage, string, error) {
	switch cfg.StorageBackend {
	case "cloudinary":
		store, err := storage.NewCloudinaryStorage(cfg.CloudinaryURL, cfg.CloudinaryFolder, logger)
		return store, "", err
	default:
		store, err := storage.NewLocalStorage(cfg.UploadDir, picturesPath)
		if err != nil {
			return nil, "", err
		}
		return store, store.Root(), nil
	}
}

// serveHTTP runs server until it fails or ctx is cancelled, then drains
// in-flight requests for up to shutdownTimeout. A nil listener means
// ListenAndServe on server.Addr.
func serveHTTP(ctx context.Context, server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("received shutdown signal", zap.Error(context.Cause(ctx)))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}
