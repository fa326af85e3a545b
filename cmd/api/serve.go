package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/DaphneDana/Matlab-app/internal/config"
	"github.com/DaphneDana/Matlab-app/internal/fixtures"
	"github.com/DaphneDana/Matlab-app/internal/jobs"
	"github.com/DaphneDana/Matlab-app/internal/middleware"
	"github.com/DaphneDana/Matlab-app/internal/navigation"
	"github.com/DaphneDana/Matlab-app/internal/session"
	"github.com/DaphneDana/Matlab-app/internal/settings"
	"github.com/DaphneDana/Matlab-app/internal/storage"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard API server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// serverDeps はルーターが利用するコンポーネントです。
type serverDeps struct {
	manager  *jobs.Manager
	fixtures *fixtures.Provider
	staging  *storage.Staging
	limiter  *middleware.RateLimiter
}

func newServerDeps(cfg *config.Config, manager *jobs.Manager) (*serverDeps, error) {
	dashboard, err := fixtures.Default()
	if err != nil {
		return nil, err
	}
	provider, err := fixtures.NewProvider(dashboard)
	if err != nil {
		return nil, err
	}
	staging, err := storage.NewStaging(storage.Limits{
		MaxBytes:      cfg.MaxUploadBytes,
		AcceptPattern: cfg.UploadAcceptPattern,
	})
	if err != nil {
		return nil, err
	}
	return &serverDeps{
		manager:  manager,
		fixtures: provider,
		staging:  staging,
		limiter:  middleware.NewRateLimiter(cfg.StartRatePerMin),
	}, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	manager, closeJobs, err := setupJobs(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeJobs(); err != nil {
			logger.Warn("failed to close job backend", zap.Error(err))
		}
	}()

	deps, err := newServerDeps(cfg, manager)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(cfg, logger, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting API server",
			zap.String("addr", srv.Addr),
			zap.String("mode", cfg.GinMode),
			zap.String("job_backend", cfg.JobBackend),
			zap.String("job_store", cfg.JobStore))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("Shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	manager.Shutdown(shutdownCtx)
	return srv.Shutdown(shutdownCtx)
}

// handleHealth はヘルスチェックエンドポイントのハンドラーです。
func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "analysis-dashboard-api",
		"version": "0.1.0",
	})
}

func newRouter(cfg *config.Config, logger *zap.Logger, deps *serverDeps) *gin.Engine {
	// Ginのモードを設定
	gin.SetMode(cfg.GinMode)

	router := gin.New()
	router.Use(middleware.RequestLogger(logger), middleware.Recovery(logger))

	// セッションストアの設定（所有者IDと表示設定を保持）
	store := session.NewStore(string(cfg.SessionKey()), cfg.GinMode == gin.ReleaseMode)
	router.Use(session.Middleware(store)...)

	// CORSミドルウェアの設定
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.AllowedOrigins()
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{
		"Origin",
		"Content-Type",
		"Accept",
	}
	corsConfig.AllowMethods = []string{
		http.MethodGet,
		http.MethodPost,
		http.MethodPut,
		http.MethodDelete,
		http.MethodOptions,
	}
	router.Use(cors.New(corsConfig))

	setupRoutes(router, logger, deps)
	return router
}

// setupRoutes は API グループの配線を行います。
func setupRoutes(router *gin.Engine, logger *zap.Logger, deps *serverDeps) {
	router.GET("/health", handleHealth)

	api := router.Group("/api")
	api.GET("/navigation", navigation.Handler())
	fixtures.RegisterRoutes(api, deps.fixtures)
	storage.RegisterRoutes(api, deps.staging, session.OwnerID)
	settings.RegisterRoutes(api, logger.Named("settings"))
	jobs.RegisterRoutes(api, deps.manager, jobs.HandlerOptions{
		Owner:       session.OwnerID,
		StagedFiles: deps.staging.Names,
		Result:      deps.fixtures.ResultPayload,
	}, deps.limiter.Handler())
}
