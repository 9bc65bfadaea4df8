// @title           Jimeng Image Generator API
// @version         1.0.0
// @description     Local web API for generating images with Volcengine Jimeng 4.0 and browsing the saved outputs.

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:5001
// @BasePath  /

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/samber/do"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"golang.org/x/sync/errgroup"
	"jimeng-image-generator/docs"
	"jimeng-image-generator/internal/config"
	"jimeng-image-generator/internal/handlers"
	"jimeng-image-generator/internal/inject"
	"jimeng-image-generator/internal/log"
	"jimeng-image-generator/internal/middleware"
	"jimeng-image-generator/internal/services"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.New(os.Stderr, slog.LevelInfo).Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := log.New(os.Stderr, log.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = log.NewContext(ctx, logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	if cfg.BaseURL != "" {
		if baseURL, err := url.Parse(cfg.BaseURL); err == nil {
			docs.SwaggerInfo.Host = baseURL.Host
			if baseURL.Scheme == "https" {
				docs.SwaggerInfo.Schemes = []string{"https", "http"}
			} else {
				docs.SwaggerInfo.Schemes = []string{"http", "https"}
			}
		}
	}

	injector := inject.Setup(ctx, cfg)
	defer func() {
		if err := injector.Shutdown(); err != nil {
			logger.Warn("failed to shut down cleanly", "error", err)
		}
	}()

	service := do.MustInvoke[*services.GenerationService](injector)
	router := newRouter(injector, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting", "port", cfg.Port, "output_dir", cfg.OutputDir, "backend", cfg.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if cfg.OutputMaxAge > 0 {
		g.Go(func() error {
			return sweepOutputs(gctx, service, cfg.OutputMaxAge, cfg.CleanupInterval)
		})
	}

	return g.Wait()
}

func newRouter(injector *do.Injector, logger *slog.Logger) *gin.Engine {
	generateHandler := do.MustInvoke[*handlers.GenerateHandler](injector)
	outputsHandler := do.MustInvoke[*handlers.OutputsHandler](injector)
	tasksHandler := do.MustInvoke[*handlers.TasksHandler](injector)

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/health", handlers.HealthHandler)

	router.GET("/", handlers.IndexHandler)
	router.POST("/generate", generateHandler.Generate)
	router.GET("/output", outputsHandler.ListOutputs)
	router.GET("/output/:dir/:file", outputsHandler.GetOutputFile)
	router.GET("/tasks", tasksHandler.ListTasks)
	router.GET("/tasks/:id", tasksHandler.GetTask)

	return router
}

// sweepOutputs removes expired task directories once at startup and then on
// every tick until ctx is done.
func sweepOutputs(ctx context.Context, service *services.GenerationService, maxAge, interval time.Duration) error {
	logger := log.FromContextOrDiscard(ctx).WithGroup("cleanup")
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := service.Cleanup(ctx, maxAge); err != nil {
			logger.Warn("cleanup failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
