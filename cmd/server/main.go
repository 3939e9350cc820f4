package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/vodgrab-go/api"
	"github.com/yourusername/vodgrab-go/internal/app"
	"github.com/yourusername/vodgrab-go/internal/domain"
	"github.com/yourusername/vodgrab-go/internal/infrastructure"
	"github.com/yourusername/vodgrab-go/pkg/logger"
)

var configPath = flag.String("config", "", "Path to config file")

func main() {
	flag.Parse()

	config, err := app.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:      config.Logging.Level,
		Format:     config.Logging.Format,
		OutputPath: config.Logging.OutputPath,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting vodgrab server",
		zap.String("version", "1.0.0"),
		zap.String("host", config.Server.Host),
		zap.Int("port", config.Server.Port))

	if err := createDirectories(config); err != nil {
		log.Fatal("Failed to create directories", zap.Error(err))
	}

	repo, err := infrastructure.NewSQLiteJobRepository(config.Queue.DatabasePath)
	if err != nil {
		log.Fatal("Failed to initialize repository", zap.Error(err))
	}
	defer repo.Close()

	notifier := infrastructure.NewNotificationService(&config.Notification, log)

	factory := buildPipelineFactory(config, log)
	queueMgr := app.NewQueueManager(repo, factory, notifier, &config.Queue, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := queueMgr.Start(ctx); err != nil {
		log.Fatal("Failed to start queue manager", zap.Error(err))
	}

	router := api.SetupRouter(queueMgr, log)

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal OR auto-exit from the queue manager
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info("Received shutdown signal")
	case <-queueMgr.WaitForExit():
		log.Info("Queue empty, auto-exiting")
	}

	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if queueMgr.IsRunning() {
		if err := queueMgr.Stop(); err != nil {
			log.Error("Error stopping queue manager", zap.Error(err))
		}
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}

// buildPipelineFactory wires one fresh set of collaborators per job. The
// HTTP client and CDM session live exactly as long as the run.
func buildPipelineFactory(config *domain.Config, log *zap.Logger) app.PipelineFactory {
	return func() (*app.Pipeline, func()) {
		client := &http.Client{Timeout: config.Pipeline.HTTPTimeout}
		session := infrastructure.NewRemoteCDMSession(client, config.Pipeline.CDMServer)

		deps := app.PipelineDeps{
			Parser:    infrastructure.NewAutoDetectParser(client, log),
			Segments:  infrastructure.NewHTTPSegmentDownloader(client, log),
			Subtitles: infrastructure.NewHTTPSubtitleFetcher(client, log),
			Keys:      infrastructure.NewLicenseClient(client, session, log),
			Decryptor: infrastructure.NewMP4Decryptor(config.Pipeline.DecryptorBinary, config.Storage.LogsDir, log),
			Muxer:     infrastructure.NewFFmpegMuxer(config.Pipeline.MuxerBinary, config.Storage.LogsDir, log),
		}

		pipeline := app.NewPipeline(deps, config.Storage.BaseDir, log)
		teardown := func() {
			session.Close()
			client.CloseIdleConnections()
		}
		return pipeline, teardown
	}
}

func createDirectories(config *domain.Config) error {
	dirs := []string{
		config.Storage.BaseDir,
		config.Storage.LogsDir,
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
