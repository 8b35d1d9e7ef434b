package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/DimaJoyti/defi-sentinel/pkg/config"
	"github.com/DimaJoyti/defi-sentinel/pkg/logger"
	"github.com/DimaJoyti/defi-sentinel/pkg/metrics"
)

var inputPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the detection pipeline against a transaction feed",
	Long: `serve reads newline-delimited JSON transactions from --input (or
stdin if not set), runs each one through the detection pipeline, and
dispatches any risk events to the configured action sinks, while also
serving /healthz and /metrics on the admin address.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&inputPath, "input", "", "path to an NDJSON transaction feed (default: stdin)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg.Service.LogLevel, cfg.Service.LogFormat, cfg.Service.Name)
	defer log.Sync()

	m := metrics.New()
	pipeline := buildPipeline(cfg, log, m)
	mgr, closeSinks, err := buildActionManager(cfg, log, m)
	if err != nil {
		return fmt.Errorf("build action manager: %w", err)
	}
	defer closeSinks()

	admin := newAdminServer(cfg.Service.AdminAddr, m)
	go func() {
		log.Info("admin server listening", zap.String("addr", cfg.Service.AdminAddr))
		if err := admin.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("admin server stopped unexpectedly", zap.Error(err))
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	input, closeInput, err := openFeedInput(inputPath)
	if err != nil {
		return fmt.Errorf("open feed input: %w", err)
	}
	defer closeInput()

	feedDone := make(chan error, 1)
	go func() {
		n, err := runFeed(ctx, input, cfg.Service.StrictDecoding, pipeline, mgr, log, m)
		log.Info("feed processing finished", zap.Int("transactions_processed", n))
		feedDone <- err
	}()

	select {
	case <-sigCh:
		log.Info("shutdown signal received")
	case err := <-feedDone:
		if err != nil {
			log.Error("feed processing stopped with an error", zap.Error(err))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := admin.Shutdown(shutdownCtx); err != nil {
		log.Error("admin server forced to shutdown", zap.Error(err))
	}
	return nil
}

func newAdminServer(addr string, m *metrics.Metrics) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(m.Handler()))

	return &http.Server{Addr: addr, Handler: router}
}
