package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mrsingh-rishi/voice-relay/config"
	"github.com/mrsingh-rishi/voice-relay/metrics"
	"github.com/mrsingh-rishi/voice-relay/pipeline"
	"github.com/mrsingh-rishi/voice-relay/server"
	"github.com/mrsingh-rishi/voice-relay/workers"
)

var rootCmd = &cobra.Command{
	Use:   "voice-relay",
	Short: "Live speech translation relay",
	Long:  `voice-relay recognizes speech streamed over websockets, translates it and broadcasts synthesized audio to every listener of the target language.`,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the relay server",
	RunE:  runServe,
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.AddCommand(serveCmd)

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format (text, json)")
	serveCmd.Flags().String("addr", ":8000", "Listen address")
	serveCmd.Flags().String("tts-channels", "", "Channel voices, e.g. en=openai:alloy,es=elevenlabs:<voice id>")

	viper.BindPFlag("LOG_LEVEL", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("LOG_FORMAT", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("ADDR", serveCmd.Flags().Lookup("addr"))
	viper.BindPFlag("TTS_CHANNELS", serveCmd.Flags().Lookup("tts-channels"))
}

func initConfig() {
	// Load .env if present
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file found, falling back to environment variables")
	}
	config.SetDefaults(viper.GetViper())
	viper.AutomaticEnv()
}

func newLogger(level, format string) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
	})
	lvl, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		logger.Warn("unknown log level, using info", "level", level)
		lvl = log.InfoLevel
	}
	logger.SetLevel(lvl)
	if strings.EqualFold(format, "json") {
		logger.SetFormatter(log.JSONFormatter)
	}
	return logger
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger(viper.GetString("LOG_LEVEL"), viper.GetString("LOG_FORMAT"))

	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		logger.Error("invalid configuration", "err", err)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backends, err := buildBackends(ctx, cfg)
	if err != nil {
		logger.Error("configuring backends", "err", err)
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	sup, err := pipeline.New(pipeline.Config{
		QueueCapacity: cfg.QueueCapacity,
		StageCapacity: cfg.StageCapacity,
		Retry: workers.RetryPolicy{
			Attempts: cfg.TranslateAttempts,
			Timeout:  cfg.TranslateTimeout,
			Backoff:  cfg.TranslateBackoff,
		},
		ShutdownGrace: cfg.ShutdownGrace,
	}, backends, logger, m)
	if err != nil {
		logger.Error("building pipeline", "err", err)
		return err
	}
	if err := sup.Start(); err != nil {
		return err
	}

	srv := server.New(sup.Gateway, sup.Channels(), reg, logger)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Listen(cfg.Addr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err = <-errCh:
		logger.Error("server stopped", "err", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace+5*time.Second)
	defer cancel()
	// Stop ingest first so no chunk arrives after the stages stop.
	if stopErr := sup.Stop(shutdownCtx); stopErr != nil {
		logger.Warn("pipeline stop", "err", stopErr)
	}
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Warn("server shutdown", "err", shutdownErr)
	}
	return err
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
