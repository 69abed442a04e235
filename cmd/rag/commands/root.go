package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"multimodal-rag/internal/config"
	"multimodal-rag/internal/embedding/cache"
	"multimodal-rag/internal/logger"
	"multimodal-rag/internal/metrics"
	"multimodal-rag/internal/service"
)

var (
	cfgPath     string
	logLevel    string
	metricsAddr string
)

// NewRootCmd creates the root command. Without a subcommand it starts the chat TUI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rag",
		Short: "Ask questions about a document and an image",
		Long: `Index one document (text or PDF) and/or one image, then ask questions
answered by a hosted language model from the most relevant passages.

Keys are read from the environment (.env is loaded): JINA_API_KEY for
embeddings and GROQ_API_KEY for the language and vision models.`,
		SilenceUsage: true,
		RunE:         runChat,
	}

	cmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to YAML config (default ./config.yaml or ~/.config/multimodal-rag/config.yaml)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level: debug, info, warn, error")
	cmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")

	cmd.AddCommand(NewChatCmd())
	cmd.AddCommand(NewAskCmd())
	cmd.AddCommand(NewVersionCmd())
	return cmd
}

// Execute runs the root command. Interrupts cancel in-flight provider calls.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

// app holds what every command needs once flags are parsed.
type app struct {
	cfg     *config.AppConfig
	logger  *zap.Logger
	session *service.Session
	metrics *http.Server
}

// setup loads .env and config, builds the logger and a fresh session.
// logFile sends logs to the configured file instead of stderr.
func setup(logFile bool) (*app, error) {
	_ = godotenv.Load()

	var (
		cfg *config.AppConfig
		err error
	)
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	var outputs []string
	if logFile {
		outputs = []string{cfg.Logging.File}
	}
	log, err := logger.NewLogger(cfg.Logging.Env, level, outputs...)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: log}
	if metricsAddr != "" {
		if a.metrics, err = serveMetrics(metricsAddr, log); err != nil {
			return nil, err
		}
	}

	backends := service.NewProviderBackends(cfg, cache.NewStore(), log)
	a.session, err = service.NewSession(cfg, backends, log)
	if err != nil {
		return nil, err
	}
	log.Info("Session started",
		zap.String("session_id", a.session.ID),
		zap.String("embedder", cfg.Embedder.Type),
		zap.Strings("models", cfg.LLM.Models))
	return a, nil
}

func (a *app) close() {
	if a.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.metrics.Shutdown(ctx)
	}
	_ = a.logger.Sync()
}

func serveMetrics(addr string, log *zap.Logger) (*http.Server, error) {
	metrics.Register()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Metrics server stopped", zap.Error(err))
		}
	}()
	log.Info("Serving metrics", zap.String("addr", ln.Addr().String()))
	return srv, nil
}
