package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/young1lin/flux/internal/answer"
	"github.com/young1lin/flux/internal/config"
	"github.com/young1lin/flux/internal/handler"
	"github.com/young1lin/flux/internal/httputil"
	"github.com/young1lin/flux/internal/pipeline"
	"github.com/young1lin/flux/internal/rerank"
	"github.com/young1lin/flux/internal/search"
	"github.com/young1lin/flux/internal/storage"
	"github.com/young1lin/flux/internal/telemetry"
	"github.com/young1lin/flux/pkg/logger"
)

var (
	Version   = "dev"
	BuildDate = "unknown"
)

var (
	cfgFile string
	port    int
	showVer bool
)

var rootCmd = &cobra.Command{
	Use:   "flux",
	Short: "Live web search with semantic reranking",
	Long: `flux searches the live web, reranks results by semantic relevance
and answers questions with citations, over HTTP or from the command line.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVer {
			printVersion()
			return nil
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if port > 0 {
			cfg.Server.Port = port
		}
		defer logger.Sync()

		flush := telemetry.Init(cfg.Sentry, Version)
		defer flush()

		logger.Info("starting server",
			zap.String("version", Version),
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port),
		)
		return startServer(cfg)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		printVersion()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default ./config.yaml)")
	rootCmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides config)")
	rootCmd.Flags().BoolVarP(&showVer, "version", "v", false, "show version")
	rootCmd.AddCommand(versionCmd, searchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("flux %s (built %s)\n", Version, BuildDate)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	return cfg, nil
}

// engine is the search stack shared by the server and the CLI
type engine struct {
	manager  *search.Manager
	pipeline *pipeline.Pipeline
	status   handler.Status
}

// newEngine wires the pipeline. A non-empty provider pins every search to
// that provider instead of the default with fallback.
func newEngine(cfg *config.Config, provider string) *engine {
	transport := httputil.NewRetryTransport(http.DefaultTransport, cfg.HTTP.MaxRetries, cfg.HTTP.RetryBaseDelay)
	manager := search.NewManager(&cfg.Search, transport)

	opts := []pipeline.Option{pipeline.WithSettings(pipeline.SettingsFromConfig(cfg.Pipeline))}
	if cfg.HasRerank() {
		opts = append(opts, pipeline.WithReranker(rerank.NewCohereReranker(&cfg.Rerank, transport)))
	} else {
		logger.Info("rerank disabled, no COHERE_API_KEY")
	}
	if cfg.HasAnswer() {
		opts = append(opts, pipeline.WithSynthesizer(answer.NewClient(&cfg.Answer, transport)))
	} else {
		logger.Info("answer synthesis disabled, no GEMINI_API_KEY")
	}

	return &engine{
		manager:  manager,
		pipeline: pipeline.New(manager.Using(provider), opts...),
		status: handler.Status{
			SearchReady: manager.HasAvailableProvider(),
			RerankReady: cfg.HasRerank(),
			AnswerReady: cfg.HasAnswer(),
		},
	}
}

func startServer(cfg *config.Config) error {
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0o755); err != nil {
		return fmt.Errorf("creating storage directory: %w", err)
	}
	store, err := storage.NewConversationStore(cfg.Storage.Path,
		storage.WithMaxConversations(cfg.Storage.MaxConversations),
		storage.WithMaxMessages(cfg.Storage.MaxMessages),
	)
	if err != nil {
		return err
	}
	defer store.Close()

	eng := newEngine(cfg, "")
	h := handler.New(eng.pipeline, store, eng.manager, eng.status)
	router := handler.NewRouter(h, handler.RouterConfig{
		CORSOrigins:  cfg.Server.CORSOrigins,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	logger.Info("flux ready",
		zap.String("health", fmt.Sprintf("http://%s/health", srv.Addr)),
		zap.Bool("search_ready", eng.status.SearchReady),
		zap.Bool("rerank_ready", eng.status.RerankReady),
		zap.Bool("answer_ready", eng.status.AnswerReady),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
	}

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
	return nil
}
