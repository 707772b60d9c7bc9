package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bioscout-islamabad/bioscout/internal/config"
	"github.com/bioscout-islamabad/bioscout/internal/geo"
	"github.com/bioscout-islamabad/bioscout/internal/handler"
	"github.com/bioscout-islamabad/bioscout/internal/infrastructure"
	"github.com/bioscout-islamabad/bioscout/internal/logging"
	"github.com/bioscout-islamabad/bioscout/internal/metrics"
	"github.com/bioscout-islamabad/bioscout/internal/pipeline"
	"github.com/bioscout-islamabad/bioscout/internal/prefs"
	"github.com/bioscout-islamabad/bioscout/internal/repository"
	"github.com/bioscout-islamabad/bioscout/internal/router"
	"github.com/bioscout-islamabad/bioscout/internal/service"
	"github.com/bioscout-islamabad/bioscout/internal/store"
	"github.com/bioscout-islamabad/bioscout/internal/taxon"
	"github.com/bioscout-islamabad/bioscout/internal/utils"
)

const shutdownTimeout = 10 * time.Second

var (
	cfgFile string
	verbose bool
	cfg     *config.Config
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "bioscout",
	Short: "BioScout Islamabad backend-for-frontend",
	Long: `bioscout serves the list, map, identification, Q&A and dashboard views
of BioScout Islamabad on top of the upstream biodiversity API.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		level := cfg.Log.Level
		if verbose {
			level = "debug"
		}
		logger, err = logging.New(level, cfg.Log.Format)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, logger)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: ./config.yaml, ./config/config.yaml or $HOME/.bioscout/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	m, err := metrics.New()
	if err != nil {
		return err
	}

	gazetteer := geo.Default()
	if cfg.Gazetteer.File != "" {
		if gazetteer, err = geo.LoadFile(cfg.Gazetteer.File); err != nil {
			return err
		}
		log.Info("gazetteer loaded", zap.String("file", cfg.Gazetteer.File), zap.Int("places", len(gazetteer.Places())))
	}
	p := pipeline.New(gazetteer, taxon.Default())

	kv, closeKV, err := infrastructure.NewPrefsKV(ctx, cfg.Prefs.Driver, cfg.Prefs.DSN)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeKV(); err != nil {
			log.Warn("closing prefs store failed", zap.Error(err))
		}
	}()
	prefsLog := log.Named("prefs")
	stores := func(namespace string) *prefs.Store { return prefs.NewStore(kv, namespace, prefsLog) }

	secret := cfg.Auth.Secret
	if secret == "" {
		secret = uuid.NewString()
		log.Warn("auth.secret is not set, using a random secret; tokens will not survive a restart")
	}
	tokens, err := utils.NewTokenIssuer(secret, cfg.Auth.TTL)
	if err != nil {
		return err
	}

	client := repository.NewClient(cfg.Upstream.URL, cfg.Upstream.Timeout, log, m)
	obsRepo := repository.NewObservationRepository(client)
	snapshots := store.New(obsRepo, cfg.Cache.TTL, log, m)

	var search repository.SearchRepository
	if cfg.SearchEnabled() {
		search = repository.NewSearchRepository(cfg.Meili.URL, cfg.Meili.Key, cfg.Meili.Index, log)
		if err := search.EnsureIndex(ctx); err != nil {
			// the search endpoint falls back to local filtering
			log.Warn("meilisearch unavailable", zap.String("url", cfg.Meili.URL), zap.Error(err))
		}
	}

	svcOpts := []service.Option{service.WithLogger(log)}
	obsSvc := service.NewObservationService(snapshots, obsRepo, search, p, svcOpts...)
	insightSvc := service.NewInsightService(repository.NewInsightRepository(client), cfg.Cache.StatsTTL, svcOpts...)
	sessionSvc := service.NewSessionService(stores, tokens)

	gin.SetMode(gin.ReleaseMode)
	r := router.SetupRouter(router.Deps{
		Observations: handler.NewObservationHandler(obsSvc, stores, cfg.View.PageSize, cfg.View.ListLimit, insightSvc.InvalidateStats),
		Insights:     handler.NewInsightHandler(insightSvc, stores),
		Sessions:     handler.NewSessionHandler(sessionSvc, stores),
		Tokens:       tokens,
		Metrics:      m,
		Log:          log,
		AllowOrigins: cfg.Server.AllowOrigins,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", cfg.Server.Addr), zap.String("upstream", cfg.Upstream.URL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return <-errCh
}
