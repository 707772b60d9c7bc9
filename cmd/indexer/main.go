// Command indexer loads every upstream observation into Meilisearch.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bioscout-islamabad/bioscout/internal/config"
	"github.com/bioscout-islamabad/bioscout/internal/geo"
	"github.com/bioscout-islamabad/bioscout/internal/indexer"
	"github.com/bioscout-islamabad/bioscout/internal/logging"
	"github.com/bioscout-islamabad/bioscout/internal/pipeline"
	"github.com/bioscout-islamabad/bioscout/internal/repository"
	"github.com/bioscout-islamabad/bioscout/internal/taxon"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:          "indexer",
	Short:        "Index upstream observations into Meilisearch",
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVarP(&cfgFile, "config", "c", "", "config file")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if !cfg.SearchEnabled() {
		return errors.New("meili.url is not configured")
	}
	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	log, err := logging.New(level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	gazetteer, err := geo.LoadFile(cfg.Gazetteer.File)
	if err != nil {
		return err
	}

	client := repository.NewClient(cfg.Upstream.URL, cfg.Upstream.Timeout, log, nil)
	search := repository.NewSearchRepository(cfg.Meili.URL, cfg.Meili.Key, cfg.Meili.Index, log)
	ix := indexer.New(repository.NewObservationRepository(client), search, pipeline.New(gazetteer, taxon.Default()), log)

	n, err := ix.Run(cmd.Context())
	if err != nil {
		return err
	}
	log.Info("indexed observations", zap.Int("count", n), zap.String("index", cfg.Meili.Index))
	return nil
}
