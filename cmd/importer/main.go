// Command importer turns the raw sightings CSV into the observations file
// and knowledge base the upstream API is seeded with.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bioscout-islamabad/bioscout/internal/config"
	"github.com/bioscout-islamabad/bioscout/internal/importer"
	"github.com/bioscout-islamabad/bioscout/internal/logging"
	"github.com/bioscout-islamabad/bioscout/internal/repository"
)

var (
	cfgFile       string
	verbose       bool
	input         string
	output        string
	knowledgeBase string
	submit        bool
	workers       int
)

var rootCmd = &cobra.Command{
	Use:          "importer",
	Short:        "Clean the raw sightings CSV and assign observers",
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	f := rootCmd.Flags()
	f.StringVarP(&cfgFile, "config", "c", "", "config file")
	f.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	f.StringVarP(&input, "input", "i", "D.csv", "raw sightings CSV")
	f.StringVarP(&output, "output", "o", "observations.csv", "cleaned observations CSV")
	f.StringVar(&knowledgeBase, "knowledge-base", "knowledge_base.txt", "Q&A context file; empty to skip")
	f.BoolVar(&submit, "submit", false, "push every observation to the upstream submit endpoint")
	f.IntVar(&workers, "workers", 4, "concurrent submissions")
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
	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	log, err := logging.New(level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	in, err := os.Open(input)
	if err != nil {
		return err
	}
	defer in.Close()

	obs, err := importer.Read(in, importer.DefaultObservers)
	if err != nil {
		return fmt.Errorf("%s: %w", input, err)
	}

	if err := writeFile(output, func(f *os.File) error { return importer.Write(f, obs) }); err != nil {
		return err
	}
	log.Info("observations written", zap.String("file", output), zap.Int("count", len(obs)))

	if knowledgeBase != "" {
		if err := writeFile(knowledgeBase, func(f *os.File) error { return importer.WriteKnowledgeBase(f, obs) }); err != nil {
			return err
		}
		log.Info("knowledge base written", zap.String("file", knowledgeBase))
	}

	if !submit {
		return nil
	}
	client := repository.NewClient(cfg.Upstream.URL, cfg.Upstream.Timeout, log, nil)
	n, err := importer.Submit(cmd.Context(), repository.NewObservationRepository(client), obs, workers, log)
	log.Info("observations submitted", zap.String("upstream", cfg.Upstream.URL), zap.Int("accepted", n), zap.Int("total", len(obs)))
	return err
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}
