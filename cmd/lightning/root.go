package main

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"

	kafkaadapter "github.com/couchcryptid/lightning-data-service/internal/adapter/kafka"
	"github.com/couchcryptid/lightning-data-service/internal/adapter/mysql"
	"github.com/couchcryptid/lightning-data-service/internal/config"
	"github.com/couchcryptid/lightning-data-service/internal/observability"
	"github.com/couchcryptid/lightning-data-service/internal/pipeline"
	"github.com/spf13/cobra"
)

// globalOptions holds the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "lightning",
		Short: "Fetch lightning observations from the FMI open data service.",
		Long: `lightning queries the FMI WFS lightning stored query, rebuilds strike
observations from the flattened feed, and prints, stores or publishes them.`,
		SilenceErrors:      true,
		SilenceUsage:       true,
		DisableSuggestions: true,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "key=value settings file (apikey, host, user, password, database, port)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log at debug level, including window corrections")

	root.AddCommand(newFetchCmd(opts), newServeCmd(opts), newMigrateCmd(opts))
	return root
}

// load reads the configuration and builds the process logger.
func (o *globalOptions) load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	if o.verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, observability.NewLogger(cfg), nil
}

// sinkSet holds the configured sinks and the resources behind them.
type sinkSet struct {
	sinks     []pipeline.Sink
	store     *mysql.Store
	db        *sql.DB
	publisher *kafkaadapter.Publisher
}

// openSinks connects MySQL when store is set and Kafka when brokers are
// configured.
func openSinks(ctx context.Context, cfg *config.Config, store bool, logger *slog.Logger) (*sinkSet, error) {
	set := &sinkSet{}
	if store {
		if err := cfg.RequireDB(); err != nil {
			return nil, err
		}
		db, err := mysql.Open(ctx, cfg.DB)
		if err != nil {
			return nil, err
		}
		set.db = db
		set.store = mysql.NewStore(db, logger)
		set.sinks = append(set.sinks, set.store)
		logger.Info("mysql sink enabled", "addr", cfg.DB.Addr(), "database", cfg.DB.Database)
	}
	if cfg.KafkaEnabled() {
		set.publisher = kafkaadapter.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		set.sinks = append(set.sinks, set.publisher)
		logger.Info("kafka sink enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}
	return set, nil
}

func (s *sinkSet) Close(logger *slog.Logger) {
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			logger.Error("mysql close error", "error", err)
		}
	}
}

func pipelineOptions(cfg *config.Config) pipeline.Options {
	return pipeline.Options{APIKey: cfg.APIKey, BBox: cfg.BBox, CRS: cfg.CRS}
}

func describeSinks(sinks []pipeline.Sink) string {
	if len(sinks) == 0 {
		return "none"
	}
	names := make([]string, 0, len(sinks))
	for _, s := range sinks {
		names = append(names, s.Name())
	}
	return strings.Join(names, ",")
}
