package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dgraph-io/badger/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/probanet/proba-go/commitment"
	"github.com/probanet/proba-go/indexer"
	"github.com/probanet/proba-go/ledger"
	"github.com/probanet/proba-go/ledger/mock"
	"github.com/probanet/proba-go/module/metrics"
	bstorage "github.com/probanet/proba-go/storage/badger"
)

type flags struct {
	datadir           string
	logLevel          string
	confirmationDepth uint64
	closureWindow     uint64
	chainLength       uint64
	stepWidth         uint64
	debugCommitment   bool
	metricsAddr       string
}

func main() {
	var conf flags

	cmd := &cobra.Command{
		Use:   "proba",
		Short: "payment channel control plane node",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(conf)
		},
	}

	cmd.Flags().StringVar(&conf.datadir, "datadir", "data", "directory for the node database")
	cmd.Flags().StringVar(&conf.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	cmd.Flags().Uint64Var(&conf.confirmationDepth, "confirmation-depth", 8, "blocks before an event is considered confirmed")
	cmd.Flags().Uint64Var(&conf.closureWindow, "closure-window", 60, "blocks between closure initiation and claim")
	cmd.Flags().Uint64Var(&conf.chainLength, "chain-length", commitment.DefaultChainLength, "hash chain length")
	cmd.Flags().Uint64Var(&conf.stepWidth, "step-width", commitment.DefaultStepWidth, "hash chain checkpoint spacing")
	cmd.Flags().BoolVar(&conf.debugCommitment, "debug-commitment", false, "derive the hash chain seed from the public key")
	cmd.Flags().StringVar(&conf.metricsAddr, "metrics-addr", "", "address to serve prometheus metrics on (disabled if empty)")

	err := cmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func run(conf flags) error {
	level, err := zerolog.ParseLevel(conf.logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()

	identity, err := ledger.GenerateIdentity()
	if err != nil {
		return fmt.Errorf("could not create identity: %w", err)
	}
	log.Info().Str("address", identity.Address().String()).Msg("node identity")

	db, err := badger.Open(badger.DefaultOptions(conf.datadir).WithLogger(nil))
	if err != nil {
		return fmt.Errorf("could not open database: %w", err)
	}
	defer db.Close()

	stores, err := bstorage.InitAll(db)
	if err != nil {
		return fmt.Errorf("could not initialize storage: %w", err)
	}

	var collector metrics.Collector = metrics.NewNoopCollector()
	if conf.metricsAddr != "" {
		registry := prometheus.NewRegistry()
		collector = metrics.NewPrometheusCollector(registry)
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
			err := http.ListenAndServe(conf.metricsAddr, mux)
			if err != nil {
				log.Error().Err(err).Msg("metrics server failed")
			}
		}()
	}

	// no external ledger is wired yet, the node runs against an in-memory
	// one
	client := mock.NewLedger(conf.closureWindow).Bind(identity.Address())

	commitments, err := commitment.NewManager(
		log,
		commitment.Config{
			ChainLength: conf.chainLength,
			StepWidth:   conf.stepWidth,
			Debug:       conf.debugCommitment,
		},
		identity,
		client,
		stores.Commitments,
	)
	if err != nil {
		return fmt.Errorf("could not create commitment manager: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = commitments.Check(ctx)
	if err != nil {
		return fmt.Errorf("could not reconcile commitment: %w", err)
	}

	ix := indexer.New(
		log,
		indexer.Config{ConfirmationDepth: conf.confirmationDepth},
		client,
		stores.Channels,
		stores.Progress,
		collector,
	)
	err = ix.Start()
	if err != nil {
		return fmt.Errorf("could not start indexer: %w", err)
	}

	log.Info().Msg("node started")
	<-ctx.Done()
	log.Info().Msg("shutting down")

	return ix.Stop()
}
