package main

import (
	"context"
	"net"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/blockberries/ledger"
	"github.com/blockberries/ledger/config"
	"github.com/blockberries/ledger/errors"
	"github.com/blockberries/ledger/genesis"
	ledgergrpc "github.com/blockberries/ledger/grpc"
	"github.com/blockberries/ledger/local"
	"github.com/blockberries/ledger/node"
	"github.com/blockberries/ledger/notify"
	"github.com/blockberries/ledger/sandbox"
	"github.com/blockberries/ledger/store"
	"github.com/blockberries/ledger/store/leveldb"
	"github.com/blockberries/ledger/store/memory"
	"github.com/blockberries/ledger/types"
)

var cmdRun = &cobra.Command{
	Use:   "run",
	Short: "Run the node",
	Args:  cobra.NoArgs,
	RunE:  run,
}

func init() {
	d := config.Default()
	f := cmdRun.Flags()
	f.String("backend", string(d.Backend), "State backend (memory or leveldb)")
	f.String("data-dir", d.DataDir, "Data directory of the leveldb backend")
	f.String("genesis", d.Genesis, "Genesis document used on first start")
	f.String("chain-id", d.ChainID, "Chain ID")
	f.String("grpc-address", d.GRPCAddress, "gRPC listen address")
	f.String("metrics-address", d.MetricsAddress, "Prometheus listen address; empty disables it")
	f.String("log-level", d.LogLevel, "Log level")
	f.String("log-format", d.LogFormat, "Log format (json or plain)")
	f.Int("max-undo-history", d.MaxUndoHistory, "Committed blocks that can be popped")
	f.Bool("producer.enabled", d.Producer.Enabled, "Produce blocks without a consensus engine")
	f.Uint64("producer.witness-id", d.Producer.WitnessID, "Witness to produce as")
	f.Duration("producer.interval", d.Producer.Interval, "Block production interval")
	f.String("notify.redis-url", d.Notify.RedisURL, "Redis stream to publish notifications to")
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(flagMain.Config, cmd.Flags())
	if err != nil {
		return err
	}
	logger, err := cfg.Logger()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	backend, err := openBackend(&cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Error().Err(err).Msg("Closing the backend failed")
		}
	}()

	s, err := store.Open(backend, store.Options{
		Logger:     logger.With().Str("module", "store").Logger(),
		MaxHistory: cfg.MaxUndoHistory,
	})
	if err != nil {
		return err
	}

	opts := node.Options{
		Logger:        logger.With().Str("module", "node").Logger(),
		ChainID:       cfg.ChainID,
		Supervisor:    sandbox.New(sandbox.Options{Logger: logger.With().Str("module", "sandbox").Logger()}),
		ForkCacheSize: cfg.ForkCacheSize,
	}
	if cfg.Notify.RedisURL != "" {
		pub, err := openNotifier(&cfg, logger)
		if err != nil {
			return err
		}
		defer func() { _ = pub.Close() }()
		opts.Notifier = pub
	}

	app, err := node.New(s, opts)
	if err != nil {
		return err
	}

	lis, err := net.Listen("tcp", cfg.GRPCAddress)
	if err != nil {
		return errors.BadRequest.WithFormat("listen on %s: %w", cfg.GRPCAddress, err)
	}
	grpcLogger := logger.With().Str("module", "grpc").Logger()

	g, ctx := errgroup.WithContext(ctx)
	if cfg.Producer.Enabled {
		conn := local.NewConnection(app, logger.With().Str("module", "server").Logger())
		if err := handshake(ctx, conn, s, app, &cfg); err != nil {
			return err
		}
		gs := ledgergrpc.WrapServer(conn.Server(), grpcLogger)
		g.Go(func() error { return gs.Serve(ctx, lis) })
		g.Go(func() error { return produce(ctx, conn, app, &cfg, logger) })
	} else {
		// The engine connects over gRPC and performs the handshake.
		gs := ledgergrpc.NewGRPCServer(app, grpcLogger)
		g.Go(func() error { return gs.Serve(ctx, lis) })
	}
	if cfg.MetricsAddress != "" {
		g.Go(func() error { return serveMetrics(ctx, cfg.MetricsAddress, logger) })
	}

	err = g.Wait()
	if err != nil && ctx.Err() == nil {
		return err
	}
	logger.Info().Msg("Shutdown complete")
	return nil
}

func openBackend(cfg *config.Config) (store.Backend, error) {
	switch cfg.Backend {
	case config.LevelDBBackend:
		return leveldb.OpenFile(filepath.Join(cfg.DataDir, "state"), leveldb.WithSync(true))
	default:
		return memory.New(), nil
	}
}

func openNotifier(cfg *config.Config, logger zerolog.Logger) (*notify.Publisher, error) {
	ropts, err := redis.ParseURL(cfg.Notify.RedisURL)
	if err != nil {
		return nil, errors.BadRequest.WithFormat("parse redis url: %w", err)
	}
	return notify.NewRedis(redis.NewClient(ropts), notify.Options{
		Logger:      logger.With().Str("module", "notify").Logger(),
		BlockTopic:  cfg.Notify.Topic + ".blocks",
		ChangeTopic: cfg.Notify.Topic + ".changes",
	})
}

// handshake plays the engine's part: genesis on an empty store,
// otherwise a restart at the stored head.
func handshake(ctx context.Context, conn *local.Connection, s *store.Store, app *node.App, cfg *config.Config) error {
	var req types.HandshakeRequest
	if s.Has(types.GlobalPropertyID) {
		head := app.Chain().Head()
		req.LastCommitted = &head
	} else {
		doc := genesis.Default(types.TimePointFromTime(time.Now()), 1_000_000*types.BlockchainPrecision, "alice", "bob")
		if cfg.Genesis != "" {
			loaded, err := genesis.Load(cfg.Genesis)
			if err != nil {
				return err
			}
			doc = loaded
		}
		doc.ChainID = cfg.ChainID
		req.Genesis = &doc
	}
	_, err := conn.Handshake(ctx, req)
	return err
}

// produce authors a block every interval until ctx is done.
func produce(ctx context.Context, conn *local.Connection, app *node.App, cfg *config.Config, logger zerolog.Logger) error {
	witness := types.WitnessID(cfg.Producer.WitnessID)
	ticker := time.NewTicker(cfg.Producer.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			when := types.TimePointFromTime(now)
			if when <= app.Chain().HeadTime() {
				continue
			}
			out, err := conn.Produce(ctx, types.ProposalContext{
				Height:  app.Committed().Height + 1,
				Time:    when,
				Witness: witness,
			})
			if err != nil {
				if h, ok := ledger.IsHalt(err); ok {
					return h
				}
				logger.Warn().Err(err).Msg("Block production failed")
				continue
			}
			logger.Debug().Uint64("block_num", app.Committed().Height).Stringer("block_id", out.BlockID).Int("transactions", len(out.TxOutcomes)).Msg("Produced block")
		}
	}
}

func serveMetrics(ctx context.Context, addr string, logger zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdown)
	}()
	logger.Info().Str("address", addr).Msg("Serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Internal.WithFormat("metrics server: %w", err)
	}
	return nil
}
