package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/marinerlabs/goseaport/internal/config"
	"github.com/marinerlabs/goseaport/internal/core/bank"
	"github.com/marinerlabs/goseaport/internal/core/order"
	"github.com/marinerlabs/goseaport/internal/core/settle"
	"github.com/marinerlabs/goseaport/internal/rpc"
	"github.com/marinerlabs/goseaport/internal/storage/history"
	"github.com/marinerlabs/goseaport/internal/storage/statusdb"
)

var (
	port     int
	bindAddr string
)

// serverCmd represents the server command (default action)
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the settlement daemon",
	Long: `Start the seaportd server which provides:
- Order fulfillment, matching, cancellation and validation endpoints
- Order status, counter and fill history reads
- Health check endpoint

This is the default command when no subcommand is specified.`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)

	// Set server as the default command
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return serverCmd.RunE(cmd, args)
	}

	// Server-specific flags override the config file
	serverCmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on")
	serverCmd.Flags().StringVar(&bindAddr, "bind", "", "address to bind to")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if port != 0 {
		cfg.Server.Port = port
	}
	if bindAddr != "" {
		cfg.Server.IP = bindAddr
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer logger.Sync()

	if err := os.MkdirAll(cfg.Storage.Path, 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	store, err := statusdb.Open(cfg.StatusDBPath())
	if err != nil {
		return fmt.Errorf("opening status database: %w", err)
	}
	defer store.Close()

	opts := settle.Options{Logger: logger}
	var fills rpc.FillReader
	if cfg.Storage.History {
		archive, err := history.Open(cfg.HistoryDBPath())
		if err != nil {
			return fmt.Errorf("opening history database: %w", err)
		}
		defer archive.Close()
		opts.History = archive
		fills = archive
	}

	hasher := order.NewHasher(cfg.ChainID(), common.HexToAddress(cfg.Chain.VerifyingContract))
	engine := settle.NewEngine(store, hasher, bank.New(), opts)

	server := rpc.NewServer(cfg.ListenAddr(), engine, store, fills, logger)

	logger.Info("seaportd starting",
		zap.String("listen", cfg.ListenAddr()),
		zap.Int64("chain_id", cfg.Chain.ID),
		zap.String("verifying_contract", cfg.Chain.VerifyingContract),
		zap.Bool("history", cfg.Storage.History),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-ctx.Done()
		return server.Stop(context.Background())
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server exited: %w", err)
	}
	logger.Info("seaportd stopped")
	return nil
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
	}

	var zc zap.Config
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
