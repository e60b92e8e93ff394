// main.go - Transfer daemon entry point.
//
// transferd exposes the private transfer engine over HTTP:
//   - POST /transfers               upload a file and record the transfer
//   - POST /transfers/{id}/update   re-upload content, superseding a record
//   - GET  /transfers               list records, filterable by sender/recipient
//   - GET  /transfers/{id}          one record plus its gateway URL
//   - GET  /transfers/{id}/content  download and verify the content
//   - GET  /connection              connection state machine snapshot
//   - GET  /health, /metrics        operational endpoints
//
// Usage:
//   transferd -config transferd.json

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"

	"veilsend/internal/commitment"
	"veilsend/internal/connection"
	"veilsend/internal/ledger"
	"veilsend/internal/rpc"
	"veilsend/internal/store"
	"veilsend/internal/transfer"
)

const version = "0.3.0"

func main() {
	configPath := flag.String("config", "transferd.json", "path to config file")
	listenAddr := flag.String("listen", "", "listen address override")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, logCloser := NewLogger(cfg.LogLevel, cfg.LogFile)
	if logCloser != nil {
		defer logCloser.Close()
	}

	banner()
	logger.Info("starting transferd", "version", version, "endpoint", cfg.RPCEndpoint, "listen", cfg.ListenAddr)

	if err := run(cfg, logger); err != nil {
		logger.Error("daemon exited with error", "err", err)
		os.Exit(1)
	}
}

func banner() {
	color.New(color.FgCyan, color.Bold).Println("transferd - private file transfer daemon")
	color.New(color.FgHiBlack).Printf("version %s\n\n", version)
}

func run(cfg *Config, logger *slog.Logger) error {
	// Ledger
	led, err := ledger.Open(cfg.LedgerPath)
	if err != nil {
		return fmt.Errorf("opening ledger: %w", err)
	}
	logger.Info("ledger loaded", "path", cfg.LedgerPath, "records", led.Len())

	// RPC endpoint and connection state machine
	rpcClient := rpc.NewClient(cfg.RPCEndpoint)
	manager := connection.NewManager(connection.Config{
		Endpoint:          cfg.RPCEndpoint,
		MaxRetries:        cfg.MaxRetries,
		BackoffBase:       cfg.BackoffBase(),
		HealthCheckPeriod: cfg.HealthCheckPeriod(),
	}, rpcClient, logger.With("component", "connection"))
	defer manager.Close()

	// Content store
	ipfs := store.NewIPFSClient(cfg.IPFSAPIURL, cfg.IPFSGatewayURL)

	// Commitment backend
	var gen commitment.Generator
	switch cfg.ProofBackend {
	case "groth16":
		g, err := commitment.NewGroth16Generator(cfg.KeyDir)
		if err != nil {
			return fmt.Errorf("groth16 setup: %w", err)
		}
		gen = g
		logger.Info("proof backend ready", "backend", "groth16", "key_dir", cfg.KeyDir)
	default:
		gen = commitment.NewMimcGenerator()
		logger.Info("proof backend ready", "backend", "mimc")
	}

	// Signer
	signer, err := transfer.LoadOrCreateEd25519Signer(cfg.SignerKey)
	if err != nil {
		return fmt.Errorf("signer: %w", err)
	}
	logger.Info("signer loaded", "public_key", signer.PublicKey())

	coordinator := transfer.NewCoordinator(manager, ipfs, gen, signer, led,
		logger.With("component", "coordinator"))

	// Health probes
	health := NewHealthChecker(version)
	health.RegisterProbe("rpc", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return rpcClient.Probe(ctx)
	})
	health.RegisterProbe("store", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return ipfs.Ping(ctx)
	})
	health.RegisterProbe("ledger", func() error {
		_, err := os.Stat(cfg.LedgerPath)
		return err
	})

	metrics := NewMetricsCollector()
	metrics.SetGauge(MetricLedgerRecords, float64(led.Len()), nil)

	api := &apiServer{
		coordinator: coordinator,
		ledger:      led,
		manager:     manager,
		health:      health,
		metrics:     metrics,
		limiter:     NewSenderRateLimiter(cfg.RateLimitBurst, cfg.RateLimitPerMin, time.Minute),
		logger:      logger.With("component", "api"),
		maxUpload:   int64(cfg.MaxUploadBytes),
		gateway:     ipfs.GatewayURL,
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Warm the connection in the background; the API is usable regardless,
	// each transfer re-drives the state machine as needed.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := manager.EnsureConnected(ctx); err != nil {
			logger.Warn("initial connection attempt failed", "err", err)
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http api listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}
