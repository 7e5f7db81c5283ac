package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"primenumbers/cmd/internal/passphrase"
	"primenumbers/config"
	"primenumbers/core"
	"primenumbers/crypto"
	"primenumbers/indexer"
	"primenumbers/observability/logging"
	"primenumbers/observability/otel"
	"primenumbers/rpc"
	"primenumbers/storage"
)

const (
	operatorPassEnv  = "PRNT_OPERATOR_PASS"
	operatorTokenTTL = 24 * time.Hour
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file (.toml or .yaml)")
	printToken := flag.Bool("print-operator-token", false, "Print an admin bearer token for the operator and exit")
	exportEvents := flag.String("export-events", "", "Write the indexed events to a Parquet file and exit")
	flag.Parse()

	if err := run(*configFile, *printToken, *exportEvents); err != nil {
		fmt.Fprintf(os.Stderr, "prntd: %v\n", err)
		os.Exit(1)
	}
}

func run(configFile string, printToken bool, exportPath string) error {
	_, statErr := os.Stat(configFile)
	passSource := passphrase.NewSource(operatorPassEnv)
	pass, err := passSource.Get(errors.Is(statErr, os.ErrNotExist))
	if err != nil {
		return err
	}

	cfg, err := config.Load(configFile, config.WithKeystorePassphrase(pass))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, logCloser := logging.SetupWithFile("prntd", cfg.Environment, logging.FileOptions{
		Path:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	defer logCloser.Close()

	key, _, err := crypto.LoadOrCreateKeystore(cfg.OperatorKeystorePath, pass)
	if err != nil {
		return fmt.Errorf("load operator key: %w", err)
	}
	operator := key.PubKey().Address()
	jwtSecret := strings.TrimSpace(os.Getenv(cfg.RPC.JWTSecretEnv))

	if printToken {
		token, err := rpc.IssueToken(jwtSecret, cfg.RPC.JWTIssuer, operator, operatorTokenTTL, rpc.ScopeAdmin)
		if err != nil {
			return fmt.Errorf("issue operator token (is %s set?): %w", cfg.RPC.JWTSecretEnv, err)
		}
		fmt.Println(token)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Enabled {
		shutdown, err := otel.Init(ctx, otel.Config{
			ServiceName: "prntd",
			Environment: cfg.Environment,
			Endpoint:    cfg.Telemetry.Endpoint,
			Insecure:    cfg.Telemetry.Insecure,
			Headers:     otel.ParseHeaders(cfg.Telemetry.Headers),
			Metrics:     cfg.Telemetry.Metrics,
			Traces:      cfg.Telemetry.Traces,
			SampleRatio: cfg.Telemetry.SampleRatio,
		})
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(flushCtx); err != nil {
				logger.Warn("telemetry shutdown", slog.Any("error", err))
			}
		}()
	}

	ix, err := indexer.Open(cfg.Indexer.DSN)
	switch {
	case errors.Is(err, indexer.ErrDisabled):
		ix = nil
	case err != nil:
		return fmt.Errorf("open event index: %w", err)
	default:
		defer ix.Close()
		logger.Info("event index enabled", slog.String("dsn", logging.MaskDSN(cfg.Indexer.DSN)))
	}

	if exportPath != "" {
		if ix == nil {
			return errors.New("event index disabled; set indexer.dsn to export")
		}
		n, err := ix.ExportParquet(ctx, exportPath, indexer.Filter{})
		if err != nil {
			return fmt.Errorf("export events: %w", err)
		}
		logger.Info("events exported", slog.String("path", exportPath), slog.Int("count", n))
		return nil
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	hub := rpc.NewHub()
	opts := []core.Option{core.WithLogger(logger), core.WithEventSink(hub)}
	var events rpc.EventStore
	if ix != nil {
		opts = append(opts, core.WithEventSink(ix))
		events = ix
	}
	protocol, err := core.New(db, operator, cfg.Genesis, opts...)
	if err != nil {
		return fmt.Errorf("start protocol: %w", err)
	}
	logger.Info("protocol ready",
		logging.MaskField("operator", crypto.FormatAddress(operator)),
		slog.Uint64("seq", protocol.Seq()),
		slog.Uint64("block_time", protocol.Now()))

	if jwtSecret == "" {
		logger.Warn("rpc authentication disabled; only public methods are served", slog.String("env", cfg.RPC.JWTSecretEnv))
	}
	server := rpc.NewServer(protocol, events, rpc.Config{
		RequestsPerMinute: cfg.RPC.RequestsPerMinute,
		Burst:             cfg.RPC.Burst,
		MaxRequestBytes:   cfg.RPC.MaxRequestBytes,
		JWTSecret:         jwtSecret,
		JWTIssuer:         cfg.RPC.JWTIssuer,
		Devnet:            cfg.RPC.Devnet,
		ReadHeaderTimeout: seconds(cfg.RPC.ReadHeaderTimeout),
		ReadTimeout:       seconds(cfg.RPC.ReadTimeout),
		WriteTimeout:      seconds(cfg.RPC.WriteTimeout),
		IdleTimeout:       seconds(cfg.RPC.IdleTimeout),
	}, logger).WithSubscriptions(hub)
	if err := server.Serve(ctx, cfg.RPCAddress); err != nil {
		return fmt.Errorf("rpc: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}

func seconds(v uint64) time.Duration {
	return time.Duration(v) * time.Second
}
