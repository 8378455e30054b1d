// Package omnid composes the omni daemon: key material, modules, the server
// and its transports.
package omnid

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"

	"golang.org/x/sync/errgroup"

	"omni/go-backend/internal/adapters/grpcrpc"
	"omni/go-backend/internal/adapters/rpc"
	"omni/go-backend/internal/config"
	"omni/go-backend/internal/identity"
	"omni/go-backend/internal/platform/metrics"
	"omni/go-backend/internal/securestore"
	"omni/go-backend/internal/server"
	"omni/go-backend/internal/server/account"
)

const componentName = "omnid"

type Options struct {
	Version string
	Logger  *slog.Logger
}

type Daemon struct {
	cfg     config.Config
	logger  *slog.Logger
	metrics *metrics.Collector
	server  *server.Server
	http    *rpc.Server
	grpc    *grpcrpc.Server
}

func New(cfg config.Config, opts Options) (*Daemon, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	keys, err := LoadOrCreateKey(cfg.Server.KeyFile, cfg.Server.KeyPassphrase, logger)
	if err != nil {
		return nil, err
	}
	collector := metrics.New()

	var modules []server.Module
	if cfg.Accounts.Enabled {
		storeOpts := account.StoreOptions{Metrics: collector, Logger: logger}
		if cfg.Accounts.StatePath != "" {
			storeOpts.Persister = securestore.NewFile(cfg.Accounts.StatePath, cfg.Accounts.Passphrase)
		}
		store, err := account.NewStore(keys.Identity(), storeOpts)
		if err != nil {
			return nil, fmt.Errorf("open account store: %w", err)
		}
		modules = append(modules, account.NewModule(store))
	}

	srv, err := server.New(keys, server.Options{
		Name:            cfg.Server.Name,
		Version:         opts.Version,
		Logger:          logger,
		Metrics:         collector,
		SenderRateLimit: cfg.Server.RateLimit.Limiter(),
	}, modules...)
	if err != nil {
		return nil, err
	}

	httpSrv, err := rpc.NewServer(cfg.Server.Listen, srv, rpc.Options{
		RateLimit: cfg.Server.RateLimit.Limiter(),
		Metrics:   collector,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	d := &Daemon{cfg: cfg, logger: logger, metrics: collector, server: srv, http: httpSrv}
	if cfg.Server.GRPCListen != "" {
		d.grpc = grpcrpc.NewServer(srv, grpcrpc.Options{
			RateLimit: cfg.Server.RateLimit.Limiter(),
			Metrics:   collector,
			Logger:    logger,
		})
	}
	logger.Info("omni server ready",
		"component", componentName,
		"operation", "build",
		"identity", srv.Identity().String(),
		"endpoints", len(srv.Endpoints()),
		"accounts", cfg.Accounts.Enabled,
	)
	return d, nil
}

func (d *Daemon) Server() *server.Server { return d.server }

// Run listens on the configured addresses and serves until ctx is
// cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	httpLn, err := net.Listen("tcp", d.http.Addr())
	if err != nil {
		return err
	}
	var grpcLn net.Listener
	if d.grpc != nil {
		addr, err := rpc.ResolveListenAddr(d.cfg.Server.GRPCListen)
		if err != nil {
			_ = httpLn.Close()
			return err
		}
		grpcLn, err = net.Listen("tcp", addr)
		if err != nil {
			_ = httpLn.Close()
			return err
		}
	}
	return d.Serve(ctx, httpLn, grpcLn)
}

// Serve runs the transports on the given listeners. grpcLn is ignored when
// gRPC is not configured.
func (d *Daemon) Serve(ctx context.Context, httpLn, grpcLn net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return d.http.Serve(gctx, httpLn) })
	if d.grpc != nil && grpcLn != nil {
		g.Go(func() error { return d.grpc.Serve(gctx, grpcLn) })
	} else if grpcLn != nil {
		_ = grpcLn.Close()
	}
	return g.Wait()
}

// LoadOrCreateKey derives the server key from the mnemonic in path. A missing
// file gets a fresh mnemonic; an empty path yields an ephemeral key.
func LoadOrCreateKey(path, passphrase string, logger *slog.Logger) (*identity.KeyPair, error) {
	if path == "" {
		logger.Warn("no key file configured, using an ephemeral identity",
			"component", componentName,
			"operation", "load_key",
		)
		return identity.GenerateKeyPair()
	}
	kp, err := identity.LoadKeyFile(path, passphrase)
	if err == nil {
		return kp, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	mnemonic, err := identity.NewMnemonic()
	if err != nil {
		return nil, err
	}
	if err := identity.WriteKeyFile(path, mnemonic); err != nil {
		return nil, fmt.Errorf("write key file: %w", err)
	}
	logger.Info("generated new server key",
		"component", componentName,
		"operation", "load_key",
		"key_file", path,
	)
	return identity.KeyPairFromMnemonic(mnemonic, passphrase)
}
