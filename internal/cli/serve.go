package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/BrandonDHaskell/rollcall/internal/config"
	"github.com/BrandonDHaskell/rollcall/internal/db"
	"github.com/BrandonDHaskell/rollcall/internal/gateway"
	"github.com/BrandonDHaskell/rollcall/internal/grpcapi"
	"github.com/BrandonDHaskell/rollcall/internal/httpapi"
	"github.com/BrandonDHaskell/rollcall/internal/logger"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/bus"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/reader"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/service"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/store"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/store/memory"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/store/natskv"
	sqlitestore "github.com/BrandonDHaskell/rollcall/internal/rollcall/store/sqlite"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the attendance server",
		Long: `Run the HTTP API, live websocket sync, gRPC API and, when scan_input
is set, a line reader feeding badge scans from a file or stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(rootOpts.ConfigPath)
			if err != nil {
				return err
			}
			if rootOpts.LogLevel != "" {
				cfg.LogLevel = rootOpts.LogLevel
			}
			log, err := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.Env == "dev"})
			if err != nil {
				return fmt.Errorf("logger: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := NewApp(ctx, cfg, log, cmd.InOrStdin())
			if err != nil {
				return err
			}
			defer app.Close()

			return app.Run(ctx)
		},
	}
}

// App is a fully wired server.
type App struct {
	cfg    config.Config
	logger zerolog.Logger

	Bus        *bus.Bus
	Engine     *service.Engine
	Dispatcher *service.Dispatcher
	Gateway    *gateway.Gateway
	HTTP       *httpapi.Server
	GRPC       *grpcapi.Server // nil when grpc_addr is empty

	refresher  *service.SnapshotRefresher
	lineSource *reader.LineSource
	closers    []func() error
}

// NewApp opens the configured store and wires every component. stdin is
// used when scan_input is "-".
func NewApp(ctx context.Context, cfg config.Config, log zerolog.Logger, stdin io.Reader) (*App, error) {
	scheme, err := service.ParseKeyScheme(cfg.LedgerKeys)
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, logger: log}

	st, readerStore, err := a.openStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Bus = bus.New()
	a.Engine = service.NewEngine(
		service.NewPresenceSet(st),
		service.NewTimeLedger(st, scheme),
		a.Bus, service.SystemClock{}, log,
	)
	a.Dispatcher = service.NewDispatcher(a.Engine, log)
	a.closers = append(a.closers, func() error { a.Dispatcher.Close(); return nil })

	a.Gateway = gateway.New(a.Dispatcher, gateway.Config{}, log)
	a.Bus.Subscribe(a.Gateway)

	readers := service.NewReaderRegistry(readerStore)

	a.HTTP = httpapi.NewServer(httpapi.Dependencies{
		Logger:     log,
		Addr:       cfg.HTTPAddr,
		Attendance: a.Dispatcher,
		Readers:    readers,
		Gateway:    a.Gateway,
		WebRoot:    cfg.WebRoot,
	})

	if cfg.GRPCAddr != "" {
		svc := grpcapi.NewService(grpcapi.Dependencies{
			Logger:     log,
			Attendance: a.Dispatcher,
			Readers:    readers,
			Bus:        a.Bus,
		})
		a.GRPC = grpcapi.NewServer(cfg.GRPCAddr, svc, log)
	}

	a.refresher = service.NewSnapshotRefresher(a.Dispatcher, service.RefresherConfig{
		IntervalSeconds: cfg.ResyncIntervalSeconds,
	}, log)

	if cfg.ScanInput != "" {
		src, name := stdin, "stdin"
		if cfg.ScanInput != "-" {
			f, err := os.Open(cfg.ScanInput)
			if err != nil {
				a.Close()
				return nil, fmt.Errorf("open scan input: %w", err)
			}
			a.closers = append(a.closers, f.Close)
			src, name = f, cfg.ScanInput
		}
		a.lineSource = reader.NewLineSource(name, src, a.Dispatcher, log)
	}

	log.Info().
		Str("store", cfg.Store).
		Str("ledger_keys", scheme.String()).
		Int("known_readers", len(cfg.KnownReaders)).
		Msg("attendance core ready")
	return a, nil
}

// openStore returns the attendance store and the reader allow-list. The
// sqlite backend persists known_readers; the others keep them in memory.
func (a *App) openStore(ctx context.Context) (store.Store, store.ReaderStore, error) {
	switch a.cfg.Store {
	case "memory":
		a.logger.Warn().Msg("using in-memory store; attendance is lost on restart")
		return memory.New(), memory.NewReaderStore(a.cfg.KnownReaders), nil

	case "nats":
		st, err := natskv.Connect(ctx, natskv.Config{
			URL:          a.cfg.NATSURL,
			BucketPrefix: a.cfg.NATSBucketPrefix,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("nats store: %w", err)
		}
		a.closers = append(a.closers, st.Close)
		return st, memory.NewReaderStore(a.cfg.KnownReaders), nil

	default:
		sqlDB, err := db.Open(ctx, db.Config{Path: a.cfg.DBPath})
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite store: %w", err)
		}
		writer := db.NewWorker(sqlDB)
		a.closers = append(a.closers, sqlDB.Close, func() error { writer.Close(); return nil })

		readers := sqlitestore.NewReaderStore(sqlDB, writer)
		if err := readers.Enroll(ctx, a.cfg.KnownReaders, time.Now()); err != nil {
			return nil, nil, fmt.Errorf("enroll readers: %w", err)
		}
		return sqlitestore.NewStore(sqlDB, writer), readers, nil
	}
}

// Run serves until ctx is cancelled or a listener fails, then shuts
// everything down.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errc := make(chan error, 3)

	go func() {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http listening")
		if err := a.HTTP.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("http: %w", err)
		}
	}()

	if a.GRPC != nil {
		go func() {
			if err := a.GRPC.Start(); err != nil {
				errc <- fmt.Errorf("grpc: %w", err)
			}
		}()
	}

	if a.lineSource != nil {
		go func() {
			if err := a.lineSource.Run(ctx); err != nil {
				errc <- fmt.Errorf("scan input: %w", err)
			}
		}()
	}

	a.refresher.Start(ctx)

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info().Msg("shutting down")
	case runErr = <-errc:
		a.logger.Error().Err(runErr).Msg("server error")
	}

	a.refresher.Stop()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	a.Gateway.Close()
	_ = a.HTTP.Shutdown(shutdownCtx)
	if a.GRPC != nil {
		a.GRPC.Stop(shutdownCtx)
	}
	return runErr
}

// Close releases the store and stops the dispatcher. Closers run in
// reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn().Err(err).Msg("close")
		}
	}
	a.closers = nil
}
