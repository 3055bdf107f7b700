package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/voicebridge/internal/adapters/http"
	"github.com/dkeye/voicebridge/internal/adapters/janus"
	wssignal "github.com/dkeye/voicebridge/internal/adapters/signal"
	"github.com/dkeye/voicebridge/internal/app"
	"github.com/dkeye/voicebridge/internal/app/negotiation"
	"github.com/dkeye/voicebridge/internal/app/orch"
	"github.com/dkeye/voicebridge/internal/config"
	"github.com/dkeye/voicebridge/internal/core"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Mode != "debug" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	if err := run(ctx, cfg); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("Server exited gracefully")
}

func run(ctx context.Context, cfg *config.Config) error {
	var (
		media core.MediaService
		jc    *janus.Client
	)
	if cfg.Media.Enabled {
		jc = janus.NewClient(janus.Config{
			URL:       cfg.Media.URL,
			APISecret: cfg.Media.APISecret,
			Timeout:   cfg.Media.Timeout,
			KeepAlive: cfg.Media.KeepAlive,
		})
		connectCtx, connectCancel := context.WithTimeout(ctx, cfg.Media.Timeout)
		err := jc.Connect(connectCtx)
		connectCancel()
		if err != nil {
			return fmt.Errorf("connect media service: %w", err)
		}
		media = jc
	} else {
		log.Warn().Str("module", "main").Msg("media service disabled, rooms are local only")
		media = app.NewLocalMedia()
	}

	var ledger janus.Ledger = janus.NewMemoryLedger()
	if cfg.Ledger.Path != "" {
		sq, err := janus.OpenSQLiteLedger(cfg.Ledger.Path)
		if err != nil {
			return fmt.Errorf("open orphan ledger: %w", err)
		}
		ledger = sq
	}
	defer func() { _ = ledger.Close() }()

	var policy app.Policy = app.SimplePolicy{}
	if cfg.Backpressure == "lenient" {
		policy = app.LenientPolicy{}
	}

	reg := app.NewRegistry()
	rooms := app.NewRoomManager(media, app.WithOrphans(ledger))
	hub := wssignal.NewHub(policy, wssignal.WithKick(reg.Cancel))
	o := orch.New(reg, rooms, negotiation.NewTable(), hub)
	ctl := wssignal.NewSignalWSController(o, hub, wssignal.Options{
		SendBuffer:   cfg.SendBuffer,
		ReadLimit:    cfg.ReadLimit,
		PingPeriod:   cfg.PingPeriod,
		PongWait:     cfg.PongWait,
		WriteTimeout: cfg.WriteTimeout,
		OpTimeout:    cfg.OpTimeout,
		RoomOps:      wssignal.NewRoomRateLimiter(cfg.RateLimit.Limit, cfg.RateLimit.Window),
	})

	r := router.SetupRouter(ctx, cfg, o, ctl)
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("Voice server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	var bg conc.WaitGroup
	if jc != nil {
		bg.Go(func() { jc.KeepAlive(gctx) })
	}
	reconciler := &janus.Reconciler{
		Ledger:      ledger,
		Media:       media,
		Interval:    cfg.Ledger.Interval,
		MaxAttempts: cfg.Ledger.MaxAttempts,
	}
	bg.Go(func() { reconciler.Run(gctx) })
	bg.Go(func() { rooms.RunReaper(gctx, cfg.IdleRoomTTL) })

	err := g.Wait()
	bg.Wait()

	if jc != nil {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		if cerr := jc.Close(closeCtx); cerr != nil {
			log.Warn().Err(cerr).Str("module", "main").Msg("janus close")
		}
	}
	return err
}
