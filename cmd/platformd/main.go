// Command platformd runs the platform server: the channel-multiplexer
// counterparty exploresvc dials into, plus an admin/metrics surface.
// Per-player game state lives entirely in exploresvc (internal/explore);
// platformd's own player-facing listener exercises the same
// session/actor runtime for whatever pre-exploration traffic the
// project's message catalogue defines (login, lobby), represented here
// by a heartbeat-only stub context.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/lowtide/hexplore/internal/actor"
	"github.com/lowtide/hexplore/internal/admin"
	"github.com/lowtide/hexplore/internal/config"
	"github.com/lowtide/hexplore/internal/metrics"
	"github.com/lowtide/hexplore/internal/mux"
	"github.com/lowtide/hexplore/internal/session"
	"github.com/lowtide/hexplore/internal/wire"
	appversion "github.com/lowtide/hexplore/internal/version"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to service INI config")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("load config", slog.String("error", err.Error()))
		return 1
	}

	logLevel := new(slog.LevelVar)
	logLevel.Set(config.ParseLogLevel(cfg.Log.Level, cfg.Service.LogTrace))
	logger := newLogger(cfg.Log, logLevel)

	logger.Info("platformd starting",
		slog.String("version", appversion.Version),
		slog.String("bind", fmt.Sprintf("%s:%d", cfg.Service.BindIP, cfg.Service.BindPort)),
		slog.Int("channel_port", int(cfg.Service.ChannelPort)),
	)

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	sink := &loggingSink{logger: logger}
	mgr := mux.NewManager(logger, sink, mux.ClientTypePlatform)

	// platformd owns no explore state and never hot-reloads game
	// content of its own, so both of admin.New's domain arguments are
	// nil; it still gets the read-only peer-inspection value of the
	// admin surface for free once §6's admin contract grows a
	// peers endpoint.
	adminSrv := admin.New(fmt.Sprintf("%s:%d", cfg.Service.BindIP, cfg.Service.BindWebPort), nil, nil, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		addr := fmt.Sprintf("%s:%d", cfg.Service.BindIP, cfg.Service.ChannelPort)
		logger.Info("channel listener starting", slog.String("addr", addr))
		return listenChannel(gCtx, addr, mgr)
	})

	g.Go(func() error {
		addr := fmt.Sprintf("%s:%d", cfg.Service.BindIP, cfg.Service.BindPort)
		logger.Info("player listener starting", slog.String("addr", addr))
		return runPlayerListener(gCtx, addr, collector, logger)
	})

	g.Go(func() error {
		logger.Info("metrics listening", slog.String("addr", cfg.Metrics.Addr))
		httpMux := http.NewServeMux()
		httpMux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		return serveHTTP(gCtx, cfg.Metrics.Addr, httpMux)
	})

	g.Go(func() error {
		logger.Info("admin listening", slog.Int("port", int(cfg.Service.BindWebPort)))
		return adminSrv.Run(gCtx)
	})

	if err := g.Wait(); err != nil && gCtx.Err() == nil {
		logger.Error("platformd exited with error", slog.String("error", err.Error()))
		return 1
	}

	logger.Info("platformd stopped")
	return 0
}

// listenChannel binds the channel-multiplexer listening socket that
// exploresvc dials into.
func listenChannel(ctx context.Context, addr string, mgr *mux.Manager) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	if err := mgr.Serve(ctx, ln); err != nil {
		return fmt.Errorf("serve channel on %s: %w", addr, err)
	}
	return nil
}

// loggingSink is platformd's FrameSink: it has no per-player state of
// its own, so every application frame arriving from exploresvc (the
// CREATE_EXPLORE_RESP/FIGHT_SUCCESS_RESP/EXPLORE_END_SYNC traffic
// named in §6) is simply logged for operator visibility.
type loggingSink struct {
	logger *slog.Logger
}

func (s *loggingSink) HandleFrame(peerID mux.ID, f wire.Frame) {
	s.logger.Info("channel frame received",
		slog.Uint64("peer_id", uint64(peerID)),
		slog.Uint64("main", uint64(f.Main)),
		slog.Uint64("sub", uint64(f.Sub)),
		slog.Int("payload_len", len(f.Payload)),
	)
}

// runPlayerListener runs a bare session/actor pair per connection: no
// business logic lives here (that is entirely exploresvc's domain), and
// no heartbeat is sent or checked: a connection stays open until its
// session ends or the service shuts down.
func runPlayerListener(ctx context.Context, addr string, collector *metrics.Collector, logger *slog.Logger) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("accept on %s: %w", addr, err)
			}
		}
		collector.SessionOpened()
		go handlePlayerConn(ctx, conn, collector, logger)
	}
}

func handlePlayerConn(ctx context.Context, conn net.Conn, collector *metrics.Collector, logger *slog.Logger) {
	defer collector.SessionClosed()

	sess, handler := session.New(conn, logger)
	actorCtx := actor.New("front-desk", logger, &frontDeskActor{}, &handler)

	sessDone := make(chan error, 1)
	go func() { sessDone <- sess.Run(ctx) }()

	if err := actorCtx.Run(ctx); err != nil {
		logger.Debug("front-desk context stopped", slog.String("error", err.Error()))
	}
	<-sessDone
}

// frontDeskActor ignores every frame, heartbeats included, and sends
// nothing; it exercises the session/actor runtime without inventing undocumented
// platform business logic.
type frontDeskActor struct{}

func (frontDeskActor) DealMsg(context.Context, session.SocketMessage) error { return nil }

func (frontDeskActor) Check(ctx context.Context) (*session.Handler, error) {
	<-ctx.Done()
	return nil, nil
}

func (frontDeskActor) OnClose() {}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.DefaultConfig(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config from %s: %w", path, err)
	}
	return cfg, nil
}

func newLogger(cfg config.LogConfig, level *slog.LevelVar) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func serveHTTP(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}
