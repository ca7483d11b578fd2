// Command exploresvc runs the exploration server: it accepts player
// TCP connections directly, drives each player's long-lived Explore
// context, and maintains an outbound channel-multiplexer link to the
// platform server for whatever cross-service traffic rides it
// (CREATE_EXPLORE_REQ/RESP, FIGHT_SUCCESS_REQ/RESP, EXPLORE_END_SYNC).
package main

import (
	"context"
	"encoding/json"
	"errors"
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
	"github.com/lowtide/hexplore/internal/explore"
	"github.com/lowtide/hexplore/internal/hexmap"
	"github.com/lowtide/hexplore/internal/metrics"
	"github.com/lowtide/hexplore/internal/mux"
	"github.com/lowtide/hexplore/internal/router"
	"github.com/lowtide/hexplore/internal/session"
	"github.com/lowtide/hexplore/internal/store"
	appversion "github.com/lowtide/hexplore/internal/version"
)

// worldWidth/worldHeight bound the shared exploration grid. Not named
// in the service's own config keys (§6 only covers addressing and
// storage); fixed here well under hexmap's MaxMapWidth.
const (
	worldWidth  = 200
	worldHeight = 200
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

	logger.Info("exploresvc starting",
		slog.String("version", appversion.Version),
		slog.String("bind", fmt.Sprintf("%s:%d", cfg.Service.BindIP, cfg.Service.BindPort)),
	)

	gamedata, err := config.NewGameData(cfg.Service.ConfigDir)
	if err != nil {
		logger.Error("load game data", slog.String("error", err.Error()))
		return 1
	}

	st, err := store.Open(cfg.Service.PlayerDB)
	if err != nil {
		logger.Error("open player store", slog.String("error", err.Error()))
		return 1
	}
	defer st.Close()

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	grid := hexmap.NewMap(cfg.Service.ServerID, worldWidth, worldHeight, true, nil)
	exploreRegistry := explore.NewRegistry()
	saver := store.NewExploreSaver(st)

	rt := router.New(logger, nil, st, saver, gamedata, grid, collector, exploreRegistry)
	mgr := mux.NewManager(logger, rt, mux.ClientTypeExplore)
	rt.SetManager(mgr)
	defer rt.Shutdown()

	adminSrv := admin.New(fmt.Sprintf("%s:%d", cfg.Service.BindIP, cfg.Service.BindWebPort), gamedata, exploreRegistry, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		addr := fmt.Sprintf("%s:%d", cfg.Service.ExploreServerIP, cfg.Service.ExploreServerPort)
		logger.Info("player listener starting", slog.String("addr", addr))
		return runPlayerListener(gCtx, addr, rt, collector, logger)
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

	channelAddr := fmt.Sprintf("%s:%d", cfg.Service.ExploreChannelIP, cfg.Service.ExploreChannelPort)
	logger.Info("dialing platform channel", slog.String("addr", channelAddr))
	mgr.Dial(gCtx, channelAddr)

	if err := g.Wait(); err != nil && gCtx.Err() == nil {
		logger.Error("exploresvc exited with error", slog.String("error", err.Error()))
		return 1
	}

	logger.Info("exploresvc stopped")
	return 0
}

// runPlayerListener accepts direct client TCP connections and drives
// each through a short-lived handshake: the first frame must be a
// CREATE_EXPLORE_REQ, which AcceptClient turns into a bound Explore
// context.
func runPlayerListener(ctx context.Context, addr string, rt *router.Router, collector *metrics.Collector, logger *slog.Logger) error {
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
		go handlePlayerConn(ctx, conn, rt, collector, logger)
	}
}

// handlePlayerConn runs the short-lived per-connection handshake: read
// frames until CREATE_EXPLORE_REQ arrives, bind it to an Explore
// context, then let the session's own goroutine keep pumping frames
// (now routed by the bound Explore, not this function).
func handlePlayerConn(ctx context.Context, conn net.Conn, rt *router.Router, collector *metrics.Collector, logger *slog.Logger) {
	defer collector.SessionClosed()

	sess, handler := session.New(conn, logger)
	impl := &handshakeActor{rt: rt, handler: &handler}
	actorCtx := actor.New("handshake", logger, impl, &handler)

	sessDone := make(chan error, 1)
	go func() { sessDone <- sess.Run(ctx) }()

	if err := actorCtx.Run(ctx); err != nil {
		logger.Debug("player handshake ended", slog.String("error", err.Error()))
	}
	<-sessDone
}

// handshakeActor is the short-lived context bound to a freshly
// accepted player connection. Once a CREATE_EXPLORE_REQ frame is seen
// it binds the connection to the matching Explore and stops itself;
// the router's own handoff keeps the Handler alive under the Explore
// context from that point on.
type handshakeActor struct {
	rt      *router.Router
	handler *session.Handler
}

var errHandshakeComplete = fmt.Errorf("explore: handshake complete, handed off")

func (h *handshakeActor) DealMsg(_ context.Context, msg session.SocketMessage) error {
	if msg.Kind != session.SocketMessageFrame {
		return nil
	}
	f := msg.Frame
	if f.Main != explore.MainChannel || f.Sub != explore.SubCreateExploreReq {
		return nil
	}
	var req explore.CreateExploreReqPayload
	if err := json.Unmarshal(f.Payload, &req); err != nil {
		return fmt.Errorf("explore: decode create-explore request: %w", err)
	}
	h.rt.AcceptClient(req, h.handler)
	return errHandshakeComplete
}

func (h *handshakeActor) Check(ctx context.Context) (*session.Handler, error) {
	<-ctx.Done()
	return nil, nil
}

func (h *handshakeActor) OnClose() {}

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
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
