package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path"
	"regexp"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"fridgefeast/internal/session"
)

func runServer(ctx context.Context, a *app, addr string) error {
	sessions := newSessionServer(ctx, a)
	srv := &http.Server{
		Addr:              addr,
		Handler:           routes(a, sessions),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	srv.RegisterOnShutdown(sessions.shutdown)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.InfoContext(ctx, "serving fridgefeast", "addr", addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		slog.InfoContext(shutdownCtx, "shutting down")
		err := srv.Shutdown(shutdownCtx)
		sessions.wait()
		return err
	})
	return g.Wait()
}

func routes(a *app, sessions *sessionServer) http.Handler {
	ready := newReadiness()
	if r, ok := a.cache.(readyChecker); ok {
		ready = newReadiness(r.Ready)
	}
	mux := http.NewServeMux()
	mux.Handle("/ready", ready)
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/session", sessions)
	return instrument(mux)
}

var clientID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// favoritesKey scopes the configured favorites key to a client id.
func favoritesKey(base, client string) (string, error) {
	if client == "" {
		return base, nil
	}
	if !clientID.MatchString(client) {
		return "", fmt.Errorf("invalid client id %q", client)
	}
	return path.Join("clients", client, base), nil
}

// sessionServer runs one controller per websocket connection.
type sessionServer struct {
	app    *app
	ctx    context.Context
	cancel context.CancelFunc
	conns  sync.WaitGroup
}

func newSessionServer(ctx context.Context, a *app) *sessionServer {
	ctx, cancel := context.WithCancel(ctx)
	return &sessionServer{app: a, ctx: ctx, cancel: cancel}
}

func (s *sessionServer) shutdown() {
	s.cancel()
}

func (s *sessionServer) wait() {
	s.conns.Wait()
}

type errorFrame struct {
	Error string `json:"error"`
}

func (s *sessionServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key, err := favoritesKey(s.app.cfg.Favorites.Key, r.URL.Query().Get("client"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		slog.ErrorContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}
	s.conns.Add(1)
	defer s.conns.Done()
	s.serve(conn, key)
}

func (s *sessionServer) serve(conn net.Conn, key string) {
	ctx, cancel := context.WithCancel(s.ctx)
	defer func() {
		_ = conn.Close()
	}()

	var (
		mu      sync.Mutex
		sent    bool
		version uint64
	)
	write := func(v any) {
		data, err := json.Marshal(v)
		if err != nil {
			slog.ErrorContext(ctx, "failed to encode frame", "error", err)
			return
		}
		if err := wsutil.WriteServerMessage(conn, ws.OpText, data); err != nil {
			slog.DebugContext(ctx, "websocket write failed", "error", err)
			cancel()
		}
	}
	push := func(snap session.Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		// observers may race; never send an older snapshot after a newer one
		if sent && snap.Version <= version {
			return
		}
		sent, version = true, snap.Version
		write(snap)
	}

	c := s.app.newSession(ctx, key, session.WithObserver(push))
	slog.InfoContext(ctx, "websocket session opened", "session", c.ID(), "favorites", key)
	push(c.Snapshot())

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	var commands sync.WaitGroup
	for {
		data, op, err := wsutil.ReadClientData(conn)
		if err != nil {
			break
		}
		if op != ws.OpText {
			continue
		}
		var cmd command
		if err := json.Unmarshal(data, &cmd); err != nil {
			mu.Lock()
			write(errorFrame{Error: "malformed command"})
			mu.Unlock()
			continue
		}
		commands.Add(1)
		go func() {
			defer commands.Done()
			if err := dispatch(ctx, c, cmd); err != nil {
				slog.DebugContext(ctx, "command rejected", "session", c.ID(), "action", cmd.Action, "error", err)
				mu.Lock()
				write(errorFrame{Error: err.Error()})
				mu.Unlock()
			}
		}()
	}

	cancel()
	commands.Wait()
	c.Close()
	slog.InfoContext(ctx, "websocket session closed", "session", c.ID())
}
