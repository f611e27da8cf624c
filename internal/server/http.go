package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"iocgo/internal/ioclog"
)

// WebSocketConfig declares one WebSocket endpoint and the subset of server
// inputs/outputs it exposes.
type WebSocketConfig struct {
	Path    string   `yaml:"path"`
	Inputs  []string `yaml:"inputs"`
	Outputs []string `yaml:"outputs"`
}

// MJPEGConfig declares one multipart/x-mixed-replace stream over a single
// Binary output.
type MJPEGConfig struct {
	Path   string `yaml:"path"`
	Output string `yaml:"output"`
}

// StaticConfig serves a directory of files (the browser UI) under Path.
type StaticConfig struct {
	Path string `yaml:"path"`
	Dir  string `yaml:"dir"`
}

const defaultAddr = ":8080"

// newMux registers every configured endpoint on a fresh ServeMux. Split
// from newHTTPServer so endpoint tests can mount the mux on an httptest
// server without binding the configured address.
func newMux(ctx context.Context, cfg Config, state *State) (*http.ServeMux, error) {
	mux := http.NewServeMux()
	for _, ws := range cfg.WebSocket {
		if ws.Path == "" {
			return nil, fmt.Errorf("websocket endpoint: path must not be empty")
		}
		mux.Handle(ws.Path, wsHandler(ctx, state, ws))
	}
	for _, mj := range cfg.MJPEG {
		if mj.Path == "" || mj.Output == "" {
			return nil, fmt.Errorf("mjpeg endpoint: path and output must not be empty")
		}
		if _, ok := state.outputs[mj.Output]; !ok {
			return nil, fmt.Errorf("mjpeg endpoint %q: output %q not declared", mj.Path, mj.Output)
		}
		mux.Handle(mj.Path, mjpegHandler(ctx, state, mj))
	}
	if cfg.Static != nil {
		path := cfg.Static.Path
		if path == "" {
			path = "/"
		}
		mux.Handle(path, http.StripPrefix(path, http.FileServer(http.Dir(cfg.Static.Dir))))
	}
	return mux, nil
}

func newHTTPServer(ctx context.Context, cfg Config, state *State) (*http.Server, error) {
	mux, err := newMux(ctx, cfg, state)
	if err != nil {
		return nil, err
	}
	addr := cfg.Addr
	if addr == "" {
		addr = defaultAddr
	}
	return &http.Server{Addr: addr, Handler: mux}, nil
}

// runHTTPServer serves until ctx is cancelled, then drains connections
// with a short grace period. Listen failures are logged, not fatal: the
// rest of the graph keeps running degraded, per the runtime error policy.
func runHTTPServer(ctx context.Context, srv *http.Server) {
	log := ioclog.For("server")
	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("http server listening")
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("http server exited")
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		log.Info("http server stopped")
	}
}
