package callback

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/samber/oops"
	slogctx "github.com/veqryn/slog-context"

	"github.com/waabox/ghlconnect/internal/domain"
)

const (
	defaultPath           = "/oauth/callback"
	defaultRequestTimeout = 15 * time.Second
	defaultHandlerTTL     = 10 * time.Minute
	shutdownTimeout       = 5 * time.Second
)

// Options configures a Server.
type Options struct {
	// Path is where the provider redirects to. Defaults to /oauth/callback.
	Path string
	// PublicOrigin is the scheme://host part of the redirect URI sent to the backend.
	// When empty it is derived from each request.
	PublicOrigin string
	// DisplayOnly skips the exchange and only shows the received parameters.
	DisplayOnly bool
	// RequestTimeout bounds the exchange call.
	RequestTimeout time.Duration
	// HandlerTTL is how long repeated deliveries of the same code share one handler.
	HandlerTTL time.Duration
	// OnOutcome, if set, is called once per handler when its outcome becomes final.
	OnOutcome func(Outcome)
}

// Server serves the OAuth callback page.
type Server struct {
	exchanger domain.TokenExchanger
	opts      Options
	// handlers maps an authorization code to the *Handler that owns it, so a browser
	// refresh of the same redirect never redeems the code twice.
	handlers *cache.Cache
	mux      *http.ServeMux
}

// NewServer creates a callback server that redeems codes through exchanger.
func NewServer(exchanger domain.TokenExchanger, opts Options) *Server {
	if opts.Path == "" {
		opts.Path = defaultPath
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	if opts.HandlerTTL <= 0 {
		opts.HandlerTTL = defaultHandlerTTL
	}
	s := &Server{
		exchanger: exchanger,
		opts:      opts,
		handlers:  cache.New(opts.HandlerTTL, 2*opts.HandlerTTL),
		mux:       http.NewServeMux(),
	}
	s.mux.HandleFunc("GET "+opts.Path, s.serveCallback)
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	s.mux.HandleFunc("GET /{$}", s.serveIndex)
	return s
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) serveCallback(w http.ResponseWriter, r *http.Request) {
	ctx := slogctx.Append(r.Context(), "path", r.URL.Path)
	params := r.URL.Query()
	h := s.handlerFor(params, s.redirectURI(r))

	// The single exchange attempt must outlive the browser connection that started it.
	exCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.RequestTimeout)
	defer cancel()
	outcome := h.Handle(exCtx)

	var buf bytes.Buffer
	if err := RenderPage(&buf, outcome, s.opts.DisplayOnly); err != nil {
		slogctx.Error(ctx, "rendering callback page", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(statusCode(outcome))
	_, _ = w.Write(buf.Bytes())
}

// handlerFor returns the handler owning params. Redirects carrying the same code
// share a handler; anything else gets a fresh one.
func (s *Server) handlerFor(params url.Values, redirectURI string) *Handler {
	var exchanger domain.TokenExchanger
	if !s.opts.DisplayOnly {
		exchanger = s.exchanger
	}
	h := newHandler(exchanger, params, redirectURI, s.opts.OnOutcome)

	code := h.params.Get("code")
	if s.opts.DisplayOnly || code == "" {
		return h
	}
	if err := s.handlers.Add(code, h, cache.DefaultExpiration); err == nil {
		return h
	}
	if existing, ok := s.handlers.Get(code); ok {
		return existing.(*Handler)
	}
	// Expired between Add and Get.
	s.handlers.SetDefault(code, h)
	return h
}

// redirectURI is the absolute URL of the callback route as the provider reached it.
func (s *Server) redirectURI(r *http.Request) string {
	origin := s.opts.PublicOrigin
	if origin == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}
		origin = scheme + "://" + r.Host
	}
	return origin + s.opts.Path
}

func (s *Server) serveIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ghlconnect callback server: waiting for redirects on " + s.opts.Path + "\n"))
}

func statusCode(o Outcome) int {
	switch {
	case o.Status != domain.StatusError:
		return http.StatusOK
	case o.Message == MsgMissingCode:
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

// ListenAndServe listens on addr and serves until ctx is cancelled.
// addr may be given as network://address (e.g. unix:///tmp/cb.sock); tcp is the default.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	network := "tcp"
	if n, a, ok := strings.Cut(addr, "://"); ok && n != "" {
		network, addr = n, a
	}
	listener, err := new(net.ListenConfig).Listen(ctx, network, addr)
	if err != nil {
		return oops.In("Callback Server").
			With("address", addr).
			Wrapf(err, "Failed to create a listener")
	}
	return s.Serve(ctx, listener)
}

// Serve serves on listener until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	server := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       30 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		slogctx.Info(ctx, "Serving the OAuth callback", "address", listener.Addr().String(), "path", s.opts.Path)
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return oops.In("Callback Server").Wrapf(err, "Failed to serve")
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, release := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer release()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return oops.In("Callback Server").Wrapf(err, "Failed shutting down the callback server")
	}
	slogctx.Info(ctx, "Completed graceful shutdown of the callback server")
	return nil
}
