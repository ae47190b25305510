// Package server exposes dashboard sessions over HTTP: upload or load a
// table, read its sidebar options, recompute the dashboard for a filter
// selection, run ad-hoc queries and export the filtered rows.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/spektr-org/lens/dashboard"
)

// Config holds everything the server needs.
type Config struct {
	Addr            string
	Variant         dashboard.Variant
	MaxUploadBytes  int64
	SessionKey      []byte
	MaxSessions     int
	SessionTTL      time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// SecureCookies marks the session cookie Secure. Leave it off when the
	// server is reached over plain HTTP or browsers will drop the cookie.
	SecureCookies bool

	// LoadRate limits table loads (uploads and reloads) per second across
	// all clients. Zero disables the limit.
	LoadRate  float64
	LoadBurst int

	// SessionOptions are applied to every dashboard session created.
	SessionOptions []dashboard.Option
	Logger         *slog.Logger
}

// Server is the lens HTTP server.
type Server struct {
	cfg      Config
	logger   *slog.Logger
	store    *Store
	cookies  *sessions.CookieStore
	metrics  *Metrics
	validate *validator.Validate
	loads    *rate.Limiter
}

// New builds a server. A missing session key is replaced by a random one,
// which invalidates browser cookies on restart.
func New(cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Variant == "" {
		cfg.Variant = dashboard.VariantRetail
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 32 << 20
	}
	if len(cfg.SessionKey) == 0 {
		cfg.SessionKey = securecookie.GenerateRandomKey(32)
		if cfg.SessionKey == nil {
			return nil, errors.New("failed to generate session key")
		}
	}

	cookies := sessions.NewCookieStore(cfg.SessionKey)
	cookies.MaxAge(int(cfg.SessionTTL / time.Second))
	cookies.Options.Path = "/"
	cookies.Options.HttpOnly = true
	cookies.Options.Secure = cfg.SecureCookies
	cookies.Options.SameSite = http.SameSiteLaxMode

	s := &Server{
		cfg:      cfg,
		logger:   cfg.Logger.With(slog.String("component", "server")),
		store:    NewStore(cfg.MaxSessions, cfg.SessionTTL),
		cookies:  cookies,
		metrics:  NewMetrics(),
		validate: validator.New(),
	}
	s.store.changed = s.metrics.setSessions
	if cfg.LoadRate > 0 {
		s.loads = rate.NewLimiter(rate.Limit(cfg.LoadRate), max(cfg.LoadBurst, 1))
	}
	return s, nil
}

// Store returns the session store.
func (s *Server) Store() *Store { return s.store }

// Handler returns the root router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		s.requestLogger,
		middleware.Recoverer,
	)

	r.Get("/healthz", s.health)
	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/api/sessions", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.With(s.limitLoads).Post("/", s.createSession)

		r.Route("/{id}", func(r chi.Router) {
			r.Use(s.sessionCtx)
			r.Get("/", s.getSession)
			r.Delete("/", s.deleteSession)
			r.With(s.limitLoads).Put("/data", s.reloadSession)
			r.Get("/filters", s.getFilters)
			r.Post("/dashboard", s.postDashboard)
			r.Post("/query", s.postQuery)
			r.Get("/export.{format}", s.export)
		})
	})
	return r
}

// Serve listens on the configured address until ctx is cancelled, then
// shuts down gracefully. Expired sessions are pruned once a minute.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener is Serve on an existing listener.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
	}

	s.logger.Info("serving dashboards",
		slog.String("addr", ln.Addr().String()),
		slog.String("variant", string(s.cfg.Variant)))

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-egctx.Done():
				return nil
			case <-ticker.C:
				if n := s.store.Prune(); n > 0 {
					s.logger.Debug("expired sessions pruned", slog.Int("count", n))
				}
			}
		}
	})

	eg.Go(func() error {
		<-egctx.Done()
		timeout := s.cfg.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		s.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// limitLoads rejects table loads beyond the configured rate.
func (s *Server) limitLoads(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.loads != nil && !s.loads.Allow() {
			w.Header().Set("Retry-After", "1")
			s.fail(w, r, errRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Int("bytes", ww.BytesWritten()),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())))
	})
}
