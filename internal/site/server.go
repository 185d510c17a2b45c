// Package site serves the bilingual marketing site and the hero endpoints.
package site

import (
	"bufio"
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/ivlev/elasticcanvas/internal/config"
	"github.com/ivlev/elasticcanvas/internal/contact"
	"github.com/ivlev/elasticcanvas/internal/hero"
	"github.com/ivlev/elasticcanvas/internal/i18n"
	"github.com/ivlev/elasticcanvas/internal/logging"
	"github.com/ivlev/elasticcanvas/internal/system"
)

//go:embed static
var staticFiles embed.FS

// exemptPrefixes are never redirected to a locale.
var exemptPrefixes = []string{"/api/", "/frames/", "/static/", "/health"}

type Deps struct {
	Config  *config.Config
	Hero    *hero.Hero
	Catalog *i18n.Catalog
	Contact *contact.Service
	Pool    *system.ImagePool
	Logger  *zap.Logger
}

type Server struct {
	cfg     *config.Config
	hero    *hero.Hero
	catalog *i18n.Catalog
	contact *contact.Service
	pool    *system.ImagePool
	logger  *zap.Logger

	httpServer *http.Server
}

func New(d Deps) *Server {
	pool := d.Pool
	if pool == nil {
		pool = system.NewImagePool()
	}
	return &Server{
		cfg:     d.Config,
		hero:    d.Hero,
		catalog: d.Catalog,
		contact: d.Contact,
		pool:    pool,
		logger:  logging.OrNop(d.Logger),
	}
}

// Handler builds the full routing tree.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/dictionary/{lang}", s.handleDictionary).Methods(http.MethodGet)
	api.HandleFunc("/hero/status", s.handleHeroStatus).Methods(http.MethodGet)
	api.HandleFunc("/hero/frame", s.handleHeroFrame).Methods(http.MethodGet)
	api.HandleFunc("/hero/still/{index:[0-9]+}", s.handleHeroStill).Methods(http.MethodGet)
	api.HandleFunc("/hero/poster.jpg", s.handlePoster).Methods(http.MethodGet)
	api.HandleFunc("/hero/scroll", s.handleScrollSocket).Methods(http.MethodGet)

	static, _ := fs.Sub(staticFiles, "static")
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.FS(static))))
	if dir := s.cfg.Site.FramesDir; dir != "" {
		r.PathPrefix("/frames/").Handler(http.StripPrefix("/frames/", http.FileServer(http.Dir(dir))))
	}

	r.HandleFunc("/{lang:[a-z]{2}}", s.handlePage("")).Methods(http.MethodGet)
	r.HandleFunc("/{lang:[a-z]{2}}/{page:about|craft|gallery}", s.handlePage("")).Methods(http.MethodGet)
	r.HandleFunc("/{lang:[a-z]{2}}/contact", s.handlePage("contact")).Methods(http.MethodGet)
	r.HandleFunc("/{lang:[a-z]{2}}/contact", s.handleContactSubmit).Methods(http.MethodPost)
	r.HandleFunc("/{lang:[a-z]{2}}/contact/qr.png", s.handleContactQR).Methods(http.MethodGet)

	return s.loggingMiddleware(s.localeRedirect(r))
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", zap.Int("port", s.cfg.Server.Port))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down HTTP server")
	timeout := s.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	return s.httpServer.Shutdown(shutdownCtx)
}

// localeRedirect sends page paths without a locale prefix to the
// negotiated locale. Two-letter first segments are left to the router.
func (s *Server) localeRedirect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		for _, p := range exemptPrefixes {
			if strings.HasPrefix(path, p) || path == strings.TrimSuffix(p, "/") {
				next.ServeHTTP(w, r)
				return
			}
		}
		if path == "/favicon.ico" || hasLocaleSegment(path) {
			next.ServeHTTP(w, r)
			return
		}

		locale := s.catalog.Negotiate(r.Header.Get("Accept-Language"))
		target := "/" + locale
		if path != "/" {
			target += path
		}
		if r.URL.RawQuery != "" {
			target += "?" + r.URL.RawQuery
		}
		http.Redirect(w, r, target, http.StatusTemporaryRedirect)
	})
}

func hasLocaleSegment(path string) bool {
	seg := strings.SplitN(strings.TrimPrefix(path, "/"), "/", 2)[0]
	if len(seg) != 2 {
		return false
	}
	for _, c := range seg {
		if c < 'a' || c > 'z' {
			return false
		}
	}
	return true
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		s.logger.Info("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote", r.RemoteAddr),
			zap.Int("status", wrapped.statusCode),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// responseWriter captures the status code and still allows websocket upgrades.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer cannot be hijacked")
	}
	rw.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}
