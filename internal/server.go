package internal

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"connectrpc.com/grpchealth"
	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/kazz187/workguild/internal/api"
	"github.com/kazz187/workguild/internal/config"
	"github.com/kazz187/workguild/internal/metrics"
	"github.com/kazz187/workguild/pkg/cerr"
	"github.com/kazz187/workguild/pkg/clog"
)

// publicPaths are served without an API key so probes and scrapers work.
var publicPaths = []string{"/health", "/metrics", clog.HealthCheckProcedure}

type Server struct {
	server  *http.Server
	env     *config.Env
	handler *api.Handler
	metrics *metrics.Metrics
}

func NewServer(env *config.Env, handler *api.Handler, m *metrics.Metrics) *Server {
	return &Server{env: env, handler: handler, metrics: m}
}

// Handler assembles the API router, health probes and /metrics behind the
// API key check, CORS and h2c.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", s.metrics.Handler())
	mux.Handle("/api/", s.apiRouter())
	mux.Handle(grpchealth.NewHandler(
		grpchealth.NewStaticChecker(),
		connect.WithInterceptors(
			clog.NewSlogConnectInterceptor(clog.SkipPaths(clog.HealthCheckProcedure)),
			cerr.NewConvertConnectErrorInterceptor(),
		),
	))

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{clog.RequestIDHeader},
		AllowCredentials: true,
	})
	return h2c.NewHandler(c.Handler(requireAPIKey(s.env.APIKey, mux)), &http2.Server{})
}

func (s *Server) apiRouter() chi.Router {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Use(clog.SlogChiMiddleware(), cerr.NewConvertConnectErrorChiMiddleware())
		s.handler.Routes(r)
		r.NotFound(func(_ http.ResponseWriter, r *http.Request) {
			cerr.SetNewJSONError(r.Context(), cerr.NotFound, "not found", nil)
		})
		r.MethodNotAllowed(func(_ http.ResponseWriter, r *http.Request) {
			cerr.SetNewJSONError(r.Context(), cerr.Unimplemented, "method not allowed", nil)
		})
	})
	return r
}

// ListenAndServe uses ctx as the base context of every request, so
// cancelling it also cancels in-flight runs.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.server = &http.Server{
		Addr:        net.JoinHostPort(s.env.HTTPHost, s.env.HTTPPort),
		Handler:     s.Handler(),
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// requireAPIKey accepts the key as X-API-Key or as a bearer token.
func requireAPIKey(key string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, p := range publicPaths {
			if r.URL.Path == p {
				next.ServeHTTP(w, r)
				return
			}
		}
		got := r.Header.Get("X-API-Key")
		if got == "" {
			got, _ = strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		}
		if key == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
