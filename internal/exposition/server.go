package exposition

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/common/expfmt"

	"github.com/padmexporter/padmexporter/internal/store"
)

// NewRouter builds the exporter's HTTP routes over the given store.
func NewRouter(st *store.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)

	r.Get("/metrics", metricsHandler(st))
	r.Get("/healthz", healthz)
	return r
}

// metricsHandler renders the current snapshot on every scrape. It must not
// fail on upstream unavailability: before the first successful poll it
// simply serves an (almost) empty document.
func metricsHandler(st *store.Store) http.HandlerFunc {
	format := expfmt.NewFormat(expfmt.TypeTextPlain)
	return func(w http.ResponseWriter, r *http.Request) {
		families := render(st.Snapshot())

		w.Header().Set("Content-Type", string(format))
		enc := expfmt.NewEncoder(w, format)
		for _, mf := range families {
			if err := enc.Encode(mf); err != nil {
				slog.Error("exposition: encode failed", "family", mf.GetName(), "err", err)
				return
			}
		}
	}
}

func healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"}) //nolint:errcheck
}

// Server wraps the exporter's HTTP listener with sane timeouts and a
// graceful shutdown hook.
type Server struct {
	http *http.Server
}

// NewServer binds the router to addr.
func NewServer(addr string, st *store.Store) *Server {
	return &Server{
		http: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(st),
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      10 * time.Second,
		},
	}
}

// Serve blocks serving requests on lis until Shutdown or a listener error.
// The caller owns the listener so bind failures can abort startup.
func (s *Server) Serve(lis net.Listener) error {
	slog.Info("exposition: listening", "addr", s.http.Addr)
	return s.http.Serve(lis)
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
