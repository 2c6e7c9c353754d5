package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/collision-weather-etl/internal/domain"
)

// ReportProvider returns the quality report of the last completed run, if any.
type ReportProvider interface {
	LastReport() (domain.QualityReport, bool)
}

// Status is the pipeline view the server needs: readiness plus the last report.
type Status interface {
	sharedobs.ReadinessChecker
	ReportProvider
}

// Server exposes health, readiness, report, and metrics HTTP endpoints while a
// run is in progress.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /report, and /metrics routes.
func NewServer(addr string, status Status, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(status))
	mux.HandleFunc("GET /report", handleReport(status))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type reportResponse struct {
	Total          int       `json:"total"`
	MissingWeather int       `json:"missing_weather"`
	Coverage       string    `json:"coverage"`
	GeneratedAt    time.Time `json:"generated_at"`
	Samples        []sample  `json:"samples"`
}

type sample struct {
	ID          string   `json:"id"`
	MergeKey    *string  `json:"merge_key"`
	Temperature *float64 `json:"temperature"`
	Description *string  `json:"weather_desc"`
}

func handleReport(reports ReportProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		report, ok := reports.LastReport()
		if !ok {
			sharedobs.WriteJSON(w, http.StatusNotFound, map[string]string{"status": "no completed run"})
			return
		}

		resp := reportResponse{
			Total:          report.Total,
			MissingWeather: report.MissingWeather,
			Coverage:       report.CoverageString(),
			GeneratedAt:    report.GeneratedAt,
			Samples:        make([]sample, 0, len(report.Samples)),
		}
		for _, e := range report.Samples {
			s := sample{ID: e.Event.ID, Temperature: e.Weather.Temperature, Description: e.Weather.Description}
			if e.HasKey {
				key := e.JoinKey.Format(domain.JoinKeyLayout)
				s.MergeKey = &key
			}
			resp.Samples = append(resp.Samples, s)
		}
		sharedobs.WriteJSON(w, http.StatusOK, resp)
	}
}
