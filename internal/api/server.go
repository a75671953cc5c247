package api

import (
	"context"
	"html/template"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lox/gendash/internal/imagegen"
	"github.com/lox/gendash/internal/ingest"
	"github.com/lox/gendash/internal/store"
)

type Server struct {
	store     *store.Store
	importer  *ingest.Importer
	port      string
	loc       *time.Location
	tmpl      *template.Template
	heatmaps  *imagegen.HeatmapCache
	accessLog bool
}

func NewServer(store *store.Store, importer *ingest.Importer, port string, loc *time.Location) *Server {
	return &Server{
		store:     store,
		importer:  importer,
		port:      port,
		loc:       loc,
		tmpl:      newTemplates(),
		heatmaps:  imagegen.NewHeatmapCache(10 * time.Minute),
		accessLog: true,
	}
}

// SetAccessLog toggles the combined access log written to stdout.
func (s *Server) SetAccessLog(enabled bool) {
	s.accessLog = enabled
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/intervals/template", s.handleIntervalTemplate)
	mux.HandleFunc("GET /api/days/{date}/intervals", s.handleGetIntervals)
	mux.HandleFunc("PUT /api/days/{date}/intervals", s.handleReplaceIntervals)
	mux.HandleFunc("DELETE /api/days/{date}/intervals", s.handleDeleteIntervals)
	mux.HandleFunc("PATCH /api/days/{date}/intervals/{time}", s.handlePatchInterval)
	mux.HandleFunc("GET /api/days/{date}/intervals.csv", s.handleExportIntervals(ingest.FormatCSV))
	mux.HandleFunc("POST /api/days/{date}/intervals.csv", s.handleImportIntervals(ingest.FormatCSV))
	mux.HandleFunc("GET /api/days/{date}/intervals.xlsx", s.handleExportIntervals(ingest.FormatXLSX))
	mux.HandleFunc("POST /api/days/{date}/intervals.xlsx", s.handleImportIntervals(ingest.FormatXLSX))
	mux.HandleFunc("GET /api/days/{date}/summary", s.handleSummary)
	mux.HandleFunc("GET /api/days/{date}/heatmap.png", s.handleHeatmapImage)
	mux.HandleFunc("POST /api/days/{date}/import", s.handleImportONS)

	mux.HandleFunc("GET /api/days/{date}/observations", s.handleGetObservations)
	mux.HandleFunc("POST /api/days/{date}/observations", s.handleCreateObservation)
	mux.HandleFunc("DELETE /api/days/{date}/observations", s.handleDeleteObservations)
	mux.HandleFunc("PUT /api/observations/{id}", s.handleUpdateObservation)
	mux.HandleFunc("DELETE /api/observations/{id}", s.handleDeleteObservation)
	mux.HandleFunc("GET /api/days/{date}/observations.csv", s.handleExportObservations(ingest.FormatCSV))
	mux.HandleFunc("GET /api/days/{date}/observations.xlsx", s.handleExportObservations(ingest.FormatXLSX))

	mux.HandleFunc("GET /api/days/{date}/controls", s.handleGetControls)
	mux.HandleFunc("POST /api/days/{date}/controls", s.handleCreateControl)
	mux.HandleFunc("DELETE /api/days/{date}/controls", s.handleDeleteControls)
	mux.HandleFunc("GET /api/days/{date}/controls.csv", s.handleExportControls(ingest.FormatCSV))
	mux.HandleFunc("POST /api/days/{date}/controls.csv", s.handleImportControls(ingest.FormatCSV))
	mux.HandleFunc("GET /api/days/{date}/controls.xlsx", s.handleExportControls(ingest.FormatXLSX))
	mux.HandleFunc("POST /api/days/{date}/controls.xlsx", s.handleImportControls(ingest.FormatXLSX))
	mux.HandleFunc("PUT /api/controls/{id}", s.handleUpdateControl)
	mux.HandleFunc("DELETE /api/controls/{id}", s.handleDeleteControl)
	mux.HandleFunc("GET /api/days/{date}/timeline", s.handleTimeline)

	var h http.Handler = mux
	h = handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)(h)
	if s.accessLog {
		h = handlers.CombinedLoggingHandler(os.Stdout, h)
	}
	return h
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Printf("server: listening on :%s", s.port)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
