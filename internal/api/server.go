// Package api serves processed tracks over HTTP: CAN log uploads, stored
// points, statistics and rendered charts.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/trackspeed/internal/config"
	"github.com/banshee-data/trackspeed/internal/db"
	"github.com/banshee-data/trackspeed/internal/httputil"
	"github.com/banshee-data/trackspeed/internal/monitoring"
	"github.com/banshee-data/trackspeed/internal/units"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Server holds the track store and the settings uploads are processed with.
type Server struct {
	db        *db.DB
	pipeline  *config.PipelineConfig
	units     string
	uploadMax int64
}

// NewServer returns a server over database. A nil pipeline uses the defaults.
func NewServer(database *db.DB, cfg config.ServerConfig, pipeline *config.PipelineConfig) *Server {
	if pipeline == nil {
		pipeline = config.DefaultPipelineConfig()
	}
	u := cfg.Units
	if !units.IsValid(u) {
		u = units.MPS
	}
	limit := cfg.UploadMaxBytes()
	if limit <= 0 {
		limit = config.DefaultUploadMaxMB << 20
	}
	return &Server{
		db:        database,
		pipeline:  pipeline,
		units:     u,
		uploadMax: limit,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux routes the track API. Admin routes are attached separately.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/tracks/upload", s.uploadTrack)
	mux.HandleFunc("GET /api/tracks", s.listTracks)
	mux.HandleFunc("GET /api/tracks/{id}", s.getTrack)
	mux.HandleFunc("DELETE /api/tracks/{id}", s.deleteTrack)
	mux.HandleFunc("GET /api/tracks/{id}/points", s.trackPoints)
	mux.HandleFunc("GET /api/tracks/{id}/bounds", s.trackBounds)
	mux.HandleFunc("GET /api/tracks/{id}/stats", s.trackStats)
	mux.HandleFunc("GET /api/tracks/{id}/chart", s.trackChart)
	mux.HandleFunc("GET /api/tracks/{id}/map", s.trackMap)
	mux.HandleFunc("GET /api/config", s.showConfig)
	return mux
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]interface{}{
		"units":         s.units,
		"pipeline":      s.pipeline.Options(),
		"legacy_mode":   s.pipeline.GetLegacyMode(),
		"upload_max_mb": s.uploadMax >> 20,
	})
}
