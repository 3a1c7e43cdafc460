package api

import (
	"fmt"
	"math"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/banshee-data/trackspeed/internal/db"
	"github.com/banshee-data/trackspeed/internal/httputil"
	"github.com/banshee-data/trackspeed/internal/ingest"
	"github.com/banshee-data/trackspeed/internal/monitoring"
	"github.com/banshee-data/trackspeed/internal/render"
	"github.com/banshee-data/trackspeed/internal/telemetry"
	"github.com/banshee-data/trackspeed/internal/units"
)

// Upload form limits.
const (
	DefaultUploadResolutionHz = 2
	MinUploadResolutionHz     = 1
	MaxUploadResolutionHz     = 100
	multipartMemory           = 32 << 20
)

// Pagination defaults for the points endpoint.
const (
	DefaultPageSize = 1000
	MaxPageSize     = 10000
)

// UploadResponse is returned from a successful upload.
type UploadResponse struct {
	Track   *db.Track `json:"track"`
	Message string    `json:"message"`
}

// TrackDetail is a track with every stored point.
type TrackDetail struct {
	*db.Track
	Points []db.TrackPoint `json:"points"`
}

// PointsPage is one page of a track's points.
type PointsPage struct {
	Points   []db.TrackPoint `json:"points"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
	Pages    int             `json:"pages"`
}

// TrackStats summarises a track in m/s, mph and the server's display units.
type TrackStats struct {
	TrackID         uuid.UUID `json:"track_id"`
	TotalPoints     int       `json:"total_points"`
	DurationS       float64   `json:"duration"`
	DistanceM       float64   `json:"distance_m"`
	MaxSpeed        float64   `json:"max_speed"`
	AvgSpeed        float64   `json:"avg_speed"`
	MaxSpeedMPH     float64   `json:"max_speed_mph"`
	AvgSpeedMPH     float64   `json:"avg_speed_mph"`
	Units           string    `json:"units"`
	MaxSpeedDisplay float64   `json:"max_speed_display"`
	AvgSpeedDisplay float64   `json:"avg_speed_display"`
}

func (s *Server) uploadTrack(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.uploadMax)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			httputil.TooLarge(w, fmt.Sprintf("upload exceeds %d MB", s.uploadMax>>20))
			return
		}
		httputil.BadRequest(w, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("uploaded_file")
	if err != nil {
		httputil.BadRequest(w, "uploaded_file is required")
		return
	}
	defer file.Close()
	if !strings.EqualFold(filepath.Ext(header.Filename), ".csv") {
		httputil.BadRequest(w, "Please upload a CSV file")
		return
	}

	opts, err := s.uploadOptions(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	events, stats, err := ingest.ReadEvents(file)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	samples, err := telemetry.ProcessContext(r.Context(), events, opts)
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		monitoring.Stage("upload").WithError(err).WithField("file", header.Filename).Warn("pipeline rejected upload")
		httputil.BadRequest(w, err.Error())
		return
	}

	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		name = strings.TrimSuffix(header.Filename, filepath.Ext(header.Filename))
	}
	track := &db.Track{
		Name:                name,
		SourceFilename:      header.Filename,
		ResolutionHz:        opts.ResolutionHz,
		OutlierStdThreshold: opts.OutlierStdThreshold,
		SourceRows:          stats.Rows,
		SkippedRows:         stats.BadTimestamp,
	}
	if err := s.db.SaveTrack(r.Context(), track, samples); err != nil {
		monitoring.Stage("upload").WithError(err).Error("failed to save track")
		httputil.InternalServerError(w, "Failed to save track")
		return
	}

	httputil.Created(w, UploadResponse{
		Track:   track,
		Message: fmt.Sprintf("Successfully processed %d GPS points from CAN bus data", len(samples)),
	})
}

// uploadOptions applies the optional form overrides to the configured options.
func (s *Server) uploadOptions(r *http.Request) (telemetry.Options, error) {
	opts := s.pipeline.Options()
	if opts.ResolutionHz <= 0 {
		opts.ResolutionHz = DefaultUploadResolutionHz
	}
	if v := r.FormValue("time_resolution"); v != "" {
		hz, err := strconv.Atoi(v)
		if err != nil || hz < MinUploadResolutionHz || hz > MaxUploadResolutionHz {
			return opts, fmt.Errorf("time_resolution must be an integer between %d and %d",
				MinUploadResolutionHz, MaxUploadResolutionHz)
		}
		opts.ResolutionHz = float64(hz)
	}
	if v := r.FormValue("outlier_std_threshold"); v != "" {
		k, err := strconv.ParseFloat(v, 64)
		if err != nil || k < 0 || math.IsNaN(k) || math.IsInf(k, 0) {
			return opts, errors.New("outlier_std_threshold must be a non-negative number")
		}
		opts.OutlierStdThreshold = k
	}
	return opts, nil
}

// trackID parses the {id} path value, writing a 400 when it is not a UUID.
func trackID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httputil.BadRequest(w, "invalid track id")
		return uuid.Nil, false
	}
	return id, true
}

// lookup resolves the path track, writing 400/404/500 itself on failure.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*db.Track, bool) {
	id, ok := trackID(w, r)
	if !ok {
		return nil, false
	}
	t, err := s.db.GetTrack(r.Context(), id)
	if err != nil {
		s.storeError(w, err)
		return nil, false
	}
	return t, true
}

func (s *Server) storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, db.ErrTrackNotFound) {
		httputil.NotFound(w, "Track not found")
		return
	}
	monitoring.Stage("store").WithError(err).Error("track store failed")
	httputil.InternalServerError(w, "Failed to read track")
}

func (s *Server) listTracks(w http.ResponseWriter, r *http.Request) {
	tracks, err := s.db.ListTracks(r.Context())
	if err != nil {
		s.storeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, tracks)
}

func (s *Server) getTrack(w http.ResponseWriter, r *http.Request) {
	t, ok := s.lookup(w, r)
	if !ok {
		return
	}
	points, err := s.db.TrackPoints(r.Context(), t.ID, db.PointFilter{})
	if err != nil {
		s.storeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, TrackDetail{Track: t, Points: points})
}

func (s *Server) deleteTrack(w http.ResponseWriter, r *http.Request) {
	id, ok := trackID(w, r)
	if !ok {
		return
	}
	if err := s.db.DeleteTrack(r.Context(), id); err != nil {
		s.storeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, map[string]string{"message": "Track deleted successfully"})
}

func queryFloat(r *http.Request, key string) (*float64, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) {
		return nil, fmt.Errorf("invalid '%s' parameter", key)
	}
	return &f, nil
}

func queryInt(r *http.Request, key string, def, lo, hi int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("invalid '%s' parameter", key)
	}
	return n, nil
}

func (s *Server) trackPoints(w http.ResponseWriter, r *http.Request) {
	t, ok := s.lookup(w, r)
	if !ok {
		return
	}

	var (
		f   db.PointFilter
		err error
	)
	if f.StartTime, err = queryFloat(r, "start_time"); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if f.EndTime, err = queryFloat(r, "end_time"); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	page, err := queryInt(r, "page", 1, 1, math.MaxInt32)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	size, err := queryInt(r, "page_size", DefaultPageSize, 1, MaxPageSize)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	total, err := s.db.CountTrackPoints(r.Context(), t.ID, f)
	if err != nil {
		s.storeError(w, err)
		return
	}
	f.Limit, f.Offset = size, (page-1)*size
	points, err := s.db.TrackPoints(r.Context(), t.ID, f)
	if err != nil {
		s.storeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, PointsPage{
		Points:   points,
		Total:    total,
		Page:     page,
		PageSize: size,
		Pages:    (total + size - 1) / size,
	})
}

func (s *Server) trackBounds(w http.ResponseWriter, r *http.Request) {
	t, ok := s.lookup(w, r)
	if !ok {
		return
	}
	b, err := s.db.TrackBounds(r.Context(), t.ID)
	if err != nil {
		s.storeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, b)
}

// samples loads every stored point of the path track as pipeline samples.
func (s *Server) samples(w http.ResponseWriter, r *http.Request) (*db.Track, []telemetry.KinematicSample, bool) {
	t, ok := s.lookup(w, r)
	if !ok {
		return nil, nil, false
	}
	points, err := s.db.TrackPoints(r.Context(), t.ID, db.PointFilter{})
	if err != nil {
		s.storeError(w, err)
		return nil, nil, false
	}
	return t, db.Samples(points), true
}

func (s *Server) trackStats(w http.ResponseWriter, r *http.Request) {
	t, samples, ok := s.samples(w, r)
	if !ok {
		return
	}
	var dist float64
	for i := 1; i < len(samples); i++ {
		a, b := samples[i-1], samples[i]
		dist += telemetry.Distance(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
	}
	httputil.WriteJSONOK(w, TrackStats{
		TrackID:         t.ID,
		TotalPoints:     t.TotalPoints,
		DurationS:       t.DurationS,
		DistanceM:       dist,
		MaxSpeed:        t.MaxSpeed,
		AvgSpeed:        t.AvgSpeed,
		MaxSpeedMPH:     units.ConvertSpeed(t.MaxSpeed, units.MPH),
		AvgSpeedMPH:     units.ConvertSpeed(t.AvgSpeed, units.MPH),
		Units:           s.units,
		MaxSpeedDisplay: units.ConvertSpeed(t.MaxSpeed, s.units),
		AvgSpeedDisplay: units.ConvertSpeed(t.AvgSpeed, s.units),
	})
}

func (s *Server) trackChart(w http.ResponseWriter, r *http.Request) {
	t, samples, ok := s.samples(w, r)
	if !ok {
		return
	}
	if err := render.WriteSpeedChart(httputil.HTMLWriter(w), samples, t.Name, s.units); err != nil {
		monitoring.Stage("render").WithError(err).Error("speed chart")
	}
}

func (s *Server) trackMap(w http.ResponseWriter, r *http.Request) {
	t, samples, ok := s.samples(w, r)
	if !ok {
		return
	}
	if r.URL.Query().Get("format") == "json" {
		httputil.WriteJSONOK(w, render.BuildTrackMap(samples))
		return
	}
	if err := render.WriteTrackMap(httputil.HTMLWriter(w), samples, t.Name, s.units); err != nil {
		monitoring.Stage("render").WithError(err).Error("track map")
	}
}
