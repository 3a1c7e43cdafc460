package db

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/banshee-data/trackspeed/internal/telemetry"
)

// ErrTrackNotFound is returned when no track has the requested ID.
var ErrTrackNotFound = errors.New("track not found")

// Track is one processed CAN log with its aggregate statistics.
type Track struct {
	ID                  uuid.UUID `json:"id"`
	Name                string    `json:"name"`
	SourceFilename      string    `json:"source_filename"`
	UploadedAt          time.Time `json:"uploaded_at"`
	Processed           bool      `json:"processed"`
	TotalPoints         int       `json:"total_points"`
	DurationS           float64   `json:"duration"`
	MaxSpeed            float64   `json:"max_speed"`
	AvgSpeed            float64   `json:"avg_speed"`
	MinLatitude         float64   `json:"min_latitude"`
	MaxLatitude         float64   `json:"max_latitude"`
	MinLongitude        float64   `json:"min_longitude"`
	MaxLongitude        float64   `json:"max_longitude"`
	ResolutionHz        float64   `json:"resolution_hz"`
	OutlierStdThreshold float64   `json:"outlier_std_threshold"`
	SourceRows          int       `json:"source_rows"`
	SkippedRows         int       `json:"skipped_rows"`
}

// TrackPoint is one stored kinematic sample.
type TrackPoint struct {
	Latitude          float64  `json:"latitude"`
	Longitude         float64  `json:"longitude"`
	Timestamp         float64  `json:"timestamp"`
	Speed             float64  `json:"speed"`
	OriginalTimestamp int64    `json:"original_timestamp"`
	Altitude          *float64 `json:"altitude"`
}

// PointFilter narrows TrackPoints by time and paginates the result.
// A zero Limit returns every matching point.
type PointFilter struct {
	StartTime *float64
	EndTime   *float64
	Limit     int
	Offset    int
}

// Bounds is the bounding box of a track and its midpoint.
type Bounds struct {
	MinLatitude     float64 `json:"min_lat"`
	MaxLatitude     float64 `json:"max_lat"`
	MinLongitude    float64 `json:"min_lng"`
	MaxLongitude    float64 `json:"max_lng"`
	CenterLatitude  float64 `json:"center_lat"`
	CenterLongitude float64 `json:"center_lng"`
}

// Samples converts stored points back to pipeline samples.
func Samples(points []TrackPoint) []telemetry.KinematicSample {
	out := make([]telemetry.KinematicSample, len(points))
	for i, p := range points {
		out[i] = telemetry.KinematicSample{
			CleanSample: telemetry.CleanSample{
				PairSample: telemetry.PairSample{
					TimestampMS: p.OriginalTimestamp,
					Latitude:    p.Latitude,
					Longitude:   p.Longitude,
				},
				TimeS: p.Timestamp,
			},
			SpeedMPS: p.Speed,
		}
	}
	return out
}

const trackColumns = `id, name, source_filename, uploaded_at_ms, processed, total_points,
	duration_s, max_speed, avg_speed, min_latitude, max_latitude, min_longitude, max_longitude,
	resolution_hz, outlier_std_threshold, source_rows, skipped_rows`

// SaveTrack stores a track and its samples in one transaction, filling the
// aggregate statistics from the samples. ID and UploadedAt are assigned when
// zero. Nothing is written if any insert fails.
func (db *DB) SaveTrack(ctx context.Context, t *Track, samples []telemetry.KinematicSample) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.UploadedAt.IsZero() {
		t.UploadedAt = time.Now().UTC()
	}
	sum := telemetry.Summarize(samples)
	t.Processed = true
	t.TotalPoints = sum.Count
	t.DurationS = sum.DurationS
	t.MaxSpeed = sum.MaxSpeed
	t.AvgSpeed = sum.AvgSpeed
	t.MinLatitude, t.MaxLatitude = sum.MinLatitude, sum.MaxLatitude
	t.MinLongitude, t.MaxLongitude = sum.MinLongitude, sum.MaxLongitude

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin track transaction")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO tracks (`+trackColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID.String(), t.Name, t.SourceFilename, t.UploadedAt.UnixMilli(), t.Processed, t.TotalPoints,
		t.DurationS, t.MaxSpeed, t.AvgSpeed, t.MinLatitude, t.MaxLatitude, t.MinLongitude, t.MaxLongitude,
		t.ResolutionHz, t.OutlierStdThreshold, t.SourceRows, t.SkippedRows,
	)
	if err != nil {
		return errors.Wrap(err, "failed to create track")
	}

	id := t.ID.String()
	for start := 0; start < len(samples); start += pointBatchSize {
		end := min(start+pointBatchSize, len(samples))
		if err := insertPoints(ctx, tx, id, start, samples[start:end]); err != nil {
			return err
		}
	}

	return errors.Wrap(tx.Commit(), "failed to commit track")
}

// pointBatchSize keeps one multi-row insert well under SQLite's bound
// parameter limit.
const pointBatchSize = 1000

func insertPoints(ctx context.Context, tx *sql.Tx, id string, seq int, batch []telemetry.KinematicSample) error {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO track_points
		(track_id, seq, latitude, longitude, timestamp, speed, original_timestamp) VALUES `)
	args := make([]interface{}, 0, len(batch)*7)
	for i, s := range batch {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, ?)")
		args = append(args, id, seq+i, s.Latitude, s.Longitude, s.TimeS, s.SpeedMPS, s.TimestampMS)
	}
	if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
		return errors.Wrapf(err, "failed to insert points %d-%d", seq, seq+len(batch)-1)
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTrack(row scanner) (*Track, error) {
	var (
		t          Track
		id         string
		uploadedMS int64
	)
	err := row.Scan(&id, &t.Name, &t.SourceFilename, &uploadedMS, &t.Processed, &t.TotalPoints,
		&t.DurationS, &t.MaxSpeed, &t.AvgSpeed, &t.MinLatitude, &t.MaxLatitude, &t.MinLongitude, &t.MaxLongitude,
		&t.ResolutionHz, &t.OutlierStdThreshold, &t.SourceRows, &t.SkippedRows)
	if err != nil {
		return nil, err
	}
	if t.ID, err = uuid.Parse(id); err != nil {
		return nil, errors.Wrapf(err, "bad track id %q", id)
	}
	t.UploadedAt = time.UnixMilli(uploadedMS).UTC()
	return &t, nil
}

// GetTrack returns the track with the given ID.
func (db *DB) GetTrack(ctx context.Context, id uuid.UUID) (*Track, error) {
	row := db.QueryRowContext(ctx, `SELECT `+trackColumns+` FROM tracks WHERE id = ?`, id.String())
	t, err := scanTrack(row)
	if err == sql.ErrNoRows {
		return nil, ErrTrackNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get track")
	}
	return t, nil
}

// ListTracks returns every track, newest first.
func (db *DB) ListTracks(ctx context.Context) ([]Track, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+trackColumns+` FROM tracks ORDER BY uploaded_at_ms DESC, name`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list tracks")
	}
	defer rows.Close()

	tracks := []Track{}
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan track")
		}
		tracks = append(tracks, *t)
	}
	return tracks, errors.Wrap(rows.Err(), "failed to iterate tracks")
}

// DeleteTrack removes a track and all of its points.
func (db *DB) DeleteTrack(ctx context.Context, id uuid.UUID) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin delete")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM track_points WHERE track_id = ?`, id.String()); err != nil {
		return errors.Wrap(err, "failed to delete track points")
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM tracks WHERE id = ?`, id.String())
	if err != nil {
		return errors.Wrap(err, "failed to delete track")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to delete track")
	}
	if n == 0 {
		return ErrTrackNotFound
	}
	return errors.Wrap(tx.Commit(), "failed to commit delete")
}

func (f PointFilter) where(id uuid.UUID) (string, []interface{}) {
	clauses := []string{"track_id = ?"}
	args := []interface{}{id.String()}
	if f.StartTime != nil {
		clauses = append(clauses, "timestamp >= ?")
		args = append(args, *f.StartTime)
	}
	if f.EndTime != nil {
		clauses = append(clauses, "timestamp <= ?")
		args = append(args, *f.EndTime)
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// TrackPoints returns the points of a track in time order.
func (db *DB) TrackPoints(ctx context.Context, id uuid.UUID, f PointFilter) ([]TrackPoint, error) {
	where, args := f.where(id)
	query := `SELECT latitude, longitude, timestamp, speed, original_timestamp, altitude
		FROM track_points` + where + ` ORDER BY timestamp, seq`
	if f.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query track points")
	}
	defer rows.Close()

	points := []TrackPoint{}
	for rows.Next() {
		var (
			p   TrackPoint
			alt sql.NullFloat64
		)
		if err := rows.Scan(&p.Latitude, &p.Longitude, &p.Timestamp, &p.Speed, &p.OriginalTimestamp, &alt); err != nil {
			return nil, errors.Wrap(err, "failed to scan track point")
		}
		if alt.Valid {
			p.Altitude = &alt.Float64
		}
		points = append(points, p)
	}
	return points, errors.Wrap(rows.Err(), "failed to iterate track points")
}

// CountTrackPoints returns how many points match the filter, ignoring pagination.
func (db *DB) CountTrackPoints(ctx context.Context, id uuid.UUID, f PointFilter) (int, error) {
	where, args := f.where(id)
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM track_points`+where, args...).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "failed to count track points")
	}
	return n, nil
}

// TrackBounds returns the bounding box of a track's points.
func (db *DB) TrackBounds(ctx context.Context, id uuid.UUID) (Bounds, error) {
	var (
		b                              Bounds
		minLat, maxLat, minLon, maxLon sql.NullFloat64
	)
	err := db.QueryRowContext(ctx, `SELECT MIN(latitude), MAX(latitude), MIN(longitude), MAX(longitude)
		FROM track_points WHERE track_id = ?`, id.String()).Scan(&minLat, &maxLat, &minLon, &maxLon)
	if err != nil {
		return b, errors.Wrap(err, "failed to query track bounds")
	}
	if !minLat.Valid {
		return b, ErrTrackNotFound
	}
	b.MinLatitude, b.MaxLatitude = minLat.Float64, maxLat.Float64
	b.MinLongitude, b.MaxLongitude = minLon.Float64, maxLon.Float64
	b.CenterLatitude = (b.MinLatitude + b.MaxLatitude) / 2
	b.CenterLongitude = (b.MinLongitude + b.MaxLongitude) / 2
	return b, nil
}
