// Package ingest reads CAN-bus logs into raw telemetry events and writes
// the derived speed table.
package ingest

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/banshee-data/trackspeed/internal/monitoring"
	"github.com/banshee-data/trackspeed/internal/telemetry"
)

// Required column names in a CAN log.
const (
	ColumnTimestamp = "Timestamp"
	ColumnSensor    = "Sensor"
	ColumnValue     = "Value"
)

// ErrMalformedSource means the input could not be parsed into records.
var ErrMalformedSource = errors.New("malformed source")

// ReadStats counts rows the reader skipped.
type ReadStats struct {
	Rows         int
	BadTimestamp int
	BadValue     int
}

// ReadFile opens path and reads it with ReadEvents.
func ReadFile(path string) ([]telemetry.RawEvent, ReadStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ReadStats{}, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	return ReadEvents(f)
}

// ReadEvents parses a delimited CAN log with a header row containing at least
// Timestamp, Sensor and Value. Other columns are ignored. Rows with an
// unparseable timestamp are skipped; an unparseable value is kept as NaN so
// that only the sensors that matter reject it.
func ReadEvents(r io.Reader) ([]telemetry.RawEvent, ReadStats, error) {
	var stats ReadStats
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, stats, errors.Wrap(ErrMalformedSource, "empty input")
	}
	if err != nil {
		return nil, stats, errors.Wrapf(ErrMalformedSource, "header: %v", err)
	}
	cols, err := columnIndex(header)
	if err != nil {
		return nil, stats, err
	}

	var events []telemetry.RawEvent
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, stats, errors.Wrapf(ErrMalformedSource, "line %d: %v", stats.Rows+2, err)
		}
		stats.Rows++
		if len(rec) <= cols.max {
			stats.BadTimestamp++
			continue
		}
		ts, ok := parseTimestamp(rec[cols.timestamp])
		if !ok {
			stats.BadTimestamp++
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[cols.value]), 64)
		if err != nil {
			stats.BadValue++
			v = math.NaN()
		}
		events = append(events, telemetry.RawEvent{
			TimestampMS: ts,
			Sensor:      strings.TrimSpace(rec[cols.sensor]),
			Value:       v,
		})
	}

	if stats.BadTimestamp > 0 || stats.BadValue > 0 {
		monitoring.Logger().WithField("rows", stats.Rows).
			WithField("bad_timestamp", stats.BadTimestamp).
			WithField("bad_value", stats.BadValue).
			Warn("skipped unparseable rows")
	}
	return events, stats, nil
}

type columns struct {
	timestamp, sensor, value int
	max                      int
}

func columnIndex(header []string) (columns, error) {
	idx := map[string]int{}
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := idx[h]; !dup {
			idx[h] = i
		}
	}
	var c columns
	for _, want := range []struct {
		name string
		dst  *int
	}{
		{ColumnTimestamp, &c.timestamp},
		{ColumnSensor, &c.sensor},
		{ColumnValue, &c.value},
	} {
		i, ok := idx[want.name]
		if !ok {
			return c, errors.Wrapf(ErrMalformedSource, "missing required column %q", want.name)
		}
		*want.dst = i
		if i > c.max {
			c.max = i
		}
	}
	return c, nil
}

// parseTimestamp accepts integer milliseconds, or a float that it truncates.
func parseTimestamp(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ts, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int64(f), true
}
