package ingest

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/pkg/errors"

	"github.com/banshee-data/trackspeed/internal/telemetry"
)

// SpeedTableFilename is the conventional name of the exported speed table.
const SpeedTableFilename = "speed_data.csv"

// WriteSpeedTable writes rows as a two-column "time,speed" CSV.
func WriteSpeedTable(w io.Writer, rows []telemetry.SpeedRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"time", "speed"}); err != nil {
		return errors.Wrap(err, "write header")
	}
	for _, r := range rows {
		rec := []string{
			strconv.FormatFloat(r.TimeS, 'f', -1, 64),
			strconv.FormatFloat(r.SpeedMPS, 'f', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return errors.Wrap(err, "write row")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flush speed table")
}

// WriteSpeedTableFile creates path and writes the speed table to it.
func WriteSpeedTableFile(path string, rows []telemetry.SpeedRow) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if err := WriteSpeedTable(f, rows); err != nil {
		f.Close()
		return err
	}
	return errors.Wrapf(f.Close(), "close %s", path)
}
