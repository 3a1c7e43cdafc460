package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/banshee-data/trackspeed/internal/api"
)

const defaultServer = "http://localhost:8080"

func runUpload(ctx context.Context, args []string, out io.Writer) error {
	fs := newFlagSet("upload", out)
	server := fs.String("server", defaultServer, "Track server base URL")
	name := fs.String("name", "", "Track name (default: file name)")
	resolution := fs.Int("resolution", 0, "Points per second, 1-100 (default: server setting)")
	threshold := fs.Float64("threshold", -1, "Outlier threshold in standard deviations (default: server setting)")
	files, err := parseInterspersed(fs, args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fs.Usage()
		return errors.New("no CAN log given")
	}

	c := api.NewClient(*server, nil)
	opts := api.UploadOptions{Name: *name, ResolutionHz: *resolution}
	if *threshold >= 0 {
		opts.OutlierStdThreshold = threshold
	}
	for _, path := range files {
		if err := uploadFile(ctx, c, path, opts, out); err != nil {
			return err
		}
	}
	return nil
}

func uploadFile(ctx context.Context, c *api.Client, path string, opts api.UploadOptions, out io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	resp, err := c.UploadTrack(ctx, filepath.Base(path), f, opts)
	if err != nil {
		return errors.Wrapf(err, "upload %s", path)
	}
	fmt.Fprintf(out, "%s: %s\n  id %s\n", path, resp.Message, resp.Track.ID)
	return nil
}

func runTracks(ctx context.Context, args []string, out io.Writer) error {
	fs := newFlagSet("tracks", out)
	server := fs.String("server", defaultServer, "Track server base URL")
	del := fs.String("delete", "", "Delete the track with this ID")
	if _, err := parseInterspersed(fs, args); err != nil {
		return err
	}
	c := api.NewClient(*server, nil)

	if *del != "" {
		id, err := uuid.Parse(*del)
		if err != nil {
			return errors.Wrap(err, "invalid track id")
		}
		if err := c.DeleteTrack(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(out, "deleted %s\n", id)
		return nil
	}

	tracks, err := c.ListTracks(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tUPLOADED\tPOINTS\tDURATION\tMAX m/s")
	for _, t := range tracks {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%.1fs\t%.2f\n",
			t.ID, t.Name, t.UploadedAt.Local().Format(time.DateTime), t.TotalPoints, t.DurationS, t.MaxSpeed)
	}
	return tw.Flush()
}
