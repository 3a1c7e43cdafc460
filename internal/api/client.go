package api

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/banshee-data/trackspeed/internal/db"
	"github.com/banshee-data/trackspeed/internal/httputil"
)

// Client talks to a running track server.
type Client struct {
	BaseURL string
	HTTP    httputil.HTTPClient
}

// NewClient returns a client for baseURL. A nil hc uses a standard client.
func NewClient(baseURL string, hc httputil.HTTPClient) *Client {
	if hc == nil {
		hc = httputil.NewStandardClient(nil)
	}
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), HTTP: hc}
}

// UploadOptions are the optional form fields of an upload. Zero values are
// left for the server to default.
type UploadOptions struct {
	Name                string
	ResolutionHz        int
	OutlierStdThreshold *float64
}

// UploadTrack posts a CAN log and returns the stored track.
func (c *Client) UploadTrack(ctx context.Context, filename string, src io.Reader, o UploadOptions) (*UploadResponse, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := map[string]string{}
	if o.Name != "" {
		fields["name"] = o.Name
	}
	if o.ResolutionHz > 0 {
		fields["time_resolution"] = strconv.Itoa(o.ResolutionHz)
	}
	if o.OutlierStdThreshold != nil {
		fields["outlier_std_threshold"] = strconv.FormatFloat(*o.OutlierStdThreshold, 'f', -1, 64)
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, errors.Wrapf(err, "write %s", k)
		}
	}
	fw, err := mw.CreateFormFile("uploaded_file", filename)
	if err != nil {
		return nil, errors.Wrap(err, "create form file")
	}
	if _, err := io.Copy(fw, src); err != nil {
		return nil, errors.Wrapf(err, "read %s", filename)
	}
	if err := mw.Close(); err != nil {
		return nil, errors.Wrap(err, "close multipart body")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/tracks/upload", &buf)
	if err != nil {
		return nil, errors.Wrap(err, "build upload request")
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out UploadResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListTracks returns every stored track, newest first.
func (c *Client) ListTracks(ctx context.Context) ([]db.Track, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/tracks", nil)
	if err != nil {
		return nil, errors.Wrap(err, "build list request")
	}
	var tracks []db.Track
	if err := c.do(req, &tracks); err != nil {
		return nil, err
	}
	return tracks, nil
}

// DeleteTrack removes a stored track.
func (c *Client) DeleteTrack(ctx context.Context, id uuid.UUID) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.BaseURL+"/api/tracks/"+id.String(), nil)
	if err != nil {
		return errors.Wrap(err, "build delete request")
	}
	return c.do(req, nil)
}

func (c *Client) do(req *http.Request, v interface{}) error {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", req.Method, req.URL.Path)
	}
	return httputil.DecodeJSON(resp, v)
}
