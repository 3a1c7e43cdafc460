// Package testutil provides shared test utilities and fixtures.
//
// This package centralises CAN log fixtures and HTTP helpers used by the
// ingest, API and command tests.
package testutil

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// NewTestRequest creates a test HTTP request.
func NewTestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

// NewTestRecorder creates a test response recorder.
func NewTestRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}

// CANLog builds a CAN log in the Timestamp,Sensor,Value,Unit layout.
type CANLog struct {
	b strings.Builder
}

// NewCANLog returns a log holding only the header row.
func NewCANLog() *CANLog {
	l := &CANLog{}
	l.b.WriteString("Timestamp,Sensor,Value,Unit\n")
	return l
}

// Add appends one raw row.
func (l *CANLog) Add(ts int64, sensor, value string) *CANLog {
	fmt.Fprintf(&l.b, "%d,%s,%s,\n", ts, sensor, value)
	return l
}

// GPS appends a Latitude and a Longitude row at ts.
func (l *CANLog) GPS(ts int64, lat, lon float64) *CANLog {
	l.Add(ts, "Latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	return l.Add(ts, "Longitude", strconv.FormatFloat(lon, 'f', -1, 64))
}

func (l *CANLog) String() string { return l.b.String() }

// Bytes returns the log contents.
func (l *CANLog) Bytes() []byte { return []byte(l.b.String()) }

// MetresPerDegreeLat40 is the length of one degree of latitude near 40N.
const MetresPerDegreeLat40 = 111034.6

// DriveLog returns n GPS fixes stepMS apart, heading due north from
// (40, -105) at roughly speedMPS, interleaved with engine RPM rows.
func DriveLog(n int, stepMS int64, speedMPS float64) *CANLog {
	l := NewCANLog()
	stepDeg := speedMPS * float64(stepMS) / 1000 / MetresPerDegreeLat40
	for i := 0; i < n; i++ {
		ts := int64(i) * stepMS
		l.Add(ts, "EngineRPM", strconv.Itoa(2000+i%500))
		l.GPS(ts, 40+float64(i)*stepDeg, -105)
	}
	return l
}

// NewUploadRequest builds a multipart POST carrying body as the
// uploaded_file field alongside the given form fields.
func NewUploadRequest(t *testing.T, target, filename string, body []byte, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("uploaded_file", filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := fw.Write(body); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}
