package testutil

import (
	"errors"
	"net/http"
	"strings"
	"testing"
)

func TestAssertStatusCode_Matching(t *testing.T) {
	fakeT := &testing.T{}
	AssertStatusCode(fakeT, http.StatusOK, http.StatusOK)
	if fakeT.Failed() {
		t.Error("expected no failure for matching status codes")
	}
}

func TestAssertNoError_NilErr(t *testing.T) {
	fakeT := &testing.T{}
	AssertNoError(fakeT, nil)
	if fakeT.Failed() {
		t.Error("expected no failure for nil error")
	}
}

func TestAssertError_WithErr(t *testing.T) {
	fakeT := &testing.T{}
	AssertError(fakeT, errors.New("something wrong"))
	if fakeT.Failed() {
		t.Error("expected no failure when error is present")
	}
}

func TestCANLog(t *testing.T) {
	t.Parallel()

	got := NewCANLog().GPS(1000, 40.5, -105.25).Add(1000, "Speed", "12").String()
	want := "Timestamp,Sensor,Value,Unit\n" +
		"1000,Latitude,40.5,\n" +
		"1000,Longitude,-105.25,\n" +
		"1000,Speed,12,\n"
	if got != want {
		t.Errorf("CANLog =\n%s\nwant\n%s", got, want)
	}
}

func TestDriveLog(t *testing.T) {
	t.Parallel()

	lines := strings.Split(strings.TrimSpace(DriveLog(10, 500, 20).String()), "\n")
	// header plus three rows per fix
	if len(lines) != 1+10*3 {
		t.Fatalf("got %d lines, want %d", len(lines), 31)
	}
	if !strings.HasPrefix(lines[2], "0,Latitude,40,") {
		t.Errorf("first fix = %q", lines[2])
	}
}

func TestNewUploadRequest(t *testing.T) {
	t.Parallel()

	req := NewUploadRequest(t, "/api/tracks/upload", "log.csv", []byte("a,b\n"), map[string]string{"name": "lap"})
	if err := req.ParseMultipartForm(1 << 20); err != nil {
		t.Fatalf("parse multipart: %v", err)
	}
	if got := req.FormValue("name"); got != "lap" {
		t.Errorf("name = %q, want lap", got)
	}
	f, hdr, err := req.FormFile("uploaded_file")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	defer f.Close()
	if hdr.Filename != "log.csv" {
		t.Errorf("filename = %q", hdr.Filename)
	}
}
