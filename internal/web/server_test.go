package web

import (
	"context"
	"image"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kozaktomas/attendance-scanner/internal/config"
	"github.com/kozaktomas/attendance-scanner/internal/ledger"
	"github.com/kozaktomas/attendance-scanner/internal/ledger/memory"
	"github.com/kozaktomas/attendance-scanner/internal/pipeline"
	"github.com/kozaktomas/attendance-scanner/internal/web/handlers"
)

type nopScanner struct{}

func (nopScanner) ScanImage(context.Context, image.Image, bool) []pipeline.ScanOutcome { return nil }

func newTestServer(station *handlers.Station) *Server {
	cfg := &config.Config{Web: config.WebConfig{AllowedOrigins: []string{"https://kiosk.example.edu"}}}
	deps := Deps{
		Scanner:  nopScanner{},
		Ledger:   ledger.NewBook(memory.NewTable(), ledger.WithLocation(time.UTC)),
		Location: time.UTC,
		Info:     handlers.StatusInfo{Version: "test", LedgerBackend: "memory"},
		Station:  station,
	}
	return NewServer(cfg, deps, 0, "127.0.0.1")
}

func TestRoutes(t *testing.T) {
	station := handlers.NewStation(func() pipeline.Status { return pipeline.Status{} })
	s := newTestServer(station)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/api/v1/health", http.StatusOK},
		{http.MethodGet, "/api/v1/status", http.StatusOK},
		{http.MethodGet, "/api/v1/ledger/check", http.StatusOK},
		{http.MethodGet, "/api/v1/attendance/today", http.StatusOK},
		{http.MethodGet, "/api/v1/attendance/2025-03-14", http.StatusOK},
		{http.MethodGet, "/api/v1/attendance/yesterday", http.StatusBadRequest},
		{http.MethodPost, "/api/v1/scan/camera", http.StatusBadRequest},
		{http.MethodGet, "/api/v1/scan/camera", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/v1/station", http.StatusOK},
		{http.MethodGet, "/api/v1/albums", http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			s.Router().ServeHTTP(recorder, httptest.NewRequest(tc.method, tc.path, nil))
			if recorder.Code != tc.want {
				t.Errorf("expected status %d, got %d: %s", tc.want, recorder.Code, recorder.Body.String())
			}
		})
	}
}

func TestRoutes_WithoutStation(t *testing.T) {
	s := newTestServer(nil)

	recorder := httptest.NewRecorder()
	s.Router().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/station", nil))
	if recorder.Code != http.StatusNotFound {
		t.Errorf("expected 404 without a station, got %d", recorder.Code)
	}
}

func TestServer_CORSFromConfig(t *testing.T) {
	s := newTestServer(nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("Origin", "https://kiosk.example.edu")
	recorder := httptest.NewRecorder()
	s.Router().ServeHTTP(recorder, req)

	if got := recorder.Header().Get("Access-Control-Allow-Origin"); got != "https://kiosk.example.edu" {
		t.Errorf("expected configured origin to be allowed, got %q", got)
	}
}
