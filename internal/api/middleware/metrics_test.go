package middleware

import (
	"log/slog"
	"net/http"
	"testing"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/api/submissions", "/api/submissions"},
		{"/api/submissions/0b7e1c3a-5f0d-4a4e-9c1b-2d3e4f5a6b7c", "/api/submissions/{id}"},
		{
			"/api/submissions/0b7e1c3a-5f0d-4a4e-9c1b-2d3e4f5a6b7c/tracks/1c2d3e4f-5a6b-4c7d-8e9f-0a1b2c3d4e5f",
			"/api/submissions/{id}/tracks/{id}",
		},
		{"/api/submissions/stats", "/api/submissions/stats"},
		{"/static/css/app.css", "/static/*"},
		{"/api/files/not-a-uuid", "/api/files/not-a-uuid"},
	}
	for _, tt := range tests {
		if got := normalizePath(tt.in); got != tt.want {
			t.Errorf("normalizePath(%q) = %q, ожидалось %q", tt.in, got, tt.want)
		}
	}
}

func TestRequestLogLevel(t *testing.T) {
	tests := []struct {
		path   string
		status int
		want   slog.Level
	}{
		{"/api/submissions", http.StatusOK, slog.LevelInfo},
		{"/health/live", http.StatusOK, slog.LevelDebug},
		{"/metrics", http.StatusOK, slog.LevelDebug},
		{"/api/submissions", http.StatusNotFound, slog.LevelWarn},
		{"/health/ready", http.StatusServiceUnavailable, slog.LevelError},
	}
	for _, tt := range tests {
		if got := requestLogLevel(tt.path, tt.status); got != tt.want {
			t.Errorf("requestLogLevel(%q, %d) = %v, ожидалось %v", tt.path, tt.status, got, tt.want)
		}
	}
}
