package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRespondJSON(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		data     any
		wantBody string
	}{
		{"object", http.StatusOK, map[string]int{"count": 2}, "{\"count\":2}\n"},
		{"array", http.StatusCreated, []string{"a", "b"}, "[\"a\",\"b\"]\n"},
		{"nil data", http.StatusNoContent, nil, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			respondJSON(recorder, tc.status, tc.data)

			assertStatusCode(t, recorder, tc.status)
			assertContentType(t, recorder, "application/json")
			if recorder.Body.String() != tc.wantBody {
				t.Errorf("expected body %q, got %q", tc.wantBody, recorder.Body.String())
			}
		})
	}
}

func TestRespondError(t *testing.T) {
	recorder := httptest.NewRecorder()
	respondError(recorder, http.StatusBadRequest, "no image uploaded")

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "no image uploaded")
}

func TestHealthCheck(t *testing.T) {
	recorder := httptest.NewRecorder()
	HealthCheck(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	var result map[string]string
	parseJSONResponse(t, recorder, &result)
	if result["status"] != "ok" {
		t.Errorf("expected status 'ok', got '%s'", result["status"])
	}
}

func TestSanitizeForLog(t *testing.T) {
	if got := sanitizeForLog("2025-03-14\r\nforged entry"); got != "2025-03-14forged entry" {
		t.Errorf("unexpected sanitized value %q", got)
	}
}

func TestSanitizeForLog_Truncates(t *testing.T) {
	long := strings.Repeat("a", maxLogValue+10)
	got := sanitizeForLog(long)
	if len(got) != maxLogValue+3 || !strings.HasSuffix(got, "...") {
		t.Errorf("expected truncated value, got %d chars", len(got))
	}
}
