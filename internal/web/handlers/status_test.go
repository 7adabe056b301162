package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakeChecker struct{ err error }

func (f fakeChecker) Check(context.Context) error { return f.err }

func TestStatus_Get(t *testing.T) {
	h := NewStatusHandler(StatusInfo{Version: "1.2.3", LedgerBackend: "sheets", Prefix: "URK", Station: true}, nil)

	recorder := httptest.NewRecorder()
	h.Get(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	var resp struct {
		Status    string     `json:"status"`
		Timestamp string     `json:"timestamp"`
		Info      StatusInfo `json:"info"`
	}
	parseJSONResponse(t, recorder, &resp)
	if resp.Status != "running" || resp.Timestamp == "" {
		t.Errorf("unexpected status: %+v", resp)
	}
	if resp.Info.LedgerBackend != "sheets" || resp.Info.Prefix != "URK" || !resp.Info.Station {
		t.Errorf("unexpected info: %+v", resp.Info)
	}
}

func TestStatus_CheckLedger(t *testing.T) {
	tests := []struct {
		name        string
		checker     Checker
		wantStatus  int
		wantSuccess bool
		wantMessage string
	}{
		{"no checker", nil, http.StatusOK, true, "nothing to check for the memory ledger"},
		{"reachable", fakeChecker{}, http.StatusOK, true, "Connection successful"},
		{"unreachable", fakeChecker{err: errors.New("403 forbidden")}, http.StatusServiceUnavailable, false, "Connection failed: 403 forbidden"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := NewStatusHandler(StatusInfo{LedgerBackend: "memory"}, tc.checker)
			recorder := httptest.NewRecorder()
			h.CheckLedger(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/ledger/check", nil))

			assertStatusCode(t, recorder, tc.wantStatus)
			var resp struct {
				Success bool   `json:"success"`
				Message string `json:"message"`
			}
			parseJSONResponse(t, recorder, &resp)
			if resp.Success != tc.wantSuccess || resp.Message != tc.wantMessage {
				t.Errorf("unexpected response: %+v", resp)
			}
		})
	}
}
