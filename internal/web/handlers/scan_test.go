package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kozaktomas/attendance-scanner/internal/ledger"
	"github.com/kozaktomas/attendance-scanner/internal/pipeline"
)

type fakeScanner struct {
	outcomes []pipeline.ScanOutcome
	calls    int
	mark     bool
	bounds   image.Rectangle
}

func (f *fakeScanner) ScanImage(_ context.Context, img image.Image, mark bool) []pipeline.ScanOutcome {
	f.calls++
	f.mark = mark
	f.bounds = img.Bounds()
	return f.outcomes
}

func validOutcome() pipeline.ScanOutcome {
	return pipeline.ScanOutcome{
		Type:     "QRCODE",
		Payload:  "URK23AI1112",
		Identity: "URK23AI1112",
		Name:     "Alice Mary",
		Valid:    true,
		Marked:   true,
		Message:  "Attendance marked successfully",
	}
}

func uploadRequest(t *testing.T, field string, data []byte, query string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, "card.png")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write(data)
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/scan/upload"+query, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestScanUpload(t *testing.T) {
	scanner := &fakeScanner{outcomes: []pipeline.ScanOutcome{validOutcome()}}
	h := NewScanHandler(scanner)

	recorder := httptest.NewRecorder()
	h.Upload(recorder, uploadRequest(t, "image", testPNG(t), ""))

	assertStatusCode(t, recorder, http.StatusOK)
	var resp ScanResponse
	parseJSONResponse(t, recorder, &resp)
	if !resp.Success || resp.Message != "Found 1 valid barcode(s)" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if len(resp.Results) != 1 || resp.Results[0].Identity != "URK23AI1112" || !resp.Results[0].Marked {
		t.Errorf("unexpected results: %+v", resp.Results)
	}
	if !scanner.mark {
		t.Error("expected upload to mark attendance by default")
	}
	if scanner.bounds.Dx() != 32 || scanner.bounds.Dy() != 24 {
		t.Errorf("expected decoded 32x24 image, got %v", scanner.bounds)
	}
}

func TestScanUpload_MarkDisabled(t *testing.T) {
	scanner := &fakeScanner{}
	h := NewScanHandler(scanner)

	recorder := httptest.NewRecorder()
	h.Upload(recorder, uploadRequest(t, "image", testPNG(t), "?mark=false"))

	assertStatusCode(t, recorder, http.StatusOK)
	if scanner.mark {
		t.Error("expected mark=false to disable marking")
	}
	var resp ScanResponse
	parseJSONResponse(t, recorder, &resp)
	if resp.Success || resp.Message != "No barcodes found in image" || resp.Results == nil {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestScanUpload_Errors(t *testing.T) {
	tests := []struct {
		name    string
		req     func(t *testing.T) *http.Request
		wantErr string
	}{
		{"wrong field", func(t *testing.T) *http.Request {
			return uploadRequest(t, "file", testPNG(t), "")
		}, "no image uploaded"},
		{"not an image", func(t *testing.T) *http.Request {
			return uploadRequest(t, "image", []byte("plain text"), "")
		}, "invalid image format"},
		{"not multipart", func(t *testing.T) *http.Request {
			return httptest.NewRequest(http.MethodPost, "/api/v1/scan/upload", strings.NewReader("x"))
		}, "failed to parse multipart form"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			scanner := &fakeScanner{}
			recorder := httptest.NewRecorder()
			NewScanHandler(scanner).Upload(recorder, tc.req(t))

			assertStatusCode(t, recorder, http.StatusBadRequest)
			assertJSONError(t, recorder, tc.wantErr)
			if scanner.calls != 0 {
				t.Error("scanner must not run on a bad request")
			}
		})
	}
}

func TestScanCamera(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString(testPNG(t))
	invalid := validOutcome()
	invalid.Valid = false
	invalid.Marked = false

	tests := []struct {
		name     string
		body     string
		outcomes []pipeline.ScanOutcome
		wantMark bool
		wantMsg  string
	}{
		{"data url", `{"image":"data:image/png;base64,` + encoded + `"}`,
			[]pipeline.ScanOutcome{validOutcome()}, true, "Found 1 valid barcode(s)"},
		{"bare base64 without marking", `{"image":"` + encoded + `","mark":false}`,
			[]pipeline.ScanOutcome{invalid}, false, "No valid barcodes found in image"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			scanner := &fakeScanner{outcomes: tc.outcomes}
			recorder := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/scan/camera", strings.NewReader(tc.body))
			NewScanHandler(scanner).Camera(recorder, req)

			assertStatusCode(t, recorder, http.StatusOK)
			var resp ScanResponse
			parseJSONResponse(t, recorder, &resp)
			if resp.Message != tc.wantMsg {
				t.Errorf("expected message %q, got %q", tc.wantMsg, resp.Message)
			}
			if scanner.mark != tc.wantMark {
				t.Errorf("expected mark=%v, got %v", tc.wantMark, scanner.mark)
			}
		})
	}
}

func TestScanCamera_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"malformed json", `{`, errInvalidRequestBody},
		{"missing image", `{}`, "no image data provided"},
		{"bad base64", `{"image":"data:image/png;base64,!!!"}`, "invalid image data"},
		{"not an image", `{"image":"` + base64.StdEncoding.EncodeToString([]byte("hello")) + `"}`, "invalid image data"},
		{"data url without payload", `{"image":"data:image/png;base64"}`, "invalid image data"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/scan/camera", strings.NewReader(tc.body))
			NewScanHandler(&fakeScanner{}).Camera(recorder, req)

			assertStatusCode(t, recorder, http.StatusBadRequest)
			assertJSONError(t, recorder, tc.wantErr)
		})
	}
}

func TestMarkParam(t *testing.T) {
	tests := map[string]bool{"": true, "true": true, "1": true, "false": false, "0": false, "garbage": true}
	for in, want := range tests {
		if got := markParam(in); got != want {
			t.Errorf("markParam(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestScanCamera_LedgerUnavailable(t *testing.T) {
	failed := validOutcome()
	failed.Marked = false
	failed.Message = "Failed to mark attendance"
	failed.Err = fmt.Errorf("append row: %w", ledger.ErrUnavailable)

	scanner := &fakeScanner{outcomes: []pipeline.ScanOutcome{failed}}
	body := `{"image":"` + base64.StdEncoding.EncodeToString(testPNG(t)) + `"}`
	recorder := httptest.NewRecorder()
	NewScanHandler(scanner).Camera(recorder, httptest.NewRequest(http.MethodPost, "/api/v1/scan/camera", strings.NewReader(body)))

	assertStatusCode(t, recorder, http.StatusServiceUnavailable)
	var resp ScanResponse
	parseJSONResponse(t, recorder, &resp)
	if resp.Success || resp.Message != "Attendance store unavailable, try again" || len(resp.Results) != 1 {
		t.Errorf("unexpected response: %+v", resp)
	}
}
