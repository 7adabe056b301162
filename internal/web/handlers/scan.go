package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/kozaktomas/attendance-scanner/internal/constants"
	"github.com/kozaktomas/attendance-scanner/internal/pipeline"
	"github.com/kozaktomas/attendance-scanner/internal/vision"
)

// ImageScanner decodes and optionally marks every code in a still image.
type ImageScanner interface {
	ScanImage(ctx context.Context, img image.Image, mark bool) []pipeline.ScanOutcome
}

// ScanHandler handles still-image scan endpoints.
type ScanHandler struct {
	scanner ImageScanner
}

// NewScanHandler creates a new scan handler.
func NewScanHandler(scanner ImageScanner) *ScanHandler {
	return &ScanHandler{scanner: scanner}
}

// ScanResponse is the body of both scan endpoints.
type ScanResponse struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Results []pipeline.ScanOutcome `json:"results"`
}

// CameraRequest carries a base64 image, optionally as a data URL.
type CameraRequest struct {
	Image string `json:"image"`
	Mark  *bool  `json:"mark,omitempty"`
}

// Upload handles a multipart upload with the image in the "image" field.
// Attendance is marked unless mark=false is passed as a query parameter.
func (h *ScanHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		respondError(w, http.StatusBadRequest, "no image uploaded")
		return
	}
	defer file.Close()

	img, err := vision.DecodeImage(file)
	if err != nil {
		log.Printf("Rejected upload %s: %v", sanitizeForLog(header.Filename), err)
		respondError(w, http.StatusBadRequest, "invalid image format")
		return
	}

	h.scan(w, r, img, markParam(r.URL.Query().Get("mark")))
}

// Camera handles a JSON body holding a base64 encoded camera snapshot.
func (h *ScanHandler) Camera(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)
	var req CameraRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Image == "" {
		respondError(w, http.StatusBadRequest, "no image data provided")
		return
	}

	data, err := decodeDataURL(req.Image)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid image data")
		return
	}
	img, err := vision.DecodeImageBytes(data)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid image data")
		return
	}

	mark := true
	if req.Mark != nil {
		mark = *req.Mark
	}
	h.scan(w, r, img, mark)
}

func (h *ScanHandler) scan(w http.ResponseWriter, r *http.Request, img image.Image, mark bool) {
	outcomes := h.scanner.ScanImage(r.Context(), img, mark)

	valid, unavailable := 0, false
	for _, o := range outcomes {
		if o.Valid {
			valid++
		}
		unavailable = unavailable || o.Unavailable()
	}

	status := http.StatusOK
	resp := ScanResponse{Success: valid > 0, Results: outcomes}
	switch {
	case unavailable:
		status = http.StatusServiceUnavailable
		resp.Success = false
		resp.Message = "Attendance store unavailable, try again"
	case len(outcomes) == 0:
		resp.Message = "No barcodes found in image"
		resp.Results = []pipeline.ScanOutcome{}
	case valid == 0:
		resp.Message = "No valid barcodes found in image"
	default:
		resp.Message = fmt.Sprintf("Found %d valid barcode(s)", valid)
	}
	respondJSON(w, status, resp)
}

// decodeDataURL accepts "data:image/jpeg;base64,<data>" or bare base64.
func decodeDataURL(s string) ([]byte, error) {
	if strings.HasPrefix(s, "data:") {
		_, payload, ok := strings.Cut(s, ",")
		if !ok {
			return nil, fmt.Errorf("malformed data URL")
		}
		s = payload
	}
	return base64.StdEncoding.DecodeString(strings.TrimSpace(s))
}

func markParam(v string) bool {
	if v == "" {
		return true
	}
	mark, err := strconv.ParseBool(v)
	return err != nil || mark
}
