package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/attendance-scanner/internal/ledger"
)

// AttendanceHandler serves attendance records by date.
type AttendanceHandler struct {
	ledger ledger.Ledger
	loc    *time.Location
	now    func() time.Time
}

// NewAttendanceHandler creates a new attendance handler. loc decides what
// "today" is.
func NewAttendanceHandler(l ledger.Ledger, loc *time.Location) *AttendanceHandler {
	if loc == nil {
		loc = time.Local
	}
	return &AttendanceHandler{ledger: l, loc: loc, now: time.Now}
}

// AttendanceResponse lists the records of one date.
type AttendanceResponse struct {
	Success  bool            `json:"success"`
	Date     string          `json:"date"`
	Total    int             `json:"total"`
	Records  []ledger.Record `json:"records"`
	Students []string        `json:"students"`
}

// Today handles GET /attendance/today.
func (h *AttendanceHandler) Today(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, ledger.DateOf(h.now().In(h.loc)))
}

// ByDate handles GET /attendance/{date}.
func (h *AttendanceHandler) ByDate(w http.ResponseWriter, r *http.Request) {
	date, err := ledger.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}
	h.respond(w, r, date)
}

func (h *AttendanceHandler) respond(w http.ResponseWriter, r *http.Request, date string) {
	records, err := h.ledger.Summary(r.Context(), date)
	if err != nil {
		log.Printf("Failed to read attendance for %s: %v", date, err)
		respondError(w, http.StatusServiceUnavailable, "attendance store unavailable")
		return
	}
	if records == nil {
		records = []ledger.Record{}
	}

	students := make([]string, 0, len(records))
	for _, rec := range records {
		students = append(students, rec.Name)
	}
	respondJSON(w, http.StatusOK, AttendanceResponse{
		Success:  true,
		Date:     date,
		Total:    len(records),
		Records:  records,
		Students: students,
	})
}
