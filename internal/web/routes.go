package web

import (
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kozaktomas/attendance-scanner/internal/web/handlers"
)

// requestTimeout bounds non-streaming requests. Scans may wait on the
// ledger and the name reader.
const requestTimeout = 2 * time.Minute

func (s *Server) setupRoutes() {
	scanHandler := handlers.NewScanHandler(s.deps.Scanner)
	attendanceHandler := handlers.NewAttendanceHandler(s.deps.Ledger, s.deps.Location)
	info := s.deps.Info
	info.Station = s.deps.Station != nil
	statusHandler := handlers.NewStatusHandler(info, s.deps.Checker)

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.Timeout(requestTimeout))

			r.Post("/scan/upload", scanHandler.Upload)
			r.Post("/scan/camera", scanHandler.Camera)

			r.Get("/attendance/today", attendanceHandler.Today)
			r.Get("/attendance/{date}", attendanceHandler.ByDate)

			r.Get("/status", statusHandler.Get)
			r.Get("/ledger/check", statusHandler.CheckLedger)

			if s.deps.Station != nil {
				r.Get("/station", s.deps.Station.Status)
			}
		})

		if s.deps.Station != nil {
			r.Get("/station/events", s.deps.Station.Events)
		}
	})
}
