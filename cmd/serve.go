package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/attendance-scanner/internal/camera"
	"github.com/kozaktomas/attendance-scanner/internal/config"
	"github.com/kozaktomas/attendance-scanner/internal/pipeline"
	"github.com/kozaktomas/attendance-scanner/internal/web"
	"github.com/kozaktomas/attendance-scanner/internal/web/handlers"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the attendance HTTP API.
Photos of ID cards can be posted to /api/v1/scan/upload or, as base64 camera
snapshots, to /api/v1/scan/camera. With --with-camera the server also runs
the camera loop and streams its results on /api/v1/station/events.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8085, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().Bool("with-camera", false, "Run the camera scanning loop inside the server")
}

// resolveServeHostPort resolves port and host from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (int, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return port, host
}

// startStation opens the camera and runs the scanning loop until ctx ends.
func startStation(ctx context.Context, cfg *config.Config, p *pipeline.Pipeline) (*handlers.Station, func(), error) {
	device, err := camera.Open(cfg.Camera)
	if err != nil {
		return nil, nil, err
	}

	runner := &pipeline.Runner{
		Source:   device,
		Pipeline: p,
		Interval: cfg.Scan.Interval,
		Cooldown: cfg.Scan.Cooldown,
	}
	station := handlers.NewStation(runner.Status)
	runner.OnResult = station.Publish

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			fmt.Printf("Camera loop stopped: %v\n", err)
		}
	}()

	stop := func() {
		<-done
		if err := device.Close(); err != nil {
			fmt.Printf("Warning: %v\n", err)
		}
	}
	return station, stop, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := buildStack(ctx, cfg, mustGetBool(cmd, "dry-run"))
	if err != nil {
		return err
	}
	defer st.Close()

	deps := web.Deps{
		Scanner:  st.pipeline,
		Ledger:   st.ledger,
		Location: cfg.Scan.Location,
		Info: handlers.StatusInfo{
			Version:       Version,
			LedgerBackend: st.backend,
			Prefix:        cfg.Identity.Prefix,
		},
	}
	if st.checker != nil {
		deps.Checker = st.checker
	}

	stopStation := func() {}
	if mustGetBool(cmd, "with-camera") {
		station, stop, err := startStation(ctx, cfg, st.pipeline)
		if err != nil {
			return err
		}
		deps.Station = station
		stopStation = stop
	}

	port, host := resolveServeHostPort(cmd)
	server := web.NewServer(cfg, deps, port, host)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Attendance Scanner API on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	err = server.Start()
	cancel()
	stopStation()
	if err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
