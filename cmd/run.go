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
	"github.com/kozaktomas/attendance-scanner/internal/ledger"
	"github.com/kozaktomas/attendance-scanner/internal/pipeline"
	"github.com/kozaktomas/attendance-scanner/internal/report"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Scan ID cards from the camera",
	Long: `Open the camera and mark attendance for every card held steadily in front
of it. A card is accepted after SCAN_STABILITY_THRESHOLD identical reads.
Stop with Ctrl+C; with --report-to the day's attendance is emailed on exit.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Int("camera", -1, "Camera index (overrides CAMERA_INDEX)")
	runCmd.Flags().String("report-to", "", "Email the day's attendance to this address on exit")
	runCmd.Flags().Bool("report", false, "Email the day's attendance to TO_EMAIL on exit")
}

// printResult writes one line per scan outcome worth telling the operator.
func printResult(res pipeline.Result) {
	ts := res.At.Format(time.TimeOnly)
	switch {
	case res.Kind == pipeline.Pending:
		fmt.Printf("[%s] %s  %s (%d)\n", ts, res.Identity, res.Message(), res.Count)
	case res.Kind == pipeline.Accepted:
		fmt.Printf("[%s] OK  %s  %s\n", ts, res.Identity, res.Message())
	case res.Reason == pipeline.ReasonNoCode:
	case res.Reason == pipeline.ReasonLedgerUnavailable:
		fmt.Printf("[%s] ERR %s  %s: %v\n", ts, res.Identity, res.Message(), res.Err)
	default:
		fmt.Printf("[%s] --  %s  %s\n", ts, displayIdentity(res), res.Message())
	}
}

func displayIdentity(res pipeline.Result) string {
	if res.Identity != "" {
		return res.Identity
	}
	return fmt.Sprintf("%q", res.Payload)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if idx := mustGetInt(cmd, "camera"); idx >= 0 {
		cfg.Camera.Index = idx
	}
	reportTo := mustGetString(cmd, "report-to")
	sendReport := reportTo != "" || mustGetBool(cmd, "report")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := buildStack(ctx, cfg, mustGetBool(cmd, "dry-run"))
	if err != nil {
		return err
	}
	defer st.Close()

	var mailer *report.Mailer
	if sendReport {
		mailer, err = report.NewMailer(cfg.Mail, st.source)
		if err != nil {
			return err
		}
	}

	device, err := camera.Open(cfg.Camera)
	if err != nil {
		return err
	}
	defer device.Close()

	runner := &pipeline.Runner{
		Source:   device,
		Pipeline: st.pipeline,
		Interval: cfg.Scan.Interval,
		Cooldown: cfg.Scan.Cooldown,
		OnResult: printResult,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nStopping scanner...")
		cancel()
	}()

	info := device.Info()
	fmt.Printf("Scanning with camera %d (%dx%d). Press Ctrl+C to stop\n", info.Index, info.Width, info.Height)

	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("scanner stopped: %w", err)
	}

	status := runner.Status()
	fmt.Printf("\nFrames: %d, scans: %d, accepted: %d, rejected: %d\n",
		status.Frames, status.Scans, status.Accepted, status.Rejected)

	// The run context is gone; the summary gets its own deadline.
	summaryCtx, summaryCancel := context.WithTimeout(context.Background(), time.Minute)
	defer summaryCancel()

	date := ledger.DateOf(time.Now().In(cfg.Scan.Location))
	stats, err := ledger.StatsFor(summaryCtx, st.ledger, date)
	if err != nil {
		return fmt.Errorf("failed to read attendance summary: %w", err)
	}
	printStats(stats)

	if mailer != nil {
		records, err := st.ledger.Summary(summaryCtx, date)
		if err != nil {
			return fmt.Errorf("failed to read attendance for report: %w", err)
		}
		to := mailer.Recipient(reportTo)
		if err := mailer.Send(summaryCtx, to, date, records); err != nil {
			return fmt.Errorf("failed to send report: %w", err)
		}
		fmt.Printf("Report sent to %s\n", to)
	}
	return nil
}
