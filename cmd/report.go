package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/attendance-scanner/internal/config"
	"github.com/kozaktomas/attendance-scanner/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report [date]",
	Short: "Export or email the attendance of a date as CSV",
	Long: `Write the attendance of a date (default today) as CSV to stdout, or email
it with the CSV attached when --email or --to is given. SMTP settings come
from SMTP_SERVER, SMTP_PORT, SMTP_USER, SMTP_PASS and TO_EMAIL.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().Bool("email", false, "Send the report to TO_EMAIL")
	reportCmd.Flags().String("to", "", "Send the report to this address")
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	date, err := resolveDate(args, cfg.Scan.Location)
	if err != nil {
		return err
	}
	to := mustGetString(cmd, "to")
	email := to != "" || mustGetBool(cmd, "email")

	ctx := context.Background()
	st, err := buildStack(ctx, cfg, mustGetBool(cmd, "dry-run"))
	if err != nil {
		return err
	}
	defer st.Close()

	records, err := st.ledger.Summary(ctx, date)
	if err != nil {
		return err
	}

	if !email {
		return report.WriteCSV(os.Stdout, records)
	}

	mailer, err := report.NewMailer(cfg.Mail, st.source)
	if err != nil {
		return err
	}
	to = mailer.Recipient(to)
	if err := mailer.Send(ctx, to, date, records); err != nil {
		return fmt.Errorf("failed to send report: %w", err)
	}
	fmt.Printf("Sent %d record(s) for %s to %s\n", len(records), date, to)
	return nil
}
