package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/attendance-scanner/internal/config"
	"github.com/kozaktomas/attendance-scanner/internal/ledger"
)

var attendanceCmd = &cobra.Command{
	Use:   "attendance [date]",
	Short: "Show who was present on a date",
	Long: `Show the attendance records of a date (YYYY-MM-DD, default today in
ATTENDANCE_TIMEZONE) in insertion order.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAttendance,
}

func init() {
	rootCmd.AddCommand(attendanceCmd)

	attendanceCmd.Flags().Bool("json", false, "Print records as JSON")
}

// resolveDate returns args[0] validated, or today.
func resolveDate(args []string, loc *time.Location) (string, error) {
	if len(args) == 0 || args[0] == "today" {
		return ledger.DateOf(time.Now().In(loc)), nil
	}
	return ledger.ParseDate(args[0])
}

func printStats(stats ledger.Stats) {
	fmt.Printf("Attendance on %s: %d student(s)\n", stats.Date, stats.Count)
	for i, name := range stats.Names {
		fmt.Printf("  %3d. %s\n", i+1, name)
	}
}

func runAttendance(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	date, err := resolveDate(args, cfg.Scan.Location)
	if err != nil {
		return err
	}

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

	if mustGetBool(cmd, "json") {
		if records == nil {
			records = []ledger.Record{}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	if len(records) == 0 {
		fmt.Printf("No attendance recorded on %s\n", date)
		return nil
	}
	fmt.Printf("Attendance on %s: %d student(s)\n\n", date, len(records))
	fmt.Printf("%-10s  %-14s  %s\n", "TIME", "REG NUMBER", "NAME")
	for _, r := range records {
		fmt.Printf("%-10s  %-14s  %s\n", r.Time, r.Identity, r.Name)
	}
	return nil
}
