package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/attendance-scanner/internal/config"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the ledger, roster and name reader configuration",
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	st, err := buildStack(ctx, cfg, mustGetBool(cmd, "dry-run"))
	if err != nil {
		return err
	}
	defer st.Close()

	fmt.Printf("Registration prefix: %s\n", cfg.Identity.Prefix)
	fmt.Printf("Card detection:      %s (min area %d)\n", cfg.Detection.Strategy, cfg.Detection.MinArea)
	if st.reader != nil {
		fmt.Printf("Name reader:         %s\n", st.reader.Name())
	} else {
		fmt.Printf("Name reader:         disabled\n")
	}
	fmt.Printf("Mail reports:        %t\n", cfg.Mail.Configured())

	fmt.Printf("Ledger (%s):  ", st.backend)
	if err := st.check(ctx); err != nil {
		fmt.Println("FAILED")
		return fmt.Errorf("ledger check failed: %w", err)
	}
	fmt.Println("OK")
	return nil
}
