package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "attendance-scanner",
	Short: "Mark attendance by scanning student ID cards",
	Long: `Attendance Scanner reads the QR code or barcode on a student ID card from a
camera or an uploaded photo, validates the registration number and records
the student as present once per day in Google Sheets or PostgreSQL.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().Bool("dry-run", false, "Keep attendance in memory instead of the configured ledger")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
