package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/attendance-scanner/internal/camera"
)

var camerasCmd = &cobra.Command{
	Use:   "cameras",
	Short: "List available cameras",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("Probing camera indexes 0-%d...\n", camera.MaxProbeIndex-1)
		found := camera.Probe()
		if len(found) == 0 {
			return fmt.Errorf("no cameras found")
		}
		for _, c := range found {
			fmt.Printf("  [%d] %dx%d @ %.0f fps  %s\n", c.Index, c.Width, c.Height, c.FPS, c.Kind)
		}
		fmt.Println("\nSelect one with CAMERA_INDEX or run --camera <index>")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(camerasCmd)
}
