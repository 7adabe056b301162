package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/attendance-scanner/internal/config"
	"github.com/kozaktomas/attendance-scanner/internal/constants"
	"github.com/kozaktomas/attendance-scanner/internal/pipeline"
	"github.com/kozaktomas/attendance-scanner/internal/vision"
)

var scanCmd = &cobra.Command{
	Use:   "scan <path> [path...]",
	Short: "Scan ID card photos",
	Long: `Scan image files or folders of images for ID card codes and mark every
valid registration number as present. Still images are accepted on the first
valid read.

Use --no-mark to only report what was found.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().BoolP("recursive", "r", false, "Search for images recursively in subdirectories")
	scanCmd.Flags().Bool("no-mark", false, "Only decode and validate, do not write attendance")
	scanCmd.Flags().Int("workers", constants.DefaultConcurrency, "Number of images decoded in parallel")
}

// isImageFile checks if a file has an extension the decoder understands
func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp":
		return true
	}
	return false
}

// collectImages expands folders into image files. Files named explicitly
// are taken whatever their extension.
func collectImages(paths []string, recursive bool) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", p, err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}

		if recursive {
			err := filepath.WalkDir(p, func(path string, d os.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if !d.IsDir() && isImageFile(d.Name()) {
					files = append(files, path)
				}
				return nil
			})
			if err != nil {
				return nil, fmt.Errorf("cannot walk folder %s: %w", p, err)
			}
			continue
		}

		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, fmt.Errorf("cannot read folder %s: %w", p, err)
		}
		for _, entry := range entries {
			if !entry.IsDir() && isImageFile(entry.Name()) {
				files = append(files, filepath.Join(p, entry.Name()))
			}
		}
	}
	return files, nil
}

type fileScan struct {
	path     string
	outcomes []pipeline.ScanOutcome
	err      error
}

func scanFile(ctx context.Context, p *pipeline.Pipeline, path string, mark bool) fileScan {
	f, err := os.Open(path)
	if err != nil {
		return fileScan{path: path, err: err}
	}
	defer f.Close()

	img, err := vision.DecodeImage(f)
	if err != nil {
		return fileScan{path: path, err: err}
	}
	return fileScan{path: path, outcomes: p.ScanImage(ctx, img, mark)}
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	mark := !mustGetBool(cmd, "no-mark")
	workers := max(mustGetInt(cmd, "workers"), 1)

	files, err := collectImages(args, mustGetBool(cmd, "recursive"))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Println("No image files found.")
		return nil
	}

	ctx := context.Background()
	st, err := buildStack(ctx, cfg, mustGetBool(cmd, "dry-run"))
	if err != nil {
		return err
	}
	defer st.Close()

	fmt.Printf("Scanning %d image(s)\n\n", len(files))

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetDescription("Scanning"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)

	var (
		results = make([]fileScan, len(files))
		wg      sync.WaitGroup
		sem     = make(chan struct{}, workers)
	)
	for i, path := range files {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results[i] = scanFile(ctx, st.pipeline, path, mark)
			bar.Add(1)
		}()
	}
	wg.Wait()
	fmt.Println()
	fmt.Println()

	var marked, duplicates, invalid, failed int
	for _, r := range results {
		if r.err != nil {
			failed++
			fmt.Printf("Warning: %s: %v\n", r.path, r.err)
			continue
		}
		if len(r.outcomes) == 0 {
			fmt.Printf("%s: no code found\n", filepath.Base(r.path))
			continue
		}
		for _, o := range r.outcomes {
			switch {
			case !o.Valid:
				invalid++
				fmt.Printf("%s: %q %s\n", filepath.Base(r.path), o.Payload, o.Message)
			case o.Err != nil:
				failed++
				fmt.Printf("%s: %s %s: %v\n", filepath.Base(r.path), o.Identity, o.Message, o.Err)
			default:
				if o.Marked {
					marked++
				} else if mark {
					duplicates++
				}
				fmt.Printf("%s: %s %s - %s\n", filepath.Base(r.path), o.Identity, o.Name, o.Message)
			}
		}
	}

	fmt.Printf("\nDone! Marked %d, already present %d, invalid %d, failed %d\n", marked, duplicates, invalid, failed)
	return nil
}
