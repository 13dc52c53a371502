// Package main is lgvalidate, a pre-flight checker for bulk upload batches.
//
// Practices (or support staff) run it against a directory of scanned files
// before submission, applying exactly the filename validation the ingestion
// Lambda applies, so naming problems surface before any upload happens.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/carerecords/lgingest/internal/filename"
	"github.com/carerecords/lgingest/internal/logging"
)

// CLI flags
var (
	nhsNumberFlag string
	quietFlag     bool
)

var rootCmd = &cobra.Command{
	Use:   "lgvalidate",
	Short: "Validate Lloyd George record filenames before bulk upload",
	Long: `lgvalidate checks a directory of scanned Lloyd George record files against
the bulk upload naming rules: the XofY_Lloyd_George_Record_[Name]_[NHS
number]_[DOB].ext pattern, a complete page set with no duplicates, and
consistent patient details across the batch.

Examples:
  lgvalidate check ./scans
  lgvalidate check ./scans --nhs-number 9000000009`,
}

var checkCmd = &cobra.Command{
	Use:   "check <directory>",
	Short: "Validate every file in a directory as one patient batch",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().StringVarP(&nhsNumberFlag, "nhs-number", "n", "", "Expected patient identifier (checked against every filename)")
	checkCmd.Flags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress per-file output, report only the verdict")
	rootCmd.AddCommand(checkCmd)
}

func main() {
	logging.Init()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCheck(cmd *cobra.Command, args []string) error {
	dirPath := args[0]

	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return fmt.Errorf("read directory %s: %w", dirPath, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	if len(names) == 0 {
		return fmt.Errorf("no files found in %s", dirPath)
	}

	parsed, err := filename.ValidateBatch(names, nhsNumberFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "INVALID (%s): %v\n", filename.KindOf(err), err)
		os.Exit(1)
	}

	if !quietFlag {
		for _, p := range parsed {
			fmt.Printf("  %2d of %2d  %s  %s  %s\n",
				p.PageIndex, p.PageTotal, p.NHSNumber, p.Dob, filepath.Base(p.Filename))
		}
	}
	fmt.Printf("OK: %d file(s) form a complete batch for patient %s\n",
		len(parsed), parsed[0].NHSNumber)
	return nil
}
