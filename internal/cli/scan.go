package cli

import (
	"context"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dl-alexandre/sheetport/internal/scanner"
	"github.com/dl-alexandre/sheetport/internal/utils"
)

var scanCmd = &cobra.Command{
	Use:   "scan <dir>",
	Short: "List the spreadsheets below a directory",
	Long:  "Scan a directory tree and list every spreadsheet that run would pick up, with sizes",
	Args:  cobra.ExactArgs(1),
	RunE:  runScan,
}

var (
	scanExclude         []string
	scanDefaultExcludes bool
)

func init() {
	scanCmd.Flags().StringSliceVar(&scanExclude, "exclude", nil, "Exclude patterns relative to the directory")
	scanCmd.Flags().BoolVar(&scanDefaultExcludes, "default-excludes", false, "Skip lock files and VCS directories")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := NewOutputWriter(flags.OutputFormat, flags.Quiet, flags.Verbose)

	result, err := scanner.Scan(context.Background(), filepath.Clean(args[0]), scanner.Options{
		Exclude:         scanExclude,
		DefaultExcludes: scanDefaultExcludes,
		Logger:          GetLogger(),
	})
	if err != nil {
		return out.WriteErr("scan", err)
	}

	out.Log("Found %d spreadsheet files, %s total", result.FileCount, utils.FormatSize(result.TotalSize))
	return out.WriteSuccess("scan", result)
}
