package cli

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dl-alexandre/sheetport/internal/scanner"
	"github.com/dl-alexandre/sheetport/internal/sheets"
	"github.com/dl-alexandre/sheetport/internal/types"
	"github.com/dl-alexandre/sheetport/internal/utils"
)

var convertCmd = &cobra.Command{
	Use:   "convert <input-dir> <output-dir>",
	Short: "Rewrite header rows without uploading",
	Long: `Scan <input-dir> and write a copy of every spreadsheet under <output-dir>,
mirroring the directory layout, with header cells renamed through the
column mapping table. No login is performed.`,
	Args: cobra.ExactArgs(2),
	RunE: runConvert,
}

var (
	convertMappings        mappingFlags
	convertExclude         []string
	convertDefaultExcludes bool
)

func init() {
	convertCmd.Flags().StringArrayVarP(&convertMappings.tokens, "column-mapping", "m", nil, "Header mapping original:mapped (repeatable)")
	convertCmd.Flags().BoolVar(&convertMappings.defaults, "default-mappings", false, "Include the built-in header mappings")
	convertCmd.Flags().StringSliceVar(&convertExclude, "exclude", nil, "Exclude patterns relative to the input directory")
	convertCmd.Flags().BoolVar(&convertDefaultExcludes, "default-excludes", false, "Skip lock files and VCS directories")
	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := NewOutputWriter(flags.OutputFormat, flags.Quiet, flags.Verbose)
	input, output := filepath.Clean(args[0]), filepath.Clean(args[1])

	table, err := convertMappings.table(getConfig())
	if err != nil {
		return out.WriteErr("convert", err)
	}
	if table.IsEmpty() {
		return out.WriteError("convert", utils.NewCLIError(utils.ErrCodeInvalidArgument,
			"no column mappings given; use --column-mapping or --default-mappings").Build())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	scan, err := scanner.Scan(ctx, input, scanner.Options{
		Exclude:         convertExclude,
		DefaultExcludes: convertDefaultExcludes,
		Logger:          GetLogger(),
	})
	if err != nil {
		return out.WriteErr("convert", err)
	}
	out.Log("Found %d spreadsheet files, %s total", scan.FileCount, utils.FormatSize(scan.TotalSize))

	mgr := sheets.NewManager(GetLogger())
	mgr.SetProgress(func(done, total int, file types.ConvertedFile) {
		out.Log("[%d/%d] %s", done, total, file.OutputPath)
	})
	converted, err := mgr.Convert(ctx, input, output, scan.Paths(), table)
	if err != nil {
		return out.WriteErr("convert", err)
	}

	return out.WriteSuccess("convert", types.ConvertResult{
		SourceRoot: input,
		TargetRoot: output,
		Files:      converted,
	})
}
