package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dl-alexandre/sheetport/internal/batch"
	"github.com/dl-alexandre/sheetport/internal/config"
	"github.com/dl-alexandre/sheetport/internal/types"
	"github.com/dl-alexandre/sheetport/internal/utils"
)

// PasswordEnv supplies the login password when --password is not given
const PasswordEnv = "SHEETPORT_PASSWORD"

var runCmd = &cobra.Command{
	Use:   "run <input-dir>",
	Short: "Scan, convert and upload a directory of spreadsheets",
	Long: `Log in, scan <input-dir> for spreadsheets, rewrite header rows when column
mappings are configured, then upload every workbook one at a time.

The password is taken from --password, then $SHEETPORT_PASSWORD, then the
credential stored for --profile with 'sheetport auth save'.`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

var (
	runServer             string
	runUsername           string
	runPassword           string
	runOutputDir          string
	runMappings           mappingFlags
	runExclude            []string
	runDefaultExcludes    bool
	runOnlyValidInvention bool
	runUploadTimeout      time.Duration
	runCooldown           time.Duration
	runNoHistory          bool
)

func init() {
	runCmd.Flags().StringVar(&runServer, "server", "", "Import service base URL (default from config)")
	runCmd.Flags().StringVarP(&runUsername, "username", "u", "", "Login username (default from config or stored profile)")
	runCmd.Flags().StringVarP(&runPassword, "password", "p", "", "Login password")
	runCmd.Flags().StringVarP(&runOutputDir, "output-dir", "d", "", "Directory receiving converted workbooks")
	runCmd.Flags().StringArrayVarP(&runMappings.tokens, "column-mapping", "m", nil, "Header mapping original:mapped (repeatable)")
	runCmd.Flags().BoolVar(&runMappings.defaults, "default-mappings", false, "Include the built-in header mappings")
	runCmd.Flags().StringSliceVar(&runExclude, "exclude", nil, "Exclude patterns relative to the input directory")
	runCmd.Flags().BoolVar(&runDefaultExcludes, "default-excludes", false, "Skip lock files and VCS directories")
	runCmd.Flags().BoolVar(&runOnlyValidInvention, "only-valid-invention", false, "Ask the service to import valid inventions only")
	runCmd.Flags().DurationVar(&runUploadTimeout, "upload-timeout", 0, "Per-file upload timeout (default from config)")
	runCmd.Flags().DurationVar(&runCooldown, "cooldown", 0, "Pause after each successful upload (default from config)")
	runCmd.Flags().BoolVar(&runNoHistory, "no-history", false, "Do not record this run in the history database")

	rootCmd.AddCommand(runCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := NewOutputWriter(flags.OutputFormat, flags.Quiet, flags.Verbose)
	cfg := getConfig()

	opts, err := buildRunOptions(cmd, cfg, flags, args[0], out)
	if err != nil {
		return out.WriteErr("run", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	printBanner(out, opts)

	engine := batch.NewEngine(newHTTPClient(), GetLogger(), newProgressPrinter(out, opts.DryRun))
	if cfg.HistoryEnabled && !runNoHistory {
		db, err := openHistory()
		if err != nil {
			out.AddWarning("HISTORY_UNAVAILABLE", fmt.Sprintf("run history disabled: %v", err), "warning")
		} else {
			defer db.Close()
			engine.SetRecorder(db)
		}
	}

	report, runErr := engine.Run(ctx, opts)
	if report == nil {
		return out.WriteErr("run", runErr)
	}

	if err := out.WriteSuccess("run", report); err != nil {
		return err
	}
	if runErr != nil {
		return &exitError{code: utils.GetExitCode(utils.ErrorCode(runErr)), err: runErr}
	}
	if report.Failed > 0 {
		return &exitError{
			code: utils.ExitBatchPartialFailure,
			err:  fmt.Errorf("%d of %d uploads failed", report.Failed, report.Total()),
		}
	}
	return nil
}

func buildRunOptions(cmd *cobra.Command, cfg *config.Config, flags types.GlobalFlags, input string, out *OutputWriter) (batch.Options, error) {
	table, err := runMappings.table(cfg)
	if err != nil {
		return batch.Options{}, err
	}

	opts := batch.Options{
		ServerURL:          strings.TrimRight(firstNonEmpty(runServer, cfg.ServerURL), "/"),
		Username:           firstNonEmpty(runUsername, cfg.Username),
		Password:           firstNonEmpty(runPassword, os.Getenv(PasswordEnv)),
		Profile:            flags.Profile,
		InputRoot:          filepath.Clean(input),
		Table:              table,
		Exclude:            runExclude,
		DefaultExcludes:    runDefaultExcludes,
		OnlyValidInvention: runOnlyValidInvention || cfg.OnlyValidInvention,
		UploadTimeout:      cfg.GetUploadTimeout(),
		Cooldown:           cfg.GetCooldown(),
		RequestTimeout:     cfg.GetRequestTimeout(),
		DryRun:             flags.DryRun,
	}
	if runOutputDir != "" {
		opts.OutputRoot = filepath.Clean(runOutputDir)
	}
	if cmd.Flags().Changed("upload-timeout") {
		opts.UploadTimeout = runUploadTimeout
	}
	if cmd.Flags().Changed("cooldown") {
		opts.Cooldown = runCooldown
	}
	if opts.Cooldown == 0 {
		opts.Cooldown = -1
	}
	if !table.IsEmpty() && opts.OutputRoot == "" {
		return batch.Options{}, utils.NewAppError(utils.NewCLIError(utils.ErrCodeInvalidArgument,
			"--output-dir is required when column mappings are set").Build())
	}

	if opts.DryRun || opts.Password != "" {
		return opts, nil
	}

	mgr, err := newAuthManager()
	if err != nil {
		return batch.Options{}, err
	}
	stored, err := mgr.LoadCredential(opts.Profile)
	if err != nil {
		return batch.Options{}, err
	}
	if opts.Username == "" {
		opts.Username = stored.Username
	} else if opts.Username != stored.Username {
		out.AddWarning("PROFILE_USER_MISMATCH",
			fmt.Sprintf("profile %s stores user %s, logging in as %s", opts.Profile, stored.Username, opts.Username), "warning")
	}
	// a stored server only replaces the built-in default
	if !cmd.Flags().Changed("server") && stored.ServerURL != "" && cfg.ServerURL == config.DefaultConfig().ServerURL {
		opts.ServerURL = strings.TrimRight(stored.ServerURL, "/")
	}
	opts.Password = stored.Password
	return opts, nil
}

func printBanner(out *OutputWriter, opts batch.Options) {
	out.Log("Server:  %s", opts.ServerURL)
	out.Log("User:    %s", opts.Username)
	out.Log("Input:   %s", opts.InputRoot)
	if opts.OutputRoot != "" {
		out.Log("Output:  %s", opts.OutputRoot)
	}
	out.Log("Mappings: %d", opts.Table.Len())
	out.Log("Only valid inventions: %t", opts.OnlyValidInvention)
	if opts.DryRun {
		out.Log("Dry run: no login, no uploads")
	}
	out.Log("")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
