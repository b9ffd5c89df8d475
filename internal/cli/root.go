package cli

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/dl-alexandre/sheetport/internal/config"
	"github.com/dl-alexandre/sheetport/internal/logging"
	"github.com/dl-alexandre/sheetport/internal/types"
	"github.com/dl-alexandre/sheetport/internal/utils"
	"github.com/dl-alexandre/sheetport/pkg/version"
)

var (
	globalFlags    types.GlobalFlags
	logger         logging.Logger = logging.NewNoOpLogger()
	debugTransport *logging.DebugTransport
	appConfig      *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "sheetport",
	Short: "Batch-convert spreadsheets and upload them to an import service",
	Long: `sheetport scans a directory tree for spreadsheets, optionally rewrites
their header rows through a column mapping table, and uploads each workbook
to the import service one at a time.

All commands support JSON output for automation and scripting.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			if cmd != configResetCmd && cmd != configPathCmd {
				return utils.WrapAppError(utils.NewCLIError(utils.ErrCodeInvalidArgument, err.Error()).
					WithContext("suggestedAction", "fix the file or run 'sheetport config reset'").
					Build(), err)
			}
			cfg = config.DefaultConfig()
		}
		appConfig = cfg

		if !cmd.Flags().Changed("output") && !globalFlags.JSON {
			globalFlags.OutputFormat = cfg.DefaultOutputFormat
		}
		if !cmd.Flags().Changed("profile") {
			globalFlags.Profile = cfg.Profile
		}
		if err := validateGlobalFlags(); err != nil {
			return err
		}

		logConfig := logging.LogConfig{
			Level:           logging.ParseLevel(cfg.LogLevel),
			OutputFile:      globalFlags.LogFile,
			MaxFileSize:     logging.DefaultLogConfig().MaxFileSize,
			EnableConsole:   !globalFlags.Quiet,
			EnableDebug:     globalFlags.Debug,
			RedactSensitive: true,
			EnableColor:     cfg.ColorOutput && !globalFlags.NoColor,
			EnableTimestamp: true,
		}
		if cfg.LogLevel == "normal" {
			// progress lines already cover routine events
			logConfig.Level = logging.WARN
		}
		if globalFlags.Verbose || globalFlags.Debug {
			logConfig.Level = logging.DEBUG
		}
		if globalFlags.OutputFormat == types.OutputFormatJSON && !globalFlags.Verbose && !globalFlags.Debug {
			logConfig.EnableConsole = false
		}

		logger, debugTransport, err = logging.NewDebugLoggerWithTransport(logConfig)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Close()
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "Print the version number of sheetport",
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := GetGlobalFlags()
		if flags.OutputFormat == types.OutputFormatJSON {
			return NewOutputWriter(flags.OutputFormat, flags.Quiet, flags.Verbose).WriteSuccess("version", version.Get())
		}
		fmt.Println(version.Get().String())
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&globalFlags.Profile, "profile", "default", "Credential profile to use")
	rootCmd.PersistentFlags().StringVar((*string)(&globalFlags.OutputFormat), "output", "table", "Output format (json, table)")
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.Quiet, "quiet", "q", false, "Suppress non-essential output")
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&globalFlags.Debug, "debug", false, "Log every HTTP exchange")
	rootCmd.PersistentFlags().StringVar(&globalFlags.LogFile, "log-file", "", "Also write JSON logs to this file")
	rootCmd.PersistentFlags().BoolVar(&globalFlags.DryRun, "dry-run", false, "Scan and convert without logging in or uploading")
	rootCmd.PersistentFlags().BoolVar(&globalFlags.NoColor, "no-color", false, "Disable colored log output")
	rootCmd.PersistentFlags().BoolVar(&globalFlags.JSON, "json", false, "Output in JSON format (alias for --output json)")

	rootCmd.AddCommand(versionCmd)
}

func validateGlobalFlags() error {
	// Handle --json flag as alias for --output json
	if globalFlags.JSON {
		globalFlags.OutputFormat = types.OutputFormatJSON
	}

	if globalFlags.OutputFormat != types.OutputFormatJSON && globalFlags.OutputFormat != types.OutputFormatTable {
		return utils.NewAppError(utils.NewCLIError(utils.ErrCodeInvalidArgument,
			fmt.Sprintf("invalid output format: %s", globalFlags.OutputFormat)).Build())
	}
	return nil
}

// Execute runs the root command and returns the process exit code
func Execute() int {
	err := rootCmd.Execute()
	if err == nil {
		return utils.ExitSuccess
	}

	var reported *exitError
	if errors.As(err, &reported) {
		return reported.code
	}

	cliErr := utils.AsCLIError(err)
	fmt.Fprintf(os.Stderr, "Error [%s]: %s\n", cliErr.Code, cliErr.Message)
	if cliErr.Code == utils.ErrCodeUnknown {
		// cobra argument and flag errors
		return utils.ExitInvalidArgument
	}
	return utils.GetExitCode(cliErr.Code)
}

// GetGlobalFlags returns the global flags
func GetGlobalFlags() types.GlobalFlags {
	return globalFlags
}

// GetLogger returns the global logger
func GetLogger() logging.Logger {
	return logger
}

// getConfig returns the configuration loaded for this invocation
func getConfig() *config.Config {
	if appConfig == nil {
		return config.DefaultConfig()
	}
	return appConfig
}

// newHTTPClient returns the client shared by login and uploads. Timeouts
// are applied per request through contexts.
func newHTTPClient() *http.Client {
	var transport http.RoundTripper = http.DefaultTransport
	if debugTransport != nil {
		transport = debugTransport.Wrap(http.DefaultTransport)
	}
	return &http.Client{Transport: transport}
}
