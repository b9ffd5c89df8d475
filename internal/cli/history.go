package cli

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dl-alexandre/sheetport/internal/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect previous runs",
	Long:  "List and show batch runs recorded in the local history database",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs",
	RunE:  runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show every file outcome of one run",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyLimit int

func init() {
	historyListCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of runs to list")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	rootCmd.AddCommand(historyCmd)
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := NewOutputWriter(flags.OutputFormat, flags.Quiet, flags.Verbose)

	db, err := openHistory()
	if err != nil {
		return out.WriteErr("history.list", err)
	}
	defer db.Close()

	runs, err := db.ListRuns(context.Background(), historyLimit)
	if err != nil {
		return out.WriteErr("history.list", err)
	}
	return out.WriteSuccess("history.list", types.RunList{
		Runs: runs,
		Now:  time.Now(),
		Age: func(then, now time.Time) string {
			return humanize.RelTime(then, now, "ago", "from now")
		},
	})
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := NewOutputWriter(flags.OutputFormat, flags.Quiet, flags.Verbose)

	db, err := openHistory()
	if err != nil {
		return out.WriteErr("history.show", err)
	}
	defer db.Close()

	run, err := db.GetRun(context.Background(), args[0])
	if err != nil {
		return out.WriteErr("history.show", err)
	}

	out.Log("Run %s started %s: %d succeeded, %d failed",
		run.Report.RunID, humanize.Time(run.Report.StartedAt), run.Report.Success, run.Report.Failed)
	return out.WriteSuccess("history.show", run)
}
