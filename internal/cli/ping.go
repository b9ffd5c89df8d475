package cli

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dl-alexandre/sheetport/internal/api"
	"github.com/dl-alexandre/sheetport/internal/types"
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the import service is reachable",
	Long: `Send an empty login request to the import service. Any HTTP answer,
including a rejected login, means the server is reachable.`,
	Args: cobra.NoArgs,
	RunE: runPing,
}

var pingServer string

func init() {
	pingCmd.Flags().StringVar(&pingServer, "server", "", "Server URL (default from config)")
	rootCmd.AddCommand(pingCmd)
}

func runPing(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := NewOutputWriter(flags.OutputFormat, flags.Quiet, flags.Verbose)
	cfg := getConfig()

	serverURL := strings.TrimRight(firstNonEmpty(pingServer, cfg.ServerURL), "/")
	result, err := ping(context.Background(), newHTTPClient(), serverURL, flags.Profile, cfg.GetRequestTimeout())
	if err != nil {
		return out.WriteErr("ping", err)
	}

	out.Log("Server %s answered with status %d", result.ServerURL, result.HTTPStatus)
	return out.WriteSuccess("ping", result)
}

func ping(ctx context.Context, httpClient *http.Client, serverURL, profile string, timeout time.Duration) (types.PingResult, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	client := api.NewClient(serverURL, httpClient, GetLogger())
	start := time.Now()
	status, err := client.Ping(ctx, api.NewRequestContext(profile, types.RequestTypePing))
	if err != nil {
		return types.PingResult{}, err
	}
	return types.PingResult{
		ServerURL:  client.BaseURL(),
		Reachable:  true,
		HTTPStatus: status,
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}
