package status

import (
	"fmt"
	"time"

	"github.com/endorses/paycat/internal/pkg/audit"
	"github.com/endorses/paycat/internal/pkg/cmdutil"
	"github.com/endorses/paycat/internal/pkg/output"
	"github.com/endorses/paycat/internal/pkg/statusclient"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var StatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show switch status and recent transactions",
	Long: `Show the status of a running switch.

Queries the switch's HTTP API for its status, hourly volume and most recent
transactions. With --health-addr the gRPC health service is checked as well.

Examples:
  paycat status
  paycat status --api localhost:8080 --limit 20
  paycat status --health-addr localhost:50051 --tls --tls-ca ca.crt
  paycat status --json`,
	RunE: runStatus,
}

var (
	apiAddr       string
	healthAddr    string
	limit         int
	timeout       time.Duration
	jsonOutput    bool
	tlsEnabled    bool
	tlsCAFile     string
	tlsCertFile   string
	tlsKeyFile    string
	tlsSkipVerify bool
)

func init() {
	StatusCmd.Flags().StringVar(&apiAddr, "api", "localhost:8080", "Switch query API address")
	StatusCmd.Flags().StringVar(&healthAddr, "health-addr", "", "Switch gRPC health address")
	StatusCmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of recent transactions to show")
	StatusCmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")
	StatusCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON instead of a summary")

	StatusCmd.Flags().BoolVar(&tlsEnabled, "tls", false, "Use TLS for the health check")
	StatusCmd.Flags().StringVar(&tlsCAFile, "tls-ca", "", "Path to CA certificate for server verification")
	StatusCmd.Flags().StringVar(&tlsCertFile, "tls-cert", "", "Path to client certificate (mutual TLS)")
	StatusCmd.Flags().StringVar(&tlsKeyFile, "tls-key", "", "Path to client key (mutual TLS)")
	StatusCmd.Flags().BoolVar(&tlsSkipVerify, "tls-skip-verify", false, "Skip certificate verification (testing only)")

	viper.BindPFlag("status.api", StatusCmd.Flags().Lookup("api"))
	viper.BindPFlag("status.health-addr", StatusCmd.Flags().Lookup("health-addr"))
}

// Report is everything status shows
type Report struct {
	Status       audit.Status     `json:"status"`
	Health       string           `json:"health,omitempty"`
	HourlyCounts map[string]int64 `json:"hourly_counts"`
	Transactions []audit.Record   `json:"transactions"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	client, err := statusclient.NewStatusClient(statusclient.ClientConfig{
		APIAddress:    cmdutil.GetStringConfig("status.api", apiAddr),
		HealthAddress: cmdutil.GetStringConfig("status.health-addr", healthAddr),
		TLSEnabled:    tlsEnabled,
		TLSCAFile:     tlsCAFile,
		TLSCertFile:   tlsCertFile,
		TLSKeyFile:    tlsKeyFile,
		TLSSkipVerify: tlsSkipVerify,
		Timeout:       timeout,
	})
	if err != nil {
		return err
	}
	defer client.Close()

	report, err := collect(cmd, client)
	if err != nil {
		return err
	}

	if jsonOutput {
		return output.WriteJSON(cmd.OutOrStdout(), report)
	}
	fmt.Fprintln(cmd.OutOrStdout(), Render(report, time.Now()))
	return nil
}

func collect(cmd *cobra.Command, client *statusclient.StatusClient) (Report, error) {
	ctx := cmd.Context()
	var report Report
	var err error

	if report.Status, err = client.GetStatus(ctx); err != nil {
		return report, err
	}
	if report.HourlyCounts, err = client.GetHourlyCounts(ctx); err != nil {
		return report, err
	}
	if report.Transactions, err = client.GetTransactions(ctx, limit); err != nil {
		return report, err
	}
	if cmdutil.GetStringConfig("status.health-addr", healthAddr) != "" {
		st, err := client.CheckHealth(ctx)
		if err != nil {
			report.Health = "UNREACHABLE"
		} else {
			report.Health = st.String()
		}
	}
	return report, nil
}
