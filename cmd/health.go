package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jerry-enebeli/claimpay/internal/partner"
)

type healthReport struct {
	Database string                 `json:"database"`
	Partners []partner.HealthStatus `json:"partners"`
	Healthy  bool                   `json:"healthy"`
}

// healthCommands probes the database and every configured partner service.
func healthCommands(app *claimPayInstance) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "health",
		Short: "check database and partner connectivity",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			report := healthReport{Database: "ok", Healthy: true}
			if err := app.datasource.Ping(ctx); err != nil {
				report.Database = err.Error()
				report.Healthy = false
			}

			report.Partners = app.router.HealthCheck(ctx)
			for _, status := range report.Partners {
				if !status.Healthy {
					report.Healthy = false
				}
			}

			data, err := json.MarshalIndent(report, "", "    ")
			if err != nil {
				log.Fatalf("Error printing health report: %v\n", err)
			}
			fmt.Println(string(data))

			if !report.Healthy {
				os.Exit(1)
			}
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "overall probe timeout")
	return cmd
}
