package cli

import (
	"context"
	"time"

	"github.com/felixgeelhaar/arrears/adapter/webhook"
	"github.com/felixgeelhaar/arrears/pkg/observability"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook listener",
	Long: `Starts the HTTP listener the payment processor delivers webhook
events to. Events are signature-verified, deduplicated by event id, and
applied transactionally.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireContainer()
		if err != nil {
			return err
		}

		health := observability.NewHealthRegistry()
		health.Register("postgres", func(ctx context.Context) observability.HealthCheckResult {
			if err := c.Pool.Ping(ctx); err != nil {
				return observability.HealthCheckResult{
					Status:  observability.HealthStatusUnhealthy,
					Message: err.Error(),
				}
			}
			return observability.HealthCheckResult{Status: observability.HealthStatusHealthy}
		})

		server := webhook.NewServer(c.Config.WebhookAddr, c.Reconciler, c.Config.GatewayWebhookSecret, health, c.Logger)

		go func() {
			<-cmd.Context().Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()

		return server.ListenAndServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
