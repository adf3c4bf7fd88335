package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/uozer7050/coopad/internal/client"
)

var (
	clientTarget string
	clientRate   int
	clientID     uint32
)

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Stream input to a host",
	Long: `Stream input packets to a host. Without a capture source attached
this sends neutral-state heartbeats, which is useful for testing
connectivity through a tunnel.

Examples:
  coopad client --target 10.0.0.5:7777
  coopad client --target 10.0.0.5:7777 --rate 90 --id 42
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("target") {
			cfg.Client.Target = clientTarget
		}
		if cmd.Flags().Changed("rate") {
			cfg.Client.UpdateRateHz = clientRate
		}
		if cmd.Flags().Changed("id") {
			cfg.Client.ClientID = clientID
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return client.New(cfg.Client, nil).Run(ctx)
	},
}

func init() {
	clientCmd.Flags().StringVar(&clientTarget, "target", "127.0.0.1:7777", "host address (host:port)")
	clientCmd.Flags().IntVar(&clientRate, "rate", 60, "send rate in Hz (30, 60 or 90)")
	clientCmd.Flags().Uint32Var(&clientID, "id", 0, "client id (0 = random)")
	rootCmd.AddCommand(clientCmd)
}
