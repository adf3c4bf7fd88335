package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/uozer7050/coopad/internal/config"
	"github.com/uozer7050/coopad/internal/host"
	"github.com/uozer7050/coopad/internal/metrics"
	"github.com/uozer7050/coopad/internal/security"
	"github.com/uozer7050/coopad/internal/session"
	"github.com/uozer7050/coopad/internal/sink/console"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the host server",
	Long: `Run the host server: listen for input packets, validate and route
them to virtual-controller slots.

Examples:
  coopad serve                      # built-in defaults, port 7777
  coopad serve -c /etc/coopad.yml   # explicit config file
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runServe(cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cfg *config.Config) error {
	if cfg.Server.PIDFile != "" {
		if err := writePIDFile(cfg.Server.PIDFile); err != nil {
			return err
		}
		defer os.Remove(cfg.Server.PIDFile)
	}

	whitelist, err := cfg.ParsedWhitelist()
	if err != nil {
		return err
	}
	registry := security.NewRegistry(security.Config{
		RateLimitMax:       cfg.Security.RateLimitMax,
		RateLimitBurst:     cfg.Security.RateLimitBurst,
		IPRateLimitMax:     cfg.Security.IPRateLimitMax,
		MaxClientsPerIP:    cfg.Security.MaxClientsPerIP,
		AutoBlockThreshold: cfg.Security.AutoBlockThreshold,
		BlockDuration:      cfg.Security.BlockDuration,
		MaxTimestampAge:    cfg.Security.MaxTimestampAge,
		MaxTimestampFuture: cfg.Security.MaxTimestampFuture,
		EnableWhitelist:    cfg.Security.EnableWhitelist,
		WhitelistIPs:       whitelist,
		ClientRetention:    cfg.Security.ClientRetention,
	})
	sessions := session.NewManager(session.Config{
		OwnershipTimeout: cfg.Session.OwnershipTimeout,
		Slots:            cfg.Slots(),
	})
	srv := host.New(cfg, registry, sessions, console.New())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Enabled {
		ms := metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path, srv.StatusSnapshot, registry)
		if err := ms.Start(ctx); err != nil {
			return err
		}
		defer func() {
			if err := ms.Stop(context.Background()); err != nil {
				slog.Warn("metrics server stop failed", "error", err)
			}
		}()
	}

	return srv.Run(ctx)
}

func writePIDFile(path string) error {
	pid := strconv.Itoa(os.Getpid())
	if err := os.WriteFile(path, []byte(pid), 0644); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	return nil
}
