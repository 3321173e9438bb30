package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/polenoz/ringchat/pkg/node"
)

var (
	servePort          int
	serveDiscoveryPort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "run a chat server instance",
	Long: `serve starts one server instance of the replicated chat fleet.
Every instance needs its own service port; the discovery port is shared
by the whole broadcast domain.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := zap.Must(zap.NewProduction())
		defer logger.Sync()
		logger.Info("application starting: ringchat server")

		cfg := node.DefaultConfig(servePort)
		cfg.DiscoveryPort = serveDiscoveryPort
		n := node.New(cfg, logger)

		ctx, cancel := signal.NotifyContext(context.Background(),
			os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		return n.Run(ctx)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 5000, "service port for this instance")
	serveCmd.Flags().IntVar(&serveDiscoveryPort, "discovery-port", node.DefaultDiscoveryPort,
		"shared discovery port of the broadcast domain")
	serveCmd.SilenceUsage = true
}
