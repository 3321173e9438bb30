package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/polenoz/ringchat/pkg/client"
	"github.com/polenoz/ringchat/pkg/node"
	"github.com/polenoz/ringchat/pkg/wire"
)

var clientDiscoveryPort int

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "run an interactive chat client",
	Long: `client joins the chat hosted by the current leader. Lines read
from stdin are sent to the group; received messages and system notices
are printed to stdout. The client follows leader changes on its own.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := zap.Must(zap.NewProduction())
		defer logger.Sync()

		c := client.New(clientDiscoveryPort, logger)
		if err := c.Run(); err != nil {
			return err
		}
		defer c.Stop()

		ctx, cancel := signal.NotifyContext(context.Background(),
			os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		go func() {
			for ev := range c.Events() {
				switch ev.Type {
				case wire.TypeWelcome:
					fmt.Printf("Willkommen, %s!\n", ev.Name)
				case wire.TypeMessage:
					fmt.Printf("%s: %s\n", ev.SenderName, ev.Text)
				case wire.TypeNotice:
					fmt.Printf("* %s\n", ev.Text)
				}
			}
		}()

		lines := make(chan string)
		go func() {
			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				lines <- scanner.Text()
			}
			close(lines)
		}()

		for {
			select {
			case <-ctx.Done():
				return nil
			case line, ok := <-lines:
				if !ok {
					return nil
				}
				if line == "" {
					continue
				}
				if err := c.Send(line); err != nil {
					logger.Warn("send failed", zap.Error(err))
				}
			}
		}
	},
}

func init() {
	clientCmd.Flags().IntVar(&clientDiscoveryPort, "discovery-port", node.DefaultDiscoveryPort,
		"shared discovery port of the broadcast domain")
	clientCmd.SilenceUsage = true
}
