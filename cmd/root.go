package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const usage = `A replicated UDP group-chat service.

Multiple server instances on the same broadcast domain discover each
other, elect a leader over a logical ring, and the leader hosts the
chat: it admits clients, names them, and fans their messages out to
the group. Surviving servers re-elect automatically when the leader
dies, and clients rebind to the new leader on its first heartbeat.

EXAMPLES:
  Start a server instance on service port 5003:
    ringchat serve --port 5003

  Start an interactive chat client:
    ringchat client`

var rootCmd = &cobra.Command{
	Use:   "ringchat",
	Short: "A replicated UDP group-chat service with leader election",
	Long:  usage,
}

func init() {
	rootCmd.AddCommand(serveCmd, clientCmd)
}

// Execute runs the program using cobra.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
