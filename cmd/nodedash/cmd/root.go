package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version is the build version, overridable at link time.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "nodedash",
	Short: "nodedash is a node dashboard backend",
	Long: `A dashboard backend serving REST endpoints and real-time WebSocket
channels authenticated with ed25519 signatures.
Complete documentation is available at https://github.com/AireshBhat/nodedash`,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
