package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "keyrelay",
	Short: "keyrelay is a credential custody and chat relay service",
	Long: `A relay that lets a browser chat with a large-language-model API
without ever seeing the user's API key. Keys are validated, encrypted at
rest in the browser's cookies, and decrypted server-side only for the
duration of a single proxied request.`,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
