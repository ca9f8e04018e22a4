package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "zivai",
	Short: "zivai is a WhatsApp guidance chatbot",
	Long: `zivai walks WhatsApp users through a guided conversation tree,
answers free-form questions with an AI fallback for subscribers, and
collects mobile-money subscriptions.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
