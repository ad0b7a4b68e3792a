package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kaiwa-bot/kaiwa/internal/auth"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "kaiwa",
		Short: "Webhook-driven conversational relay with session memory",
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook server",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	}

	hashCmd := &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Produce a bcrypt hash for the admin password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashPassword(args[0])
			if err != nil {
				return err
			}
			fmt.Println(hash)
			return nil
		},
	}

	rootCmd.AddCommand(serveCmd, hashCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
