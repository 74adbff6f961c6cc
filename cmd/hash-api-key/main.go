package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	var cost int

	rootCmd := &cobra.Command{
		Use:   "hash-api-key [key]",
		Short: "Print the bcrypt hash of an API key for API_KEY_HASH",
		Long:  "Hashes the key given as an argument, or the first line of stdin when no argument is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var key string
			if len(args) == 1 {
				key = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("failed to read key from stdin: %w", err)
				}
				key = line
			}

			key = strings.TrimSpace(key)
			if key == "" {
				return errors.New("key must not be empty")
			}

			hash, err := bcrypt.GenerateFromPassword([]byte(key), cost)
			if err != nil {
				return fmt.Errorf("failed to hash key: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(hash))
			return nil
		},
	}
	rootCmd.Flags().IntVar(&cost, "cost", bcrypt.DefaultCost, "bcrypt cost")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
