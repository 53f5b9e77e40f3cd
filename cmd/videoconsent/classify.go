package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sendrec/videoconsent/internal/provider"
)

var classifyCmd = &cobra.Command{
	Use:   "classify URL...",
	Short: "Print the provider and video ID of each URL",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, raw := range args {
			p, id := provider.Parse(raw)
			if id == "" {
				p = provider.None
			}
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", p, id, raw); err != nil {
				return err
			}
		}
		return nil
	},
}
