package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/opbridge"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of opbridge",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "opbridge version %s\n", strings.TrimSpace(opbridge.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
