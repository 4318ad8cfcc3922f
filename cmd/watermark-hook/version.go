package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of watermark-hook",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("watermark-hook %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
