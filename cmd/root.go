package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var root = &cobra.Command{Use: "presales-bot"}

	root.AddCommand(serveCMD(), migrateCMD(), bookingCMD())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
