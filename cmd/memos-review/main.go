package main

import (
	"os"

	"github.com/rcliao/memos-daily-review/internal/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
