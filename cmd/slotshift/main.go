package main

import (
	"errors"
	"os"

	"github.com/slotshift/slotshift/internal/domain"
)

func main() {
	rootCmd := newRoot().Command()

	if cmd, err := rootCmd.ExecuteC(); err != nil {
		cmd.PrintErrln("Error:", err.Error())
		if isUsageError(err) {
			cmd.Println("")
			cmd.Println(cmd.UsageString())
		}
		var cleanup *domain.CleanupError
		if errors.As(err, &cleanup) {
			// Promotion stood; only post-cutover cleanup failed.
			os.Exit(2)
		}
		os.Exit(1)
	}
}
