package main

import (
	"errors"
	"os"

	"github.com/user/idguard/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		if errors.Is(err, cmd.ErrCriticalFindings) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
