// Repohealth scores open-source repositories against best-practice checks
// and tracks the scores over time.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/huangsam/repohealth/cmd"
	"github.com/joho/godotenv"
)

func main() {
	// A missing .env file is fine; the environment and flags still apply.
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := cmd.Execute(ctx)
	cancel()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
