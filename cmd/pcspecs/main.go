package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// The deployed function runs the bare binary.
	if len(os.Args) == 1 && os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		rootCmd.SetArgs([]string{"lambda"})
	}

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
