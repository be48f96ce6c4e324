package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/JNickson/k8s-tail/internal/runtime"
	"github.com/JNickson/k8s-tail/internal/utils"
)

func main() {
	slog.SetDefault(utils.NewLogger(false))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runtime.NewCommand().ExecuteContext(ctx); err != nil {
		slog.Error("k8s-tail failed", "error", err)
		os.Exit(1)
	}
}
