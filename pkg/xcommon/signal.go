package xcommon

import (
	"context"
	"os/signal"
	"syscall"

	"udpdelay/pkg/xlog"
)

// UntilSignal blocks until SIGINT/SIGTERM, ctx cancellation or done closing.
// It reports whether a signal was received. done may be nil.
func UntilSignal(ctx context.Context, done <-chan struct{}) bool {
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-sigCtx.Done():
		if ctx.Err() != nil {
			return false
		}
		xlog.Get(ctx).Info("Recv exit signal")
		return true
	case <-done:
		return false
	}
}
