package runtime

import (
	"context"
	"os/signal"
	"syscall"
)

// SignalContext returns the root context for a service process. It is
// cancelled on SIGINT or SIGTERM so every long-running loop can hang off it.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
