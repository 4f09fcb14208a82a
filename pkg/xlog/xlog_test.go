package xlog_test

import (
	"context"
	"net"
	"testing"

	"udpdelay/pkg/xlog"

	"go.uber.org/zap"
)

func TestContextLogger(t *testing.T) {
	ctx := context.Background()
	if xlog.Get(ctx) == nil {
		t.Fatal("global logger is nil")
	}

	child := xlog.NewContext(ctx, xlog.ClientID(42))
	if xlog.Get(child) == xlog.Get(ctx) {
		t.Fatal("child context must carry its own logger")
	}
	xlog.Get(child).Debug("probe sent", xlog.Seq(0))

	addr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 5050}
	other := xlog.FromContext(child, context.Background(), xlog.Remote(addr))
	xlog.Get(other).Info("session started", zap.String("name", "Go_Client"))
	xlog.Get(other).Warn("remote nil", xlog.Remote(nil))
}

func TestInit(t *testing.T) {
	defer xlog.Init(xlog.Options{Level: "debug"})

	xlog.Init(xlog.Options{Level: "warn", JSON: true, Silent: true})
	xlog.Get(context.Background()).Info("filtered")
	xlog.Get(context.Background()).Error("json line")

	xlog.Init(xlog.Options{Level: "nonsense", Silent: true})
	xlog.Get(context.Background()).Debug("falls back to debug")
	xlog.Sync()
}
