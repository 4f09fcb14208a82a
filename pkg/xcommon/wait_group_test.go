package xcommon_test

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"

	"udpdelay/pkg/xcommon"
)

func TestWaitGroup(t *testing.T) {
	ctx := context.Background()
	var wg xcommon.WaitGroup
	var n int32

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done(ctx)
			atomic.AddInt32(&n, 1)
		}()
	}
	wg.Wait()
	if atomic.LoadInt32(&n) != 4 {
		t.Fatalf("n = %d", n)
	}
}

func TestRecoverRepanics(t *testing.T) {
	ctx := context.Background()
	defer func() {
		if r := recover(); r != "boom" {
			t.Fatalf("recovered %v", r)
		}
	}()
	func() {
		defer xcommon.Recover(ctx)
		panic("boom")
	}()
}

func TestUntilSignalDone(t *testing.T) {
	done := make(chan struct{})
	close(done)
	if xcommon.UntilSignal(context.Background(), done) {
		t.Fatal("closed done must not count as a signal")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if xcommon.UntilSignal(ctx, nil) {
		t.Fatal("cancelled ctx must not count as a signal")
	}
}

func TestRenderTable(t *testing.T) {
	out, err := xcommon.RenderTable([]string{"seq", "delay"}, [][]string{{"0", "1ms"}, {"1", "2ms"}})
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range []string{"seq", "delay", "1ms", "2ms"} {
		if !strings.Contains(out, s) {
			t.Fatalf("table missing %q:\n%s", s, out)
		}
	}
	if xcommon.SafeDivision(int64(10), 0) != 0 || xcommon.SafeDivision(uint64(10), 3) != 3 {
		t.Fatal("SafeDivision")
	}
	if xcommon.ToString(uint32(7)) != "7" {
		t.Fatal("ToString")
	}
}
