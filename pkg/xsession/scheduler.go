package xsession

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"udpdelay/pkg/xcommon"
	"udpdelay/pkg/xlog"
)

// probeScheduler ticks while the session is Connected. It never waits
// for an echo before the next tick.
type probeScheduler struct {
	interval time.Duration
	probe    func(ctx context.Context) error

	closeOnce sync.Once
	closeCh   chan struct{}
	wg        xcommon.WaitGroup
}

func newProbeScheduler(interval time.Duration, probe func(ctx context.Context) error) *probeScheduler {
	return &probeScheduler{
		interval: interval,
		probe:    probe,
		closeCh:  make(chan struct{}),
	}
}

func (ps *probeScheduler) start(ctx context.Context) {
	ps.wg.Add(1)
	go ps.tickLoop(ctx)
}

func (ps *probeScheduler) tickLoop(ctx context.Context) {
	defer ps.wg.Done(ctx)

	ticker := time.NewTicker(ps.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
		case <-ps.closeCh:
			return
		}

		if err := ps.probe(ctx); err != nil {
			if errors.Is(err, ErrNotConnected) {
				return
			}
			xlog.Get(ctx).Debug("Probe failed", zap.Error(err))
		}
	}
}

// stop does not wait, it may run on the ticking goroutine itself.
func (ps *probeScheduler) stop() {
	ps.closeOnce.Do(func() {
		close(ps.closeCh)
	})
}

func (ps *probeScheduler) wait() {
	ps.wg.Wait()
}
