package xstats

import (
	"context"
	"sort"
	"sync"
	"time"

	"udpdelay/pkg/xcommon"
)

// Recorder collects the delays measured by one session. Safe for concurrent use.
type Recorder struct {
	id string

	mu      sync.Mutex
	sent    []uint32 // seq, 发送顺序
	acked   map[uint32]bool
	maxAck  uint32
	delays  []int64 // ns
	minimum int64
	maximum int64
}

// Summary is a point-in-time view of a Recorder.
type Summary struct {
	ID      string
	Sent    uint64
	Results uint64
	Lost    uint64 // no result, though a later probe got one
	Pending uint64 // sent after the last acknowledged probe
	Min     time.Duration
	Max     time.Duration
	Avg     time.Duration
	P90     time.Duration // average of the fastest 90%
	P95     time.Duration
	P99     time.Duration
}

func NewRecorder(id string) *Recorder {
	return &Recorder{id: id, acked: make(map[uint32]bool), delays: make([]int64, 0)}
}

// OnProbe counts one probe put on the wire.
func (r *Recorder) OnProbe(seq uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, seq)
}

func (r *Recorder) OnDelay(seq uint32, delay time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := int64(delay)
	if len(r.delays) == 0 || d < r.minimum {
		r.minimum = d
	}
	if d > r.maximum {
		r.maximum = d
	}
	r.delays = append(r.delays, d)
	if len(r.acked) == 0 || seq > r.maxAck {
		r.maxAck = seq
	}
	r.acked[seq] = true
}

func (r *Recorder) Summary() Summary {
	r.mu.Lock()
	delays := make([]int64, len(r.delays))
	copy(delays, r.delays)
	s := Summary{ID: r.id, Sent: uint64(len(r.sent)), Results: uint64(len(delays)), Min: time.Duration(r.minimum), Max: time.Duration(r.maximum)}
	// 最后一个回包之后发出的probe可能还在路上, 不算丢包
	for _, seq := range r.sent {
		switch {
		case len(r.acked) == 0 || seq > r.maxAck:
			s.Pending++
		case !r.acked[seq]:
			s.Lost++
		}
	}
	r.mu.Unlock()

	sort.Slice(delays, func(i, j int) bool { return delays[i] < delays[j] })
	count100 := len(delays)
	count99 := count100 * 99 / 100
	count95 := count100 * 95 / 100
	count90 := count100 * 90 / 100

	var sum100, sum99, sum95, sum90 int64
	for i, delay := range delays {
		sum100 += delay
		if i < count99 {
			sum99 += delay
		}
		if i < count95 {
			sum95 += delay
		}
		if i < count90 {
			sum90 += delay
		}
	}
	s.Avg = time.Duration(xcommon.SafeDivision(sum100, int64(count100)))
	s.P99 = time.Duration(xcommon.SafeDivision(sum99, int64(count99)))
	s.P95 = time.Duration(xcommon.SafeDivision(sum95, int64(count95)))
	s.P90 = time.Duration(xcommon.SafeDivision(sum90, int64(count90)))
	return s
}

var tableKeys = []string{"session", "sent", "results", "lost", "pending", "min", "avg", "delay-90%", "delay-95%", "delay-99%", "max"}

func (s Summary) values() []string {
	return []string{
		s.ID,
		xcommon.ToString(s.Sent),
		xcommon.ToString(s.Results),
		xcommon.ToString(s.Lost),
		xcommon.ToString(s.Pending),
		s.Min.String(),
		s.Avg.String(),
		s.P90.String(),
		s.P95.String(),
		s.P99.String(),
		s.Max.String(),
	}
}

// Render formats summaries as one table.
func Render(summaries ...Summary) (string, error) {
	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, s.values())
	}
	return xcommon.RenderTable(tableKeys, rows)
}

func Print(ctx context.Context, summaries ...Summary) {
	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, s.values())
	}
	xcommon.PrintTable(ctx, tableKeys, rows)
}
