package xcommon

import (
	"context"
	"runtime/debug"
	"sync"

	"udpdelay/pkg/xlog"
)

// 通过waitGroup控制协程
// defer wg.Done(ctx), 不可在套一层func, recover不可跳过多层defer函数
type WaitGroup struct {
	sync.WaitGroup
}

func (wg *WaitGroup) Done(ctx context.Context) {
	if r := recover(); r != nil {
		xlog.Get(ctx).Sugar().Errorf("Goroutine panic %v stack %v", r, string(debug.Stack()))
		panic(r)
	}
	wg.WaitGroup.Done()
}

// defer Recover(ctx), 同上
func Recover(ctx context.Context) {
	if r := recover(); r != nil {
		xlog.Get(ctx).Sugar().Errorf("Goroutine panic %v stack %v", r, string(debug.Stack()))
		panic(r)
	}
}
