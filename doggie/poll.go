package doggie

import (
	"context"
	"time"

	"portfetch/packet"
)

// Fetcher 是 Poll 依赖的最小取数接口，*Requester 满足该接口。
type Fetcher interface {
	Fetch(kind packet.Kind, token uint32) (Snapshot, error)
}

type PollOptions struct {
	Kinds    []packet.Kind
	Tokens   map[packet.Kind]uint32
	Interval time.Duration
	// Count 为轮数；0 表示一直轮询直到 ctx 取消。
	Count int
}

// Handler 接收每次取数的结果；err 非 nil 时 Snapshot 只带 Kind/Token。
type Handler func(Snapshot, error)

// Poll 以固定间隔重复取数。
// 规则：
// - 每轮按 Kinds 顺序各取一次，单次失败交给 handler，不中断轮询
// - 首轮立即执行，之后每隔 Interval 一轮
// 返回：
// - nil: 完成 Count 轮
// - ctx.Err(): 被取消
func Poll(ctx context.Context, f Fetcher, opts PollOptions, h Handler) error {
	interval := opts.Interval
	if interval <= 0 {
		interval = time.Second / 15
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for round := 0; opts.Count == 0 || round < opts.Count; round++ {
		if round > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}
		for _, kind := range opts.Kinds {
			if err := ctx.Err(); err != nil {
				return err
			}
			snap, err := f.Fetch(kind, opts.Tokens[kind])
			if h != nil {
				h(snap, err)
			}
		}
	}
	return nil
}
