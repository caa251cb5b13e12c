package generation

import "sync/atomic"

// Tracker 一次运行的进度计数器。
// Current 单调不减且不超过 Total，并发安全。
type Tracker struct {
	total int64
	cur   atomic.Int64
}

// NewTracker 创建进度计数器
func NewTracker(total int) *Tracker {
	if total <= 0 {
		total = 100
	}
	return &Tracker{total: int64(total)}
}

// Advance 推进 delta 步，返回推进后的当前值
func (t *Tracker) Advance(delta int) int {
	if delta <= 0 {
		return t.Current()
	}
	for {
		cur := t.cur.Load()
		next := cur + int64(delta)
		if next > t.total {
			next = t.total
		}
		if t.cur.CompareAndSwap(cur, next) {
			return int(next)
		}
	}
}

// AdvanceTo 把当前值抬升到 target（只升不降）
func (t *Tracker) AdvanceTo(target int) int {
	goal := int64(target)
	if goal > t.total {
		goal = t.total
	}
	for {
		cur := t.cur.Load()
		if goal <= cur {
			return int(cur)
		}
		if t.cur.CompareAndSwap(cur, goal) {
			return int(goal)
		}
	}
}

// Current 当前进度
func (t *Tracker) Current() int {
	return int(t.cur.Load())
}

// Total 总步数
func (t *Tracker) Total() int {
	return int(t.total)
}
