package region

import "sync"

// ScanLimit 限制在流中向前查找的最大下标数，避免在无限流上死循环。
const ScanLimit = 1 << 16

// Stream 是按下标拉取的区域序列，可能是无限的。
// 下标越界或流已结束时返回 false。同一下标多次调用必须返回相同结果。
type Stream interface {
	Get(index int) (Region, bool)
}

// Func 把普通函数适配为 Stream。
type Func func(index int) (Region, bool)

// Get 实现 Stream。
func (f Func) Get(index int) (Region, bool) {
	if index < 0 {
		return Region{}, false
	}
	return f(index)
}

// Slice 是有限的区域列表。
type Slice []Region

// Get 实现 Stream。
func (s Slice) Get(index int) (Region, bool) {
	if index < 0 || index >= len(s) {
		return Region{}, false
	}
	return s[index], true
}

// Cons 在 Tail 前插入一个区域。
type Cons struct {
	Head Region
	Tail Stream
}

// Get 实现 Stream。
func (c Cons) Get(index int) (Region, bool) {
	switch {
	case index < 0:
		return Region{}, false
	case index == 0:
		return c.Head, true
	case c.Tail == nil:
		return Region{}, false
	default:
		return c.Tail.Get(index - 1)
	}
}

// Skip 跳过 Tail 的前 N 个区域。
type Skip struct {
	N    int
	Tail Stream
}

// Get 实现 Stream。
func (s Skip) Get(index int) (Region, bool) {
	if index < 0 || s.Tail == nil {
		return Region{}, false
	}
	return s.Tail.Get(index + s.N)
}

// Map 对 Tail 产出的每个区域做坐标变换。
type Map struct {
	Tail Stream
	F    func(Region) Region
}

// Get 实现 Stream。
func (m Map) Get(index int) (Region, bool) {
	if m.Tail == nil {
		return Region{}, false
	}
	r, ok := m.Tail.Get(index)
	if !ok {
		return Region{}, false
	}
	if m.F == nil {
		return r, true
	}
	return m.F(r), true
}

// Prepend 返回以 head 开头、随后是 s 的流。
func Prepend(head Region, s Stream) Stream { return Cons{Head: head, Tail: s} }

// Drop 返回跳过前 n 个区域的流，连续跳过会被合并成一层。
func Drop(n int, s Stream) Stream {
	if n <= 0 {
		return s
	}
	if sk, ok := s.(Skip); ok {
		return Skip{N: sk.N + n, Tail: sk.Tail}
	}
	return Skip{N: n, Tail: s}
}

// Transform 返回对 s 每个区域应用 f 的流。
func Transform(s Stream, f func(Region) Region) Stream { return Map{Tail: s, F: f} }

// Take 返回流中前 n 个区域，流提前结束时返回更少。
func Take(s Stream, n int) []Region {
	out := make([]Region, 0, n)
	for i := 0; i < n; i++ {
		r, ok := s.Get(i)
		if !ok {
			break
		}
		out = append(out, r)
	}
	return out
}

// Find 返回第一个满足 match 的区域及其下标，查找范围受 ScanLimit 限制。
func Find(s Stream, match func(Region) bool) (int, Region, bool) {
	for i := 0; i < ScanLimit; i++ {
		r, ok := s.Get(i)
		if !ok {
			break
		}
		if match(r) {
			return i, r, true
		}
	}
	return -1, Region{}, false
}

// Recorder 记录被读取过的最大下标，供合并阶段限定扫描范围。可被多个 goroutine 同时读取。
type Recorder struct {
	Tail Stream
	mu   sync.Mutex
	max  int
}

// NewRecorder 包装一个流。
func NewRecorder(s Stream) *Recorder { return &Recorder{Tail: s, max: -1} }

// Get 实现 Stream。
func (r *Recorder) Get(index int) (Region, bool) {
	reg, ok := r.Tail.Get(index)
	if ok {
		r.mu.Lock()
		if index > r.max {
			r.max = index
		}
		r.mu.Unlock()
	}
	return reg, ok
}

// Max 返回成功读取过的最大下标；从未读取时返回 -1。
func (r *Recorder) Max() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.max
}
