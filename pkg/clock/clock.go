// Package clock 提供可替换的时间源，业务时间统一使用 UTC
package clock

import (
	"sync"
	"time"
)

// Clock 时间源
type Clock interface {
	Now() time.Time
}

// System 系统时钟，返回截断到微秒的 UTC 时间，与 datetime(6) 精度一致
type System struct{}

func (System) Now() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }

// Manual 手动推进的时钟，用于测试与回放
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual 创建起始于 t 的手动时钟
func NewManual(t time.Time) *Manual {
	return &Manual{now: t.UTC()}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set 将时钟拨到 t
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	m.now = t.UTC()
	m.mu.Unlock()
}

// Advance 将时钟前移 d
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}
