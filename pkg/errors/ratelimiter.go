package errors

import (
	"sync"
	"time"
)

// rateLimiter 以出错位置为维度，限制同一位置的错误在静默期内重复上报
type rateLimiter struct {
	lock   sync.Mutex
	silent time.Duration
	stats  map[string]*errorStats
	now    func() time.Time
}

func newRateLimiter(silent time.Duration) *rateLimiter {
	return &rateLimiter{
		silent: silent,
		stats:  map[string]*errorStats{},
		now:    time.Now,
	}
}

type errorStats struct {
	// 总计的发生次数
	totalOccurCount int
	// 上次报告过后发生的次数
	occurCountSinceLastReport int
	// 最近上报时间
	lastReportTime *time.Time
}

func (in *errorStats) copy() *errorStats {
	return &errorStats{
		totalOccurCount:           in.totalOccurCount,
		occurCountSinceLastReport: in.occurCountSinceLastReport,
		lastReportTime:            in.lastReportTime,
	}
}

// StackBasedRateLimited 返回本次是否被限流，以及本次计数之前的统计快照
func (b *rateLimiter) StackBasedRateLimited(stack string) (bool, *errorStats) {
	b.lock.Lock()
	defer b.lock.Unlock()
	stats := b.stats[stack]
	if stats == nil {
		stats = &errorStats{}
		b.stats[stack] = stats
	}
	snapshot := stats.copy()
	now := b.now()
	stats.totalOccurCount++
	// 上报过且仍在静默期内
	if stats.lastReportTime != nil && now.Sub(*stats.lastReportTime) < b.silent {
		stats.occurCountSinceLastReport++
		return true, snapshot
	}
	stats.occurCountSinceLastReport = 0
	stats.lastReportTime = &now
	return false, snapshot
}
