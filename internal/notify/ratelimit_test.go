package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterDeniesAtCap(t *testing.T) {
	l := newRateLimiter(2, time.Hour)
	now := time.Now()

	assert.True(t, l.allow("u1", now))
	assert.True(t, l.allow("u1", now.Add(time.Minute)))
	assert.False(t, l.allow("u1", now.Add(2*time.Minute)))

	// 其他用户不受影响。
	assert.True(t, l.allow("u2", now.Add(2*time.Minute)))
}

func TestRateLimiterDenyConsumesNoSlot(t *testing.T) {
	l := newRateLimiter(1, time.Hour)
	start := time.Now()

	assert.True(t, l.allow("u1", start))
	assert.False(t, l.allow("u1", start.Add(10*time.Minute)))
	assert.False(t, l.allow("u1", start.Add(50*time.Minute)))

	// 第一条记账过期后恢复;被拒绝的尝试没有延长窗口。
	assert.True(t, l.allow("u1", start.Add(61*time.Minute)))
}

func TestRateLimiterZeroMaxUnlimited(t *testing.T) {
	l := newRateLimiter(0, time.Hour)
	now := time.Now()

	for i := 0; i < 100; i++ {
		assert.True(t, l.allow("u1", now))
	}
}

func TestRateLimiterSetMax(t *testing.T) {
	l := newRateLimiter(5, time.Hour)
	now := time.Now()

	assert.True(t, l.allow("u1", now))
	assert.True(t, l.allow("u1", now))

	l.setMax(2)
	assert.False(t, l.allow("u1", now.Add(time.Minute)))

	l.setMax(3)
	assert.True(t, l.allow("u1", now.Add(time.Minute)))
}
