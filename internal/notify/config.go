package notify

import (
	"errors"
	"fmt"
	"time"
)

// ErrConfigInvalid 表示通知配置未通过校验。
var ErrConfigInvalid = errors.New("invalid notification config")

// Config 控制各通道开关与限流配额,UpdateConfig 之间保持不变。
type Config struct {
	EmailEnabled     bool
	PushEnabled      bool
	InAppEnabled     bool
	MaxPerUserPerDay int
}

// DefaultConfig 返回全通道开启、限额 50 条/天的默认配置。
func DefaultConfig() Config {
	return Config{
		EmailEnabled:     true,
		PushEnabled:      true,
		InAppEnabled:     true,
		MaxPerUserPerDay: 50,
	}
}

// Validate 检查配置可用:价格提醒至少要有一个可用通道。
func (c Config) Validate() error {
	if !c.EmailEnabled && !c.PushEnabled && !c.InAppEnabled {
		return fmt.Errorf("%w: price alerts need at least one enabled channel", ErrConfigInvalid)
	}
	if c.MaxPerUserPerDay <= 0 {
		return fmt.Errorf("%w: max_per_user_per_day must be greater than zero", ErrConfigInvalid)
	}
	return nil
}

// RetryPolicy 控制单次派发内对瞬时错误的重试。MaxAttempts 是总尝试
// 次数,含首次投递。
type RetryPolicy struct {
	MaxAttempts int
	Base        time.Duration
	Factor      int64
	Cap         time.Duration
}

// DefaultRetryPolicy 返回默认重试策略:共 3 次尝试,退避 1s/2s。
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Base:        time.Second,
		Factor:      2,
		Cap:         30 * time.Second,
	}
}

// backoff 返回第 attempt 次失败后的等待时长,attempt 从 1 开始。
func (p RetryPolicy) backoff(attempt int) time.Duration {
	factor := p.Factor
	if factor < 1 {
		factor = 1
	}

	d := p.Base
	for i := 1; i < attempt; i++ {
		d *= time.Duration(factor)
		if p.Cap > 0 && d >= p.Cap {
			return p.Cap
		}
	}
	if p.Cap > 0 && d > p.Cap {
		return p.Cap
	}
	return d
}
