// Package retry 提供带指数退避的重试能力，用于快照存储读写与
// 协调回合等可恢复的瞬时失败。
package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/turnflow/types"
)

// Policy 重试策略
type Policy struct {
	// MaxRetries 最大重试次数（不含首次调用）
	MaxRetries int

	// InitialDelay 初始延迟
	InitialDelay time.Duration

	// MaxDelay 最大延迟上限
	MaxDelay time.Duration

	// Multiplier 退避倍数
	Multiplier float64

	// Jitter 是否加入随机抖动（±25%），避免重试风暴
	Jitter bool

	// RetryableCodes 额外视为可重试的错误码
	RetryableCodes []types.ErrorCode
}

// DefaultPolicy 返回默认重试策略
func DefaultPolicy() *Policy {
	return &Policy{
		MaxRetries:   3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
		RetryableCodes: []types.ErrorCode{
			types.ErrStoreUnavailable,
			types.ErrCallTimeout,
		},
	}
}

// Retryer 重试执行器
type Retryer struct {
	policy *Policy
	logger *zap.Logger
}

// New 创建重试执行器
func New(policy *Policy, logger *zap.Logger) *Retryer {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	// 参数校验
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	if policy.InitialDelay <= 0 {
		policy.InitialDelay = 100 * time.Millisecond
	}
	if policy.MaxDelay < policy.InitialDelay {
		policy.MaxDelay = policy.InitialDelay
	}
	if policy.Multiplier < 1.0 {
		policy.Multiplier = 2.0
	}

	return &Retryer{
		policy: policy,
		logger: logger,
	}
}

// Do 执行函数并在失败时按策略重试
func (r *Retryer) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= r.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.calculateDelay(attempt)
			r.logger.Debug("retrying after backoff",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			if attempt > 0 {
				r.logger.Info("retry succeeded",
					zap.Int("attempt", attempt),
				)
			}
			return nil
		}

		if !r.isRetryable(lastErr) {
			return lastErr
		}
	}

	r.logger.Warn("retries exhausted",
		zap.Int("max_retries", r.policy.MaxRetries),
		zap.Error(lastErr),
	)
	return fmt.Errorf("after %d retries: %w", r.policy.MaxRetries, lastErr)
}

// isRetryable 判断错误是否可重试
func (r *Retryer) isRetryable(err error) bool {
	if types.IsRetryable(err) {
		return true
	}
	code := types.GetErrorCode(err)
	for _, c := range r.policy.RetryableCodes {
		if code == c {
			return true
		}
	}
	return false
}

// calculateDelay 计算第 attempt 次重试的延迟
// 指数退避：initial * multiplier^(attempt-1)，封顶 MaxDelay
func (r *Retryer) calculateDelay(attempt int) time.Duration {
	delay := float64(r.policy.InitialDelay) * math.Pow(r.policy.Multiplier, float64(attempt-1))
	if delay > float64(r.policy.MaxDelay) {
		delay = float64(r.policy.MaxDelay)
	}

	if r.policy.Jitter {
		// ±25% 抖动
		jitter := delay * 0.25 * (rand.Float64()*2 - 1)
		delay += jitter
	}

	if delay < float64(r.policy.InitialDelay) {
		delay = float64(r.policy.InitialDelay)
	}
	return time.Duration(delay)
}
