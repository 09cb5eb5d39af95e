package auto

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExitRequested 在轮询或等待过程中检测到取消时返回
var ErrExitRequested = errors.New("已请求退出")

// Condition 轮询条件，返回 error 时轮询立即结束并把错误交给调用方
type Condition func() (bool, error)

// CheckExit 检查是否已请求取消
func CheckExit(ctx context.Context) error {
	if ctx.Err() == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrExitRequested, context.Cause(ctx))
}

// Wait 休眠指定时长
// 休眠被切分为不超过 SleepSlice 的片段，每个片段之前检查取消，
// 片段内取消也会立即返回。
func Wait(ctx context.Context, d time.Duration) error {
	left := d
	for left > 0 {
		if err := CheckExit(ctx); err != nil {
			return err
		}

		toSleep := min(SleepSlice, left)
		timer := time.NewTimer(toSleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return CheckExit(ctx)
		case <-timer.C:
		}
		left -= toSleep
	}
	return nil
}

// CheckConditionLoop 以默认间隔重复检查条件，直到条件成立或超时
// 返回 true 表示条件成立，false 表示超时；取消时返回包装了 ErrExitRequested 的错误。
// timeout 为 0 时只检查一次。
func CheckConditionLoop(ctx context.Context, cond Condition, timeout time.Duration) (bool, error) {
	return CheckConditionLoopEvery(ctx, cond, timeout, ScanInterval)
}

// CheckConditionLoopEvery 同 CheckConditionLoop，可指定轮询间隔
func CheckConditionLoopEvery(ctx context.Context, cond Condition, timeout, interval time.Duration) (bool, error) {
	deadline := time.Now().Add(timeout)

	for {
		if err := CheckExit(ctx); err != nil {
			return false, err
		}

		scanStart := time.Now()

		ok, err := cond()
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}

		// 先求值再判断截止时间，截止时刻恰好成立的条件仍算成功
		if !time.Now().Before(deadline) {
			return false, nil
		}

		// 条件求值耗时超过间隔时不等待
		toWait := interval - time.Since(scanStart)
		if toWait > 0 {
			if err := Wait(ctx, toWait); err != nil {
				return false, err
			}
		}
	}
}
