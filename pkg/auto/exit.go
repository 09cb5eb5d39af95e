package auto

import (
	"context"
	"errors"
	"sync"
)

// ErrStopRequested 通过 ExitSignal.RequestExit 取消时的原因
var ErrStopRequested = errors.New("用户请求停止")

// ExitSignal 进程级的取消信号源
//
// 外部（停止按钮、信号处理）调用 RequestExit，核心逻辑只读取 Context。
type ExitSignal struct {
	mu     sync.Mutex
	parent context.Context
	ctx    context.Context
	cancel context.CancelCauseFunc
}

// NewExitSignal 创建取消信号，parent 结束时信号同样生效
func NewExitSignal(parent context.Context) *ExitSignal {
	if parent == nil {
		parent = context.Background()
	}
	s := &ExitSignal{parent: parent}
	s.ctx, s.cancel = context.WithCancelCause(parent)
	return s
}

// Context 返回当前的取消上下文
func (s *ExitSignal) Context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

// RequestExit 请求取消，可重复调用
func (s *ExitSignal) RequestExit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel(ErrStopRequested)
}

// ExitRequested 是否已请求取消
func (s *ExitSignal) ExitRequested() bool {
	return s.Context().Err() != nil
}

// Reset 在取消后重新启用信号，供下一次运行使用
// 未取消时不做任何事，持有当前 Context 的操作不受影响。
// parent 已结束时新的上下文同样处于取消状态。
func (s *ExitSignal) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() == nil {
		return
	}
	s.ctx, s.cancel = context.WithCancelCause(s.parent)
}
