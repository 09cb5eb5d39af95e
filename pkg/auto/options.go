package auto

import "time"

const (
	// MinSimilarity 默认最小相似度
	MinSimilarity = 0.8
	// ScanInterval 条件轮询的默认间隔
	ScanInterval = 330 * time.Millisecond
	// SleepSlice 可中断休眠的最大切片长度
	SleepSlice = time.Second
	// HighlightDuration 调试高亮的默认显示时长
	HighlightDuration = 300 * time.Millisecond
)

// Option 配置选项函数类型
type Option func(*Options)

// Options 区域搜索配置
type Options struct {
	// Timeout 轮询超时时间，0 表示只检查一次
	Timeout time.Duration
	// Similarity 最小相似度 (0-1)
	Similarity float64
}

// DefaultOptions 默认配置
func DefaultOptions() *Options {
	return &Options{
		Timeout:    0,
		Similarity: MinSimilarity,
	}
}

// ApplyOptions 应用配置选项
func ApplyOptions(opts ...Option) *Options {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithTimeout 设置超时时间
func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.Timeout = d
	}
}

// WithSimilarity 设置最小相似度
func WithSimilarity(s float64) Option {
	return func(o *Options) {
		o.Similarity = s
	}
}
