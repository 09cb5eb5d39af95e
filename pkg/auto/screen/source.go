package screen

import (
	"context"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/image/draw"

	"github.com/zoeyai/automata/internal/logger"
	"github.com/zoeyai/automata/pkg/auto"
	"github.com/zoeyai/automata/pkg/vision"
)

const (
	// DefaultInterval 默认截图间隔
	DefaultInterval = 100 * time.Millisecond
	// DefaultMaxBuffers 默认缓冲数量
	DefaultMaxBuffers = 3

	statsLogInterval = 5 * time.Second
)

// Config 截图参数
type Config struct {
	// Region 截取的屏幕区域，为空时截取整个显示器
	Region auto.Region
	// Scale 截图分辨率相对屏幕的比例 [auto.MinScale,1]，0 表示 1
	Scale float64
	// Interval 截图间隔
	Interval time.Duration
	// MaxBuffers 缓冲池大小，至少为 2
	MaxBuffers int
}

// Stats 截图统计
type Stats struct {
	// Captures 成功发布的帧
	Captures uint64
	// Skipped 缓冲池耗尽而放弃的截图
	Skipped uint64
	// Dropped 未被取走就被新帧替换的帧
	Dropped uint64
	// Failed 截图失败次数
	Failed uint64
	// AvgCapture 平均截图耗时
	AvgCapture time.Duration
	// LastCapture 最近一次发布时间
	LastCapture time.Time
}

// Source 截图生产者
//
// 后台 goroutine 按间隔截图，缩放后写入固定数量的缓冲并只保留最新一帧，
// 发布后通知 OnFrameReady 注册的回调。消费者通过 AcquireLatest 取走缓冲，
// 用完后 Close 归还。帧坐标以 Region 左上角为原点。
type Source struct {
	grabber Grabber
	cfg     Config
	log     *logger.Logger

	screen    auto.Region
	imageSize auto.Size
	pool      *bufferPool

	mu        sync.Mutex
	latest    *Buffer
	listeners []func()

	running atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}

	captures     atomic.Uint64
	skipped      atomic.Uint64
	dropped      atomic.Uint64
	failed       atomic.Uint64
	captureNanos atomic.Uint64
	lastCapture  atomic.Int64
}

// Option Source 选项
type Option func(*Source)

// WithLogger 设置 logger
func WithLogger(l *logger.Logger) Option {
	return func(s *Source) {
		s.log = l.WithComponent("SCREEN")
	}
}

// NewSource 创建截图生产者，Region 为空时从后端读取显示器范围
func NewSource(grabber Grabber, cfg Config, opts ...Option) (*Source, error) {
	if cfg.Scale <= 0 {
		cfg.Scale = 1
	}
	if cfg.Scale < auto.MinScale || cfg.Scale > 1 {
		return nil, fmt.Errorf("截图比例必须在 [%v,1] 之间: %v", auto.MinScale, cfg.Scale)
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.MaxBuffers <= 0 {
		cfg.MaxBuffers = DefaultMaxBuffers
	}
	// 消费者持有一个缓冲时，生产者仍需要一个可写
	cfg.MaxBuffers = max(cfg.MaxBuffers, 2)

	s := &Source{
		grabber: grabber,
		cfg:     cfg,
		log:     logger.Default().WithComponent("SCREEN"),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.screen = cfg.Region
	if s.screen.Empty() {
		bounds, err := grabber.Bounds()
		if err != nil {
			return nil, err
		}
		s.screen = auto.RegionFromImageRect(bounds)
	}

	s.imageSize = auto.Size{
		Width:  max(auto.ScaleInt(s.screen.Width, cfg.Scale), 1),
		Height: max(auto.ScaleInt(s.screen.Height, cfg.Scale), 1),
	}
	s.pool = newBufferPool(cfg.MaxBuffers, s.imageSize.Width, s.imageSize.Height)

	s.log.Info("截图区域 %v, 截图尺寸 %v, 间隔 %v, 缓冲 %d",
		s.screen, s.imageSize, cfg.Interval, cfg.MaxBuffers)
	return s, nil
}

// Region 截取的屏幕区域
func (s *Source) Region() auto.Region {
	return s.screen
}

// ScreenSize 截取区域的屏幕尺寸
func (s *Source) ScreenSize() auto.Size {
	return s.screen.Size()
}

// ImageSize 帧的像素尺寸
func (s *Source) ImageSize() auto.Size {
	return s.imageSize
}

// Transform 屏幕与帧之间的坐标换算
func (s *Source) Transform() auto.Transform {
	return auto.NewTransform(s.ScreenSize(), s.imageSize)
}

// OnFrameReady 注册新帧回调，回调在截图 goroutine 中执行，不应阻塞
func (s *Source) OnFrameReady(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// AcquireLatest 取走最新的缓冲，每个缓冲只交出一次
func (s *Source) AcquireLatest() (vision.RawBuffer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.latest
	if b == nil {
		return nil, false
	}
	s.latest = nil
	return b, true
}

// CaptureOnce 截图一次并发布
// 缓冲池耗尽时放弃本次截图并计数，不返回错误。
func (s *Source) CaptureOnce() error {
	start := time.Now()

	img, err := s.grabber.Grab(s.screen.ToImageRect())
	if err != nil {
		s.failed.Add(1)
		return err
	}

	buf, ok := s.pool.get()
	if !ok {
		s.skipped.Add(1)
		return nil
	}

	dst := buf.Image()
	src := img.Bounds()
	if src.Dx() == dst.Rect.Dx() && src.Dy() == dst.Rect.Dy() {
		draw.Draw(dst, dst.Rect, img, src.Min, draw.Src)
	} else {
		draw.ApproxBiLinear.Scale(dst, dst.Rect, img, src, draw.Src, nil)
	}

	s.captureNanos.Add(uint64(time.Since(start).Nanoseconds()))
	s.captures.Add(1)
	s.lastCapture.Store(time.Now().UnixNano())
	s.publish(buf)
	return nil
}

func (s *Source) publish(buf *Buffer) {
	s.mu.Lock()
	old := s.latest
	s.latest = buf
	listeners := append([]func(){}, s.listeners...)
	s.mu.Unlock()

	if old != nil {
		s.dropped.Add(1)
		old.Close()
	}
	for _, fn := range listeners {
		fn()
	}
}

// Start 启动后台截图，重复调用无副作用
func (s *Source) Start(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	s.mu.Lock()
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	go s.loop(ctx, done)
}

// Stop 停止后台截图并等待截图 goroutine 退出
func (s *Source) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running 是否正在截图
func (s *Source) Running() bool {
	return s.running.Load()
}

func (s *Source) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer s.running.Store(false)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	statsTicker := time.NewTicker(statsLogInterval)
	defer statsTicker.Stop()

	s.log.Info("开始截图")
	for {
		if err := s.CaptureOnce(); err != nil {
			if n := s.failed.Load(); n == 1 || n%100 == 0 {
				s.log.Warn("截图失败 (%d 次): %v", n, err)
			}
		}

		select {
		case <-ctx.Done():
			s.log.Info("停止截图")
			return
		case <-statsTicker.C:
			s.logStats()
		case <-ticker.C:
		}
	}
}

// Stats 返回统计信息
func (s *Source) Stats() Stats {
	captures := s.captures.Load()
	var avg time.Duration
	if captures > 0 {
		avg = time.Duration(s.captureNanos.Load() / captures)
	}
	var last time.Time
	if ns := s.lastCapture.Load(); ns > 0 {
		last = time.Unix(0, ns)
	}
	return Stats{
		Captures:    captures,
		Skipped:     s.skipped.Load(),
		Dropped:     s.dropped.Load(),
		Failed:      s.failed.Load(),
		AvgCapture:  avg,
		LastCapture: last,
	}
}

func (s *Source) logStats() {
	st := s.Stats()
	s.log.Debug("截图统计: captures=%d skipped=%d dropped=%d failed=%d avg=%v free=%d",
		st.Captures, st.Skipped, st.Dropped, st.Failed, st.AvgCapture, s.pool.available())
}

// Bounds 截取区域在屏幕坐标系中的范围
func (s *Source) Bounds() image.Rectangle {
	return s.screen.ToImageRect()
}
