package vision

import (
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"

	"gocv.io/x/gocv"

	"github.com/zoeyai/automata/internal/logger"
)

// FrameName 由 FrameCache 生成的帧的名称
const FrameName = "frame"

var (
	// ErrFrameCacheReleased 在 Release 之后继续使用 FrameCache
	ErrFrameCacheReleased = errors.New("帧缓存已释放")
	// ErrLayoutChanged 截图分辨率或行布局与首帧不一致
	ErrLayoutChanged = errors.New("截图布局与首帧不一致")
	// ErrUnsupportedFormat 无法处理的像素格式或行跨度
	ErrUnsupportedFormat = errors.New("不支持的像素格式")
)

// FrameCacheStats 帧缓存统计
type FrameCacheStats struct {
	// Notifications 收到的新帧通知
	Notifications uint64
	// Conversions 成功转换的帧数
	Conversions uint64
	// Coalesced 在被消费前被后续通知覆盖的通知
	Coalesced uint64
	// Absent 有通知但截图子系统暂无可用缓冲的次数
	Absent uint64
	// Failed 转换失败次数
	Failed uint64
}

// rowLayout 首帧确定的行布局，进程生命周期内不再重新计算
type rowLayout struct {
	width        int
	height       int
	pixelStride  int
	rowStride    int
	paddedWidth  int
	cropRequired bool
	format       PixelFormat
	matType      gocv.MatType
}

// FrameCache 截图线程与消费者之间的单槽"最新帧"邮箱
//
// 截图线程只调用 NotifyFrameReady 设置脏标记；消费者调用 AcquireFrame 时才拉取
// 最新原始缓冲并转换为灰度帧。两次拉取之间的多次通知合并为一次转换，旧帧被丢弃。
// 截图分辨率在进程生命周期内固定：行填充只在首帧检测一次。
type FrameCache struct {
	source CaptureSource
	log    *logger.Logger

	// mu 只保护脏标记与当前帧引用的读写和交换
	mu       sync.Mutex
	dirty    bool
	frame    *Pattern
	released bool

	// convMu 保证同一时刻只有一个消费者执行转换
	convMu    sync.Mutex
	layout    *rowLayout
	converted gocv.Mat

	notifications atomic.Uint64
	conversions   atomic.Uint64
	coalesced     atomic.Uint64
	absent        atomic.Uint64
	failed        atomic.Uint64
}

// FrameCacheOption 帧缓存选项
type FrameCacheOption func(*FrameCache)

// WithFrameCacheLogger 设置 logger
func WithFrameCacheLogger(l *logger.Logger) FrameCacheOption {
	return func(c *FrameCache) {
		c.log = l.WithComponent("FRAME")
	}
}

// NewFrameCache 创建帧缓存
func NewFrameCache(source CaptureSource, opts ...FrameCacheOption) *FrameCache {
	c := &FrameCache{
		source:    source,
		log:       logger.Default().WithComponent("FRAME"),
		converted: gocv.NewMat(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NotifyFrameReady 截图子系统有新帧时调用，不阻塞、不做转换
func (c *FrameCache) NotifyFrameReady() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return
	}
	if c.dirty {
		c.coalesced.Add(1)
	}
	c.dirty = true
	c.notifications.Add(1)
}

// AcquireFrame 返回当前帧
//
// 有新帧通知时拉取最新原始缓冲并替换当前帧（释放旧帧）；没有通知、
// 暂无可用缓冲或转换失败时返回上一帧，首帧之前为 nil。
// 返回的帧只在下一次 AcquireFrame 之前有效。
func (c *FrameCache) AcquireFrame() (*Pattern, error) {
	c.convMu.Lock()
	defer c.convMu.Unlock()
	return c.acquireLocked()
}

// UseFrame 取得当前帧并交给 fn 处理
// fn 返回之前其他消费者无法替换或释放该帧，多个消费者共用一个 FrameCache 时
// 应使用 UseFrame 而不是 AcquireFrame。没有帧时 frame 为 nil。
func (c *FrameCache) UseFrame(fn func(frame *Pattern) error) error {
	c.convMu.Lock()
	defer c.convMu.Unlock()

	frame, err := c.acquireLocked()
	if err != nil {
		return err
	}
	return fn(frame)
}

// acquireLocked 调用方需持有 convMu
func (c *FrameCache) acquireLocked() (*Pattern, error) {
	c.mu.Lock()
	if c.released {
		c.mu.Unlock()
		return nil, ErrFrameCacheReleased
	}
	createNew := c.dirty
	c.dirty = false
	current := c.frame
	c.mu.Unlock()

	if !createNew {
		return current, nil
	}

	raw, ok := c.source.AcquireLatest()
	if !ok || raw == nil {
		// 截图子系统忙，属于正常竞争
		c.absent.Add(1)
		return current, nil
	}

	frame, err := c.convert(raw)
	if err != nil {
		c.failed.Add(1)
		c.log.Error("帧转换失败，继续使用上一帧: %v", err)
		return current, nil
	}

	c.mu.Lock()
	if c.released {
		c.mu.Unlock()
		frame.Release()
		return nil, ErrFrameCacheReleased
	}
	old := c.frame
	c.frame = frame
	c.mu.Unlock()

	if old != nil {
		if err := old.Release(); err != nil {
			c.log.Warn("%v", err)
		}
	}
	c.conversions.Add(1)
	return frame, nil
}

// convert 把原始缓冲转换为灰度帧，任何路径上都会归还原始缓冲
func (c *FrameCache) convert(raw RawBuffer) (*Pattern, error) {
	defer func() {
		if err := raw.Close(); err != nil {
			c.log.Warn("归还原始缓冲失败: %v", err)
		}
	}()

	layout, err := c.layoutFor(raw)
	if err != nil {
		return nil, err
	}

	size := layout.paddedWidth * layout.pixelStride * layout.height
	mat, err := gocv.NewMatFromBytes(layout.height, layout.paddedWidth, layout.matType, raw.Pix()[:size])
	if err != nil {
		return nil, fmt.Errorf("包装原始缓冲失败: %w", err)
	}
	defer mat.Close()

	src := mat
	if layout.cropRequired {
		view := mat.Region(image.Rect(0, 0, layout.width, layout.height))
		view.CopyTo(&c.converted)
		view.Close()
		src = c.converted
	}

	gray := gocv.NewMat()
	switch layout.format {
	case FormatRGBA8888:
		gocv.CvtColor(src, &gray, gocv.ColorRGBAToGray)
	case FormatBGRA8888:
		gocv.CvtColor(src, &gray, gocv.ColorBGRAToGray)
	default:
		src.CopyTo(&gray)
	}

	return NewPattern(FrameName, gray)
}

// layoutFor 首帧时检测行填充并缓存，之后只校验布局是否一致
func (c *FrameCache) layoutFor(raw RawBuffer) (*rowLayout, error) {
	if c.layout == nil {
		l, err := detectLayout(raw)
		if err != nil {
			return nil, err
		}
		c.layout = l
		c.log.Info("截图布局: %dx%d %s, rowStride=%d, 需要裁剪=%v",
			l.width, l.height, l.format, l.rowStride, l.cropRequired)
	}

	l := c.layout
	if raw.Width() != l.width || raw.Height() != l.height ||
		raw.RowStride() != l.rowStride || raw.PixelStride() != l.pixelStride ||
		raw.Format() != l.format {
		return nil, fmt.Errorf("%w: 期望 %dx%d stride=%d, 实际 %dx%d stride=%d",
			ErrLayoutChanged, l.width, l.height, l.rowStride,
			raw.Width(), raw.Height(), raw.RowStride())
	}
	if need := l.paddedWidth * l.pixelStride * l.height; len(raw.Pix()) < need {
		return nil, fmt.Errorf("原始缓冲长度不足: %d < %d", len(raw.Pix()), need)
	}
	return l, nil
}

func detectLayout(raw RawBuffer) (*rowLayout, error) {
	format := raw.Format()
	pixelStride := raw.PixelStride()
	if pixelStride <= 0 || pixelStride != format.BytesPerPixel() {
		return nil, fmt.Errorf("%w: %s pixelStride=%d", ErrUnsupportedFormat, format, pixelStride)
	}

	width, height := raw.Width(), raw.Height()
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("无效的截图尺寸: %dx%d", width, height)
	}

	rowPadding := raw.RowStride() - pixelStride*width
	if rowPadding < 0 || rowPadding%pixelStride != 0 {
		return nil, fmt.Errorf("%w: rowStride=%d width=%d pixelStride=%d",
			ErrUnsupportedFormat, raw.RowStride(), width, pixelStride)
	}

	matType := gocv.MatTypeCV8UC4
	if format == FormatGray8 {
		matType = gocv.MatTypeCV8UC1
	}

	return &rowLayout{
		width:        width,
		height:       height,
		pixelStride:  pixelStride,
		rowStride:    raw.RowStride(),
		paddedWidth:  width + rowPadding/pixelStride,
		cropRequired: rowPadding/pixelStride != 0,
		format:       format,
		matType:      matType,
	}, nil
}

// Stats 返回统计信息
func (c *FrameCache) Stats() FrameCacheStats {
	return FrameCacheStats{
		Notifications: c.notifications.Load(),
		Conversions:   c.conversions.Load(),
		Coalesced:     c.coalesced.Load(),
		Absent:        c.absent.Load(),
		Failed:        c.failed.Load(),
	}
}

// Release 释放当前帧和暂存缓冲，可重复调用
func (c *FrameCache) Release() error {
	c.convMu.Lock()
	defer c.convMu.Unlock()

	c.mu.Lock()
	if c.released {
		c.mu.Unlock()
		return nil
	}
	c.released = true
	frame := c.frame
	c.frame = nil
	c.dirty = false
	c.mu.Unlock()

	// 尽力释放，单个失败不影响其他资源
	var errs []error
	if frame != nil {
		if err := frame.Release(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := c.converted.Close(); err != nil {
		errs = append(errs, fmt.Errorf("释放暂存缓冲失败: %w", err))
	}

	err := errors.Join(errs...)
	if err != nil {
		c.log.Warn("释放帧缓存: %v", err)
	}
	return err
}
