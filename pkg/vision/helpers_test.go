package vision

import (
	"errors"
	"sync"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/zoeyai/automata/pkg/auto"
	"github.com/zoeyai/automata/pkg/vision/cv"
)

// noise 生成确定性的伪随机灰度数据
func noise(seed uint32, n int) []byte {
	b := make([]byte, n)
	x := seed
	for i := range b {
		x = x*1664525 + 1013904223
		b[i] = byte(x >> 24)
	}
	return b
}

// paste 将 src 复制到 dst 的 (x, y) 位置
func paste(dst []byte, dstW int, src []byte, srcW, srcH, x, y int) {
	for row := 0; row < srcH; row++ {
		copy(dst[(y+row)*dstW+x:(y+row)*dstW+x+srcW], src[row*srcW:(row+1)*srcW])
	}
}

func grayPattern(t *testing.T, name string, w, h int, pix []byte) *Pattern {
	t.Helper()
	mat, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC1, pix)
	if err != nil {
		t.Fatalf("创建 Mat 失败: %v", err)
	}
	defer mat.Close()

	p, err := NewPattern(name, mat.Clone())
	if err != nil {
		t.Fatalf("创建 Pattern 失败: %v", err)
	}
	t.Cleanup(func() { p.Release() })
	return p
}

// fakeRaw 内存中的原始缓冲
type fakeRaw struct {
	width, height int
	rowStride     int
	pixelStride   int
	format        PixelFormat
	pix           []byte

	mu     sync.Mutex
	closed int
}

func (r *fakeRaw) Width() int          { return r.width }
func (r *fakeRaw) Height() int         { return r.height }
func (r *fakeRaw) RowStride() int      { return r.rowStride }
func (r *fakeRaw) PixelStride() int    { return r.pixelStride }
func (r *fakeRaw) Format() PixelFormat { return r.format }
func (r *fakeRaw) Pix() []byte         { return r.pix }

func (r *fakeRaw) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed++
	return nil
}

func (r *fakeRaw) closeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// grayRaw 单通道缓冲，像素值为 (x + y*width) 的低 8 位
func grayRaw(w, h int) *fakeRaw {
	pix := make([]byte, w*h)
	for i := range pix {
		pix[i] = byte(i)
	}
	return &fakeRaw{width: w, height: h, rowStride: w, pixelStride: 1, format: FormatGray8, pix: pix}
}

// fakeCapture 每次 AcquireLatest 调用 next 生成一个新缓冲
type fakeCapture struct {
	mu        sync.Mutex
	next      func() *fakeRaw
	available bool
	handed    []*fakeRaw
}

func newFakeCapture(next func() *fakeRaw) *fakeCapture {
	return &fakeCapture{next: next, available: true}
}

func (c *fakeCapture) AcquireLatest() (RawBuffer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.available {
		return nil, false
	}
	raw := c.next()
	c.handed = append(c.handed, raw)
	return raw, true
}

func (c *fakeCapture) setAvailable(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.available = v
}

func (c *fakeCapture) acquired() []*fakeRaw {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*fakeRaw(nil), c.handed...)
}

// fakeFrames 固定返回同一帧
type fakeFrames struct {
	frame *Pattern
	err   error
}

func (f *fakeFrames) UseFrame(fn func(frame *Pattern) error) error {
	if f.err != nil {
		return f.err
	}
	return fn(f.frame)
}

// fakeImages 可编排结果的 ImageMatcher
type fakeImages struct {
	mu      sync.Mutex
	calls   int
	found   func(call int) bool
	results []cv.MatchResult
	err     error
}

func (f *fakeImages) MatchSingle(haystack, needle gocv.Mat, minSimilarity float64) (float64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return 0, false, f.err
	}
	if f.found != nil && f.found(f.calls) {
		return 1, true, nil
	}
	return 0.1, false, nil
}

func (f *fakeImages) MatchAll(haystack, needle gocv.Mat, minSimilarity float64) ([]cv.MatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.results, f.err
}

func (f *fakeImages) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// recordHighlighter 记录高亮过的区域
type recordHighlighter struct {
	mu      sync.Mutex
	regions []auto.Region
}

func (h *recordHighlighter) Highlight(region auto.Region, _ time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.regions = append(h.regions, region)
}

func (h *recordHighlighter) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.regions)
}

var errFakeMatch = errors.New("fake match error")
