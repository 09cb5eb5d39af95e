package screen

import (
	"image"
	"sync"

	"github.com/zoeyai/automata/pkg/vision"
)

// rowAlign 行跨度按该字节数对齐，与常见截图缓冲的行填充一致
const rowAlign = 64

// slot 池中的一块 RGBA 存储
type slot struct {
	img *image.RGBA

	// gen 每次被取出时递增，inUse 表示当前借出，均由 pool.mu 保护
	gen   uint64
	inUse bool
}

// Buffer 一次借出的缓冲
// 通过 AcquireLatest 交出后，Close 把它归还给池。同一次借出重复 Close 无副作用，
// 缓冲被再次借出后，旧的 Buffer 调用 Close 也不会影响新的持有者。
type Buffer struct {
	pool *bufferPool
	s    *slot
	gen  uint64
}

func (b *Buffer) Width() int                 { return b.s.img.Rect.Dx() }
func (b *Buffer) Height() int                { return b.s.img.Rect.Dy() }
func (b *Buffer) RowStride() int             { return b.s.img.Stride }
func (b *Buffer) PixelStride() int           { return 4 }
func (b *Buffer) Format() vision.PixelFormat { return vision.FormatRGBA8888 }
func (b *Buffer) Pix() []byte                { return b.s.img.Pix }

// Image 缓冲对应的图像
func (b *Buffer) Image() *image.RGBA {
	return b.s.img
}

// Close 归还给池
func (b *Buffer) Close() error {
	b.pool.put(b)
	return nil
}

// bufferPool 固定数量的缓冲
type bufferPool struct {
	mu   sync.Mutex
	free []*slot
	size int
}

func newBufferPool(n, width, height int) *bufferPool {
	p := &bufferPool{size: n}
	stride := (width*4 + rowAlign - 1) / rowAlign * rowAlign
	for i := 0; i < n; i++ {
		p.free = append(p.free, &slot{
			img: &image.RGBA{
				Pix:    make([]byte, stride*height),
				Stride: stride,
				Rect:   image.Rect(0, 0, width, height),
			},
		})
	}
	return p
}

// get 借出一个空闲缓冲，池已耗尽时返回 false
func (p *bufferPool) get() (*Buffer, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.free)
	if n == 0 {
		return nil, false
	}
	s := p.free[n-1]
	p.free = p.free[:n-1]
	s.gen++
	s.inUse = true
	return &Buffer{pool: p, s: s, gen: s.gen}, true
}

// put 归还 b，只对当前这次借出生效
func (p *bufferPool) put(b *Buffer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !b.s.inUse || b.s.gen != b.gen {
		return
	}
	b.s.inUse = false
	p.free = append(p.free, b.s)
}

// available 空闲缓冲数量
func (p *bufferPool) available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}
