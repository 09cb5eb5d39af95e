package vision

// PixelFormat 原始缓冲的像素格式
type PixelFormat int

const (
	FormatRGBA8888 PixelFormat = iota
	FormatBGRA8888
	FormatGray8
)

// BytesPerPixel 每像素字节数
func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case FormatRGBA8888, FormatBGRA8888:
		return 4
	case FormatGray8:
		return 1
	default:
		return 0
	}
}

func (f PixelFormat) String() string {
	switch f {
	case FormatRGBA8888:
		return "RGBA8888"
	case FormatBGRA8888:
		return "BGRA8888"
	case FormatGray8:
		return "GRAY8"
	default:
		return "UNKNOWN"
	}
}

// RawBuffer 截图子系统交出的原始缓冲
// 使用完毕必须 Close 归还给截图子系统，这与释放由它转换出的帧无关。
type RawBuffer interface {
	Width() int
	Height() int
	// RowStride 每行字节数，可能包含行尾填充
	RowStride() int
	// PixelStride 每像素字节数
	PixelStride() int
	Format() PixelFormat
	Pix() []byte
	Close() error
}

// CaptureSource 截图子系统
type CaptureSource interface {
	// AcquireLatest 取出最新的原始缓冲，暂无可用缓冲时返回 false
	AcquireLatest() (RawBuffer, bool)
}
