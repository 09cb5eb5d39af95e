package vision

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/google/uuid"
	"gocv.io/x/gocv"

	"github.com/zoeyai/automata/pkg/auto"
	"github.com/zoeyai/automata/pkg/vision/cv"
)

var (
	// ErrPatternReleased 访问已释放的 Pattern
	ErrPatternReleased = errors.New("图像已释放")
	// ErrEmptyRegion 裁剪区域与图像不相交
	ErrEmptyRegion = errors.New("裁剪区域为空")
)

// Pattern 具名图像，独占一个 gocv.Mat
//
// 创建后尺寸不再变化。Release 可重复调用，释放后 Mat/Crop/Copy 返回 ErrPatternReleased。
type Pattern struct {
	name   string
	width  int
	height int

	mu       sync.Mutex
	mat      gocv.Mat
	released bool
}

// NewPattern 以 mat 创建 Pattern，Pattern 接管 mat 的所有权
func NewPattern(name string, mat gocv.Mat) (*Pattern, error) {
	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("创建图像失败: %s 为空", name)
	}
	return &Pattern{
		name:   name,
		width:  mat.Cols(),
		height: mat.Rows(),
		mat:    mat,
	}, nil
}

// LoadPattern 从文件读取灰度图像
func LoadPattern(name, path string) (*Pattern, error) {
	mat, err := cv.ReadImageGray(path)
	if err != nil {
		return nil, err
	}
	return NewPattern(name, mat)
}

// PatternFromImage 从 image.Image 创建灰度 Pattern
func PatternFromImage(name string, img image.Image) (*Pattern, error) {
	mat, err := cv.ImageToGrayMat(img)
	if err != nil {
		return nil, err
	}
	return NewPattern(name, mat)
}

// Name 名称
func (p *Pattern) Name() string {
	return p.name
}

// Width 宽度（像素）
func (p *Pattern) Width() int {
	return p.width
}

// Height 高度（像素）
func (p *Pattern) Height() int {
	return p.height
}

// Size 尺寸
func (p *Pattern) Size() auto.Size {
	return auto.Size{Width: p.width, Height: p.height}
}

// Bounds 图像范围
func (p *Pattern) Bounds() image.Rectangle {
	return image.Rect(0, 0, p.width, p.height)
}

// Mat 返回底层 Mat，仅在 Pattern 存活期间有效，调用方不得 Close
func (p *Pattern) Mat() (gocv.Mat, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return gocv.Mat{}, fmt.Errorf("%w: %s", ErrPatternReleased, p.name)
	}
	return p.mat, nil
}

// Crop 裁剪出与原图共享像素的子图，区域会被限制在图像范围内
// 返回的 Pattern 需要单独 Release，原图 Release 后子图仍然持有像素。
func (p *Pattern) Crop(rect image.Rectangle) (*Pattern, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return nil, fmt.Errorf("%w: %s", ErrPatternReleased, p.name)
	}

	rect = rect.Intersect(p.Bounds())
	if rect.Empty() {
		return nil, ErrEmptyRegion
	}
	return NewPattern(p.name+"/crop", p.mat.Region(rect))
}

// Copy 深拷贝，name 为空时生成 crop-<uuid>
func (p *Pattern) Copy(name string) (*Pattern, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return nil, fmt.Errorf("%w: %s", ErrPatternReleased, p.name)
	}
	if name == "" {
		name = "crop-" + uuid.NewString()
	}
	return NewPattern(name, p.mat.Clone())
}

// Release 释放底层 Mat，重复调用无副作用
func (p *Pattern) Release() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return nil
	}
	p.released = true
	if err := p.mat.Close(); err != nil {
		return fmt.Errorf("释放图像 %s 失败: %w", p.name, err)
	}
	return nil
}

// Released 是否已释放
func (p *Pattern) Released() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.released
}

func (p *Pattern) String() string {
	return fmt.Sprintf("Pattern(%s, %dx%d)", p.name, p.width, p.height)
}
