package auto

import (
	"fmt"
	"image"
)

// Location 表示屏幕坐标点
type Location struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// Offset 按 o 平移
func (l Location) Offset(o Location) Location {
	return Location{X: l.X + o.X, Y: l.Y + o.Y}
}

// Size 表示宽高
type Size struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Empty 宽或高不为正时返回 true
func (s Size) Empty() bool {
	return s.Width <= 0 || s.Height <= 0
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Region 表示屏幕坐标系中的矩形区域
type Region struct {
	X      int `json:"x" yaml:"x"`
	Y      int `json:"y" yaml:"y"`
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// NewRegion 创建区域
func NewRegion(x, y, width, height int) Region {
	return Region{X: x, Y: y, Width: width, Height: height}
}

// RegionFromImageRect 从 image.Rectangle 创建区域
func RegionFromImageRect(r image.Rectangle) Region {
	r = r.Canon()
	return Region{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// Location 返回左上角坐标
func (r Region) Location() Location {
	return Location{X: r.X, Y: r.Y}
}

// Size 返回区域尺寸
func (r Region) Size() Size {
	return Size{Width: r.Width, Height: r.Height}
}

// Right 返回右边界 (不含)
func (r Region) Right() int {
	return r.X + r.Width
}

// Bottom 返回下边界 (不含)
func (r Region) Bottom() int {
	return r.Y + r.Height
}

// Center 返回中心点
func (r Region) Center() Location {
	return Location{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Empty 宽或高不为正时返回 true
func (r Region) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Offset 按给定坐标平移，用于把相对区域转换为绝对区域
func (r Region) Offset(l Location) Region {
	return Region{X: r.X + l.X, Y: r.Y + l.Y, Width: r.Width, Height: r.Height}
}

// Contains 判断点是否在区域内
func (r Region) Contains(l Location) bool {
	return l.X >= r.X && l.X < r.Right() && l.Y >= r.Y && l.Y < r.Bottom()
}

// Intersect 返回两个区域的交集，不相交时返回空区域
func (r Region) Intersect(other Region) Region {
	return RegionFromImageRect(r.ToImageRect().Intersect(other.ToImageRect()))
}

// ToImageRect 转换为 image.Rectangle
func (r Region) ToImageRect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

func (r Region) String() string {
	return fmt.Sprintf("(%d,%d %dx%d)", r.X, r.Y, r.Width, r.Height)
}
