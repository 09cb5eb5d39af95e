package auto

import "math"

// MinScale 截图相对屏幕的最小缩放比例
// 比例不低于 MinScale 时，区域换算到截图坐标再换算回来误差不超过 1 像素。
const MinScale = 0.5

// Transform 在屏幕坐标系与截图坐标系之间换算
//
// 截图分辨率可能与屏幕分辨率不同（例如按比例缩小采集），
// 两个方向的缩放比例分别为 ScaleX = 截图宽 / 屏幕宽、ScaleY = 截图高 / 屏幕高。
type Transform struct {
	ScaleX float64
	ScaleY float64
}

// IdentityTransform 截图与屏幕分辨率相同时使用
func IdentityTransform() Transform {
	return Transform{ScaleX: 1, ScaleY: 1}
}

// NewTransform 根据屏幕尺寸和截图尺寸创建换算
// 任一尺寸无效时退化为 1:1。
func NewTransform(screen, image Size) Transform {
	t := IdentityTransform()
	if screen.Width > 0 && image.Width > 0 {
		t.ScaleX = float64(image.Width) / float64(screen.Width)
	}
	if screen.Height > 0 && image.Height > 0 {
		t.ScaleY = float64(image.Height) / float64(screen.Height)
	}
	return t
}

// ToImageSpace 屏幕区域 -> 截图区域
func (t Transform) ToImageSpace(r Region) Region {
	return Region{
		X:      ScaleInt(r.X, t.ScaleX),
		Y:      ScaleInt(r.Y, t.ScaleY),
		Width:  ScaleInt(r.Width, t.ScaleX),
		Height: ScaleInt(r.Height, t.ScaleY),
	}
}

// ToScreenSpace 截图区域 -> 屏幕区域，ToImageSpace 的逆运算
func (t Transform) ToScreenSpace(r Region) Region {
	return Region{
		X:      ScaleCoord(r.X, t.ScaleX),
		Y:      ScaleCoord(r.Y, t.ScaleY),
		Width:  ScaleCoord(r.Width, t.ScaleX),
		Height: ScaleCoord(r.Height, t.ScaleY),
	}
}

// ToImageLocation 屏幕坐标 -> 截图坐标
func (t Transform) ToImageLocation(l Location) Location {
	return Location{X: ScaleInt(l.X, t.ScaleX), Y: ScaleInt(l.Y, t.ScaleY)}
}

// ToScreenLocation 截图坐标 -> 屏幕坐标
func (t Transform) ToScreenLocation(l Location) Location {
	return Location{X: ScaleCoord(l.X, t.ScaleX), Y: ScaleCoord(l.Y, t.ScaleY)}
}

// ScaleInt 缩放整数值 (value * factor)
func ScaleInt(value int, factor float64) int {
	if factor <= 0 {
		return value
	}
	return int(math.Round(float64(value) * factor))
}

// ScaleCoord 按比例反向缩放坐标值 (value / scale)
func ScaleCoord(value int, scale float64) int {
	if scale <= 0 {
		return value
	}
	return int(math.Round(float64(value) / scale))
}
