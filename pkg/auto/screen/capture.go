// Package screen 持续截取屏幕并以原始缓冲的形式交给帧缓存
package screen

import (
	"fmt"
	"image"
	"strings"

	"github.com/go-vgo/robotgo"
	"github.com/kbinani/screenshot"
)

// 截图后端名称
const (
	BackendRobotgo    = "robotgo"
	BackendScreenshot = "screenshot"
)

// Grabber 截图后端
type Grabber interface {
	// Bounds 返回显示器在屏幕坐标系中的范围
	Bounds() (image.Rectangle, error)
	// Grab 截取屏幕坐标系中的矩形区域
	Grab(rect image.Rectangle) (image.Image, error)
}

// NewGrabber 按名称创建截图后端，名称为空时使用 robotgo
// display 只对 screenshot 后端生效。
func NewGrabber(backend string, display int) (Grabber, error) {
	switch strings.ToLower(backend) {
	case "", BackendRobotgo:
		return robotgoGrabber{}, nil
	case BackendScreenshot:
		return screenshotGrabber{display: display}, nil
	default:
		return nil, fmt.Errorf("未知的截图后端: %s", backend)
	}
}

// robotgoGrabber 使用 robotgo 截取主显示器
type robotgoGrabber struct{}

func (robotgoGrabber) Bounds() (image.Rectangle, error) {
	w, h := robotgo.GetScreenSize()
	if w <= 0 || h <= 0 {
		return image.Rectangle{}, fmt.Errorf("获取屏幕尺寸失败: %dx%d", w, h)
	}
	return image.Rect(0, 0, w, h), nil
}

func (robotgoGrabber) Grab(rect image.Rectangle) (image.Image, error) {
	img, err := robotgo.CaptureImg(rect.Min.X, rect.Min.Y, rect.Dx(), rect.Dy())
	if err != nil {
		return nil, fmt.Errorf("截屏失败: %w", err)
	}
	return img, nil
}

// screenshotGrabber 使用 kbinani/screenshot，支持选择显示器
type screenshotGrabber struct {
	display int
}

func (g screenshotGrabber) Bounds() (image.Rectangle, error) {
	n := screenshot.NumActiveDisplays()
	if g.display < 0 || g.display >= n {
		return image.Rectangle{}, fmt.Errorf("显示器 %d 不存在 (共 %d 个)", g.display, n)
	}
	return screenshot.GetDisplayBounds(g.display), nil
}

func (g screenshotGrabber) Grab(rect image.Rectangle) (image.Image, error) {
	img, err := screenshot.CaptureRect(rect)
	if err != nil {
		return nil, fmt.Errorf("截取区域失败: %w", err)
	}
	return img, nil
}
