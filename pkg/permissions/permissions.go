// Package permissions 检查截图所需的系统权限
package permissions

import "fmt"

// Status 权限状态
type Status struct {
	ScreenRecording bool `json:"screen_recording"`
}

// Granted 是否已具备全部权限
func (s *Status) Granted() bool {
	return s.ScreenRecording
}

// Check 检查所需权限（不触发弹窗）
func Check() *Status {
	return &Status{ScreenRecording: checkScreenRecording()}
}

// Instructions 获取权限说明，权限齐全时返回空字符串
func Instructions(status *Status) string {
	if status.Granted() {
		return ""
	}
	return "需要授权屏幕录制权限 (用于截屏和图像识别):\n" +
		"   系统设置 > 隐私与安全性 > 屏幕录制\n\n" +
		"授权后需要重启应用才能生效。"
}

// Ensure 确保权限已授予，未授予时返回说明
func Ensure() (bool, string) {
	status := Check()
	if status.Granted() {
		return true, ""
	}
	return false, Instructions(status)
}

// PrintStatus 打印权限状态
func PrintStatus() {
	status := Check()
	fmt.Printf("权限状态:\n")
	fmt.Printf("  屏幕录制: %v\n", status.ScreenRecording)

	if !status.Granted() {
		fmt.Println(Instructions(status))
	}
}
