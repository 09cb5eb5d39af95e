//go:build !darwin

package permissions

// 非 macOS 系统不需要额外授权
func checkScreenRecording() bool {
	return true
}

// OpenScreenRecordingSettings 打开屏幕录制设置页面
func OpenScreenRecordingSettings() {}

// Reset 重置屏幕录制授权
func Reset() error {
	return nil
}
