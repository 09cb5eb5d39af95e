package cv

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// ReadImageGray 读取灰度图像
func ReadImageGray(filename string) (gocv.Mat, error) {
	mat := gocv.IMRead(filename, gocv.IMReadGrayScale)
	if mat.Empty() {
		mat.Close()
		return gocv.NewMat(), fmt.Errorf("无法读取图像: %s", filename)
	}
	return mat, nil
}

// ToGray 转换为灰度图，单通道输入返回副本
func ToGray(src gocv.Mat) gocv.Mat {
	if src.Channels() == 1 {
		return src.Clone()
	}
	dst := gocv.NewMat()
	switch src.Channels() {
	case 4:
		gocv.CvtColor(src, &dst, gocv.ColorBGRAToGray)
	default:
		gocv.CvtColor(src, &dst, gocv.ColorBGRToGray)
	}
	return dst
}

// CropImage 裁剪图像，返回与原图共享像素的视图
// 裁剪区域会被限制在图像范围内，返回的 Mat 需要调用方 Close。
func CropImage(img gocv.Mat, rect image.Rectangle) gocv.Mat {
	bounds := image.Rect(0, 0, img.Cols(), img.Rows())
	return img.Region(rect.Intersect(bounds))
}

// ImageToGrayMat 将 image.Image 转换为灰度 gocv.Mat
func ImageToGrayMat(img image.Image) (gocv.Mat, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("图像转换失败: %w", err)
	}
	defer mat.Close()

	dst := gocv.NewMat()
	gocv.CvtColor(mat, &dst, gocv.ColorRGBToGray)
	return dst, nil
}

// MatToImage 将 gocv.Mat 转换为 image.Image
func MatToImage(mat gocv.Mat) (image.Image, error) {
	img, err := mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("Mat 转换失败: %w", err)
	}
	return img, nil
}
