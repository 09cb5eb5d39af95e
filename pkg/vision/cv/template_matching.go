package cv

import (
	"image"
	"image/color"
	"time"

	"gocv.io/x/gocv"
)

const (
	// MaxResultCount 默认最大匹配结果数量
	MaxResultCount = 50
)

// TemplateMatcher 模板匹配器
// 零值不可用，请使用 NewTemplateMatcher。
type TemplateMatcher struct {
	// MaxResults MatchAll 返回的最大结果数量
	MaxResults int
}

// NewTemplateMatcher 创建模板匹配器
func NewTemplateMatcher() *TemplateMatcher {
	return &TemplateMatcher{MaxResults: MaxResultCount}
}

// MatchSingle 判断 source 中是否存在与 search 相似度不低于 threshold 的区域
// 返回最佳匹配的置信度。
func (m *TemplateMatcher) MatchSingle(source, search gocv.Mat, threshold float64) (float64, bool, error) {
	if err := checkSourceLargerThanSearch(source, search); err != nil {
		return 0, false, err
	}

	result := templateResultMatrix(source, search)
	defer result.Close()

	_, maxVal, _, _ := gocv.MinMaxLoc(result)
	confidence := float64(maxVal)
	return confidence, confidence >= threshold, nil
}

// MatchAll 查找所有置信度不低于 threshold 的匹配，按置信度从高到低排列
func (m *TemplateMatcher) MatchAll(source, search gocv.Mat, threshold float64) ([]MatchResult, error) {
	startTime := time.Now()

	if err := checkSourceLargerThanSearch(source, search); err != nil {
		return nil, err
	}

	result := templateResultMatrix(source, search)
	defer result.Close()

	limit := m.MaxResults
	if limit <= 0 {
		limit = MaxResultCount
	}

	h, w := search.Rows(), search.Cols()
	var results []MatchResult

	for len(results) < limit {
		_, maxVal, _, maxLoc := gocv.MinMaxLoc(result)

		confidence := float64(maxVal)
		if confidence < threshold {
			break
		}

		results = append(results, MatchResult{
			Result:     Point{X: maxLoc.X + w/2, Y: maxLoc.Y + h/2},
			Rectangle:  NewRectangle(maxLoc.X, maxLoc.Y, w, h),
			Confidence: confidence,
			Time:       float64(time.Since(startTime).Milliseconds()),
		})

		// 屏蔽已匹配位置附近的结果，避免同一目标重复命中
		gocv.Rectangle(&result,
			image.Rect(maxLoc.X-w/2, maxLoc.Y-h/2, maxLoc.X+w/2+1, maxLoc.Y+h/2+1),
			color.RGBA{0, 0, 0, 255}, -1)
	}

	return results, nil
}

// templateResultMatrix 计算模板匹配结果矩阵
func templateResultMatrix(source, search gocv.Mat) gocv.Mat {
	srcGray := ToGray(source)
	searchGray := ToGray(search)
	defer srcGray.Close()
	defer searchGray.Close()

	mask := gocv.NewMat()
	defer mask.Close()

	result := gocv.NewMat()
	gocv.MatchTemplate(srcGray, searchGray, &result, gocv.TmCcoeffNormed, mask)

	return result
}

// checkSourceLargerThanSearch 检查源图像是否大于搜索图像
func checkSourceLargerThanSearch(source, search gocv.Mat) error {
	if source.Rows() < search.Rows() || source.Cols() < search.Cols() {
		return &ImageSizeError{
			SourceSize: [2]int{source.Cols(), source.Rows()},
			SearchSize: [2]int{search.Cols(), search.Rows()},
		}
	}
	return nil
}
