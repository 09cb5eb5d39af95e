// Package cv 封装基于 OpenCV (gocv) 的模板匹配
//
// 搜索图与模板图均按灰度处理，相似度使用 TM_CCOEFF_NORMED。
//
// 基本用法:
//
//	m := cv.NewTemplateMatcher()
//	score, ok, err := m.MatchSingle(screen, template, 0.8)
//	results, err := m.MatchAll(screen, template, 0.8)
//	for _, r := range results {
//	    fmt.Printf("位置: %v, 置信度: %.2f\n", r.Rect(), r.Confidence)
//	}
package cv
