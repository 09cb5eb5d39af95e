// Package grid 把区域划分为网格，用于把搜索限制在某个格子内
package grid

import (
	"fmt"
	"iter"
	"strconv"
	"strings"

	"github.com/zoeyai/automata/pkg/auto"
)

// Position 网格位置
type Position struct {
	Rows int `json:"rows"` // 总行数
	Cols int `json:"cols"` // 总列数
	Row  int `json:"row"`  // 目标行 (1-based)
	Col  int `json:"col"`  // 目标列 (1-based)
}

// Parse 解析网格位置字符串
// 格式: rows.cols.row.col (如 "2.2.1.1" 表示 2x2 网格的第1行第1列)
func Parse(s string) (Position, error) {
	if s == "" {
		return Position{}, fmt.Errorf("网格位置字符串为空")
	}

	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return Position{}, fmt.Errorf("无效的网格位置格式: %s (期望格式: rows.cols.row.col)", s)
	}

	names := [4]string{"行数", "列数", "目标行", "目标列"}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Position{}, fmt.Errorf("无效的%s: %s", names[i], p)
		}
		v[i] = n
	}

	pos := Position{Rows: v[0], Cols: v[1], Row: v[2], Col: v[3]}
	if err := pos.Validate(); err != nil {
		return Position{}, err
	}
	return pos, nil
}

// Validate 检查行列是否有效
func (p Position) Validate() error {
	if p.Rows < 1 || p.Cols < 1 {
		return fmt.Errorf("行数和列数必须大于 0: rows=%d, cols=%d", p.Rows, p.Cols)
	}
	if p.Row < 1 || p.Col < 1 {
		return fmt.Errorf("目标行和目标列必须大于 0: row=%d, col=%d", p.Row, p.Col)
	}
	if p.Row > p.Rows || p.Col > p.Cols {
		return fmt.Errorf("目标位置超出范围: row=%d > rows=%d 或 col=%d > cols=%d", p.Row, p.Rows, p.Col, p.Cols)
	}
	return nil
}

func (p Position) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", p.Rows, p.Cols, p.Row, p.Col)
}

// Cell 返回 rect 中指定格子的区域
// 相邻格子首尾相接，所有格子恰好铺满 rect。
func Cell(rect auto.Region, pos Position) auto.Region {
	x0 := rect.X + (pos.Col-1)*rect.Width/pos.Cols
	x1 := rect.X + pos.Col*rect.Width/pos.Cols
	y0 := rect.Y + (pos.Row-1)*rect.Height/pos.Rows
	y1 := rect.Y + pos.Row*rect.Height/pos.Rows
	return auto.NewRegion(x0, y0, x1-x0, y1-y0)
}

// Center 返回格子的中心点
func Center(rect auto.Region, pos Position) auto.Location {
	return Cell(rect, pos).Center()
}

// CellFromString 解析网格位置并返回格子区域，s 为空时返回 rect
func CellFromString(rect auto.Region, s string) (auto.Region, error) {
	if s == "" {
		return rect, nil
	}
	pos, err := Parse(s)
	if err != nil {
		return auto.Region{}, err
	}
	return Cell(rect, pos), nil
}

// Cells 按行优先顺序遍历所有格子
func Cells(rect auto.Region, rows, cols int) iter.Seq2[Position, auto.Region] {
	return func(yield func(Position, auto.Region) bool) {
		for row := 1; row <= rows; row++ {
			for col := 1; col <= cols; col++ {
				pos := Position{Rows: rows, Cols: cols, Row: row, Col: col}
				if !yield(pos, Cell(rect, pos)) {
					return
				}
			}
		}
	}
}
