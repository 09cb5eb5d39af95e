// Package auto 提供区域搜索所需的基础类型与调度原语。
//
// 包括屏幕坐标系下的 Region/Location/Size、屏幕与截图坐标之间的 Transform，
// 以及带超时与协作取消的条件轮询 CheckConditionLoop。
// 图像相关的实现位于 vision 子系统，截图实现位于 screen 子包。
package auto
