package webmercator

import "errors"

const (
	// 每个瓦片的像素数
	TileSize = 256

	// 允许的缩放级别范围
	MinZoom     = 9
	MaxZoom     = 12
	DefaultZoom = 9

	// 单个网格的最大像素数，防止内存耗尽
	MaxGridCells = 5_000_000
	// 多个图层合计的最大像素数（width * height * layers）
	MaxPixels = 10_000 * 10_000 * 10

	// 约1米，用于裁剪/扩张WGS84包围盒以避免浮点误差导致的像素边界抖动
	// 必须显著小于最高缩放级别、最高纬度下像素宽高的一半
	WGSEpsilon = 0.00001

	// EPSG:3857下半个世界的宽度（米）
	HalfWorldMeters = 20037508.342789244
)

var (
	// 错误：缩放级别超出范围或像素数超过上限
	ErrExtentTooLarge = errors.New("extent too large")
	// 错误：缩放级别或范围不一致，无法合并
	ErrIncompatibleExtents = errors.New("incompatible extents")
	// 错误：宽高不足一个像素或包围盒过小
	ErrInvalidExtents = errors.New("invalid extents")
)
