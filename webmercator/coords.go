package webmercator

import "math"

// 公式参考 http://wiki.openstreetmap.org/wiki/Slippy_map_tilenames#Mathematics
// 像素坐标y轴由北向南递增，x轴由西向东递增

func worldWidthPixels(zoom int) float64 {
	return math.Exp2(float64(zoom)) * TileSize
}

// LonToFractionalPixel 经度 -> 世界像素x坐标（不截断）
func LonToFractionalPixel(lon float64, zoom int) float64 {
	return (lon + 180) / 360 * worldWidthPixels(zoom)
}

// LonToPixel 经度 -> 所在像素的世界x坐标，向原点截断
func LonToPixel(lon float64, zoom int) int {
	return int(math.Floor(LonToFractionalPixel(lon, zoom)))
}

// LatToFractionalPixel 纬度 -> 世界像素y坐标（不截断）
func LatToFractionalPixel(lat float64, zoom int) float64 {
	latRad := lat * math.Pi / 180
	return (1 - math.Log(math.Tan(latRad)+1/math.Cos(latRad))/math.Pi) * math.Exp2(float64(zoom-1)) * TileSize
}

// LatToPixel 纬度 -> 所在像素的世界y坐标，向原点截断
func LatToPixel(lat float64, zoom int) int {
	return int(math.Floor(LatToFractionalPixel(lat, zoom)))
}

// PixelToLon 像素西边缘的经度，非整数像素返回像素内部的位置
func PixelToLon(xPixel float64, zoom int) float64 {
	return xPixel/worldWidthPixels(zoom)*360 - 180
}

// PixelToLat 像素北边缘的纬度，非整数像素返回像素内部的位置
func PixelToLat(yPixel float64, zoom int) float64 {
	return math.Atan(math.Sinh(math.Pi-yPixel/TileSize/math.Exp2(float64(zoom))*2*math.Pi)) * 180 / math.Pi
}

func PixelToCenterLon(xPixel int, zoom int) float64 {
	return PixelToLon(float64(xPixel)+0.5, zoom)
}

func PixelToCenterLat(yPixel int, zoom int) float64 {
	return PixelToLat(float64(yPixel)+0.5, zoom)
}

// PixelToMeters 世界像素坐标 -> EPSG:3857坐标（米）
// EPSG:3857以经纬度(0,0)为原点且y轴向北，因此需要平移半个世界并翻转y轴
func PixelToMeters(xPixel, yPixel float64, zoom int) (float64, float64) {
	w := worldWidthPixels(zoom)
	xMeters := (xPixel/w - 0.5) * 2 * HalfWorldMeters
	yMeters := (0.5 - yPixel/w) * 2 * HalfWorldMeters
	return xMeters, yMeters
}
