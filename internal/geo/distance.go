// 包 geo：球面大圆距离计算
package geo

import "math"

// EarthRadiusKm 地球平均半径（公里）
const EarthRadiusKm = 6371.0

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// GreatCircleDistanceKm：两点间大圆距离（公里），球面余弦公式
// d = R * acos(cos φ1 · cos φ2 · cos(λ2-λ1) + sin φ1 · sin φ2)
// 约束：acos 参数截断到 [-1, 1]，重合点与对跖点不会产生 NaN；坐标完全相同时返回精确 0
func GreatCircleDistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	if lat1 == lat2 && lon1 == lon2 {
		return 0
	}
	phi1 := toRadians(lat1)
	phi2 := toRadians(lat2)
	dLambda := toRadians(lon2) - toRadians(lon1)

	x := math.Cos(phi1)*math.Cos(phi2)*math.Cos(dLambda) + math.Sin(phi1)*math.Sin(phi2)
	if x > 1 {
		x = 1
	} else if x < -1 {
		x = -1
	}
	return EarthRadiusKm * math.Acos(x)
}
