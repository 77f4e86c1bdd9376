// 包 proximity：以参考坐标为中心对店铺集合计算大圆距离、按过滤策略筛选并按距离升序返回
// 约束：无共享可变状态，可被并发调用；距离单位为公里
package proximity

import (
	"sort"

	"shop-locator/internal/geo"
	"shop-locator/internal/model"
)

type filterKind int

const (
	fixedRadius filterKind = iota
	deliveryRange
)

// Filter：距离判定策略（标签变体），FixedRadius 为调用方半径，DeliveryRange 为店铺自身配送范围
type Filter struct {
	kind     filterKind
	radiusKm float64
}

// FixedRadius：distance <= km
func FixedRadius(km float64) Filter { return Filter{kind: fixedRadius, radiusKm: km} }

// DeliveryRange：distance <= shop.MaxDeliveryDistance
func DeliveryRange() Filter { return Filter{kind: deliveryRange} }

func (f Filter) admit(s model.Shop, distanceKm float64) bool {
	switch f.kind {
	case deliveryRange:
		return distanceKm <= s.MaxDeliveryDistance
	default:
		return distanceKm <= f.radiusKm
	}
}

func (f Filter) String() string {
	if f.kind == deliveryRange {
		return "delivering"
	}
	return "nearby"
}

// DistanceFunc：距离函数签名，默认 geo.GreatCircleDistanceKm
type DistanceFunc func(lat1, lon1, lat2, lon2 float64) float64

// Engine：评分器；零值可用
type Engine struct {
	distance DistanceFunc
}

func NewEngine() *Engine {
	return &Engine{distance: geo.GreatCircleDistanceKm}
}

// Rank：仅 open 店铺参与；计算距离、按 filter 筛选、稳定升序排序（同距离保持输入顺序）
// 返回：非 nil 切片，无命中时为空
func (e *Engine) Rank(ref model.Coordinate, shops []model.Shop, filter Filter) []model.ShopDistance {
	dist := geo.GreatCircleDistanceKm
	if e != nil && e.distance != nil {
		dist = e.distance
	}
	out := make([]model.ShopDistance, 0)
	for _, s := range shops {
		if s.Status != model.StatusOpen {
			continue
		}
		d := dist(ref.Latitude, ref.Longitude, s.Latitude, s.Longitude)
		if !filter.admit(s, d) {
			continue
		}
		out = append(out, model.ShopDistance{Shop: s, DistanceKm: d})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DistanceKm < out[j].DistanceKm })
	return out
}

// Nearby：调用方半径内的 open 店铺
func (e *Engine) Nearby(ref model.Coordinate, shops []model.Shop, maxDistanceKm float64) []model.ShopDistance {
	return e.Rank(ref, shops, FixedRadius(maxDistanceKm))
}

// Delivering：参考点处于店铺配送范围内的 open 店铺
func (e *Engine) Delivering(ref model.Coordinate, shops []model.Shop) []model.ShopDistance {
	return e.Rank(ref, shops, DeliveryRange())
}
