// 包 model：邮编与店铺的领域结构，供导入、存储、邻近查询与 HTTP 层共享
package model

import "time"

// Coordinate：WGS84 经纬度点
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Postcode：邮编参考表行；Postcode 为规范化后的自然键
type Postcode struct {
	Postcode  string  `json:"postcode"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Coordinate：取邮编所在坐标
func (p Postcode) Coordinate() Coordinate {
	return Coordinate{Latitude: p.Latitude, Longitude: p.Longitude}
}

type ShopStatus string

const (
	StatusOpen   ShopStatus = "open"
	StatusClosed ShopStatus = "closed"
)

// Valid：仅 open / closed 合法
func (s ShopStatus) Valid() bool { return s == StatusOpen || s == StatusClosed }

type ShopType string

const (
	TypeShop       ShopType = "shop"
	TypeTakeaway   ShopType = "takeaway"
	TypeRestaurant ShopType = "restaurant"
)

func (t ShopType) Valid() bool {
	switch t {
	case TypeShop, TypeTakeaway, TypeRestaurant:
		return true
	}
	return false
}

// Shop：店铺；MaxDeliveryDistance 单位为公里
type Shop struct {
	ID                  int64      `json:"id"`
	Name                string     `json:"name"`
	Status              ShopStatus `json:"status"`
	Type                ShopType   `json:"type"`
	Latitude            float64    `json:"latitude"`
	Longitude           float64    `json:"longitude"`
	MaxDeliveryDistance float64    `json:"max_delivery_distance"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

func (s Shop) Coordinate() Coordinate {
	return Coordinate{Latitude: s.Latitude, Longitude: s.Longitude}
}

// ShopDistance：单次查询内附带距离（公里）的店铺，不落库
type ShopDistance struct {
	Shop
	DistanceKm float64 `json:"distance"`
}
