// 包 service：店铺查询与创建的业务编排，连接存储层、校验与距离评分
package service

import (
	"context"
	"time"

	"shop-locator/internal/logger"
	"shop-locator/internal/metrics"
	"shop-locator/internal/model"
	"shop-locator/internal/proximity"
	"shop-locator/internal/validate"
)

// PostcodeFinder：未命中返回 (nil, nil)
type PostcodeFinder interface {
	FindPostcode(ctx context.Context, postcode string) (*model.Postcode, error)
}

type ShopRepository interface {
	ListOpenShops(ctx context.Context) ([]model.Shop, error)
	CreateShop(ctx context.Context, s model.Shop) (model.Shop, error)
}

type ShopService struct {
	postcodes PostcodeFinder
	shops     ShopRepository
	engine    *proximity.Engine
}

func NewShopService(postcodes PostcodeFinder, shops ShopRepository) *ShopService {
	return &ShopService{postcodes: postcodes, shops: shops, engine: proximity.NewEngine()}
}

// FindNearbyShops：邮编坐标 maxDistanceKm 范围内的营业店铺，按距离升序
// 约束：邮编不在参考表中时返回空切片且无错误
func (s *ShopService) FindNearbyShops(ctx context.Context, postcode string, maxDistanceKm float64) ([]model.ShopDistance, error) {
	return s.query(ctx, postcode, proximity.FixedRadius(maxDistanceKm))
}

// FindDeliveringShops：配送范围覆盖该邮编的营业店铺
func (s *ShopService) FindDeliveringShops(ctx context.Context, postcode string) ([]model.ShopDistance, error) {
	return s.query(ctx, postcode, proximity.DeliveryRange())
}

func (s *ShopService) query(ctx context.Context, postcode string, filter proximity.Filter) ([]model.ShopDistance, error) {
	kind := filter.String()
	start := time.Now()
	metrics.ShopQueriesTotal.WithLabelValues(kind).Inc()
	defer func() {
		metrics.ShopQueryDurationMs.WithLabelValues(kind).Observe(float64(time.Since(start).Microseconds()) / 1000)
	}()

	key := validate.NormalizePostcode(postcode)
	p, err := s.postcodes.FindPostcode(ctx, key)
	if err != nil {
		return nil, err
	}
	if p == nil {
		metrics.PostcodeMissesTotal.Inc()
		metrics.ShopQueriesEmptyTotal.WithLabelValues(kind).Inc()
		logger.L().Debug("shop_query_postcode_miss", "kind", kind, "postcode", key)
		return []model.ShopDistance{}, nil
	}

	shops, err := s.shops.ListOpenShops(ctx)
	if err != nil {
		return nil, err
	}
	res := s.engine.Rank(p.Coordinate(), shops, filter)
	if len(res) == 0 {
		metrics.ShopQueriesEmptyTotal.WithLabelValues(kind).Inc()
	}
	logger.L().Debug("shop_query_done", "kind", kind, "postcode", key, "candidates", len(shops), "hits", len(res))
	return res, nil
}

// CreateShop：校验失败返回 validate.FieldErrors
func (s *ShopService) CreateShop(ctx context.Context, in validate.ShopInput) (model.Shop, error) {
	sh, errs := validate.ValidateShop(in)
	if len(errs) > 0 {
		return model.Shop{}, errs
	}
	created, err := s.shops.CreateShop(ctx, sh)
	if err != nil {
		return model.Shop{}, err
	}
	logger.L().Info("shop_created", "id", created.ID, "name", created.Name, "status", string(created.Status))
	return created, nil
}
