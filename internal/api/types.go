package api

import "shop-locator/internal/model"

// 文档注释：统一响应信封
// 约束：success 与 message 恒存在；shop / errors / error 按场景出现其一
type envelope struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Shop    *model.Shop         `json:"shop,omitempty"`
	Errors  map[string][]string `json:"errors,omitempty"`
	Error   string              `json:"error,omitempty"`
}

// listEnvelope：查询成功时 shops 即使为空也输出 []
type listEnvelope struct {
	Success bool                 `json:"success"`
	Message string               `json:"message"`
	Shops   []model.ShopDistance `json:"shops"`
}

const (
	msgShopCreated     = "Shop created successfully"
	msgShopCreateError = "Failed to create shop"
	msgNearbyOK        = "Nearby shops retrieved successfully"
	msgDeliveringOK    = "Shops delivering to postcode retrieved successfully"
	msgRetrieveError   = "Failed to retrieve shops"
)
