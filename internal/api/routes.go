// 包 api：集中注册 HTTP API 路由以解耦主入口，挂载在 API_BASE 前缀下
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"shop-locator/internal/logger"
	"shop-locator/internal/model"
	"shop-locator/internal/validate"
)

// ShopService：路由依赖的业务接口，由 service.ShopService 实现
type ShopService interface {
	FindNearbyShops(ctx context.Context, postcode string, maxDistanceKm float64) ([]model.ShopDistance, error)
	FindDeliveringShops(ctx context.Context, postcode string) ([]model.ShopDistance, error)
	CreateShop(ctx context.Context, in validate.ShopInput) (model.Shop, error)
}

// maxBodyBytes：创建店铺请求体上限
const maxBodyBytes = 1 << 20

// BuildRoutes：独立 ServeMux，便于在主入口挂载到 API_BASE
func BuildRoutes(svc ShopService) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /shops", createShop(svc))
	mux.HandleFunc("GET /shops/nearby", nearbyShops(svc))
	mux.HandleFunc("GET /shops/delivering", deliveringShops(svc))
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return mux
}

// RouteOther：未匹配任何已注册路由的请求
const RouteOther = "other"

// RouteLabel：把请求归类为 mux 中的路由模式，用作指标标签
// 约束：返回值只可能是已注册模式、"/metrics" 或 RouteOther，与客户端路径无关
func RouteLabel(mux *http.ServeMux, base string) func(*http.Request) string {
	return func(r *http.Request) string {
		if r.URL.Path == base+"/metrics" {
			return "/metrics"
		}
		rest, ok := strings.CutPrefix(r.URL.Path, base)
		if !ok || !strings.HasPrefix(rest, "/") {
			return RouteOther
		}
		r2 := new(http.Request)
		*r2 = *r
		u := *r.URL
		u.Path, u.RawPath = rest, ""
		r2.URL = &u
		if _, pattern := mux.Handler(r2); pattern != "" {
			return pattern
		}
		return RouteOther
	}
}

func createShop(svc ShopService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in, err := decodeShopInput(w, r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, envelope{Success: false, Message: "Malformed request body", Error: err.Error()})
			return
		}
		sh, err := svc.CreateShop(r.Context(), in)
		var fe validate.FieldErrors
		switch {
		case errors.As(err, &fe):
			writeValidation(w, fe)
		case err != nil:
			logger.L().Error("shop_create_error", "err", err)
			writeJSON(w, http.StatusInternalServerError, envelope{Success: false, Message: msgShopCreateError, Error: err.Error()})
		default:
			writeJSON(w, http.StatusCreated, envelope{Success: true, Message: msgShopCreated, Shop: &sh})
		}
	}
}

func nearbyShops(svc ShopService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		postcode := q.Get("postcode")
		km, fe := validate.ValidateNearbyQuery(postcode, q.Get("max_distance"))
		if len(fe) > 0 {
			writeValidation(w, fe)
			return
		}
		shops, err := svc.FindNearbyShops(r.Context(), postcode, km)
		writeShops(w, "nearby", msgNearbyOK, shops, err)
	}
}

func deliveringShops(svc ShopService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		postcode := r.URL.Query().Get("postcode")
		if fe := validate.ValidateDeliveringQuery(postcode); len(fe) > 0 {
			writeValidation(w, fe)
			return
		}
		shops, err := svc.FindDeliveringShops(r.Context(), postcode)
		writeShops(w, "delivering", msgDeliveringOK, shops, err)
	}
}

func writeShops(w http.ResponseWriter, kind, msg string, shops []model.ShopDistance, err error) {
	if err != nil {
		logger.L().Error("shop_query_error", "kind", kind, "err", err)
		writeJSON(w, http.StatusInternalServerError, envelope{Success: false, Message: msgRetrieveError, Error: err.Error()})
		return
	}
	if shops == nil {
		shops = []model.ShopDistance{}
	}
	writeJSON(w, http.StatusOK, listEnvelope{Success: true, Message: msg, Shops: shops})
}

func writeValidation(w http.ResponseWriter, fe validate.FieldErrors) {
	writeJSON(w, http.StatusUnprocessableEntity, envelope{Success: false, Message: fe.First(), Errors: fe})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeShopInput：支持 JSON 与表单；JSON 数值保留原文以便统一走文本校验
func decodeShopInput(w http.ResponseWriter, r *http.Request) (validate.ShopInput, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("content-type"))
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if ct == "application/x-www-form-urlencoded" || ct == "multipart/form-data" {
		var err error
		if ct == "multipart/form-data" {
			err = r.ParseMultipartForm(maxBodyBytes)
		} else {
			err = r.ParseForm()
		}
		if err != nil {
			return validate.ShopInput{}, err
		}
		f := r.PostForm
		return validate.ShopInput{
			Name:                f.Get("name"),
			Status:              f.Get("status"),
			Type:                f.Get("type"),
			Latitude:            f.Get("latitude"),
			Longitude:           f.Get("longitude"),
			MaxDeliveryDistance: f.Get("max_delivery_distance"),
		}, nil
	}

	m := map[string]any{}
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return validate.ShopInput{}, err
	}
	return validate.ShopInput{
		Name:                text(m["name"]),
		Status:              text(m["status"]),
		Type:                text(m["type"]),
		Latitude:            text(m["latitude"]),
		Longitude:           text(m["longitude"]),
		MaxDeliveryDistance: text(m["max_delivery_distance"]),
	}, nil
}

// text：JSON 值转为校验输入；对象与数组视为非法文本
func text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	default:
		b, _ := json.Marshal(x)
		return strings.TrimSpace(string(b))
	}
}
