package validate

import (
	"sort"
	"strings"
	"unicode/utf8"

	"shop-locator/internal/model"
)

// FieldErrors：字段名到错误消息列表；为空表示校验通过
type FieldErrors map[string][]string

func (fe FieldErrors) add(field, msg string) { fe[field] = append(fe[field], msg) }

func (fe FieldErrors) Error() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, strings.Join(fe[k], " "))
	}
	return strings.Join(parts, " ")
}

// First：首个错误消息（按字段名排序），用于响应 message
func (fe FieldErrors) First() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) == 0 {
		return ""
	}
	return fe[keys[0]][0]
}

// ShopInput：创建店铺的原始输入，数值字段保留文本形式以区分缺失与非数字
type ShopInput struct {
	Name                string
	Status              string
	Type                string
	Latitude            string
	Longitude           string
	MaxDeliveryDistance string
}

// ValidateShop：校验并转换为 Shop；错误非空时返回的 Shop 不可用
func ValidateShop(in ShopInput) (model.Shop, FieldErrors) {
	errs := FieldErrors{}
	var s model.Shop

	name := strings.TrimSpace(in.Name)
	switch {
	case name == "":
		errs.add("name", "The name field is required.")
	case utf8.RuneCountInString(name) > 255:
		errs.add("name", "The name may not be greater than 255 characters.")
	}
	s.Name = name

	status := model.ShopStatus(strings.TrimSpace(in.Status))
	switch {
	case status == "":
		errs.add("status", "The status field is required.")
	case !status.Valid():
		errs.add("status", `The status field must be either "open" or "closed".`)
	}
	s.Status = status

	typ := model.ShopType(strings.TrimSpace(in.Type))
	switch {
	case typ == "":
		errs.add("type", "The type field is required.")
	case !typ.Valid():
		errs.add("type", `The type field must be either "takeaway", "shop", or "restaurant".`)
	}
	s.Type = typ

	if strings.TrimSpace(in.Latitude) == "" {
		errs.add("latitude", "The latitude field is required.")
	} else if v, ok := parseDecimal(in.Latitude); !ok {
		errs.add("latitude", "The latitude must be a number.")
	} else if v < -90 || v > 90 {
		errs.add("latitude", "The latitude must be between -90 and 90.")
	} else {
		s.Latitude = v
	}

	if strings.TrimSpace(in.Longitude) == "" {
		errs.add("longitude", "The longitude field is required.")
	} else if v, ok := parseDecimal(in.Longitude); !ok {
		errs.add("longitude", "The longitude must be a number.")
	} else if v < -180 || v > 180 {
		errs.add("longitude", "The longitude must be between -180 and 180.")
	} else {
		s.Longitude = v
	}

	if strings.TrimSpace(in.MaxDeliveryDistance) == "" {
		errs.add("max_delivery_distance", "The max delivery distance field is required.")
	} else if v, ok := parseDecimal(in.MaxDeliveryDistance); !ok {
		errs.add("max_delivery_distance", "The max delivery distance must be a number.")
	} else if v < 0 {
		errs.add("max_delivery_distance", "The max delivery distance must be at least 0.")
	} else {
		s.MaxDeliveryDistance = v
	}

	return s, errs
}

// ValidateNearbyQuery：postcode 必填；max_distance 必填、数字且不小于 1
func ValidateNearbyQuery(postcode, maxDistance string) (float64, FieldErrors) {
	errs := FieldErrors{}
	if strings.TrimSpace(postcode) == "" {
		errs.add("postcode", "The postcode field is required.")
	}
	var km float64
	if strings.TrimSpace(maxDistance) == "" {
		errs.add("max_distance", "The max distance field is required.")
	} else if v, ok := parseDecimal(maxDistance); !ok {
		errs.add("max_distance", "The max distance must be a number.")
	} else if v < 1 {
		errs.add("max_distance", "The max distance must be at least 1.")
	} else {
		km = v
	}
	return km, errs
}

func ValidateDeliveringQuery(postcode string) FieldErrors {
	errs := FieldErrors{}
	if strings.TrimSpace(postcode) == "" {
		errs.add("postcode", "The postcode field is required.")
	}
	return errs
}
