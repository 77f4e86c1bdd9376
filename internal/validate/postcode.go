// 包 validate：邮编格式与经纬度范围校验（纯函数），以及店铺与查询参数的字段校验
package validate

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// 英国邮编：1-2 位字母、1-2 位数字、可选字母、可选空格、1 位数字、2 位字母
var ukPostcode = regexp.MustCompile(`^([A-Z]{1,2}[0-9]{1,2}[A-Z]?) ?[0-9][A-Z]{2}$`)

// ValidationError：行字段校验失败；导入阶段仅用于调试日志，不向上抛出
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validate: %s %q: %s", e.Field, e.Value, e.Reason)
}

// collapse：去除首尾空白、转大写、内部连续空白压缩为一个空格
func collapse(raw string) string {
	return strings.Join(strings.Fields(strings.ToUpper(raw)), " ")
}

// ValidatePostcode：英国邮编格式校验，大小写与首尾空白不影响结果
func ValidatePostcode(raw string) bool {
	s := collapse(raw)
	if s == "" {
		return false
	}
	return ukPostcode.MatchString(s)
}

// NormalizePostcode：规范化为存储/查询键，去掉全部空白后在末三位前插入一个空格
// 约束：不做格式校验；长度不足 4 时仅返回去空白的大写形式
func NormalizePostcode(raw string) string {
	s := strings.Join(strings.Fields(strings.ToUpper(raw)), "")
	if len(s) < 4 {
		return s
	}
	return s[:len(s)-3] + " " + s[len(s)-3:]
}

// parseDecimal：有限十进制数；拒绝 NaN、Inf 与十六进制写法
func parseDecimal(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" || strings.ContainsAny(s, "xXpP_") {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// ParseLatitude：解析并校验纬度 [-90, 90]
func ParseLatitude(raw string) (float64, bool) {
	v, ok := parseDecimal(raw)
	if !ok || v < -90 || v > 90 {
		return 0, false
	}
	return v, true
}

// ParseLongitude：解析并校验经度 [-180, 180]
func ParseLongitude(raw string) (float64, bool) {
	v, ok := parseDecimal(raw)
	if !ok || v < -180 || v > 180 {
		return 0, false
	}
	return v, true
}

func ValidateLatitude(raw string) bool {
	_, ok := ParseLatitude(raw)
	return ok
}

func ValidateLongitude(raw string) bool {
	_, ok := ParseLongitude(raw)
	return ok
}

// ValidateAll：三项校验的逻辑与；不包含重复检查
func ValidateAll(postcode, latitude, longitude string) bool {
	return ValidatePostcode(postcode) && ValidateLatitude(latitude) && ValidateLongitude(longitude)
}

// Check：同 ValidateAll，失败时返回首个不合法字段
func Check(postcode, latitude, longitude string) error {
	if !ValidatePostcode(postcode) {
		return &ValidationError{Field: "postcode", Value: postcode, Reason: "not a UK postcode"}
	}
	if !ValidateLatitude(latitude) {
		return &ValidationError{Field: "latitude", Value: latitude, Reason: "must be a number between -90 and 90"}
	}
	if !ValidateLongitude(longitude) {
		return &ValidationError{Field: "longitude", Value: longitude, Reason: "must be a number between -180 and 180"}
	}
	return nil
}
