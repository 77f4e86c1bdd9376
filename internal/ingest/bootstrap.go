package ingest

import (
	"context"

	"shop-locator/internal/logger"
)

// Counter：统计已导入邮编数
type Counter interface {
	CountPostcodes(ctx context.Context) (int64, error)
}

// EnsureInitialized：邮编表为空时执行一次完整导入
// 背景：简化首次部署，避免单独的手动导入步骤
// 返回：表非空时 (Result{}, false, nil)
func EnsureInitialized(ctx context.Context, c Counter, im *Importer, src Source) (Result, bool, error) {
	n, err := c.CountPostcodes(ctx)
	if err != nil {
		return Result{}, false, err
	}
	if n > 0 {
		logger.L().Debug("import_skip_non_empty", "postcodes", n)
		return Result{}, false, nil
	}
	res, err := im.Run(ctx, src)
	return res, true, err
}
