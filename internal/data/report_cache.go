package data

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/HannahTeng/wekruit-user-retention-analysis/internal/biz"
	"github.com/HannahTeng/wekruit-user-retention-analysis/internal/constants"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
)

// reportCache 最新报告的 Redis 缓存实现
type reportCache struct {
	data *Data
	log  *log.Helper
}

// NewReportCache 创建报告缓存
func NewReportCache(data *Data, logger log.Logger) biz.ReportCache {
	return &reportCache{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// SetLatestReport 写入最新报告缓存
func (c *reportCache) SetLatestReport(ctx context.Context, report *biz.Report) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return err
	}
	if err := c.data.rdb.Set(ctx, constants.LatestReportCacheKey, payload, constants.DefaultCacheExpiration).Err(); err != nil {
		c.log.Warnf("Failed to set report cache: %v", err)
		return err
	}
	return nil
}

// GetLatestReport 读取最新报告缓存, 未命中时返回 (nil, nil)
func (c *reportCache) GetLatestReport(ctx context.Context) (*biz.Report, error) {
	payload, err := c.data.rdb.Get(ctx, constants.LatestReportCacheKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		c.log.Warnf("Failed to get report cache: %v", err)
		return nil, err
	}

	var report biz.Report
	if err := json.Unmarshal(payload, &report); err != nil {
		// 缓存内容损坏时当作未命中, 由调用方回源
		c.log.Warnf("Corrupt report cache payload: %v", err)
		return nil, nil
	}
	return &report, nil
}
