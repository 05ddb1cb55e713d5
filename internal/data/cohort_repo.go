package data

import (
	"context"
	"time"

	"github.com/HannahTeng/wekruit-user-retention-analysis/internal/biz"
	"github.com/HannahTeng/wekruit-user-retention-analysis/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
)

// cohortInsertBatchSize 队列行批量插入的单批条数
const cohortInsertBatchSize = 500

// cohortRepo 队列行仓库实现
type cohortRepo struct {
	data *Data
	log  *log.Helper
}

// NewCohortRepo 创建队列行仓库
func NewCohortRepo(data *Data, logger log.Logger) biz.CohortRepo {
	return &cohortRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// SaveRecords 批量保存一次任务的全部队列行
func (r *cohortRepo) SaveRecords(ctx context.Context, runID string, records []biz.UserRecord) error {
	now := time.Now().UTC()
	models := make([]model.CohortUser, len(records))
	for i, rec := range records {
		eventIndicator := 0
		if rec.Churned {
			eventIndicator = 1
		}
		models[i] = model.CohortUser{
			RunID:            runID,
			UserID:           rec.UserID,
			SignupDate:       rec.SignupDate,
			UserType:         rec.UserType,
			SubscriptionTier: rec.SubscriptionTier,
			ActivityCount:    rec.ActivityCount,
			Score:            rec.Score,
			BaselineHazard:   rec.BaselineHazard,
			TimeToEvent:      rec.TimeToEvent,
			EventIndicator:   eventIndicator,
			TimeObserved:     rec.TimeObserved,
			LastActiveDate:   rec.LastActiveDate,
			CreatedAt:        now,
		}
	}

	if err := r.data.db.WithContext(ctx).CreateInBatches(models, cohortInsertBatchSize).Error; err != nil {
		r.log.Errorf("Failed to save %d cohort rows for run %s: %v", len(records), runID, err)
		return err
	}
	return nil
}

// DeleteByRun 删除一次任务的全部队列行
func (r *cohortRepo) DeleteByRun(ctx context.Context, runID string) error {
	if err := r.data.db.WithContext(ctx).Where("run_id = ?", runID).Delete(&model.CohortUser{}).Error; err != nil {
		r.log.Errorf("Failed to delete cohort rows for run %s: %v", runID, err)
		return err
	}
	return nil
}
