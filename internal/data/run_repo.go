package data

import (
	"context"
	"errors"

	"github.com/HannahTeng/wekruit-user-retention-analysis/internal/biz"
	"github.com/HannahTeng/wekruit-user-retention-analysis/internal/constants"
	"github.com/HannahTeng/wekruit-user-retention-analysis/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// runRepo 分析任务仓库实现
type runRepo struct {
	data *Data
	log  *log.Helper
}

// NewRunRepo 创建分析任务仓库
func NewRunRepo(data *Data, logger log.Logger) biz.RunRepo {
	return &runRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// CreateRun 创建任务记录
func (r *runRepo) CreateRun(ctx context.Context, run *biz.AnalysisRun) error {
	m := toRunModel(run)
	if err := r.data.db.WithContext(ctx).Create(m).Error; err != nil {
		r.log.Errorf("Failed to create run %s: %v", run.RunID, err)
		return err
	}
	run.ID = m.ID
	return nil
}

// UpdateRun 更新任务记录
func (r *runRepo) UpdateRun(ctx context.Context, run *biz.AnalysisRun) error {
	m := toRunModel(run)
	m.ID = run.ID
	if err := r.data.db.WithContext(ctx).Save(m).Error; err != nil {
		r.log.Errorf("Failed to update run %s: %v", run.RunID, err)
		return err
	}
	return nil
}

// GetRun 按 run_id 获取任务记录
func (r *runRepo) GetRun(ctx context.Context, runID string) (*biz.AnalysisRun, error) {
	var m model.AnalysisRun
	err := r.data.db.WithContext(ctx).Where("run_id = ?", runID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		r.log.Errorf("Failed to get run %s: %v", runID, err)
		return nil, err
	}
	return toRunBiz(&m), nil
}

// GetLatestRun 获取最近一次完成的任务记录
func (r *runRepo) GetLatestRun(ctx context.Context) (*biz.AnalysisRun, error) {
	var m model.AnalysisRun
	err := r.data.db.WithContext(ctx).
		Where("status = ?", constants.RunStatusCompleted).
		Order("started_at DESC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		r.log.Errorf("Failed to get latest run: %v", err)
		return nil, err
	}
	return toRunBiz(&m), nil
}

// ListRuns 分页获取任务记录 (按开始时间倒序)
func (r *runRepo) ListRuns(ctx context.Context, page, pageSize int) ([]*biz.AnalysisRun, int, error) {
	var total int64
	if err := r.data.db.WithContext(ctx).Model(&model.AnalysisRun{}).Count(&total).Error; err != nil {
		r.log.Errorf("Failed to count runs: %v", err)
		return nil, 0, err
	}

	var models []model.AnalysisRun
	offset := (page - 1) * pageSize
	if err := r.data.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(pageSize).
		Offset(offset).
		Find(&models).Error; err != nil {
		r.log.Errorf("Failed to list runs: %v", err)
		return nil, 0, err
	}

	runs := make([]*biz.AnalysisRun, len(models))
	for i := range models {
		runs[i] = toRunBiz(&models[i])
	}
	return runs, int(total), nil
}

// ListRunIDsBeyond 返回按开始时间倒序第 keep 条之后的 run_id 列表
func (r *runRepo) ListRunIDsBeyond(ctx context.Context, keep int) ([]string, error) {
	var runIDs []string
	if err := r.data.db.WithContext(ctx).Model(&model.AnalysisRun{}).
		Order("started_at DESC").
		Offset(keep).
		Limit(-1).
		Pluck("run_id", &runIDs).Error; err != nil {
		r.log.Errorf("Failed to list prunable run ids: %v", err)
		return nil, err
	}
	return runIDs, nil
}

// DeleteRuns 批量删除任务记录
func (r *runRepo) DeleteRuns(ctx context.Context, runIDs []string) error {
	if len(runIDs) == 0 {
		return nil
	}
	if err := r.data.db.WithContext(ctx).Where("run_id IN ?", runIDs).Delete(&model.AnalysisRun{}).Error; err != nil {
		r.log.Errorf("Failed to delete %d runs: %v", len(runIDs), err)
		return err
	}
	return nil
}

func toRunModel(run *biz.AnalysisRun) *model.AnalysisRun {
	return &model.AnalysisRun{
		ID:                 run.ID,
		RunID:              run.RunID,
		Seed:               run.Seed,
		NUsers:             run.NUsers,
		StudyHorizonDays:   run.StudyHorizonDays,
		ChurnedCount:       run.ChurnedCount,
		ChurnRate:          run.ChurnRate,
		MedianSurvivalDays: run.MedianSurvivalDays,
		Status:             run.Status,
		CSVPath:            run.CSVPath,
		SummaryPath:        run.SummaryPath,
		ReportJSON:         run.ReportJSON,
		StartedAt:          run.StartedAt,
		FinishedAt:         run.FinishedAt,
	}
}

func toRunBiz(m *model.AnalysisRun) *biz.AnalysisRun {
	return &biz.AnalysisRun{
		ID:                 m.ID,
		RunID:              m.RunID,
		Seed:               m.Seed,
		NUsers:             m.NUsers,
		StudyHorizonDays:   m.StudyHorizonDays,
		ChurnedCount:       m.ChurnedCount,
		ChurnRate:          m.ChurnRate,
		MedianSurvivalDays: m.MedianSurvivalDays,
		Status:             m.Status,
		CSVPath:            m.CSVPath,
		SummaryPath:        m.SummaryPath,
		ReportJSON:         m.ReportJSON,
		StartedAt:          m.StartedAt,
		FinishedAt:         m.FinishedAt,
	}
}
