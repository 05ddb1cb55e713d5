package biz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/HannahTeng/wekruit-user-retention-analysis/internal/conf"
	"github.com/HannahTeng/wekruit-user-retention-analysis/internal/constants"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-redsync/redsync/v4"
	"github.com/google/uuid"
)

// ErrRunInProgress 已有分析任务在执行 (分布式锁被占用)
var ErrRunInProgress = errors.New("analysis run already in progress")

// AnalysisRun 一次留存分析任务的执行记录
type AnalysisRun struct {
	ID                 uint64     `json:"id"`
	RunID              string     `json:"run_id"`
	Seed               uint64     `json:"seed"`
	NUsers             int        `json:"n_users"`
	StudyHorizonDays   float64    `json:"study_horizon_days"`
	ChurnedCount       int        `json:"churned_count"`
	ChurnRate          float64    `json:"churn_rate"`
	MedianSurvivalDays *float64   `json:"median_survival_days"`
	Status             string     `json:"status"`
	CSVPath            string     `json:"csv_path"`
	SummaryPath        string     `json:"summary_path"`
	ReportJSON         string     `json:"-"`
	StartedAt          time.Time  `json:"started_at"`
	FinishedAt         *time.Time `json:"finished_at"`
}

// GroupStats 单个分组的生存统计摘要
type GroupStats struct {
	Label              string   `json:"label"`
	NSubjects          int      `json:"n_subjects"`
	MedianSurvivalDays *float64 `json:"median_survival_days"`
	Retention90        float64  `json:"retention_90"`
}

// Report 一次分析任务的完整结果
type Report struct {
	RunID            string    `json:"run_id"`
	GeneratedAt      time.Time `json:"generated_at"`
	Seed             uint64    `json:"seed"`
	NUsers           int       `json:"n_users"`
	StudyHorizonDays float64   `json:"study_horizon_days"`
	ChurnedCount     int       `json:"churned_count"`
	ChurnRate        float64   `json:"churn_rate"`

	// 整体 KM 估计摘要: 中位生存时间 + 各时间点留存率
	MedianSurvivalDays *float64        `json:"median_survival_days"`
	RetentionByDay     map[int]float64 `json:"retention_by_day"`

	// 分组对比
	TierFree        GroupStats     `json:"tier_free"`
	TierPremium     GroupStats     `json:"tier_premium"`
	TierLogRank     *LogRankResult `json:"tier_log_rank"`
	ActivityLow     GroupStats     `json:"activity_low"`
	ActivityHigh    GroupStats     `json:"activity_high"`
	ActivityLogRank *LogRankResult `json:"activity_log_rank"`

	Cox *CoxModel `json:"cox"`

	CSVPath     string   `json:"csv_path"`
	SummaryPath string   `json:"summary_path"`
	PlotPaths   []string `json:"plot_paths"`
}

// CohortRepo 队列行持久化接口
type CohortRepo interface {
	SaveRecords(ctx context.Context, runID string, records []UserRecord) error
	DeleteByRun(ctx context.Context, runID string) error
}

// RunRepo 分析任务记录仓库接口
type RunRepo interface {
	CreateRun(ctx context.Context, run *AnalysisRun) error
	UpdateRun(ctx context.Context, run *AnalysisRun) error
	GetRun(ctx context.Context, runID string) (*AnalysisRun, error)
	GetLatestRun(ctx context.Context) (*AnalysisRun, error)
	ListRuns(ctx context.Context, page, pageSize int) ([]*AnalysisRun, int, error)
	// ListRunIDsBeyond 返回按开始时间倒序第 keep 条之后的 run_id 列表
	ListRunIDsBeyond(ctx context.Context, keep int) ([]string, error)
	DeleteRuns(ctx context.Context, runIDs []string) error
}

// ReportCache 最新报告缓存接口
type ReportCache interface {
	SetLatestReport(ctx context.Context, report *Report) error
	// GetLatestReport 缓存未命中时返回 (nil, nil)
	GetLatestReport(ctx context.Context) (*Report, error)
}

// ReportRenderer 报告产物输出接口 (CSV / 曲线图 / 摘要文本)
type ReportRenderer interface {
	ExportCSV(runID string, cohort *Cohort) (string, error)
	RenderPlots(runID string, overall, free, premium, low, high *KMEstimate) ([]string, error)
	RenderSummary(report *Report) (string, error)
}

// ReportUsecase 留存分析业务逻辑
type ReportUsecase struct {
	generator *CohortGenerator
	analyzer  SurvivalAnalyzer
	cohorts   CohortRepo
	runs      RunRepo
	cache     ReportCache
	renderer  ReportRenderer
	rs        *redsync.Redsync
	conf      *conf.Report
	log       *log.Helper
}

// NewReportUsecase 创建留存分析业务逻辑
func NewReportUsecase(
	generator *CohortGenerator,
	analyzer SurvivalAnalyzer,
	cohorts CohortRepo,
	runs RunRepo,
	cache ReportCache,
	renderer ReportRenderer,
	rs *redsync.Redsync,
	bc *conf.Bootstrap,
	logger log.Logger,
) *ReportUsecase {
	return &ReportUsecase{
		generator: generator,
		analyzer:  analyzer,
		cohorts:   cohorts,
		runs:      runs,
		cache:     cache,
		renderer:  renderer,
		rs:        rs,
		conf:      bc.Report,
		log:       log.NewHelper(logger),
	}
}

// RunAnalysis 执行一次完整的留存分析
//
// 流程: 加锁 -> 生成队列 -> 持久化 + CSV 导出 -> KM/log-rank/Cox ->
// 输出曲线图和摘要 -> 落库 + 缓存。生成是单次确定性扫描, 任何一步
// 失败都中止任务并把错误上抛, 不做重试。
func (uc *ReportUsecase) RunAnalysis(ctx context.Context) (*Report, error) {
	// 使用分布式锁防止 cron 与 API 触发的任务并发执行
	mutex := uc.rs.NewMutex(
		constants.ReportLockKey,
		redsync.WithExpiry(constants.ReportLockExpiration),
		redsync.WithTries(constants.ReportLockRetries),
	)
	if err := mutex.LockContext(ctx); err != nil {
		uc.log.Infof("Skipping analysis run: lock busy")
		return nil, ErrRunInProgress
	}
	defer func() {
		if _, err := mutex.UnlockContext(ctx); err != nil {
			uc.log.Warnf("Failed to unlock report lock: %v", err)
		}
	}()

	params, err := CohortParamsFromConf(uc.conf.Cohort)
	if err != nil {
		return nil, err
	}
	seed := uint64(42)
	if uc.conf.Cohort != nil && uc.conf.Cohort.Seed != 0 {
		seed = uc.conf.Cohort.Seed
	}

	run := &AnalysisRun{
		RunID:            uuid.New().String(),
		Seed:             seed,
		NUsers:           params.NUsers,
		StudyHorizonDays: params.StudyHorizonDays,
		Status:           constants.RunStatusRunning,
		StartedAt:        time.Now().UTC(),
	}
	if err := uc.runs.CreateRun(ctx, run); err != nil {
		return nil, err
	}

	report, err := uc.execute(ctx, run, params, seed)
	now := time.Now().UTC()
	run.FinishedAt = &now
	if err != nil {
		run.Status = constants.RunStatusFailed
		if uerr := uc.runs.UpdateRun(ctx, run); uerr != nil {
			uc.log.Errorf("Failed to mark run %s failed: %v", run.RunID, uerr)
		}
		return nil, err
	}

	run.Status = constants.RunStatusCompleted
	run.ChurnedCount = report.ChurnedCount
	run.ChurnRate = report.ChurnRate
	run.MedianSurvivalDays = report.MedianSurvivalDays
	run.CSVPath = report.CSVPath
	run.SummaryPath = report.SummaryPath
	if data, merr := json.Marshal(report); merr == nil {
		run.ReportJSON = string(data)
	} else {
		uc.log.Warnf("Failed to marshal report for run %s: %v", run.RunID, merr)
	}
	if err := uc.runs.UpdateRun(ctx, run); err != nil {
		return nil, err
	}

	// 缓存失败不影响任务结果
	if err := uc.cache.SetLatestReport(ctx, report); err != nil {
		uc.log.Warnf("Failed to cache latest report: %v", err)
	}

	uc.log.Infof("Analysis run %s completed: users=%d, churn_rate=%.1f%%",
		run.RunID, report.NUsers, report.ChurnRate*100)
	return report, nil
}

// execute 生成队列并产出全部统计结果与文件
func (uc *ReportUsecase) execute(ctx context.Context, run *AnalysisRun, params CohortParams, seed uint64) (*Report, error) {
	cohort, err := uc.generator.Generate(params, seed)
	if err != nil {
		return nil, err
	}

	if err := uc.cohorts.SaveRecords(ctx, run.RunID, cohort.Records); err != nil {
		return nil, err
	}

	csvPath, err := uc.renderer.ExportCSV(run.RunID, cohort)
	if err != nil {
		return nil, err
	}

	// KM: 整体 + 按档位 + 按活跃度
	overall, err := uc.analyzer.FitKaplanMeier(cohort.Durations(), cohort.Events(), "Overall")
	if err != nil {
		return nil, err
	}
	freeDur, freeEv := cohort.SubsetByTier(constants.TierFree)
	premiumDur, premiumEv := cohort.SubsetByTier(constants.TierPremium)
	kmFree, err := uc.analyzer.FitKaplanMeier(freeDur, freeEv, "Free")
	if err != nil {
		return nil, err
	}
	kmPremium, err := uc.analyzer.FitKaplanMeier(premiumDur, premiumEv, "Premium")
	if err != nil {
		return nil, err
	}
	lowDur, lowEv := cohort.SubsetByActivity(false)
	highDur, highEv := cohort.SubsetByActivity(true)
	kmLow, err := uc.analyzer.FitKaplanMeier(lowDur, lowEv, "Low Activity")
	if err != nil {
		return nil, err
	}
	kmHigh, err := uc.analyzer.FitKaplanMeier(highDur, highEv, "High Activity")
	if err != nil {
		return nil, err
	}

	tierLR, err := uc.analyzer.LogRank(freeDur, freeEv, premiumDur, premiumEv)
	if err != nil {
		return nil, err
	}
	activityLR, err := uc.analyzer.LogRank(lowDur, lowEv, highDur, highEv)
	if err != nil {
		return nil, err
	}

	coxModel, err := uc.analyzer.FitCoxPH(cohort)
	if err != nil {
		return nil, err
	}

	report := &Report{
		RunID:              run.RunID,
		GeneratedAt:        run.StartedAt,
		Seed:               seed,
		NUsers:             params.NUsers,
		StudyHorizonDays:   params.StudyHorizonDays,
		ChurnedCount:       cohort.ChurnedCount(),
		ChurnRate:          cohort.ChurnRate(),
		MedianSurvivalDays: finiteOrNil(overall.MedianSurvivalTime()),
		RetentionByDay: map[int]float64{
			constants.RetentionCheckpoint1: overall.SurvivalAt(constants.RetentionCheckpoint1),
			constants.RetentionCheckpoint2: overall.SurvivalAt(constants.RetentionCheckpoint2),
			constants.RetentionCheckpoint3: overall.SurvivalAt(constants.RetentionCheckpoint3),
			constants.RetentionCheckpoint4: overall.SurvivalAt(constants.RetentionCheckpoint4),
		},
		TierFree:        groupStats(kmFree),
		TierPremium:     groupStats(kmPremium),
		TierLogRank:     tierLR,
		ActivityLow:     groupStats(kmLow),
		ActivityHigh:    groupStats(kmHigh),
		ActivityLogRank: activityLR,
		Cox:             coxModel,
		CSVPath:         csvPath,
	}

	plotPaths, err := uc.renderer.RenderPlots(run.RunID, overall, kmFree, kmPremium, kmLow, kmHigh)
	if err != nil {
		return nil, err
	}
	report.PlotPaths = plotPaths

	summaryPath, err := uc.renderer.RenderSummary(report)
	if err != nil {
		return nil, err
	}
	report.SummaryPath = summaryPath

	return report, nil
}

// GetLatestReport 获取最新报告: 先查缓存, 未命中回源数据库并回填
func (uc *ReportUsecase) GetLatestReport(ctx context.Context) (*Report, error) {
	report, err := uc.cache.GetLatestReport(ctx)
	if err != nil {
		uc.log.Warnf("Failed to read report cache: %v", err)
	}
	if report != nil {
		return report, nil
	}

	run, err := uc.runs.GetLatestRun(ctx)
	if err != nil {
		return nil, err
	}
	if run == nil || run.ReportJSON == "" {
		return nil, nil
	}
	report = &Report{}
	if err := json.Unmarshal([]byte(run.ReportJSON), report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stored report %s: %w", run.RunID, err)
	}
	if err := uc.cache.SetLatestReport(ctx, report); err != nil {
		uc.log.Warnf("Failed to backfill report cache: %v", err)
	}
	return report, nil
}

// GetRun 获取单次分析任务记录
func (uc *ReportUsecase) GetRun(ctx context.Context, runID string) (*AnalysisRun, error) {
	return uc.runs.GetRun(ctx, runID)
}

// ListRuns 分页获取分析任务记录
func (uc *ReportUsecase) ListRuns(ctx context.Context, page, pageSize int) ([]*AnalysisRun, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > constants.MaxPageSize {
		pageSize = constants.DefaultPageSize
	}
	return uc.runs.ListRuns(ctx, page, pageSize)
}

// PruneRuns 清理历史任务, 保留最近 keep_runs 条 (含队列行)
func (uc *ReportUsecase) PruneRuns(ctx context.Context) (int, error) {
	keep := uc.conf.KeepRuns
	if keep <= 0 {
		keep = constants.DefaultKeepRuns
	}

	runIDs, err := uc.runs.ListRunIDsBeyond(ctx, keep)
	if err != nil {
		uc.log.Errorf("Failed to list prunable runs: %v", err)
		return 0, err
	}
	if len(runIDs) == 0 {
		return 0, nil
	}

	for _, runID := range runIDs {
		if err := uc.cohorts.DeleteByRun(ctx, runID); err != nil {
			uc.log.Errorf("Failed to delete cohort rows for run %s: %v", runID, err)
			return 0, err
		}
	}
	if err := uc.runs.DeleteRuns(ctx, runIDs); err != nil {
		uc.log.Errorf("Failed to delete runs: %v", err)
		return 0, err
	}

	uc.log.Infof("Pruned %d analysis runs", len(runIDs))
	return len(runIDs), nil
}

// groupStats 从 KM 估计提取分组摘要
func groupStats(km *KMEstimate) GroupStats {
	return GroupStats{
		Label:              km.Label,
		NSubjects:          km.NSubjects,
		MedianSurvivalDays: finiteOrNil(km.MedianSurvivalTime()),
		Retention90:        km.SurvivalAt(constants.RetentionCheckpoint3),
	}
}

// finiteOrNil +Inf 的中位生存时间序列化为 null
func finiteOrNil(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}
