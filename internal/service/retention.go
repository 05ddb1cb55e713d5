package service

import (
	"errors"
	"strconv"

	"github.com/HannahTeng/wekruit-user-retention-analysis/internal/biz"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
)

// RetentionService 留存分析服务
type RetentionService struct {
	uc *biz.ReportUsecase
}

// NewRetentionService 创建留存分析服务实例
func NewRetentionService(uc *biz.ReportUsecase) *RetentionService {
	return &RetentionService{uc: uc}
}

// ListRunsReply 任务列表响应
type ListRunsReply struct {
	Runs     []*biz.AnalysisRun `json:"runs"`
	Total    int                `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
}

// RegisterHTTPRoutes 注册业务路由
func (s *RetentionService) RegisterHTTPRoutes(srv *khttp.Server) {
	g := srv.Route("/api/v1")
	g.POST("/runs", s.handleTriggerRun)
	g.GET("/runs/latest", s.handleLatestReport)
	g.GET("/runs", s.handleListRuns)
	g.GET("/runs/{run_id}", s.handleGetRun)
}

// handleTriggerRun 同步触发一次完整的留存分析
func (s *RetentionService) handleTriggerRun(ctx khttp.Context) error {
	report, err := s.uc.RunAnalysis(ctx)
	if err != nil {
		switch {
		case errors.Is(err, biz.ErrRunInProgress):
			return kerrors.Conflict("RUN_IN_PROGRESS", "an analysis run is already in progress")
		case errors.Is(err, biz.ErrInvalidCohortConfig):
			return kerrors.BadRequest("INVALID_COHORT_CONFIG", err.Error())
		default:
			return err
		}
	}
	return ctx.Result(200, report)
}

// handleLatestReport 获取最新报告
func (s *RetentionService) handleLatestReport(ctx khttp.Context) error {
	report, err := s.uc.GetLatestReport(ctx)
	if err != nil {
		return err
	}
	if report == nil {
		return kerrors.NotFound("REPORT_NOT_FOUND", "no completed analysis run yet")
	}
	return ctx.Result(200, report)
}

// handleListRuns 分页获取任务记录
func (s *RetentionService) handleListRuns(ctx khttp.Context) error {
	page, _ := strconv.Atoi(ctx.Query().Get("page"))
	pageSize, _ := strconv.Atoi(ctx.Query().Get("page_size"))
	if page < 1 {
		page = 1
	}

	runs, total, err := s.uc.ListRuns(ctx, page, pageSize)
	if err != nil {
		return err
	}
	if runs == nil {
		runs = []*biz.AnalysisRun{}
	}
	return ctx.Result(200, &ListRunsReply{
		Runs:     runs,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

// handleGetRun 按 run_id 获取任务记录
func (s *RetentionService) handleGetRun(ctx khttp.Context) error {
	runID := ctx.Vars().Get("run_id")
	if runID == "" {
		return kerrors.BadRequest("INVALID_RUN_ID", "run_id is required")
	}

	run, err := s.uc.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if run == nil {
		return kerrors.NotFound("RUN_NOT_FOUND", "analysis run not found")
	}
	return ctx.Result(200, run)
}
