package biz

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/HannahTeng/wekruit-user-retention-analysis/internal/conf"
	"github.com/HannahTeng/wekruit-user-retention-analysis/internal/constants"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunRepo struct {
	runs         map[string]*AnalysisRun
	latest       *AnalysisRun
	listPage     int
	listPageSize int
	beyond       []string
	deleted      []string
}

func (f *fakeRunRepo) CreateRun(ctx context.Context, run *AnalysisRun) error {
	if f.runs == nil {
		f.runs = map[string]*AnalysisRun{}
	}
	f.runs[run.RunID] = run
	return nil
}

func (f *fakeRunRepo) UpdateRun(ctx context.Context, run *AnalysisRun) error {
	f.runs[run.RunID] = run
	return nil
}

func (f *fakeRunRepo) GetRun(ctx context.Context, runID string) (*AnalysisRun, error) {
	return f.runs[runID], nil
}

func (f *fakeRunRepo) GetLatestRun(ctx context.Context) (*AnalysisRun, error) {
	return f.latest, nil
}

func (f *fakeRunRepo) ListRuns(ctx context.Context, page, pageSize int) ([]*AnalysisRun, int, error) {
	f.listPage = page
	f.listPageSize = pageSize
	return nil, 0, nil
}

func (f *fakeRunRepo) ListRunIDsBeyond(ctx context.Context, keep int) ([]string, error) {
	return f.beyond, nil
}

func (f *fakeRunRepo) DeleteRuns(ctx context.Context, runIDs []string) error {
	f.deleted = append(f.deleted, runIDs...)
	return nil
}

type fakeCohortRepo struct {
	deletedRuns []string
}

func (f *fakeCohortRepo) SaveRecords(ctx context.Context, runID string, records []UserRecord) error {
	return nil
}

func (f *fakeCohortRepo) DeleteByRun(ctx context.Context, runID string) error {
	f.deletedRuns = append(f.deletedRuns, runID)
	return nil
}

type fakeReportCache struct {
	report   *Report
	setCalls int
}

func (f *fakeReportCache) SetLatestReport(ctx context.Context, report *Report) error {
	f.report = report
	f.setCalls++
	return nil
}

func (f *fakeReportCache) GetLatestReport(ctx context.Context) (*Report, error) {
	return f.report, nil
}

func newTestUsecase(runs *fakeRunRepo, cohorts *fakeCohortRepo, cache *fakeReportCache, rc *conf.Report) *ReportUsecase {
	if rc == nil {
		rc = &conf.Report{}
	}
	return &ReportUsecase{
		cohorts: cohorts,
		runs:    runs,
		cache:   cache,
		conf:    rc,
		log:     log.NewHelper(log.NewStdLogger(io.Discard)),
	}
}

func TestGetLatestReportCacheHit(t *testing.T) {
	cached := &Report{RunID: "cached-run"}
	uc := newTestUsecase(&fakeRunRepo{}, &fakeCohortRepo{}, &fakeReportCache{report: cached}, nil)

	report, err := uc.GetLatestReport(context.Background())
	require.NoError(t, err)
	assert.Same(t, cached, report)
}

func TestGetLatestReportCacheMissBackfills(t *testing.T) {
	stored := &Report{RunID: "db-run", NUsers: 1500, ChurnRate: 0.6}
	data, err := json.Marshal(stored)
	require.NoError(t, err)

	runs := &fakeRunRepo{latest: &AnalysisRun{RunID: "db-run", ReportJSON: string(data)}}
	cache := &fakeReportCache{}
	uc := newTestUsecase(runs, &fakeCohortRepo{}, cache, nil)

	report, err := uc.GetLatestReport(context.Background())
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, "db-run", report.RunID)
	assert.Equal(t, 1500, report.NUsers)

	// 回源后回填缓存
	assert.Equal(t, 1, cache.setCalls)
	assert.Equal(t, "db-run", cache.report.RunID)
}

func TestGetLatestReportNoRuns(t *testing.T) {
	uc := newTestUsecase(&fakeRunRepo{}, &fakeCohortRepo{}, &fakeReportCache{}, nil)

	report, err := uc.GetLatestReport(context.Background())
	require.NoError(t, err)
	assert.Nil(t, report)
}

func TestGetLatestReportCorruptStoredJSON(t *testing.T) {
	runs := &fakeRunRepo{latest: &AnalysisRun{RunID: "bad-run", ReportJSON: "{not json"}}
	uc := newTestUsecase(runs, &fakeCohortRepo{}, &fakeReportCache{}, nil)

	_, err := uc.GetLatestReport(context.Background())
	assert.Error(t, err)
}

func TestListRunsClampsPagination(t *testing.T) {
	tests := []struct {
		name         string
		page         int
		pageSize     int
		wantPage     int
		wantPageSize int
	}{
		{"zero page", 0, 10, 1, 10},
		{"negative page", -3, 10, 1, 10},
		{"zero page size", 1, 0, 1, constants.DefaultPageSize},
		{"oversized page size", 1, 10000, 1, constants.DefaultPageSize},
		{"valid", 2, 25, 2, 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs := &fakeRunRepo{}
			uc := newTestUsecase(runs, &fakeCohortRepo{}, &fakeReportCache{}, nil)

			_, _, err := uc.ListRuns(context.Background(), tt.page, tt.pageSize)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPage, runs.listPage)
			assert.Equal(t, tt.wantPageSize, runs.listPageSize)
		})
	}
}

func TestPruneRuns(t *testing.T) {
	runs := &fakeRunRepo{beyond: []string{"old-1", "old-2"}}
	cohorts := &fakeCohortRepo{}
	uc := newTestUsecase(runs, cohorts, &fakeReportCache{}, &conf.Report{KeepRuns: 5})

	pruned, err := uc.PruneRuns(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, pruned)

	// 先删队列行再删任务记录
	assert.Equal(t, []string{"old-1", "old-2"}, cohorts.deletedRuns)
	assert.Equal(t, []string{"old-1", "old-2"}, runs.deleted)
}

func TestPruneRunsNothingToDo(t *testing.T) {
	runs := &fakeRunRepo{}
	uc := newTestUsecase(runs, &fakeCohortRepo{}, &fakeReportCache{}, nil)

	pruned, err := uc.PruneRuns(context.Background())
	require.NoError(t, err)
	assert.Zero(t, pruned)
	assert.Empty(t, runs.deleted)
}

func TestGroupStats(t *testing.T) {
	km := &KMEstimate{
		Label:     "Free",
		Times:     []float64{30, 60, 100},
		Survival:  []float64{0.8, 0.45, 0.2},
		NSubjects: 1050,
	}

	gs := groupStats(km)
	assert.Equal(t, "Free", gs.Label)
	assert.Equal(t, 1050, gs.NSubjects)
	require.NotNil(t, gs.MedianSurvivalDays)
	assert.InDelta(t, 60, *gs.MedianSurvivalDays, 1e-12)
	assert.InDelta(t, 0.45, gs.Retention90, 1e-12)
}

func TestGroupStatsMedianNotReached(t *testing.T) {
	km := &KMEstimate{
		Label:     "Premium",
		Times:     []float64{30},
		Survival:  []float64{0.9},
		NSubjects: 450,
	}

	gs := groupStats(km)
	assert.Nil(t, gs.MedianSurvivalDays)
	assert.InDelta(t, 0.9, gs.Retention90, 1e-12)
}
