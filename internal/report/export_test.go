package report

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/HannahTeng/wekruit-user-retention-analysis/internal/biz"
	"github.com/HannahTeng/wekruit-user-retention-analysis/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	bc := &conf.Bootstrap{Report: &conf.Report{OutputDir: t.TempDir()}}
	return NewRenderer(bc, log.NewStdLogger(io.Discard))
}

func testCohort() *biz.Cohort {
	signup := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	params := biz.DefaultCohortParams()
	return &biz.Cohort{
		Params: params,
		Seed:   42,
		Records: []biz.UserRecord{
			{
				UserID:           1,
				SignupDate:       signup,
				UserType:         "job_seeker",
				SubscriptionTier: "free",
				ActivityCount:    3,
				Score:            70.5,
				BaselineHazard:   0.015,
				TimeToEvent:      45.25,
				Churned:          true,
				TimeObserved:     45.25,
				LastActiveDate:   signup.AddDate(0, 0, 45),
			},
			{
				UserID:           2,
				SignupDate:       signup.AddDate(0, 0, 10),
				UserType:         "recruiter",
				SubscriptionTier: "premium",
				ActivityCount:    8,
				Score:            82,
				BaselineHazard:   0.002064,
				TimeToEvent:      500,
				Churned:          false,
				TimeObserved:     120,
				LastActiveDate:   signup.AddDate(0, 0, 130),
			},
		},
	}
}

func TestExportCSV(t *testing.T) {
	r := newTestRenderer(t)
	cohort := testCohort()

	path, err := r.ExportCSV("run-1", cohort)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(r.outputDir, "data", "user_retention.csv"), path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, []string{
		"1", "2025-09-01", "job_seeker", "free", "3", "70.5",
		"0.015", "45.25", "1", "45.25", "2025-10-16",
	}, rows[1])

	// 删失行: event_indicator 为 0, 观测时长被截到研究窗口
	assert.Equal(t, "2", rows[2][0])
	assert.Equal(t, "premium", rows[2][3])
	assert.Equal(t, "0", rows[2][8])
	assert.Equal(t, "120", rows[2][9])
}

func TestExportCSVOverwritesPreviousRun(t *testing.T) {
	r := newTestRenderer(t)
	cohort := testCohort()

	path1, err := r.ExportCSV("run-1", cohort)
	require.NoError(t, err)

	cohort.Records = cohort.Records[:1]
	path2, err := r.ExportCSV("run-2", cohort)
	require.NoError(t, err)
	assert.Equal(t, path1, path2)

	f, err := os.Open(path2)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}
